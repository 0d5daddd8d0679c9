package dataset

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/haivivi/moodchat/pkg/emotion"
)

// RAVDESS emotion codes (third dash-separated field of the file name).
// Calm is folded into neutral; the remaining codes have no label.
var ravdessCodes = map[string]emotion.Label{
	"01": emotion.Neutral,
	"02": emotion.Neutral,
	"03": emotion.Happy,
	"04": emotion.Sad,
	"05": emotion.Angry,
}

// RAVDESSLabel returns the label encoded in a RAVDESS file name such as
// "03-01-05-01-02-01-12.wav".
func RAVDESSLabel(name string) (emotion.Label, bool) {
	parts := strings.Split(strings.TrimSuffix(name, filepath.Ext(name)), "-")
	if len(parts) < 3 {
		return 0, false
	}
	l, ok := ravdessCodes[parts[2]]
	return l, ok
}

// SortRAVDESS copies every WAV file found under src into dst/<emotion>/
// according to its RAVDESS emotion code. Files with other codes are
// ignored. It returns the number of files copied per label.
func SortRAVDESS(ctx context.Context, src, dst string, logger *slog.Logger) (map[emotion.Label]int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("dataset: ravdess source: %w", err)
	}
	for _, l := range emotion.All() {
		if err := os.MkdirAll(filepath.Join(dst, l.String()), 0o755); err != nil {
			return nil, err
		}
	}

	counts := make(map[emotion.Label]int)
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !IsWAV(d.Name()) {
			return nil
		}
		label, ok := RAVDESSLabel(d.Name())
		if !ok {
			return nil
		}
		if err := copyFile(path, filepath.Join(dst, label.String(), d.Name())); err != nil {
			return err
		}
		counts[label]++
		logger.Debug("dataset: sorted", "file", d.Name(), "label", label)
		return nil
	})
	if err != nil {
		return counts, fmt.Errorf("dataset: sort ravdess: %w", err)
	}
	return counts, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
