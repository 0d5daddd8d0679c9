package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/haivivi/moodchat/pkg/emotion"
)

func TestRAVDESSLabel(t *testing.T) {
	tests := []struct {
		name string
		want emotion.Label
		ok   bool
	}{
		{"03-01-01-01-01-01-01.wav", emotion.Neutral, true},
		{"03-01-02-01-01-01-01.wav", emotion.Neutral, true},
		{"03-01-03-02-02-01-12.wav", emotion.Happy, true},
		{"03-01-04-01-01-02-05.wav", emotion.Sad, true},
		{"03-01-05-01-02-01-12.wav", emotion.Angry, true},
		{"03-01-06-01-01-01-01.wav", 0, false},
		{"03-01-08-01-01-01-01.wav", 0, false},
		{"readme.wav", 0, false},
	}
	for _, tt := range tests {
		got, ok := RAVDESSLabel(tt.name)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("RAVDESSLabel(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSortRAVDESS(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	touch(t, src,
		"Actor_01/03-01-05-01-02-01-01.wav",
		"Actor_01/03-01-02-01-01-01-01.wav",
		"Actor_02/03-01-03-01-01-01-02.wav",
		"Actor_02/03-01-07-01-01-01-02.wav",
		"Actor_02/03-01-04-01-01-01-02.txt",
	)
	counts, err := SortRAVDESS(context.Background(), src, dst, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := map[emotion.Label]int{emotion.Angry: 1, emotion.Neutral: 1, emotion.Happy: 1}
	for l, n := range want {
		if counts[l] != n {
			t.Errorf("counts[%s] = %d, want %d", l, counts[l], n)
		}
	}
	if _, err := os.Stat(filepath.Join(dst, "angry", "03-01-05-01-02-01-01.wav")); err != nil {
		t.Errorf("angry file not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(src, "Actor_01", "03-01-05-01-02-01-01.wav")); err != nil {
		t.Errorf("source file should remain: %v", err)
	}
	// Every label directory exists, even if empty.
	for _, l := range emotion.All() {
		if fi, err := os.Stat(filepath.Join(dst, l.String())); err != nil || !fi.IsDir() {
			t.Errorf("missing %s dir", l)
		}
	}
}

func TestSortRAVDESSMissingSource(t *testing.T) {
	if _, err := SortRAVDESS(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir(), nil); err == nil {
		t.Fatal("expected error for missing source")
	}
}
