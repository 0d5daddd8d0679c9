package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haivivi/moodchat/pkg/cli"
	"github.com/haivivi/moodchat/pkg/features"
	"github.com/haivivi/moodchat/pkg/kv"
)

// outputResult prints result honoring --json, --format and --output.
func outputResult(result any) error {
	format := cli.FormatJSON
	if !outputJSON {
		f, err := cli.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		format = f
	}
	return cli.Output(result, cli.OutputOptions{Format: format, File: outputFile})
}

// isTerminalText reports whether results go to the terminal as text.
func isTerminalText() bool {
	return !outputJSON && outputFile == "" && (outputFormat == "" || outputFormat == string(cli.FormatText))
}

// featureSource is the extractor used for dataset building, with the
// badger-backed cache when one is configured.
type featureSource struct {
	features.Source
	cache *features.CachedExtractor
	db    *kv.Badger
}

func (s *featureSource) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func openSource(cfg *cli.Config) (*featureSource, error) {
	ext, err := features.New(cfg.Features)
	if err != nil {
		return nil, err
	}
	dir, ok, err := cfg.CacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare cache directory: %w", err)
	}
	if !ok {
		return &featureSource{Source: ext}, nil
	}
	db, err := kv.NewBadger(kv.BadgerOptions{Dir: dir, Logger: slog.Default()})
	if err != nil {
		return nil, fmt.Errorf("failed to open feature cache: %w", err)
	}
	c := features.NewCached(ext, db, slog.Default())
	slog.Debug("feature cache enabled", "dir", dir)
	return &featureSource{Source: c, cache: c, db: db}, nil
}

// flagOverride copies a changed flag value into dst.
func flagOverride[T any](cmd *cobra.Command, name string, dst *T, get func(string) (T, error)) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return fmt.Errorf("failed to read '%s' flag: %w", name, err)
	}
	*dst = v
	return nil
}
