package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/haivivi/moodchat/pkg/emotion"
	"github.com/haivivi/moodchat/pkg/features"
)

// Default split parameters.
const (
	DefaultSeed            uint64  = 42
	DefaultValidationRatio float64 = 0.2
)

// Builder scans a labeled directory tree and extracts features in parallel.
type Builder struct {
	src      features.Source
	workers  int
	seed     uint64
	ratio    float64
	logger   *slog.Logger
	progress func(done, total int)
}

// Option configures a Builder.
type Option func(*Builder)

// WithWorkers bounds the number of concurrent extractions. Values below 1
// use runtime.NumCPU().
func WithWorkers(n int) Option { return func(b *Builder) { b.workers = n } }

// WithSeed sets the split seed.
func WithSeed(seed uint64) Option { return func(b *Builder) { b.seed = seed } }

// WithValidationRatio sets the fraction of examples held out.
func WithValidationRatio(r float64) Option { return func(b *Builder) { b.ratio = r } }

// WithLogger sets the logger used for skipped directories and files.
func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.logger = l } }

// WithProgress registers a callback invoked after every processed file.
// It may be called from multiple goroutines.
func WithProgress(fn func(done, total int)) Option { return func(b *Builder) { b.progress = fn } }

// NewBuilder creates a Builder that extracts features with src.
func NewBuilder(src features.Source, opts ...Option) *Builder {
	b := &Builder{
		src:    src,
		seed:   DefaultSeed,
		ratio:  DefaultValidationRatio,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers < 1 {
		b.workers = runtime.NumCPU()
	}
	return b
}

type job struct {
	path  string
	label emotion.Label
}

// Build scans root/<name>/*.wav for every name in labels and returns the
// split dataset. Directories not in labels are skipped with a warning.
// Files that fail to decode are logged and skipped; any other extraction
// error aborts the build.
func (b *Builder) Build(ctx context.Context, root string, labels emotion.Map) (*Dataset, error) {
	if err := labels.Validate(); err != nil {
		return nil, err
	}
	jobs, err := b.scan(root, labels)
	if err != nil {
		return nil, err
	}

	cfg := b.src.Config()
	slots := make([]*Example, len(jobs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, j := range jobs {
		g.Go(func() error {
			defer func() {
				if b.progress != nil {
					b.progress(int(done.Add(1)), len(jobs))
				}
			}()
			m, err := b.src.ExtractFile(gctx, j.path)
			if errors.Is(err, features.ErrDecode) {
				b.logger.Warn("dataset: skipping file", "path", j.path, "error", err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("dataset: %s: %w", j.path, err)
			}
			t := m.Transpose()
			if err := features.CheckShape(t, cfg.MaxPadLen, cfg.NumCoefficients); err != nil {
				return fmt.Errorf("dataset: %s: %w", j.path, err)
			}
			slots[i] = &Example{Features: t, Label: j.label, Path: j.path}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	examples := make([]Example, 0, len(slots))
	for _, e := range slots {
		if e != nil {
			examples = append(examples, *e)
		}
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("%w under %s (label folders: %s)",
			ErrEmptyDataset, root, strings.Join(labels.Names(), ", "))
	}

	train, val := Split(examples, b.ratio, b.seed)
	b.logger.Info("dataset: built",
		"root", root, "examples", len(examples),
		"train", len(train), "validation", len(val),
		"skipped", len(jobs)-len(examples))
	return &Dataset{
		Examples:   examples,
		Train:      train,
		Validation: val,
		Steps:      cfg.MaxPadLen,
		Size:       cfg.NumCoefficients,
	}, nil
}

// scan lists the files to extract, ordered by label index then path.
func (b *Builder) scan(root string, labels emotion.Map) ([]job, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("dataset: read root: %w", err)
	}
	var jobs []job
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		label, ok := labels.Lookup(ent.Name())
		if !ok {
			b.logger.Warn("dataset: skipping unknown label directory", "dir", ent.Name())
			continue
		}
		dir := filepath.Join(root, ent.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("dataset: read %s: %w", dir, err)
		}
		for _, f := range files {
			if f.IsDir() || !IsWAV(f.Name()) {
				continue
			}
			jobs = append(jobs, job{path: filepath.Join(dir, f.Name()), label: label})
		}
	}
	slices.SortStableFunc(jobs, func(a, b job) int {
		if a.label != b.label {
			return int(a.label) - int(b.label)
		}
		return strings.Compare(a.path, b.path)
	})
	return jobs, nil
}

// IsWAV reports whether name has a .wav extension, ignoring case.
func IsWAV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".wav")
}
