package features

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/moodchat/pkg/audio/wav"
	"github.com/haivivi/moodchat/pkg/kv"
)

// Source produces a feature matrix for an audio file.
type Source interface {
	ExtractFile(ctx context.Context, path string) (*Matrix, error)
	Config() Config
}

var (
	_ Source = (*Extractor)(nil)
	_ Source = (*CachedExtractor)(nil)
)

// CachedExtractor memoizes ExtractFile results in a kv.Store.
//
// Entries are keyed by the absolute path, size and modification time of
// the file together with the config fingerprint, so an edited file or a
// changed config never hits a stale entry. Decode failures are not cached.
type CachedExtractor struct {
	ext    *Extractor
	store  kv.Store
	logger *slog.Logger
}

// NewCached wraps ext with a cache backed by store. A nil logger uses
// slog.Default().
func NewCached(ext *Extractor, store kv.Store, logger *slog.Logger) *CachedExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedExtractor{ext: ext, store: store, logger: logger}
}

// Config returns the wrapped extractor configuration.
func (c *CachedExtractor) Config() Config { return c.ext.Config() }

// Extract computes features for an in-memory waveform. Waveforms have no
// stable identity, so this bypasses the cache.
func (c *CachedExtractor) Extract(w wav.Waveform) (*Matrix, error) { return c.ext.Extract(w) }

// ExtractFile returns the cached matrix for path or computes and stores it.
// Cache read and write failures are logged and never fail the extraction.
func (c *CachedExtractor) ExtractFile(ctx context.Context, path string) (*Matrix, error) {
	key, err := c.cacheKey(path)
	if err != nil {
		// Stat failed; let the extractor surface the decode error.
		return c.ext.ExtractFile(ctx, path)
	}

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var m Matrix
		if err := msgpack.Unmarshal(data, &m); err == nil && CheckShape(&m, c.ext.cfg.NumCoefficients, c.ext.cfg.MaxPadLen) == nil {
			return &m, nil
		}
		c.logger.Warn("features: dropping corrupt cache entry", "path", path)
	case !errors.Is(err, kv.ErrNotFound):
		c.logger.Warn("features: cache read failed", "path", path, "error", err)
	}

	m, err := c.ext.ExtractFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if data, err := msgpack.Marshal(m); err != nil {
		c.logger.Warn("features: cache encode failed", "path", path, "error", err)
	} else if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.Warn("features: cache write failed", "path", path, "error", err)
	}
	return m, nil
}

// Purge removes every cache entry written under the current config and
// reports how many entries and value bytes were removed.
func (c *CachedExtractor) Purge(ctx context.Context) (int, int64, error) {
	var (
		keys []kv.Key
		size int64
	)
	for entry, err := range c.store.List(ctx, kv.Key{"mfcc", c.ext.cfg.Fingerprint()}) {
		if err != nil {
			return 0, 0, err
		}
		keys = append(keys, entry.Key)
		size += int64(len(entry.Value))
	}
	if len(keys) == 0 {
		return 0, 0, nil
	}
	if err := c.store.BatchDelete(ctx, keys); err != nil {
		return 0, 0, err
	}
	return len(keys), size, nil
}

func (c *CachedExtractor) cacheKey(path string) (kv.Key, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("features: %s is not a regular file", path)
	}
	sum := sha256.Sum256([]byte(abs))
	return kv.Key{
		"mfcc",
		c.ext.cfg.Fingerprint(),
		hex.EncodeToString(sum[:16]),
		strconv.FormatInt(info.Size(), 10) + "-" + strconv.FormatInt(info.ModTime().UnixNano(), 10),
	}, nil
}
