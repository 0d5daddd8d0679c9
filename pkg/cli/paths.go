package cli

import (
	"os"
	"path/filepath"
)

// Paths is the ~/.moodchat directory layout.
type Paths struct {
	HomeDir string
}

// NewPaths resolves the current user's home directory.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns ~/.moodchat.
func (p *Paths) BaseDir() string { return filepath.Join(p.HomeDir, DefaultBaseDir) }

// ConfigFile returns ~/.moodchat/config.yaml.
func (p *Paths) ConfigFile() string { return filepath.Join(p.BaseDir(), DefaultConfigFile) }

// CacheDir returns ~/.moodchat/cache, the default feature cache.
func (p *Paths) CacheDir() string { return filepath.Join(p.BaseDir(), "cache") }

// EnsureCacheDir creates the cache directory.
func (p *Paths) EnsureCacheDir() error { return os.MkdirAll(p.CacheDir(), 0o755) }

// CacheDir resolves the configured feature cache directory. The second
// result is false when caching is disabled.
func (c *Config) CacheDir() (string, bool, error) {
	switch c.Paths.Cache {
	case "off", "none":
		return "", false, nil
	case "":
		p, err := NewPaths()
		if err != nil {
			return "", false, err
		}
		if err := p.EnsureCacheDir(); err != nil {
			return "", false, err
		}
		return p.CacheDir(), true, nil
	default:
		if err := os.MkdirAll(c.Paths.Cache, 0o755); err != nil {
			return "", false, err
		}
		return c.Paths.Cache, true, nil
	}
}
