package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local is a FileStore rooted at a directory on disk.
type Local struct {
	root string
}

var _ FileStore = (*Local)(nil)

// NewLocal creates the root directory if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string { return l.root }

func (l *Local) resolve(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(p))
}

func (l *Local) Read(_ context.Context, p string) (io.ReadCloser, error) {
	return os.Open(l.resolve(p))
}

// Write stages data in a temporary file next to the target and renames it
// into place on Close.
func (l *Local) Write(_ context.Context, p string) (Writer, error) {
	full := l.resolve(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(full), "."+filepath.Base(full)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &atomicFile{f: f, dst: full}, nil
}

func (l *Local) Delete(_ context.Context, p string) error {
	err := os.Remove(l.resolve(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (l *Local) Exists(_ context.Context, p string) (bool, error) {
	_, err := os.Stat(l.resolve(p))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

type atomicFile struct {
	f      *os.File
	dst    string
	failed bool
	closed bool
}

func (a *atomicFile) Write(p []byte) (int, error) {
	n, err := a.f.Write(p)
	if err != nil {
		a.failed = true
	}
	return n, err
}

func (a *atomicFile) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	tmp := a.f.Name()
	err := a.f.Sync()
	if cerr := a.f.Close(); err == nil {
		err = cerr
	}
	if err == nil && a.failed {
		err = errors.New("storage: write failed")
	}
	if err == nil {
		err = os.Rename(tmp, a.dst)
	}
	if err != nil {
		os.Remove(tmp)
	}
	return err
}

// CloseWithError removes the temporary file without touching the target
// and returns err.
func (a *atomicFile) CloseWithError(err error) error {
	if a.closed {
		return err
	}
	a.closed = true
	a.f.Close()
	os.Remove(a.f.Name())
	return err
}
