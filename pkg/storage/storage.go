// Package storage persists model artifacts.
//
// A [FileStore] is addressed by forward-slash paths relative to its root.
// The trainer writes checkpoints through it and the inference service
// reads them back, so the same code works against a local directory, an
// S3 bucket or memory in tests. [Open] maps a model location such as
// "models/emotion_model.mdl" or "s3://bucket/prefix/emotion_model.mdl" to
// a store and a path inside it.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// FileStore is file-oriented storage. Implementations are safe for
// concurrent use.
type FileStore interface {
	// Read opens path. A missing file yields an error wrapping
	// os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write returns a writer for path. The new content becomes visible
	// only after a successful Close; readers never observe a partial file.
	Write(ctx context.Context, path string) (Writer, error)

	// Delete removes path. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether path exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// Writer is a pending file. Close commits it. CloseWithError discards
// everything written and leaves any previous file in place.
type Writer interface {
	io.WriteCloser
	CloseWithError(err error) error
}

// ReadFile reads the whole file at path.
func ReadFile(ctx context.Context, fs FileStore, path string) ([]byte, error) {
	r, err := fs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteFile replaces the file at path with data.
func WriteFile(ctx context.Context, fs FileStore, path string, data []byte) error {
	w, err := fs.Write(ctx, path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return w.CloseWithError(err)
	}
	return w.Close()
}

// Location is a parsed model location.
type Location struct {
	// Bucket is set for s3:// locations.
	Bucket string
	// Dir is the local directory or S3 key prefix.
	Dir string
	// Name is the file name inside Dir.
	Name string
}

// IsS3 reports whether the location refers to an S3 bucket.
func (l Location) IsS3() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.IsS3() {
		return "s3://" + path.Join(l.Bucket, l.Dir, l.Name)
	}
	return filepath.Join(l.Dir, l.Name)
}

// ParseLocation splits a local path or s3://bucket/key URL.
func ParseLocation(loc string) (Location, error) {
	if loc == "" {
		return Location{}, fmt.Errorf("storage: empty location")
	}
	if !strings.HasPrefix(loc, "s3://") {
		dir, name := filepath.Split(filepath.Clean(loc))
		if dir == "" {
			dir = "."
		}
		return Location{Dir: filepath.Clean(dir), Name: name}, nil
	}
	u, err := url.Parse(loc)
	if err != nil {
		return Location{}, fmt.Errorf("storage: parse %q: %w", loc, err)
	}
	key := strings.Trim(u.Path, "/")
	if u.Host == "" || key == "" {
		return Location{}, fmt.Errorf("storage: %q needs a bucket and an object key", loc)
	}
	dir, name := path.Split(key)
	return Location{Bucket: u.Host, Dir: strings.TrimSuffix(dir, "/"), Name: name}, nil
}

// Open returns a store rooted at the location's directory and the path of
// the location inside it. S3 locations use a client built from cfg.
func Open(loc string, cfg S3Config) (FileStore, string, error) {
	l, err := ParseLocation(loc)
	if err != nil {
		return nil, "", err
	}
	if !l.IsS3() {
		fs, err := NewLocal(l.Dir)
		if err != nil {
			return nil, "", err
		}
		return fs, l.Name, nil
	}
	client, err := NewS3Client(cfg)
	if err != nil {
		return nil, "", err
	}
	return NewS3(client, l.Bucket, l.Dir), l.Name, nil
}
