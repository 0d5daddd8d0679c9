package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Memory is an in-process FileStore.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ FileStore = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

func (m *Memory) Read(_ context.Context, p string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.files[p]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: read %s: %w", p, os.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Write(_ context.Context, p string) (Writer, error) {
	return &memWriter{m: m, path: p}, nil
}

func (m *Memory) Delete(_ context.Context, p string) error {
	m.mu.Lock()
	delete(m.files, p)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exists(_ context.Context, p string) (bool, error) {
	m.mu.RLock()
	_, ok := m.files[p]
	m.mu.RUnlock()
	return ok, nil
}

// Len returns the number of stored files.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

type memWriter struct {
	m      *Memory
	path   string
	buf    bytes.Buffer
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) CloseWithError(err error) error {
	w.closed = true
	return err
}

func (w *memWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.m.mu.Lock()
	w.m.files[w.path] = bytes.Clone(w.buf.Bytes())
	w.m.mu.Unlock()
	return nil
}
