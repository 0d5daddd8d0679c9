package kv

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
)

// Memory is a map-backed Store.
type Memory struct {
	opts *Options

	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store. opts may be nil.
func NewMemory(opts *Options) *Memory {
	return &Memory{opts: opts, data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k, err := m.opts.encode(key, false)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(k)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	k, err := m.opts.encode(key, false)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[string(k)] = clone(value)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	k, err := m.opts.encode(key, false)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.data, string(k))
	m.mu.Unlock()
	return nil
}

// List snapshots matching keys before yielding, so callers may mutate the
// store while iterating.
func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		p, err := m.opts.encode(prefix, true)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		m.mu.RLock()
		var keys []string
		for k := range m.data {
			if strings.HasPrefix(k, string(p)) {
				keys = append(keys, k)
			}
		}
		slices.Sort(keys)
		entries := make([]Entry, len(keys))
		for i, k := range keys {
			entries[i] = Entry{Key: m.opts.decode([]byte(k)), Value: clone(m.data[k])}
		}
		m.mu.RUnlock()

		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *Memory) BatchDelete(_ context.Context, keys []Key) error {
	encoded := make([]string, 0, len(keys))
	for _, key := range keys {
		k, err := m.opts.encode(key, false)
		if err != nil {
			return err
		}
		encoded = append(encoded, string(k))
	}
	m.mu.Lock()
	for _, k := range encoded {
		delete(m.data, k)
	}
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) Close() error { return nil }
