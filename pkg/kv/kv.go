// Package kv is the byte store behind the MFCC feature cache.
//
// Keys are hierarchical string paths such as {"mfcc", fingerprint, hash}
// joined with a separator byte (':' by default). Two backends are
// provided: an on-disk BadgerDB store for the CLI and an in-memory map for
// tests and one-shot runs.
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

var (
	// ErrNotFound is returned by Get when a key does not exist.
	ErrNotFound = errors.New("kv: not found")

	// ErrInvalidKey is returned when a key is empty or a segment contains
	// the separator.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Key is a hierarchical path.
type Key []string

func (k Key) String() string { return strings.Join(k, string(DefaultSeparator)) }

// Entry is a key-value pair yielded by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys. Implementations are
// safe for concurrent use.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// List yields entries under prefix in lexicographic key order. An
	// empty prefix lists everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchDelete removes keys in a single write.
	BatchDelete(ctx context.Context, keys []Key) error

	Close() error
}

// DefaultSeparator joins key segments.
const DefaultSeparator byte = ':'

// Options are shared by all backends. A nil *Options is valid.
type Options struct {
	Separator byte
}

func (o *Options) sep() byte {
	if o == nil || o.Separator == 0 {
		return DefaultSeparator
	}
	return o.Separator
}

// encode validates and joins key. A non-empty prefix is returned with a
// trailing separator when asPrefix is set, so {"a","b"} never matches
// "a:bc".
func (o *Options) encode(k Key, asPrefix bool) ([]byte, error) {
	sep := o.sep()
	if len(k) == 0 {
		if asPrefix {
			return nil, nil
		}
		return nil, ErrInvalidKey
	}
	var b strings.Builder
	for i, seg := range k {
		if strings.IndexByte(seg, sep) >= 0 {
			return nil, fmt.Errorf("%w: segment %q contains %q", ErrInvalidKey, seg, sep)
		}
		if i > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(seg)
	}
	if asPrefix {
		b.WriteByte(sep)
	}
	return []byte(b.String()), nil
}

func (o *Options) decode(b []byte) Key {
	return Key(strings.Split(string(b), string(o.sep())))
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
