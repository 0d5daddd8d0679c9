package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/haivivi/moodchat/pkg/nn"
	"github.com/haivivi/moodchat/pkg/storage"
)

// ErrModelLoad is returned when no usable model could be loaded: the file
// is missing, corrupt, of an unsupported version, or built for different
// features.
var ErrModelLoad = errors.New("inference: model unavailable")

// Handle is a lazily loaded, atomically swappable model reference. Models
// reached through a Handle are shared by concurrent readers and must not
// be trained further.
type Handle struct {
	store    storage.FileStore
	path     string
	validate func(*nn.Model) error

	once  sync.Once
	err   error
	model atomic.Pointer[nn.Model]
}

// NewHandle returns a handle that loads path from store on first use.
// validate, if non-nil, rejects models that do not fit the caller.
func NewHandle(store storage.FileStore, path string, validate func(*nn.Model) error) *Handle {
	return &Handle{store: store, path: path, validate: validate}
}

// NewStaticHandle wraps an already loaded model.
func NewStaticHandle(m *nn.Model) *Handle {
	h := &Handle{}
	h.once.Do(func() {})
	h.model.Store(m)
	return h
}

// LoadOnce returns the current model, reading it from the store on the
// first call only. Later calls return the same model, the model installed
// by Swap, or the first load error.
func (h *Handle) LoadOnce(ctx context.Context) (*nn.Model, error) {
	h.once.Do(func() {
		m, err := h.load(ctx)
		if err != nil {
			h.err = err
			return
		}
		h.model.CompareAndSwap(nil, m)
	})
	if m := h.model.Load(); m != nil {
		return m, nil
	}
	if h.err == nil {
		return nil, ErrModelLoad
	}
	return nil, h.err
}

// Reload reads the model again and swaps it in. The current model stays
// in place if the read fails.
func (h *Handle) Reload(ctx context.Context) error {
	m, err := h.load(ctx)
	if err != nil {
		return err
	}
	h.model.Swap(m)
	return nil
}

// Swap installs m and returns the previous model. A model the validator
// rejects is not installed.
func (h *Handle) Swap(m *nn.Model) (*nn.Model, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil model", ErrModelLoad)
	}
	if h.validate != nil {
		if err := h.validate(m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
		}
	}
	return h.model.Swap(m), nil
}

func (h *Handle) load(ctx context.Context) (*nn.Model, error) {
	if h.store == nil {
		return nil, fmt.Errorf("%w: no model store", ErrModelLoad)
	}
	r, err := h.store.Read(ctx, h.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	defer r.Close()
	m, err := nn.Load(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, h.path, err)
	}
	if h.validate != nil {
		if err := h.validate(m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, h.path, err)
		}
	}
	return m, nil
}
