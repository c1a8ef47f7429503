// Package lock admits at most one live handle per preference-set type.
//
// The registry is process-local: it does not coordinate with other processes
// and does not look at storage locations. Two handles for the same schema
// conflict even when they point at different directories.
package lock

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrAlreadyLoaded is returned by TryAcquire while another token for the same
// id is alive.
var ErrAlreadyLoaded = errors.New("another instance is already loaded")

// Registry holds one flag per id. The zero value is not usable; use
// NewRegistry or Default.
type Registry struct {
	mu    sync.Mutex
	flags map[string]*atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{flags: map[string]*atomic.Bool{}}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

func (r *Registry) flag(id string) *atomic.Bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flags[id]
	if !ok {
		f = new(atomic.Bool)
		r.flags[id] = f
	}
	return f
}

// TryAcquire claims id without blocking.
func (r *Registry) TryAcquire(id string) (*Token, error) {
	f := r.flag(id)
	if !f.CompareAndSwap(false, true) {
		return nil, ErrAlreadyLoaded
	}
	return &Token{id: id, flag: f}, nil
}

// Held reports whether a token for id is alive.
func (r *Registry) Held(id string) bool {
	r.mu.Lock()
	f, ok := r.flags[id]
	r.mu.Unlock()
	return ok && f.Load()
}

// HeldIDs lists the ids currently held, sorted.
func (r *Registry) HeldIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, f := range r.flags {
		if f.Load() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Reset forgets every flag. Outstanding tokens become inert: releasing them
// no longer affects the registry. Intended for test teardown.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.flags = map[string]*atomic.Bool{}
	r.mu.Unlock()
}

// Token is proof of a successful TryAcquire.
type Token struct {
	id   string
	flag *atomic.Bool
	once sync.Once
}

func (t *Token) ID() string { return t.id }

// Release frees the id. Only the first call has an effect; a nil token is a
// no-op.
func (t *Token) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.flag.Store(false)
	})
}
