// Package preview owns the lifetime of in-memory preview payloads.
//
// Each image shown in the browser is backed by a Handle holding the raw
// bytes and a random token under which the bytes are served. The Registry
// guarantees at most one live handle per object key: acquiring a key that
// already has a handle releases the old one first, and ReleaseAll drops
// everything when the collection is reloaded or the session ends.
package preview

import (
	"sync"

	"github.com/google/uuid"
)

// Handle is one live preview payload. Handles are created by
// Registry.Acquire and freed exactly once, no matter how many times
// they are released.
type Handle struct {
	key   string
	token string

	mu       sync.Mutex
	data     []byte
	released bool
}

// Key returns the object key this handle previews.
func (h *Handle) Key() string {
	return h.key
}

// Token returns the random token the payload is served under.
func (h *Handle) Token() string {
	return h.token
}

// Bytes returns the payload, or nil once the handle has been released.
func (h *Handle) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data
}

// Released reports whether the handle's payload has been freed.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// free drops the payload. Safe to call more than once.
func (h *Handle) free() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	h.data = nil
}

// Registry tracks live handles by object key and by token.
type Registry struct {
	mu      sync.Mutex
	byKey   map[string]*Handle
	byToken map[string]*Handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey:   make(map[string]*Handle),
		byToken: make(map[string]*Handle),
	}
}

// Acquire creates a handle for key holding data. Any previous handle for
// the same key is released first, so a key never has two live handles.
func (r *Registry) Acquire(key string, data []byte) *Handle {
	h := &Handle{key: key, token: uuid.NewString(), data: data}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byKey[key]; ok {
		delete(r.byToken, prev.token)
		prev.free()
	}
	r.byKey[key] = h
	r.byToken[h.token] = h
	return h
}

// Release frees h and forgets it. Releasing a handle twice, or a handle
// that was already displaced by a newer Acquire for the same key, is a
// no-op for the registry: the current handle for that key stays live.
func (r *Registry) Release(h *Handle) {
	if h == nil {
		return
	}

	r.mu.Lock()
	if cur, ok := r.byKey[h.key]; ok && cur == h {
		delete(r.byKey, h.key)
		delete(r.byToken, h.token)
	}
	r.mu.Unlock()

	h.free()
}

// ReleaseAll frees every live handle. Tokens handed out earlier stop
// resolving immediately.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.byKey))
	for _, h := range r.byKey {
		handles = append(handles, h)
	}
	r.byKey = make(map[string]*Handle)
	r.byToken = make(map[string]*Handle)
	r.mu.Unlock()

	for _, h := range handles {
		h.free()
	}
}

// Lookup resolves a token to its live handle. Released tokens miss.
func (r *Registry) Lookup(token string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byToken[token]
	return h, ok
}

// TokenFor returns the token of the live handle for key, if any.
func (r *Registry) TokenFor(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byKey[key]
	if !ok {
		return "", false
	}
	return h.token, true
}

// Count returns the number of live handles.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}
