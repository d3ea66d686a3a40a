// Package opaque round-trips host values through the guest as integer
// tokens (spec.md §4.6). The storage mode is chosen by the caller, not by
// the value's type: RegisterWeak takes a pointer and holds it through the
// standard library's weak.Pointer, while Register always stores its value
// strongly, pointers included.
package opaque

import (
	"sync"
	"weak"

	"github.com/wasmkit/ascbind/wasmerr"
)

type entry struct {
	strongVal   any
	weakResolve func() (any, bool)
	isWeak      bool
}

// Registry assigns monotonically increasing tokens to host values and
// resolves tokens back to those values. One Registry belongs to exactly
// one module instance (spec.md §4.6, §5 "the opaque registry is
// per-module").
type Registry struct {
	mu      sync.Mutex
	entries map[uint32]entry
	next    uint32
}

// NewRegistry returns an empty Registry. Token 0 is never issued, so
// callers can use it as a sentinel for "no token".
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint32]entry), next: 1}
}

// Register stores v strongly and returns its token.
func (r *Registry) Register(v any) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	token := r.next
	r.next++
	r.entries[token] = entry{strongVal: v}
	return token
}

// RegisterWeak stores v weakly: the registry keeps a weak.Pointer to it and
// does not itself prevent v from being collected by the host garbage
// collector. The caller's own reference graph must keep v alive for as
// long as the token should resolve. Resolving a token whose value has
// since been collected fails with KindOpaqueExpired.
func RegisterWeak[T any](r *Registry, v *T) uint32 {
	wp := weak.Make(v)

	r.mu.Lock()
	defer r.mu.Unlock()

	token := r.next
	r.next++
	r.entries[token] = entry{
		isWeak: true,
		weakResolve: func() (any, bool) {
			p := wp.Value()
			if p == nil {
				return nil, false
			}
			return p, true
		},
	}
	return token
}

// Resolve looks up the value behind token. A weakly-held entry whose
// target has been collected fails with KindOpaqueExpired and is evicted.
func (r *Registry) Resolve(token uint32) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[token]
	if !ok {
		return nil, wasmerr.OpaqueExpired(token)
	}
	if !e.isWeak {
		return e.strongVal, nil
	}

	v, ok := e.weakResolve()
	if !ok {
		delete(r.entries, token)
		return nil, wasmerr.OpaqueExpired(token)
	}
	return v, nil
}

// Forget drops a token without regard to whether it is still resolvable.
func (r *Registry) Forget(token uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, token)
}

// Len returns the number of live tokens.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
