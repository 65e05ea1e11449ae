// Package registry provides the token-addressed map of live connection
// resources. A Registry is constructed explicitly and shared by reference;
// there is no package-level instance.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cyberinferno/go-sqlio/token"
)

// ErrNotFound is returned when a token has no entry in the registry.
var ErrNotFound = errors.New("token not found")

// Registry maps tokens to values of type V under a multiple-reader,
// single-writer discipline. Lookups take the shared lock; allocation,
// insertion, removal and With take the exclusive lock.
//
// Registry must not be copied after first use.
type Registry[V any] struct {
	mu      sync.RWMutex
	entries map[token.Token]V
	gen     token.Generator
}

// New returns an empty Registry that draws tokens from gen.
//
// Parameters:
//   - gen: Source of candidate tokens; collisions are re-rolled
//
// Returns:
//   - A pointer to a new Registry[V]
func New[V any](gen token.Generator) *Registry[V] {
	return &Registry[V]{
		entries: make(map[token.Token]V),
		gen:     gen,
	}
}

// Allocate draws candidate tokens until one is not present, stores v under
// it and returns it. The check and the insert happen under one exclusive
// lock, so concurrent allocators never receive the same token.
//
// Parameters:
//   - v: The value to store under the new token
//
// Returns:
//   - A token not held by any other entry at the moment of assignment
func (r *Registry[V]) Allocate(v V) token.Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		t := r.gen.Next()
		if _, taken := r.entries[t]; taken {
			continue
		}

		r.entries[t] = v
		return t
	}
}

// Insert stores v under t, replacing any existing entry.
func (r *Registry[V]) Insert(t token.Token, v V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[t] = v
}

// Get returns the value stored under t, or an error wrapping ErrNotFound.
func (r *Registry[V]) Get(t token.Token) (V, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.entries[t]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%w: %s", ErrNotFound, t)
	}

	return v, nil
}

// With looks up t and calls fn with its value while still holding the
// exclusive lock. Every other registry operation waits until fn returns.
//
// Parameters:
//   - t: The token to look up
//   - fn: Called with the stored value; its error is returned as is
//
// Returns:
//   - An error wrapping ErrNotFound if t is absent, otherwise fn's error
func (r *Registry[V]) With(t token.Token, fn func(v V) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.entries[t]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, t)
	}

	return fn(v)
}

// Remove deletes the entry for t. It is a no-op if t is absent.
//
// Returns:
//   - The removed value and true, or the zero value and false
func (r *Registry[V]) Remove(t token.Token) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.entries[t]
	if ok {
		delete(r.entries, t)
	}

	return v, ok
}

// Has reports whether t currently has an entry.
func (r *Registry[V]) Has(t token.Token) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[t]
	return ok
}

// Len returns the number of entries.
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range calls f for each entry under the shared lock, stopping early when f
// returns false. f must not call back into the registry's write operations.
func (r *Registry[V]) Range(f func(t token.Token, v V) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for t, v := range r.entries {
		if !f(t, v) {
			return
		}
	}
}

// Tokens returns the tokens currently held, sorted ascending.
func (r *Registry[V]) Tokens() []token.Token {
	r.mu.RLock()
	out := make([]token.Token, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
