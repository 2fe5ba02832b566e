package handle

import (
	"fmt"
	"sync"
)

// Registry maps opaque session tokens to live sessions. Each Bridge owns
// its own registry; there is no process-wide table. Tokens start at 1 and
// are never reused, so a released record cannot reach a newer session.
type Registry[T any] struct {
	mu       sync.Mutex
	next     uint64
	sessions map[uint64]T
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{sessions: make(map[uint64]T)}
}

// Add stores a session and returns its token.
func (r *Registry[T]) Add(session T) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.sessions[r.next] = session
	return r.next
}

// Lookup returns the session for token.
func (r *Registry[T]) Lookup(token uint64) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: token %d", ErrInaccessibleHandle, token)
	}
	return s, nil
}

// Remove deletes and returns the session for token.
func (r *Registry[T]) Remove(token uint64) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: token %d", ErrInaccessibleHandle, token)
	}
	delete(r.sessions, token)
	return s, nil
}

// Len returns the number of live sessions.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Drain removes and returns every live session keyed by token.
func (r *Registry[T]) Drain() map[uint64]T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.sessions
	r.sessions = make(map[uint64]T)
	return out
}

// Resolve validates rec against kind and looks up its session.
func (r *Registry[T]) Resolve(rec *Record, kind Kind) (T, error) {
	token, err := Validate(rec, kind)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.Lookup(token)
}
