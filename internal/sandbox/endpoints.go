package sandbox

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var ErrUnknownEndpoint = errors.New("sandbox: unknown endpoint")

// Endpoints resolves payload tokens back into in-process channel ends
type Endpoints struct {
	mu        sync.Mutex
	pending   map[string]any
	published map[string]any
}

// NewEndpoints creates an empty table
func NewEndpoints() *Endpoints {
	return &Endpoints{
		pending:   make(map[string]any),
		published: make(map[string]any),
	}
}

// Put stores v until it is taken once
func (e *Endpoints) Put(v any) string {
	token := uuid.NewString()
	e.mu.Lock()
	e.pending[token] = v
	e.mu.Unlock()
	return token
}

// Take redeems a one-shot token
func (e *Endpoints) Take(token string) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.pending[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, token)
	}
	delete(e.pending, token)
	return v, nil
}

// Discard drops a token that will never be taken
func (e *Endpoints) Discard(token string) {
	e.mu.Lock()
	delete(e.pending, token)
	e.mu.Unlock()
}

// Publish makes v available under name to every spawned thread
func (e *Endpoints) Publish(name string, v any) {
	e.mu.Lock()
	e.published[name] = v
	e.mu.Unlock()
}

// Lookup reads a published endpoint
func (e *Endpoints) Lookup(name string) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.published[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
	}
	return v, nil
}

// Pending returns the number of tokens not yet taken
func (e *Endpoints) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}
