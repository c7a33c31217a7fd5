// Package reqid carries a per-request identifier through contexts.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header an inbound request ID is read from and echoed to.
const Header = "X-Request-ID"

type key struct{}

// New returns a fresh random request ID.
func New() string { return uuid.NewString() }

// NewContext returns a copy of parent with a new random request ID stored.
// It also returns the generated ID.
func NewContext(parent context.Context) (context.Context, string) {
	id := New()
	return WithID(parent, id), id
}

// WithID stores id in a copy of parent. An empty id is replaced with a
// generated one.
func WithID(parent context.Context, id string) context.Context {
	if id == "" {
		id = New()
	}
	return context.WithValue(parent, key{}, id)
}

// FromContext extracts the request ID from ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}
