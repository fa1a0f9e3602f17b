// Package reqid tags a context with the id of the HTTP request it serves.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// Header carries the id in both directions: a client may send one, and the
// response always echoes the id in use.
const Header = "X-Request-Id"

func NewContext(parent context.Context) (context.Context, string) {
	rid := uuid.NewString()
	return context.WithValue(parent, ctxKey{}, rid), rid
}

// WithID stores rid when it is a UUID and a fresh one otherwise.
func WithID(parent context.Context, rid string) (context.Context, string) {
	if err := uuid.Validate(rid); err != nil {
		return NewContext(parent)
	}
	return context.WithValue(parent, ctxKey{}, rid), rid
}

func FromContext(ctx context.Context) (string, bool) {
	rid, ok := ctx.Value(ctxKey{}).(string)
	return rid, ok
}
