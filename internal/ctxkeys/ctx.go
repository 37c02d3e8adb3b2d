package ctxkeys

import (
	"context"

	"github.com/templui/taskfiles/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	IdentityKey  contextKey = "identity"
	RequestIDKey contextKey = "request_id"
)

// Identity returns the authenticated requester, if any.
func Identity(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(model.Identity)
	return identity, ok
}

func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}
