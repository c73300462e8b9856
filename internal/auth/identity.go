package auth

import (
	"context"
	"time"
)

// Identity is the signed-in user handle passed explicitly to the rest of the
// service. It is built per request from the bearer token and the profile
// store, and stops resolving once the token is signed out.
type Identity struct {
	UserID          string
	Username        string
	ProfileComplete bool
	TokenID         string
	ExpiresAt       time.Time
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
