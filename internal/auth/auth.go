// Package auth carries the caller identity supplied by the authentication
// collaborator through request contexts. The service itself performs no
// credential checks; it only requires that an identity is present.
package auth

import (
	"context"
	"errors"
)

// Identity is the authenticated caller of an operation.
type Identity struct {
	// UserID is the caller's identity as established by the gateway.
	UserID string
}

// ErrNotAuthenticated is returned when an operation requires a caller
// identity and none is attached to the context.
var ErrNotAuthenticated = errors.New("not authenticated")

// identityContextKey is the context key type for storing the identity.
type identityContextKey struct{}

// ContextWithIdentity returns a child context carrying the identity.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}

	return id, true
}
