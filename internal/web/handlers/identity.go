package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/entitlements"
)

// Identity is the authenticated caller. The auth middleware attaches it
// to the request context; handlers refuse requests without one.
type Identity struct {
	UserID uuid.UUID
	Tier   entitlements.Tier
}

type identityKey struct{}

// ContextWithIdentity attaches the authenticated identity.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the authenticated identity, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
