package tools

import "context"

// userKey uses an empty struct for a zero-allocation context key.
type userKey struct{}

// ContextWithUser binds the acting user's id to the request context so
// document tools can attribute what they create.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext retrieves the acting user's id. Returns "" when no user
// is bound (direct tool invocation outside a chat request).
func UserFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userKey{}).(string)
	return userID
}
