package auth

import (
	"context"

	"github.com/joestump/bmrk/internal/store"
)

type contextKey string

const (
	UserContextKey  contextKey = "user"
	TokenContextKey contextKey = "token"
)

// UserFromContext retrieves the authenticated user from the context.
func UserFromContext(ctx context.Context) *store.User {
	u, _ := ctx.Value(UserContextKey).(*store.User)
	return u
}

// TokenFromContext retrieves the access token record that authenticated the
// request.
func TokenFromContext(ctx context.Context) *TokenRecord {
	t, _ := ctx.Value(TokenContextKey).(*TokenRecord)
	return t
}
