package auth

import (
	"context"
	"errors"
)

// UserContext carries the authenticated identity through a request
type UserContext struct {
	UserID string
	Email  string
	Roles  []string
}

type contextKey struct{}

var userContextKey = contextKey{}

// SetUserInContext attaches the authenticated identity to a context
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext extracts the authenticated identity from a context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	if !ok || user == nil {
		return nil, errors.New("no authenticated user in context")
	}
	return user, nil
}
