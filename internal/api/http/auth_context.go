package httpapi

import (
	"context"

	"github.com/google/uuid"

	"github.com/session-hub/session-hub/internal/domain/user"
)

type authContextKey string

const authUserKey authContextKey = "authUser"

// AuthUser is the principal extracted from this transport's call context.
type AuthUser struct {
	UserID        uuid.UUID
	Role          user.Role
	CorrelationID string
}

func withAuthUser(ctx context.Context, u *AuthUser) context.Context {
	if u == nil {
		return ctx
	}
	return context.WithValue(ctx, authUserKey, u)
}

func authUserFromContext(ctx context.Context) *AuthUser {
	if v, ok := ctx.Value(authUserKey).(*AuthUser); ok {
		return v
	}
	return nil
}
