package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for users. The refresh-credential hash is the
// only field with its own write path: it is swapped with compare-and-swap
// semantics during rotation so two concurrent rotations against the same stale
// token cannot both succeed.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)

	// SetRefreshTokenHash unconditionally replaces the stored hash (login path).
	SetRefreshTokenHash(ctx context.Context, userID uuid.UUID, hash string) error

	// SwapRefreshTokenHash replaces the stored hash only while it still equals
	// oldHash. Reports whether the swap applied.
	SwapRefreshTokenHash(ctx context.Context, userID uuid.UUID, oldHash, newHash string) (bool, error)

	// ClearRefreshTokenHash invalidates all outstanding refresh tokens.
	ClearRefreshTokenHash(ctx context.Context, userID uuid.UUID) error
}
