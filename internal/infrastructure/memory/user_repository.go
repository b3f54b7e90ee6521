package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/session-hub/session-hub/internal/domain/user"
)

// UserRepository is an in-memory user.Repository. The refresh hash swap holds
// the same compare-and-swap contract as the postgres implementation.
type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*user.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uuid.UUID]*user.User)}
}

func (r *UserRepository) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.UserID] = cloneUser(u)
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, userID uuid.UUID) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *UserRepository) SetRefreshTokenHash(_ context.Context, userID uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	u.RefreshTokenHash = &hash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *UserRepository) SwapRefreshTokenHash(_ context.Context, userID uuid.UUID, oldHash, newHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return false, nil
	}
	if u.RefreshTokenHash == nil || *u.RefreshTokenHash != oldHash {
		return false, nil
	}
	u.RefreshTokenHash = &newHash
	u.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *UserRepository) ClearRefreshTokenHash(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	u.RefreshTokenHash = nil
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneUser(u *user.User) *user.User {
	c := *u
	if u.RefreshTokenHash != nil {
		v := *u.RefreshTokenHash
		c.RefreshTokenHash = &v
	}
	return &c
}
