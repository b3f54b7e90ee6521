package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/session-hub/session-hub/internal/domain/user"
)

const userColumns = `id, user_id, username, password_hash, role, refresh_token_hash, status, created_at, updated_at`

// UserRepository implements user.Repository.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users
		(user_id, username, password_hash, role, refresh_token_hash, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, u.UserID, u.Username, u.PasswordHash, u.Role, u.RefreshTokenHash, u.Status, u.CreatedAt, u.UpdatedAt)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1`, userID)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	return scanUser(row)
}

func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, userID uuid.UUID, hash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET refresh_token_hash=$2, updated_at=$3 WHERE user_id=$1
	`, userID, hash, time.Now().UTC())
	return err
}

func (r *UserRepository) SwapRefreshTokenHash(ctx context.Context, userID uuid.UUID, oldHash, newHash string) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET refresh_token_hash=$3, updated_at=$4
		WHERE user_id=$1 AND refresh_token_hash=$2
	`, userID, oldHash, newHash, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (r *UserRepository) ClearRefreshTokenHash(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET refresh_token_hash=NULL, updated_at=$2 WHERE user_id=$1
	`, userID, time.Now().UTC())
	return err
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.UserID, &u.Username, &u.PasswordHash, &u.Role, &u.RefreshTokenHash, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
