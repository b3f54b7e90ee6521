package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/session-hub/session-hub/internal/domain/audit"
)

// AuditRepository implements audit.Repository as an append-only event table.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Write(ctx context.Context, e *audit.Event) error {
	var metadata []byte
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		metadata = b
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_events (id, user_id, session_id, action, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, e.ID, e.UserID, e.SessionID, e.Action, metadata, e.CreatedAt)
	return err
}

func (r *AuditRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, session_id, action, metadata, created_at
		FROM user_events WHERE user_id=$1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var e audit.Event
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Action, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
