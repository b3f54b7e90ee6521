package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/session-hub/session-hub/internal/domain/session"
)

const sessionColumns = `id, user_id, role, correlation_id, channel, ip_address, device_info, socket_id, status, login_at, last_activity, updated_at, terminated_at, duration_seconds`

// SessionRepository implements session.Repository. Sweeper transitions and
// termination are single conditional UPDATE statements so the row-level guard
// and the write are atomic.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions
		(id, user_id, role, correlation_id, channel, ip_address, device_info, socket_id, status, login_at, last_activity, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, s.ID, s.UserID, s.Role, s.CorrelationID, s.Channel, s.IPAddress, s.DeviceInfo, s.SocketID, s.Status, s.LoginAt, s.LastActivity, s.UpdatedAt)
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id)
	return scanSession(row)
}

func (r *SessionRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*session.Session, error) {
	// A non-terminated holder of the id wins; otherwise the latest terminated one.
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE correlation_id=$1
		ORDER BY (status='TERMINATED')::int, login_at DESC
		LIMIT 1
	`, correlationID)
	return scanSession(row)
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*session.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE user_id=$1 ORDER BY login_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *SessionRepository) ListActive(ctx context.Context) ([]*session.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE status=$1 ORDER BY login_at DESC
	`, session.StatusActive)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *SessionRepository) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, int, error) {
	where := `($1 = '' OR user_id::text ILIKE '%'||$1||'%' OR ip_address ILIKE '%'||$1||'%' OR device_info ILIKE '%'||$1||'%')`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE `+where, filter.Search).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE `+where+`
		ORDER BY login_at DESC
		LIMIT $2 OFFSET $3
	`, filter.Search, filter.Limit, offset)
	if err != nil {
		return nil, 0, err
	}
	sessions, err := collectSessions(rows)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (r *SessionRepository) UpdateActivity(ctx context.Context, correlationID string, socketID *string, now time.Time) (*session.Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE sessions
		SET last_activity=$2, status=$3, socket_id=COALESCE($4, socket_id), updated_at=$2
		WHERE correlation_id=$1 AND status <> $5
		RETURNING `+sessionColumns+`
	`, correlationID, now, session.StatusActive, socketID, session.StatusTerminated)
	return scanSession(row)
}

func (r *SessionRepository) AttachSocket(ctx context.Context, correlationID, socketID string) (*session.Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE sessions
		SET socket_id=$2, updated_at=$3
		WHERE correlation_id=$1 AND status <> $4
		RETURNING `+sessionColumns+`
	`, correlationID, socketID, time.Now().UTC(), session.StatusTerminated)
	return scanSession(row)
}

func (r *SessionRepository) RebindCorrelation(ctx context.Context, oldID, newID string) (*session.Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE sessions
		SET correlation_id=$2, updated_at=$3
		WHERE correlation_id=$1 AND status <> $4
		RETURNING `+sessionColumns+`
	`, oldID, newID, time.Now().UTC(), session.StatusTerminated)
	return scanSession(row)
}

func (r *SessionRepository) Terminate(ctx context.Context, id uuid.UUID, now time.Time) (*session.Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE sessions
		SET status=$2,
		    terminated_at=$3,
		    duration_seconds=FLOOR(EXTRACT(EPOCH FROM ($3::timestamptz - login_at)))::bigint,
		    updated_at=$3
		WHERE id=$1 AND status <> $2
		RETURNING `+sessionColumns+`
	`, id, session.StatusTerminated, now)
	return scanSession(row)
}

func (r *SessionRepository) ListSweepCandidates(ctx context.Context, statuses []session.Status, cutoff time.Time) ([]*session.Session, error) {
	states := make([]string, len(statuses))
	for i, st := range statuses {
		states[i] = string(st)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE status = ANY($1) AND last_activity < $2
	`, states, cutoff)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *SessionRepository) TransitionIf(ctx context.Context, id uuid.UUID, from, to session.Status, cutoff time.Time) (bool, error) {
	res, err := r.pool.Exec(ctx, `
		UPDATE sessions SET status=$3, updated_at=$4
		WHERE id=$1 AND status=$2 AND last_activity < $5
	`, id, from, to, time.Now().UTC(), cutoff)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var s session.Session
	if err := row.Scan(
		&s.ID, &s.UserID, &s.Role, &s.CorrelationID, &s.Channel,
		&s.IPAddress, &s.DeviceInfo, &s.SocketID, &s.Status,
		&s.LoginAt, &s.LastActivity, &s.UpdatedAt, &s.TerminatedAt, &s.DurationSeconds,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func collectSessions(rows pgx.Rows) ([]*session.Session, error) {
	defer rows.Close()
	var sessions []*session.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
