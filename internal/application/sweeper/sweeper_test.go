package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appAudit "github.com/session-hub/session-hub/internal/application/audit"
	appSession "github.com/session-hub/session-hub/internal/application/session"
	"github.com/session-hub/session-hub/internal/domain/session"
	"github.com/session-hub/session-hub/internal/domain/user"
	"github.com/session-hub/session-hub/internal/infrastructure/memory"
)

const (
	idleTimeout    = 15 * time.Minute
	offlineTimeout = 60 * time.Minute
)

func newTestSweeper(t *testing.T) (*Sweeper, *memory.SessionRepository, *appSession.Service) {
	t.Helper()
	sessions := memory.NewSessionRepository()
	auditSvc := appAudit.NewService(memory.NewAuditRepository(), zerolog.Nop(), 64)
	registry := appSession.NewService(sessions, auditSvc, zerolog.Nop())
	sw := New(sessions, registry, idleTimeout, offlineTimeout, time.Minute, zerolog.Nop())
	return sw, sessions, registry
}

func seedSession(t *testing.T, sessions *memory.SessionRepository, status session.Status, stale time.Duration) *session.Session {
	t.Helper()
	now := time.Now().UTC()
	sess := &session.Session{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Role:          user.RoleUser,
		CorrelationID: uuid.NewString(),
		Channel:       session.ChannelREST,
		Status:        status,
		LoginAt:       now.Add(-stale),
		LastActivity:  now.Add(-stale),
		UpdatedAt:     now.Add(-stale),
	}
	require.NoError(t, sessions.Create(context.Background(), sess))
	return sess
}

func TestRunAgesSessionsForward(t *testing.T) {
	sw, sessions, _ := newTestSweeper(t)
	ctx := context.Background()

	fresh := seedSession(t, sessions, session.StatusActive, time.Minute)
	idleDue := seedSession(t, sessions, session.StatusActive, 20*time.Minute)
	offlineDue := seedSession(t, sessions, session.StatusIdle, 2*time.Hour)

	res, err := sw.Run(ctx)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.MarkedIdle)
	assert.Equal(t, 1, res.MarkedOffline)

	assertStatus(t, sessions, fresh.ID, session.StatusActive)
	assertStatus(t, sessions, idleDue.ID, session.StatusIdle)
	assertStatus(t, sessions, offlineDue.ID, session.StatusOffline)
}

func TestRunVeryStaleActiveGoesOfflineInOnePass(t *testing.T) {
	sw, sessions, _ := newTestSweeper(t)

	sess := seedSession(t, sessions, session.StatusActive, 3*time.Hour)

	res, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.MarkedIdle)
	assert.Equal(t, 1, res.MarkedOffline)
	assertStatus(t, sessions, sess.ID, session.StatusOffline)
}

func TestRunIsIdempotent(t *testing.T) {
	sw, sessions, _ := newTestSweeper(t)
	ctx := context.Background()

	seedSession(t, sessions, session.StatusActive, 20*time.Minute)
	seedSession(t, sessions, session.StatusIdle, 2*time.Hour)

	_, err := sw.Run(ctx)
	require.NoError(t, err)

	res, err := sw.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.MarkedIdle)
	assert.Equal(t, 0, res.MarkedOffline)
}

func TestRunNeverTouchesTerminated(t *testing.T) {
	sw, sessions, _ := newTestSweeper(t)

	now := time.Now().UTC()
	terminatedAt := now.Add(-90 * time.Minute)
	duration := int64(600)
	sess := &session.Session{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Role:            user.RoleUser,
		CorrelationID:   uuid.NewString(),
		Channel:         session.ChannelREST,
		Status:          session.StatusTerminated,
		LoginAt:         now.Add(-2 * time.Hour),
		LastActivity:    now.Add(-2 * time.Hour),
		UpdatedAt:       terminatedAt,
		TerminatedAt:    &terminatedAt,
		DurationSeconds: &duration,
	}
	require.NoError(t, sessions.Create(context.Background(), sess))

	res, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.MarkedIdle)
	assert.Equal(t, 0, res.MarkedOffline)
	assertStatus(t, sessions, sess.ID, session.StatusTerminated)
}

func TestActivityPingWinsRace(t *testing.T) {
	sw, sessions, registry := newTestSweeper(t)
	ctx := context.Background()

	sess := seedSession(t, sessions, session.StatusActive, 20*time.Minute)

	// A ping lands between candidate listing and the guarded write; here the
	// ping simply lands first, and the guard must then miss.
	_, err := registry.RecordActivity(ctx, sess.CorrelationID, nil)
	require.NoError(t, err)

	res, err := sw.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.MarkedIdle)
	assertStatus(t, sessions, sess.ID, session.StatusActive)
}

func TestRunSkipsWhenAlreadyInFlight(t *testing.T) {
	sw, sessions, _ := newTestSweeper(t)

	seedSession(t, sessions, session.StatusActive, 20*time.Minute)
	sw.inFlight.Store(true)

	res, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 0, res.MarkedIdle)

	sw.inFlight.Store(false)
	res, err = sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.MarkedIdle)
}

func assertStatus(t *testing.T, sessions *memory.SessionRepository, id uuid.UUID, want session.Status) {
	t.Helper()
	got, err := sessions.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, got.Status)
}
