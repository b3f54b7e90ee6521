package auth

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appAudit "github.com/session-hub/session-hub/internal/application/audit"
	appSession "github.com/session-hub/session-hub/internal/application/session"
	appToken "github.com/session-hub/session-hub/internal/application/token"
	"github.com/session-hub/session-hub/internal/domain/session"
	"github.com/session-hub/session-hub/internal/infrastructure/memory"
)

const (
	testUsername = "alice-doe"
	testPassword = "Sup3r-Secret!Pass"
)

type testStack struct {
	auth     *Service
	tokens   *appToken.Service
	registry *appSession.Service
	users    *memory.UserRepository
	sessions *memory.SessionRepository
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	users := memory.NewUserRepository()
	sessions := memory.NewSessionRepository()
	auditSvc := appAudit.NewService(memory.NewAuditRepository(), zerolog.Nop(), 64)
	tokens := appToken.NewService(users, "access-secret", "refresh-secret", time.Minute, time.Hour, zerolog.Nop())
	registry := appSession.NewService(sessions, auditSvc, zerolog.Nop())
	authSvc := NewService(users, NewRepositoryVerifier(users), tokens, registry, zerolog.Nop())
	return &testStack{auth: authSvc, tokens: tokens, registry: registry, users: users, sessions: sessions}
}

func registerTestUser(t *testing.T, st *testStack) *LoginResult {
	t.Helper()
	res, err := st.auth.Register(context.Background(), testUsername, testPassword, nil, nil, session.ChannelREST)
	require.NoError(t, err)
	return res
}

func TestRegisterOpensSession(t *testing.T) {
	st := newTestStack(t)

	res := registerTestUser(t, st)
	assert.Equal(t, testUsername, res.User.Username)
	assert.Equal(t, session.StatusActive, res.Session.Status)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.Equal(t, res.Tokens.CorrelationID, res.Session.CorrelationID)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	st := newTestStack(t)
	registerTestUser(t, st)

	_, err := st.auth.Register(context.Background(), testUsername, testPassword, nil, nil, session.ChannelREST)
	require.Error(t, err)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	st := newTestStack(t)

	_, err := st.auth.Register(context.Background(), testUsername, "short", nil, nil, session.ChannelREST)
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	st := newTestStack(t)
	registerTestUser(t, st)
	ctx := context.Background()

	res, err := st.auth.Login(ctx, testUsername, testPassword, nil, nil, session.ChannelSocket)
	require.NoError(t, err)
	assert.Equal(t, session.ChannelSocket, res.Session.Channel)

	// Each login opens its own session row.
	all, err := st.registry.ListByUser(ctx, res.User.UserID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLoginWrongPassword(t *testing.T) {
	st := newTestStack(t)
	registerTestUser(t, st)

	_, err := st.auth.Login(context.Background(), testUsername, "Wrong-Passw0rd!", nil, nil, session.ChannelREST)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	st := newTestStack(t)

	_, err := st.auth.Login(context.Background(), "nobody-here", "Wrong-Passw0rd!", nil, nil, session.ChannelREST)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRebindsSession(t *testing.T) {
	st := newTestStack(t)
	res := registerTestUser(t, st)
	ctx := context.Background()

	oldCorrelation := res.Tokens.CorrelationID
	pair, err := st.auth.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, oldCorrelation, pair.CorrelationID)

	// The session follows the new correlation id; the old one dangles.
	sess, err := st.registry.GetByCorrelationID(ctx, pair.CorrelationID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, res.Session.ID, sess.ID)

	old, err := st.registry.GetByCorrelationID(ctx, oldCorrelation)
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestRefreshReuseRevokesAccount(t *testing.T) {
	st := newTestStack(t)
	res := registerTestUser(t, st)
	ctx := context.Background()

	stale := res.Tokens.RefreshToken
	fresh, err := st.auth.Refresh(ctx, stale)
	require.NoError(t, err)

	// Replaying the superseded token burns the whole account.
	_, err = st.auth.Refresh(ctx, stale)
	assert.ErrorIs(t, err, appToken.ErrReuseDetected)

	sessions, err := st.registry.ListByUser(ctx, res.User.UserID)
	require.NoError(t, err)
	require.NotEmpty(t, sessions)
	for _, s := range sessions {
		assert.Equal(t, session.StatusTerminated, s.Status)
	}

	// Even the legitimately rotated token is dead after revocation.
	_, err = st.auth.Refresh(ctx, fresh.RefreshToken)
	assert.ErrorIs(t, err, appToken.ErrReuseDetected)
}

func TestRefreshGarbageToken(t *testing.T) {
	st := newTestStack(t)

	_, err := st.auth.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, appToken.ErrInvalidSignature)
}

func TestLogout(t *testing.T) {
	st := newTestStack(t)
	res := registerTestUser(t, st)
	ctx := context.Background()

	require.NoError(t, st.auth.Logout(ctx, res.User.UserID, res.Tokens.CorrelationID))

	sess, err := st.registry.GetByID(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusTerminated, sess.Status)

	// The refresh credential is revoked with the session.
	_, err = st.auth.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, appToken.ErrReuseDetected)
}

func TestLogoutIdempotent(t *testing.T) {
	st := newTestStack(t)
	res := registerTestUser(t, st)
	ctx := context.Background()

	require.NoError(t, st.auth.Logout(ctx, res.User.UserID, res.Tokens.CorrelationID))
	require.NoError(t, st.auth.Logout(ctx, res.User.UserID, res.Tokens.CorrelationID))
}
