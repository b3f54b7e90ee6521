package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appSession "github.com/session-hub/session-hub/internal/application/session"
	appToken "github.com/session-hub/session-hub/internal/application/token"
	"github.com/session-hub/session-hub/internal/domain/session"
	"github.com/session-hub/session-hub/internal/domain/user"
)

// ErrInvalidCredentials is returned for any login failure: unknown user,
// disabled user, or wrong password. Callers get no further detail.
var ErrInvalidCredentials = errors.New("invalid username or password")

// CredentialVerifier is the narrow interface through which stored credentials
// are consulted. It is only called at login time.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (*user.User, error)
}

// repositoryVerifier checks credentials against the user repository.
type repositoryVerifier struct {
	users user.Repository
}

// NewRepositoryVerifier builds a CredentialVerifier backed by the user store.
func NewRepositoryVerifier(users user.Repository) CredentialVerifier {
	return &repositoryVerifier{users: users}
}

func (v *repositoryVerifier) Verify(ctx context.Context, username, password string) (*user.User, error) {
	u, err := v.users.GetByUsername(ctx, user.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive() {
		return nil, ErrInvalidCredentials
	}
	if !user.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Service ties credential verification, token issuance and the session
// registry together: a successful credential check produces a principal, the
// issuer mints a pair bound to a fresh correlation id, and the registry
// creates a session keyed by that id.
type Service struct {
	users    user.Repository
	verifier CredentialVerifier
	tokens   *appToken.Service
	registry *appSession.Service
	logger   zerolog.Logger
}

// NewService creates an auth service.
func NewService(users user.Repository, verifier CredentialVerifier, tokens *appToken.Service, registry *appSession.Service, logger zerolog.Logger) *Service {
	return &Service{
		users:    users,
		verifier: verifier,
		tokens:   tokens,
		registry: registry,
		logger:   logger.With().Str("service", "auth").Logger(),
	}
}

// LoginResult contains the outcome of a successful login or registration.
type LoginResult struct {
	User    *user.User          `json:"user"`
	Session *session.Session    `json:"session"`
	Tokens  appToken.TokenPair  `json:"tokens"`
}

// Login authenticates a principal and opens a session.
func (s *Service) Login(ctx context.Context, username, password string, ipAddress, deviceInfo *string, channel session.Channel) (*LoginResult, error) {
	u, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, u, ipAddress, deviceInfo, channel)
}

// Register creates a principal and logs it in.
func (s *Service) Register(ctx context.Context, username, password string, ipAddress, deviceInfo *string, channel session.Channel) (*LoginResult, error) {
	username = user.NormalizeUsername(username)
	if err := user.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := user.ValidatePassword(password, username); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("username already taken")
	}

	hash, err := user.HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &user.User{
		UserID:       uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         user.RoleUser,
		Status:       user.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.open(ctx, u, ipAddress, deviceInfo, channel)
}

// Refresh rotates the presented refresh token and re-binds the session that
// carried the superseded correlation id. On reuse detection the whole account
// is revoked: the stored refresh hash is cleared and every non-terminated
// session of the principal is terminated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (appToken.TokenPair, error) {
	pair, old, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, appToken.ErrReuseDetected) {
			s.revokeAccount(ctx, refreshToken)
		}
		return appToken.TokenPair{}, err
	}

	if _, rerr := s.registry.RebindCorrelation(ctx, old.ID, pair.CorrelationID); rerr != nil {
		s.logger.Error().Err(rerr).Msg("failed to rebind session after rotation")
	}
	return pair, nil
}

// Logout terminates the session bound to the caller's correlation id and
// revokes the principal's refresh credential.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, correlationID string) error {
	if correlationID != "" {
		sess, err := s.registry.GetByCorrelationID(ctx, correlationID)
		if err != nil {
			return err
		}
		if sess != nil && !sess.IsTerminated() {
			if _, err := s.registry.Terminate(ctx, sess.ID); err != nil {
				return err
			}
		}
	}
	return s.tokens.Revoke(ctx, userID)
}

func (s *Service) open(ctx context.Context, u *user.User, ipAddress, deviceInfo *string, channel session.Channel) (*LoginResult, error) {
	pair, err := s.tokens.Issue(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	sess, err := s.registry.Create(ctx, appSession.CreateParams{
		UserID:        u.UserID,
		Role:          u.Role,
		CorrelationID: pair.CorrelationID,
		IPAddress:     ipAddress,
		DeviceInfo:    deviceInfo,
		Channel:       channel,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.UserID.String()).Msg("user login")
	return &LoginResult{User: u, Session: sess, Tokens: pair}, nil
}

func (s *Service) revokeAccount(ctx context.Context, refreshToken string) {
	claims, err := s.tokens.Decode(refreshToken)
	if err != nil {
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return
	}
	if err := s.tokens.Revoke(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to revoke refresh credential")
	}
	n, err := s.registry.TerminateAllForUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to terminate sessions after reuse")
		return
	}
	s.logger.Warn().
		Str("user_id", userID.String()).
		Int("terminated", n).
		Msg("refresh token reuse: account sessions revoked")
}
