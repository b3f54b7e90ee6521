package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainUser "github.com/session-hub/session-hub/internal/domain/user"
	"github.com/session-hub/session-hub/internal/infrastructure/metrics"
)

var (
	// ErrInvalidSignature is returned when a token fails parsing or signature
	// verification, or carries inconsistent claims.
	ErrInvalidSignature = errors.New("token signature invalid")

	// ErrExpired is returned when a token's validity window has passed.
	ErrExpired = errors.New("token expired")

	// ErrReuseDetected is returned when a presented refresh token no longer
	// matches the principal's stored refresh-credential hash. Callers must
	// treat it as probable credential theft and revoke the whole account.
	ErrReuseDetected = errors.New("refresh token reuse detected")
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims carried by both tokens of an issuance event. The jti registered claim
// holds the correlation id that ties the pair to its session row.
type Claims struct {
	UserID    string `json:"uid"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is the result of one issuance event.
type TokenPair struct {
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token"`
	CorrelationID string `json:"-"`
	ExpiresIn     int64  `json:"expires_in"`
}

// Service mints and verifies signed access/refresh token pairs and owns the
// rotation protocol. Access and refresh tokens are signed with separate
// secrets so leaking one does not compromise the other's trust boundary.
type Service struct {
	users         domainUser.Repository
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	logger        zerolog.Logger
}

// NewService creates a token service.
func NewService(users domainUser.Repository, accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, logger zerolog.Logger) *Service {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &Service{
		users:         users,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        "session-hub",
		logger:        logger.With().Str("service", "token").Logger(),
	}
}

// Issue mints a token pair bound to a fresh correlation id. The sha256 hash of
// the refresh token replaces the principal's stored refresh-credential hash.
func (s *Service) Issue(ctx context.Context, u *domainUser.User) (TokenPair, error) {
	if len(s.accessSecret) == 0 || len(s.refreshSecret) == 0 {
		return TokenPair{}, ErrInvalidSignature
	}
	correlationID := uuid.NewString()
	now := time.Now().UTC()

	access, err := s.sign(s.accessSecret, u, typeAccess, correlationID, now, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(s.refreshSecret, u, typeRefresh, correlationID, now, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.SetRefreshTokenHash(ctx, u.UserID, HashToken(refresh)); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh hash: %w", err)
	}
	return TokenPair{
		AccessToken:   access,
		RefreshToken:  refresh,
		CorrelationID: correlationID,
		ExpiresIn:     int64(s.accessTTL.Seconds()),
	}, nil
}

// VerifyAccess verifies an access token and returns its claims.
func (s *Service) VerifyAccess(tok string) (Claims, error) {
	return s.verify(tok, s.accessSecret, typeAccess)
}

// VerifyRefresh verifies a refresh token and returns its claims.
func (s *Service) VerifyRefresh(tok string) (Claims, error) {
	return s.verify(tok, s.refreshSecret, typeRefresh)
}

// Decode extracts claims without verifying the signature. It exists only for
// session bookkeeping; never authorize anything from its result.
func (s *Service) Decode(tok string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tok, &claims); err != nil {
		return Claims{}, ErrInvalidSignature
	}
	return claims, nil
}

// Rotate exchanges a valid refresh token for a new pair. The presented token
// is compared against the principal's stored refresh-credential hash, not the
// signed payload alone: the hash binds one physical secret value, so a
// validly-signed token that was never the stored one fails with
// ErrReuseDetected. The stored hash is swapped with compare-and-swap keyed on
// the old hash so concurrent rotations cannot both succeed. The superseded
// token's claims are returned so the caller can re-bind the session.
func (s *Service) Rotate(ctx context.Context, presented string) (TokenPair, Claims, error) {
	claims, err := s.VerifyRefresh(presented)
	if err != nil {
		return TokenPair{}, Claims{}, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return TokenPair{}, Claims{}, ErrInvalidSignature
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return TokenPair{}, Claims{}, fmt.Errorf("load principal: %w", err)
	}
	if u == nil {
		return TokenPair{}, Claims{}, ErrInvalidSignature
	}

	presentedHash := HashToken(presented)
	if u.RefreshTokenHash == nil || *u.RefreshTokenHash != presentedHash {
		metrics.TokenReuseDetected.Inc()
		s.logger.Warn().Str("user_id", u.UserID.String()).Msg("refresh token reuse detected")
		return TokenPair{}, Claims{}, ErrReuseDetected
	}

	correlationID := uuid.NewString()
	now := time.Now().UTC()
	access, err := s.sign(s.accessSecret, u, typeAccess, correlationID, now, s.accessTTL)
	if err != nil {
		return TokenPair{}, Claims{}, err
	}
	refresh, err := s.sign(s.refreshSecret, u, typeRefresh, correlationID, now, s.refreshTTL)
	if err != nil {
		return TokenPair{}, Claims{}, err
	}

	swapped, err := s.users.SwapRefreshTokenHash(ctx, u.UserID, presentedHash, HashToken(refresh))
	if err != nil {
		return TokenPair{}, Claims{}, fmt.Errorf("swap refresh hash: %w", err)
	}
	if !swapped {
		// A concurrent rotation won the swap; this caller holds a stale token.
		metrics.TokenReuseDetected.Inc()
		return TokenPair{}, Claims{}, ErrReuseDetected
	}

	metrics.TokenRotations.Inc()
	return TokenPair{
		AccessToken:   access,
		RefreshToken:  refresh,
		CorrelationID: correlationID,
		ExpiresIn:     int64(s.accessTTL.Seconds()),
	}, claims, nil
}

// Revoke clears the stored refresh-credential hash, invalidating every
// outstanding refresh token for the principal immediately.
func (s *Service) Revoke(ctx context.Context, userID uuid.UUID) error {
	return s.users.ClearRefreshTokenHash(ctx, userID)
}

// HashToken returns the sha256 hex digest used to bind refresh tokens to the
// principal row. Deterministic hashing makes the rotation swap comparable by
// value, which a salted hash cannot be.
func HashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

func (s *Service) sign(secret []byte, u *domainUser.User, tokenType, correlationID string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:    u.UserID.String(),
		Role:      string(u.Role),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        correlationID,
			Issuer:    s.issuer,
			Subject:   u.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *Service) verify(tok string, secret []byte, tokenType string) (Claims, error) {
	if len(secret) == 0 || strings.TrimSpace(tok) == "" {
		return Claims{}, ErrInvalidSignature
	}
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if _, err := parser.ParseWithClaims(tok, &claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrInvalidSignature
	}
	if claims.TokenType != tokenType || !s.validClaims(claims) {
		return Claims{}, ErrInvalidSignature
	}
	return claims, nil
}

func (s *Service) validClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" || claims.Subject != claims.UserID {
		return false
	}
	if strings.TrimSpace(claims.ID) == "" {
		return false
	}
	return claims.Issuer == s.issuer
}
