package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/session-hub/session-hub/internal/domain/user"
)

// requireAuth verifies the access token, attaches the principal to the request
// context, and feeds the token's correlation id into the registry's activity
// path. The ping is fire-and-forget: the request never waits on it, and a
// missing session only shows up in the operational log.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.tokenSvc.VerifyAccess(extractBearer(r))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid subject")
			return
		}

		s.recordActivity(claims.ID)

		ctx := withAuthUser(r.Context(), &AuthUser{
			UserID:        userID,
			Role:          user.Role(claims.Role),
			CorrelationID: claims.ID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[strings.ToUpper(r)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := authUserFromContext(r.Context())
			if u == nil {
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth")
				return
			}
			if _, ok := allowed[strings.ToUpper(string(u.Role))]; !ok {
				respondError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) recordActivity(correlationID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.sessionSvc.RecordActivity(ctx, correlationID, nil); err != nil {
			s.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("failed to record activity")
		}
	}()
}

func extractBearer(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}
