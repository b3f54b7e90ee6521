package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	appAuth "github.com/session-hub/session-hub/internal/application/auth"
	appSession "github.com/session-hub/session-hub/internal/application/session"
	appToken "github.com/session-hub/session-hub/internal/application/token"
	"github.com/session-hub/session-hub/internal/domain/audit"
)

// Server holds dependencies for HTTP handlers. It is a thin transport adapter;
// all session and token semantics live in the application services.
type Server struct {
	authSvc    *appAuth.Service
	tokenSvc   *appToken.Service
	sessionSvc *appSession.Service
	auditRepo  audit.Repository
	logger     zerolog.Logger
}

func NewServer(
	authSvc *appAuth.Service,
	tokenSvc *appToken.Service,
	sessionSvc *appSession.Service,
	auditRepo audit.Repository,
	logger zerolog.Logger,
) *Server {
	return &Server{
		authSvc:    authSvc,
		tokenSvc:   tokenSvc,
		sessionSvc: sessionSvc,
		auditRepo:  auditRepo,
		logger:     logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Post("/refresh", s.refresh)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/logout", s.logout)
				r.Get("/me", s.me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/socket/attach", s.attachSocket)

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole("ADMIN"))

				r.Route("/sessions", func(r chi.Router) {
					r.Get("/", s.listSessions)
					r.Get("/active", s.listActiveSessions)
					r.Get("/{sessionId}", s.getSession)
					r.Patch("/{sessionId}/terminate", s.terminateSession)
				})
				r.Get("/users/{userId}/sessions", s.listUserSessions)
				r.Get("/users/{userId}/events", s.listUserEvents)
			})
		})
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, key))
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
