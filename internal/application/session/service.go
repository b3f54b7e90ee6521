package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appAudit "github.com/session-hub/session-hub/internal/application/audit"
	"github.com/session-hub/session-hub/internal/domain/audit"
	"github.com/session-hub/session-hub/internal/domain/session"
	"github.com/session-hub/session-hub/internal/domain/user"
	"github.com/session-hub/session-hub/internal/infrastructure/metrics"
)

// Service is the system of record for who is logged in, from where, and for
// how long. It owns the session state machine; all writes go through the
// repository's conditional operations.
type Service struct {
	sessions session.Repository
	auditSvc *appAudit.Service
	logger   zerolog.Logger
}

// NewService creates a session registry service.
func NewService(sessions session.Repository, auditSvc *appAudit.Service, logger zerolog.Logger) *Service {
	return &Service{
		sessions: sessions,
		auditSvc: auditSvc,
		logger:   logger.With().Str("service", "session").Logger(),
	}
}

// CreateParams describes a new session.
type CreateParams struct {
	UserID        uuid.UUID
	Role          user.Role
	CorrelationID string
	IPAddress     *string
	DeviceInfo    *string
	Channel       session.Channel
}

// Create registers a session for a successful authentication event. The
// correlation id must not collide with an existing non-terminated session.
func (s *Service) Create(ctx context.Context, p CreateParams) (*session.Session, error) {
	if p.CorrelationID == "" {
		return nil, fmt.Errorf("correlation id is required")
	}
	if !session.ValidateChannel(p.Channel) {
		p.Channel = session.ChannelREST
	}

	existing, err := s.sessions.GetByCorrelationID(ctx, p.CorrelationID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.IsTerminated() {
		return nil, session.ErrCorrelationInUse
	}

	now := time.Now().UTC()
	sess := &session.Session{
		ID:            uuid.New(),
		UserID:        p.UserID,
		Role:          p.Role,
		CorrelationID: p.CorrelationID,
		Channel:       p.Channel,
		IPAddress:     p.IPAddress,
		DeviceInfo:    p.DeviceInfo,
		Status:        session.StatusActive,
		LoginAt:       now,
		LastActivity:  now,
		UpdatedAt:     now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	metrics.Logins.Inc()
	s.auditSvc.Log(audit.NewEvent(sess.UserID, &sess.ID, audit.ActionLogin, map[string]any{
		"ipAddress":  deref(sess.IPAddress),
		"deviceInfo": deref(sess.DeviceInfo),
		"channel":    string(sess.Channel),
	}))
	s.logger.Info().
		Str("session_id", sess.ID.String()).
		Str("user_id", sess.UserID.String()).
		Str("channel", string(sess.Channel)).
		Msg("session created")
	return sess, nil
}

// RecordActivity is the single "any confirmed traffic revives the session"
// rule: lastActivity moves to now and the status is forced back to ACTIVE,
// whatever it was, unless the session is terminated. A missing session returns
// (nil, nil); the caller decides whether that is a security event. The
// unconditional-on-status write means a ping always wins a race against the
// sweeper's guarded transitions.
func (s *Service) RecordActivity(ctx context.Context, correlationID string, socketID *string) (*session.Session, error) {
	now := time.Now().UTC()
	updated, err := s.sessions.UpdateActivity(ctx, correlationID, socketID, now)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		existing, err := s.sessions.GetByCorrelationID(ctx, correlationID)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.IsTerminated() {
			return existing, nil
		}
		return nil, nil
	}

	metrics.ActivityPings.Inc()
	meta := map[string]any{}
	if socketID != nil {
		meta["socketId"] = *socketID
	}
	s.auditSvc.Log(audit.NewEvent(updated.UserID, &updated.ID, audit.ActionUpdateActivity, meta))
	return updated, nil
}

// AttachSocket updates the transport socket handle for reconnect scenarios
// without otherwise altering state.
func (s *Service) AttachSocket(ctx context.Context, correlationID, socketID string) (*session.Session, error) {
	sess, err := s.sessions.AttachSocket(ctx, correlationID, socketID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	s.auditSvc.Log(audit.NewEvent(sess.UserID, &sess.ID, audit.ActionAttachSocket, map[string]any{
		"socketId": socketID,
	}))
	return sess, nil
}

// Terminate moves a session to its terminal state and computes its duration
// exactly once. Terminating an already-terminated session is a silent no-op
// that returns the session unchanged.
func (s *Service) Terminate(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.IsTerminated() {
		return sess, nil
	}

	now := time.Now().UTC()
	terminated, err := s.sessions.Terminate(ctx, id, now)
	if err != nil {
		return nil, fmt.Errorf("terminate session: %w", err)
	}
	if terminated == nil {
		// A concurrent terminate won; the row is already final.
		return s.sessions.GetByID(ctx, id)
	}

	metrics.SessionsTerminated.Inc()
	s.auditSvc.Log(audit.NewEvent(terminated.UserID, &terminated.ID, audit.ActionTerminate, map[string]any{
		"durationSeconds": derefInt(terminated.DurationSeconds),
	}))
	s.logger.Info().
		Str("session_id", terminated.ID.String()).
		Int64("duration_seconds", derefInt(terminated.DurationSeconds)).
		Msg("session terminated")
	return terminated, nil
}

// TerminateAllForUser terminates every non-terminated session of a principal.
// Used as the response to refresh token reuse.
func (s *Service) TerminateAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, sess := range sessions {
		if sess.IsTerminated() {
			continue
		}
		if _, err := s.Terminate(ctx, sess.ID); err != nil {
			s.logger.Error().Err(err).Str("session_id", sess.ID.String()).Msg("failed to terminate session")
			continue
		}
		count++
	}
	return count, nil
}

// MarkIdle applies the sweeper's ACTIVE -> IDLE transition, guarded on the row
// still being ACTIVE with lastActivity older than cutoff at write time. A
// guard miss means an activity ping intervened; that is expected, not an error.
func (s *Service) MarkIdle(ctx context.Context, observed *session.Session, cutoff time.Time) (bool, error) {
	applied, err := s.sessions.TransitionIf(ctx, observed.ID, session.StatusActive, session.StatusIdle, cutoff)
	if err != nil {
		return false, err
	}
	if !applied {
		metrics.SweepSkipped.Inc()
		return false, nil
	}
	metrics.SweepTransitions.WithLabelValues(string(session.StatusIdle)).Inc()
	s.auditSvc.Log(audit.NewEvent(observed.UserID, &observed.ID, audit.ActionMarkIdle, nil))
	return true, nil
}

// MarkOffline applies the sweeper's ACTIVE/IDLE -> OFFLINE transition under the
// same guard discipline as MarkIdle.
func (s *Service) MarkOffline(ctx context.Context, observed *session.Session, cutoff time.Time) (bool, error) {
	applied, err := s.sessions.TransitionIf(ctx, observed.ID, observed.Status, session.StatusOffline, cutoff)
	if err != nil {
		return false, err
	}
	if !applied {
		metrics.SweepSkipped.Inc()
		return false, nil
	}
	metrics.SweepTransitions.WithLabelValues(string(session.StatusOffline)).Inc()
	s.auditSvc.Log(audit.NewEvent(observed.UserID, &observed.ID, audit.ActionMarkOffline, nil))
	return true, nil
}

// RebindCorrelation moves a live session onto the correlation id minted by a
// token rotation so the activity path keeps following the session.
func (s *Service) RebindCorrelation(ctx context.Context, oldID, newID string) (*session.Session, error) {
	sess, err := s.sessions.RebindCorrelation(ctx, oldID, newID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	s.logger.Debug().
		Str("session_id", sess.ID.String()).
		Msg("session correlation id rebound after rotation")
	return sess, nil
}

// RefreshUserActivity revives one of a user's live sessions when only the user
// and channel are known. A session on the same channel always wins; otherwise
// the most recently updated one is chosen.
func (s *Service) RefreshUserActivity(ctx context.Context, userID uuid.UUID, channel session.Channel, socketID *string) (*session.Session, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	live := sessions[:0]
	for _, sess := range sessions {
		if !sess.IsTerminated() {
			live = append(live, sess)
		}
	}
	if len(live) == 0 {
		return nil, nil
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].UpdatedAt.After(live[j].UpdatedAt)
	})
	target := live[0]
	for _, sess := range live {
		if sess.Channel == channel {
			target = sess
			break
		}
	}
	return s.RecordActivity(ctx, target.CorrelationID, socketID)
}

// GetByID returns a session by its id, or nil when absent.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	return s.sessions.GetByID(ctx, id)
}

// GetByCorrelationID returns the session bound to a correlation id.
func (s *Service) GetByCorrelationID(ctx context.Context, correlationID string) (*session.Session, error) {
	return s.sessions.GetByCorrelationID(ctx, correlationID)
}

// ListByUser returns every session owned by a user.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*session.Session, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// ListActive returns every session currently in ACTIVE.
func (s *Service) ListActive(ctx context.Context) ([]*session.Session, error) {
	return s.sessions.ListActive(ctx)
}

// ListResult is one page of the administrative listing.
type ListResult struct {
	Sessions []*session.Session `json:"sessions"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	Limit    int                `json:"limit"`
}

// List returns a filtered page of sessions ordered by loginAt descending.
func (s *Service) List(ctx context.Context, filter session.ListFilter) (*ListResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Sessions: sessions,
		Total:    total,
		Page:     filter.Page,
		Limit:    filter.Limit,
	}, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
