package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/session-hub/session-hub/internal/domain/session"
)

// SessionRepository is an in-memory session.Repository with the same
// conditional-write semantics as the postgres implementation. Used by unit
// tests and as a storage fallback when no database is configured.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[uuid.UUID]*session.Session)}
}

func (r *SessionRepository) Create(_ context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = cloneSession(s)
	return nil
}

func (r *SessionRepository) GetByID(_ context.Context, id uuid.UUID) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (r *SessionRepository) GetByCorrelationID(_ context.Context, correlationID string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latestTerminated *session.Session
	for _, s := range r.sessions {
		if s.CorrelationID != correlationID {
			continue
		}
		if !s.IsTerminated() {
			return cloneSession(s), nil
		}
		if latestTerminated == nil || s.LoginAt.After(latestTerminated.LoginAt) {
			latestTerminated = s
		}
	}
	if latestTerminated == nil {
		return nil, nil
	}
	return cloneSession(latestTerminated), nil
}

func (r *SessionRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*session.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, cloneSession(s))
		}
	}
	sortByLoginDesc(out)
	return out, nil
}

func (r *SessionRepository) ListActive(_ context.Context) ([]*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*session.Session
	for _, s := range r.sessions {
		if s.Status == session.StatusActive {
			out = append(out, cloneSession(s))
		}
	}
	sortByLoginDesc(out)
	return out, nil
}

func (r *SessionRepository) List(_ context.Context, filter session.ListFilter) ([]*session.Session, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	search := strings.ToLower(filter.Search)
	var matched []*session.Session
	for _, s := range r.sessions {
		if search != "" && !matchesSearch(s, search) {
			continue
		}
		matched = append(matched, cloneSession(s))
	}
	sortByLoginDesc(matched)
	total := len(matched)

	offset := (filter.Page - 1) * filter.Limit
	if offset >= total {
		return nil, total, nil
	}
	end := offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *SessionRepository) UpdateActivity(_ context.Context, correlationID string, socketID *string, now time.Time) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.CorrelationID != correlationID || s.IsTerminated() {
			continue
		}
		s.LastActivity = now
		s.Status = session.StatusActive
		s.UpdatedAt = now
		if socketID != nil {
			s.SocketID = socketID
		}
		return cloneSession(s), nil
	}
	return nil, nil
}

func (r *SessionRepository) AttachSocket(_ context.Context, correlationID, socketID string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.CorrelationID != correlationID || s.IsTerminated() {
			continue
		}
		s.SocketID = &socketID
		s.UpdatedAt = time.Now().UTC()
		return cloneSession(s), nil
	}
	return nil, nil
}

func (r *SessionRepository) RebindCorrelation(_ context.Context, oldID, newID string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.CorrelationID != oldID || s.IsTerminated() {
			continue
		}
		s.CorrelationID = newID
		s.UpdatedAt = time.Now().UTC()
		return cloneSession(s), nil
	}
	return nil, nil
}

func (r *SessionRepository) Terminate(_ context.Context, id uuid.UUID, now time.Time) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.IsTerminated() {
		return nil, nil
	}
	duration := s.DurationUntil(now)
	s.Status = session.StatusTerminated
	s.TerminatedAt = &now
	s.DurationSeconds = &duration
	s.UpdatedAt = now
	return cloneSession(s), nil
}

func (r *SessionRepository) ListSweepCandidates(_ context.Context, statuses []session.Status, cutoff time.Time) ([]*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wanted := make(map[session.Status]struct{}, len(statuses))
	for _, st := range statuses {
		wanted[st] = struct{}{}
	}
	var out []*session.Session
	for _, s := range r.sessions {
		if _, ok := wanted[s.Status]; !ok {
			continue
		}
		if s.LastActivity.Before(cutoff) {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

func (r *SessionRepository) TransitionIf(_ context.Context, id uuid.UUID, from, to session.Status, cutoff time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false, nil
	}
	if s.Status != from || !s.LastActivity.Before(cutoff) {
		return false, nil
	}
	s.Status = to
	s.UpdatedAt = time.Now().UTC()
	return true, nil
}

func matchesSearch(s *session.Session, search string) bool {
	if strings.Contains(strings.ToLower(s.UserID.String()), search) {
		return true
	}
	if s.IPAddress != nil && strings.Contains(strings.ToLower(*s.IPAddress), search) {
		return true
	}
	if s.DeviceInfo != nil && strings.Contains(strings.ToLower(*s.DeviceInfo), search) {
		return true
	}
	return false
}

func sortByLoginDesc(sessions []*session.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LoginAt.After(sessions[j].LoginAt)
	})
}

func cloneSession(s *session.Session) *session.Session {
	c := *s
	if s.IPAddress != nil {
		v := *s.IPAddress
		c.IPAddress = &v
	}
	if s.DeviceInfo != nil {
		v := *s.DeviceInfo
		c.DeviceInfo = &v
	}
	if s.SocketID != nil {
		v := *s.SocketID
		c.SocketID = &v
	}
	if s.TerminatedAt != nil {
		v := *s.TerminatedAt
		c.TerminatedAt = &v
	}
	if s.DurationSeconds != nil {
		v := *s.DurationSeconds
		c.DurationSeconds = &v
	}
	return &c
}
