package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/session-hub/session-hub/internal/domain/audit"
)

// AuditRepository is an in-memory append-only audit.Repository.
type AuditRepository struct {
	mu     sync.RWMutex
	events []*audit.Event
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Write(_ context.Context, e *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *e
	r.events = append(r.events, &c)
	return nil
}

func (r *AuditRepository) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*audit.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*audit.Event
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].UserID != userID {
			continue
		}
		c := *r.events[i]
		out = append(out, &c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Events returns a snapshot of everything written, oldest first.
func (r *AuditRepository) Events() []*audit.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*audit.Event, len(r.events))
	copy(out, r.events)
	return out
}
