package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action enumerates the audited session and token operations.
type Action string

const (
	ActionLogin          Action = "LOGIN"
	ActionUpdateActivity Action = "UPDATE_ACTIVITY"
	ActionMarkIdle       Action = "MARK_IDLE"
	ActionMarkOffline    Action = "MARK_OFFLINE"
	ActionTerminate      Action = "TERMINATE"
	ActionAttachSocket   Action = "ATTACH_SOCKET"
)

// Event is one append-only audit record. SessionID is nil for events that are
// not tied to a specific session.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"userId"`
	SessionID *uuid.UUID     `json:"sessionId,omitempty"`
	Action    Action         `json:"action"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewEvent builds an event with a fresh id and timestamp.
func NewEvent(userID uuid.UUID, sessionID *uuid.UUID, action Action, metadata map[string]any) *Event {
	return &Event{
		ID:        uuid.New(),
		UserID:    userID,
		SessionID: sessionID,
		Action:    action,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}

// Sink receives events after the originating state mutation has committed.
// Implementations must be safe for concurrent use; callers never await a sink
// for correctness.
type Sink interface {
	Write(ctx context.Context, e *Event) error
}

// Repository extends Sink with the administrative read path.
type Repository interface {
	Sink
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Event, error)
}
