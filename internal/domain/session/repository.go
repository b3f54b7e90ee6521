package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrCorrelationInUse is returned when a correlation id is already bound to a
// non-terminated session.
var ErrCorrelationInUse = errors.New("correlation id already bound to a live session")

// ListFilter narrows the administrative session listing.
type ListFilter struct {
	Page   int
	Limit  int
	Search string
}

// Repository defines persistence for sessions. Every state transition issued by
// the sweeper is conditional on the row still matching what was observed when it
// was selected, so a concurrent activity ping always wins.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)

	// GetByCorrelationID prefers the non-terminated session bound to the id;
	// if only terminated rows carry it, the most recent one is returned.
	GetByCorrelationID(ctx context.Context, correlationID string) (*Session, error)

	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Session, error)
	ListActive(ctx context.Context) ([]*Session, error)

	// List returns a page ordered by loginAt descending plus the total count.
	// Search is a case-insensitive substring match over user id, ip and device.
	List(ctx context.Context, filter ListFilter) ([]*Session, int, error)

	// UpdateActivity sets lastActivity and forces ACTIVE on the non-terminated
	// session bound to correlationID. Returns nil when no such session exists.
	UpdateActivity(ctx context.Context, correlationID string, socketID *string, now time.Time) (*Session, error)

	// AttachSocket updates only the socket handle, leaving state untouched.
	AttachSocket(ctx context.Context, correlationID, socketID string) (*Session, error)

	// RebindCorrelation moves the non-terminated session bound to oldID onto newID.
	RebindCorrelation(ctx context.Context, oldID, newID string) (*Session, error)

	// Terminate is conditional on the session not already being terminated;
	// it sets terminatedAt and the floored whole-second duration exactly once.
	// Returns nil when the guard matched no row.
	Terminate(ctx context.Context, id uuid.UUID, now time.Time) (*Session, error)

	// ListSweepCandidates returns sessions in any of the given states whose
	// lastActivity is older than cutoff.
	ListSweepCandidates(ctx context.Context, statuses []Status, cutoff time.Time) ([]*Session, error)

	// TransitionIf applies status=to only while the row is still in from and
	// lastActivity is still older than cutoff. Reports whether a row changed.
	TransitionIf(ctx context.Context, id uuid.UUID, from, to Status, cutoff time.Time) (bool, error)
}
