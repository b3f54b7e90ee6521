package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/session-hub/session-hub/internal/domain/user"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusIdle       Status = "IDLE"
	StatusOffline    Status = "OFFLINE"
	StatusTerminated Status = "TERMINATED"
)

// Channel is the transport class that carries a session's traffic.
type Channel string

const (
	ChannelREST   Channel = "REST"
	ChannelSocket Channel = "SOCKET"
	ChannelOther  Channel = "OTHER"
)

// Session is one row per successful authentication event, not one per user.
// A user may hold many concurrent non-terminated sessions.
type Session struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"userId"`
	Role            user.Role  `json:"role"`
	CorrelationID   string     `json:"correlationId"`
	Channel         Channel    `json:"channel"`
	IPAddress       *string    `json:"ipAddress,omitempty"`
	DeviceInfo      *string    `json:"deviceInfo,omitempty"`
	SocketID        *string    `json:"socketId,omitempty"`
	Status          Status     `json:"status"`
	LoginAt         time.Time  `json:"loginAt"`
	LastActivity    time.Time  `json:"lastActivity"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	TerminatedAt    *time.Time `json:"terminatedAt,omitempty"`
	DurationSeconds *int64     `json:"durationSeconds,omitempty"`
}

// IsTerminated reports whether the session reached its terminal state.
// TERMINATED is absorbing: nothing mutates the row afterwards.
func (s *Session) IsTerminated() bool {
	return s.Status == StatusTerminated
}

// IdleEligible reports whether a sweep observed at now may move the session to IDLE.
func (s *Session) IdleEligible(now time.Time, idleTimeout time.Duration) bool {
	return s.Status == StatusActive && now.Sub(s.LastActivity) > idleTimeout
}

// OfflineEligible reports whether a sweep observed at now may move the session to OFFLINE.
func (s *Session) OfflineEligible(now time.Time, offlineTimeout time.Duration) bool {
	if s.Status != StatusActive && s.Status != StatusIdle {
		return false
	}
	return now.Sub(s.LastActivity) > offlineTimeout
}

// DurationUntil computes the whole-second session duration from login to end.
func (s *Session) DurationUntil(end time.Time) int64 {
	return int64(end.Sub(s.LoginAt) / time.Second)
}

func ValidateChannel(c Channel) bool {
	switch c {
	case ChannelREST, ChannelSocket, ChannelOther:
		return true
	default:
		return false
	}
}

func ValidateStatus(st Status) bool {
	switch st {
	case StatusActive, StatusIdle, StatusOffline, StatusTerminated:
		return true
	default:
		return false
	}
}
