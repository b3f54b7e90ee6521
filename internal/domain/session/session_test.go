package session

import (
	"testing"
	"time"
)

func TestIdleEligible(t *testing.T) {
	now := time.Now().UTC()
	s := &Session{Status: StatusActive, LastActivity: now.Add(-20 * time.Minute)}
	if !s.IdleEligible(now, 15*time.Minute) {
		t.Fatal("expected stale ACTIVE session to be idle-eligible")
	}
	s.LastActivity = now.Add(-10 * time.Minute)
	if s.IdleEligible(now, 15*time.Minute) {
		t.Fatal("expected fresh session not to be idle-eligible")
	}
	s.LastActivity = now.Add(-20 * time.Minute)
	s.Status = StatusIdle
	if s.IdleEligible(now, 15*time.Minute) {
		t.Fatal("only ACTIVE sessions may go IDLE")
	}
}

func TestOfflineEligible(t *testing.T) {
	now := time.Now().UTC()
	s := &Session{Status: StatusIdle, LastActivity: now.Add(-90 * time.Minute)}
	if !s.OfflineEligible(now, 60*time.Minute) {
		t.Fatal("expected stale IDLE session to be offline-eligible")
	}
	s.Status = StatusActive
	if !s.OfflineEligible(now, 60*time.Minute) {
		t.Fatal("expected stale ACTIVE session to be offline-eligible")
	}
	s.Status = StatusTerminated
	if s.OfflineEligible(now, 60*time.Minute) {
		t.Fatal("TERMINATED sessions are never swept")
	}
	s.Status = StatusOffline
	if s.OfflineEligible(now, 60*time.Minute) {
		t.Fatal("OFFLINE sessions stay where they are")
	}
}

func TestDurationUntil(t *testing.T) {
	login := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s := &Session{LoginAt: login}
	if got := s.DurationUntil(login.Add(90*time.Second + 700*time.Millisecond)); got != 90 {
		t.Fatalf("expected 90 seconds, got %d", got)
	}
	if got := s.DurationUntil(login); got != 0 {
		t.Fatalf("expected zero duration, got %d", got)
	}
}

func TestValidateChannel(t *testing.T) {
	for _, c := range []Channel{ChannelREST, ChannelSocket, ChannelOther} {
		if !ValidateChannel(c) {
			t.Fatalf("expected %s to be valid", c)
		}
	}
	if ValidateChannel(Channel("GRPC")) {
		t.Fatal("expected unknown channel to be invalid")
	}
}

func TestValidateStatus(t *testing.T) {
	for _, st := range []Status{StatusActive, StatusIdle, StatusOffline, StatusTerminated} {
		if !ValidateStatus(st) {
			t.Fatalf("expected %s to be valid", st)
		}
	}
	if ValidateStatus(Status("PAUSED")) {
		t.Fatal("expected unknown status to be invalid")
	}
}
