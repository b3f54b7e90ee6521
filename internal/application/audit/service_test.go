package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/session-hub/session-hub/internal/domain/audit"
	"github.com/session-hub/session-hub/internal/infrastructure/memory"
)

func TestLogDeliversAsync(t *testing.T) {
	events := memory.NewAuditRepository()
	svc := NewService(events, zerolog.Nop(), 8)

	userID := uuid.New()
	svc.Log(audit.NewEvent(userID, nil, audit.ActionLogin, nil))
	svc.Log(audit.NewEvent(userID, nil, audit.ActionTerminate, map[string]any{"durationSeconds": int64(42)}))
	svc.Close()

	got := events.Events()
	require.Len(t, got, 2)
	assert.Equal(t, audit.ActionLogin, got[0].Action)
	assert.Equal(t, audit.ActionTerminate, got[1].Action)
}

func TestLogIgnoresNil(t *testing.T) {
	svc := NewService(memory.NewAuditRepository(), zerolog.Nop(), 8)
	svc.Log(nil)
	svc.Close()
}

func TestLogSyncBypassesQueue(t *testing.T) {
	events := memory.NewAuditRepository()
	svc := NewService(events, zerolog.Nop(), 8)
	defer svc.Close()

	e := audit.NewEvent(uuid.New(), nil, audit.ActionLogin, nil)
	require.NoError(t, svc.LogSync(context.Background(), e))
	assert.Len(t, events.Events(), 1)
}

// blockingSink holds every write until released, so tests can saturate the
// queue deterministically.
type blockingSink struct {
	mu      sync.Mutex
	release chan struct{}
	entered chan struct{}
	written int
}

func newBlockingSink() *blockingSink {
	return &blockingSink{
		release: make(chan struct{}),
		entered: make(chan struct{}, 16),
	}
}

func (s *blockingSink) Write(_ context.Context, _ *audit.Event) error {
	s.entered <- struct{}{}
	<-s.release
	s.mu.Lock()
	s.written++
	s.mu.Unlock()
	return nil
}

func (s *blockingSink) writtenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func TestLogDropsWhenSaturated(t *testing.T) {
	sink := newBlockingSink()
	svc := NewService(sink, zerolog.Nop(), 1)

	userID := uuid.New()
	svc.Log(audit.NewEvent(userID, nil, audit.ActionLogin, nil))
	// Wait for the worker to pull the first event and block inside the sink.
	select {
	case <-sink.entered:
	case <-time.After(time.Second):
		t.Fatal("worker never reached the sink")
	}

	svc.Log(audit.NewEvent(userID, nil, audit.ActionUpdateActivity, nil)) // fills the queue
	svc.Log(audit.NewEvent(userID, nil, audit.ActionMarkIdle, nil))      // dropped

	close(sink.release)
	svc.Close()

	assert.Equal(t, 2, sink.writtenCount())
}
