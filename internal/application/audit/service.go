package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/session-hub/session-hub/internal/domain/audit"
)

const defaultQueueSize = 256

// Service dispatches audit events to the sink from a single background worker.
// Log never blocks the caller: when the queue is saturated the event is dropped
// and reported to the operational log. Sink failures are likewise logged and
// never propagated to the operation that produced the event.
type Service struct {
	sink   audit.Sink
	logger zerolog.Logger

	queue chan *audit.Event
	done  chan struct{}
	once  sync.Once
}

// NewService creates the dispatcher and starts its worker.
func NewService(sink audit.Sink, logger zerolog.Logger, queueSize int) *Service {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	s := &Service{
		sink:   sink,
		logger: logger.With().Str("service", "audit").Logger(),
		queue:  make(chan *audit.Event, queueSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Log enqueues an event without blocking.
func (s *Service) Log(e *audit.Event) {
	if e == nil {
		return
	}
	select {
	case s.queue <- e:
	default:
		s.logger.Warn().
			Str("action", string(e.Action)).
			Str("user_id", e.UserID.String()).
			Msg("audit queue full, event dropped")
	}
}

// LogSync writes an event directly, bypassing the queue.
func (s *Service) LogSync(ctx context.Context, e *audit.Event) error {
	return s.sink.Write(ctx, e)
}

// Close stops the worker after draining queued events.
func (s *Service) Close() {
	s.once.Do(func() {
		close(s.queue)
		<-s.done
	})
}

func (s *Service) run() {
	defer close(s.done)
	for e := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.sink.Write(ctx, e); err != nil {
			s.logger.Error().Err(err).
				Str("action", string(e.Action)).
				Str("user_id", e.UserID.String()).
				Msg("failed to write audit event")
		}
		cancel()
	}
}
