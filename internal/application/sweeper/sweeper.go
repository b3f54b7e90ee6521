package sweeper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	appSession "github.com/session-hub/session-hub/internal/application/session"
	"github.com/session-hub/session-hub/internal/domain/session"
)

const defaultInterval = time.Minute

// Sweeper ages sessions forward purely as a function of elapsed time. It never
// terminates anything; explicit action is the only way into TERMINATED.
type Sweeper struct {
	sessions       session.Repository
	registry       *appSession.Service
	idleTimeout    time.Duration
	offlineTimeout time.Duration
	interval       time.Duration
	inFlight       atomic.Bool
	logger         zerolog.Logger
}

// New creates a sweeper.
func New(sessions session.Repository, registry *appSession.Service, idleTimeout, offlineTimeout, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Sweeper{
		sessions:       sessions,
		registry:       registry,
		idleTimeout:    idleTimeout,
		offlineTimeout: offlineTimeout,
		interval:       interval,
		logger:         logger.With().Str("service", "sweeper").Logger(),
	}
}

// Result counts the transitions applied by one pass.
type Result struct {
	MarkedIdle    int
	MarkedOffline int
	Skipped       bool
}

// Run executes one sweep: ACTIVE sessions past the idle cutoff move to IDLE,
// then ACTIVE or IDLE sessions past the offline cutoff move to OFFLINE. Each
// write is guarded on the row still matching what was observed, so a
// concurrent activity ping silently wins. A pass never overlaps itself; a call
// arriving while one is in flight is skipped.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("sweep already running, skipping")
		return Result{Skipped: true}, nil
	}
	defer s.inFlight.Store(false)

	now := time.Now().UTC()
	var res Result

	idleCutoff := now.Add(-s.idleTimeout)
	idleCandidates, err := s.sessions.ListSweepCandidates(ctx, []session.Status{session.StatusActive}, idleCutoff)
	if err != nil {
		return res, err
	}
	for _, sess := range idleCandidates {
		applied, err := s.registry.MarkIdle(ctx, sess, idleCutoff)
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", sess.ID.String()).Msg("failed to mark session idle")
			continue
		}
		if applied {
			res.MarkedIdle++
		}
	}

	offlineCutoff := now.Add(-s.offlineTimeout)
	offlineCandidates, err := s.sessions.ListSweepCandidates(ctx, []session.Status{session.StatusActive, session.StatusIdle}, offlineCutoff)
	if err != nil {
		return res, err
	}
	for _, sess := range offlineCandidates {
		applied, err := s.registry.MarkOffline(ctx, sess, offlineCutoff)
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", sess.ID.String()).Msg("failed to mark session offline")
			continue
		}
		if applied {
			res.MarkedOffline++
		}
	}

	if res.MarkedIdle > 0 || res.MarkedOffline > 0 {
		s.logger.Info().
			Int("idle", res.MarkedIdle).
			Int("offline", res.MarkedOffline).
			Msg("sweep complete")
	}
	return res, nil
}

// Start runs the sweep on a fixed interval until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}
