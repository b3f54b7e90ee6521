package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the session lifecycle and token rotation paths. Registered on
// the default registry and exposed via /metrics.
var (
	Logins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionhub_logins_total",
		Help: "Successful logins (sessions created).",
	})

	ActivityPings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionhub_activity_pings_total",
		Help: "Activity updates applied to sessions.",
	})

	TokenRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionhub_token_rotations_total",
		Help: "Successful refresh token rotations.",
	})

	TokenReuseDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionhub_token_reuse_detected_total",
		Help: "Refresh tokens presented after being superseded or revoked.",
	})

	SessionsTerminated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionhub_sessions_terminated_total",
		Help: "Sessions moved to the TERMINATED state.",
	})

	SweepTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionhub_sweep_transitions_total",
		Help: "Sweeper state transitions by target state.",
	}, []string{"to"})

	SweepSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionhub_sweep_skipped_total",
		Help: "Sweeper conditional writes that matched no row.",
	})
)
