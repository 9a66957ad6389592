package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"economy-core/internal/core/ports"
)

// HealthMonitor probes the database on an interval and flips into degraded
// mode after a run of consecutive failures. While degraded the wallet engine
// refuses new mutations outright instead of queuing work against a database
// that is not coming back quickly. A single successful probe clears the flag.
type HealthMonitor struct {
	checker   ports.HealthChecker
	interval  time.Duration
	threshold int
	log       zerolog.Logger
	onChange  func(degraded bool)

	degraded atomic.Bool
	failures int
}

// NewHealthMonitor creates a monitor. onChange may be nil; when set it is
// called on every degraded-state transition (used to drive the metrics gauge).
func NewHealthMonitor(
	checker ports.HealthChecker,
	interval time.Duration,
	threshold int,
	log zerolog.Logger,
	onChange func(degraded bool),
) *HealthMonitor {
	if threshold < 1 {
		threshold = 1
	}
	return &HealthMonitor{
		checker:   checker,
		interval:  interval,
		threshold: threshold,
		log:       log,
		onChange:  onChange,
	}
}

// Degraded reports whether the database is considered unreachable.
func (m *HealthMonitor) Degraded() bool {
	return m.degraded.Load()
}

// Start runs the probe loop until ctx is cancelled. Call in its own goroutine.
func (m *HealthMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *HealthMonitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	err := m.checker.Ping(probeCtx)
	cancel()

	if err == nil {
		m.failures = 0
		if m.degraded.CompareAndSwap(true, false) {
			m.log.Info().Str("checker", m.checker.Name()).Msg("database reachable again, leaving degraded mode")
			if m.onChange != nil {
				m.onChange(false)
			}
		}
		return
	}

	m.failures++
	m.log.Warn().Err(err).Int("consecutive_failures", m.failures).Msg("database probe failed")

	if m.failures >= m.threshold {
		if m.degraded.CompareAndSwap(false, true) {
			m.log.Error().Str("checker", m.checker.Name()).Msg("entering degraded mode")
			if m.onChange != nil {
				m.onChange(true)
			}
		}
	}
}
