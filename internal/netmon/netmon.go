// Package netmon watches backend reachability and reports transitions.
//
// The agent cannot rely on OS connectivity signals alone: the device may be
// online while the inspection backend is down. The monitor probes the
// backend's health endpoint on an interval and fires a callback whenever
// reachability flips from offline to online, which is the moment the queue
// is worth draining.
package netmon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prober reports whether the backend is reachable. *api.Client satisfies it.
type Prober interface {
	Health(ctx context.Context) error
}

// Config controls probe cadence.
type Config struct {
	// Interval between probes.
	Interval time.Duration
	// ProbeTimeout bounds a single health check.
	ProbeTimeout time.Duration
}

// Monitor probes the backend and invokes onOnline on offline-to-online
// transitions. The first successful probe after startup also counts as a
// transition, so a queue built up while the agent was stopped gets drained.
type Monitor struct {
	prober   Prober
	cfg      Config
	onOnline func(ctx context.Context)
	logger   *zap.Logger

	mu     sync.Mutex
	online bool
	probed bool
}

// NewMonitor builds a Monitor. onOnline may be nil.
func NewMonitor(prober Prober, cfg Config, onOnline func(ctx context.Context), logger *zap.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		prober:   prober,
		cfg:      cfg,
		onOnline: onOnline,
		logger:   logger,
	}
}

// Online reports the last observed reachability. False before the first probe.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Probe runs a single health check and processes the result. It returns the
// reachability it observed.
func (m *Monitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	err := m.prober.Health(probeCtx)
	cancel()

	m.mu.Lock()
	wasOnline := m.online
	hadProbed := m.probed
	m.online = err == nil
	m.probed = true
	transition := err == nil && (!hadProbed || !wasOnline)
	m.mu.Unlock()

	if err != nil {
		if wasOnline || !hadProbed {
			m.logger.Warn("backend unreachable", zap.Error(err))
		}
		return false
	}

	if transition {
		m.logger.Info("backend reachable, connectivity restored")
		if m.onOnline != nil {
			m.onOnline(ctx)
		}
	}
	return true
}

// Run probes on the configured interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
