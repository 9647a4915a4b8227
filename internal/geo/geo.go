// Package geo captures best-effort device location samples.
//
// Location is enrichment, never a dependency: every failure mode here is
// reported to the caller and none may block or fail a submission.
package geo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quenchsafe/fieldtag/internal/api"
)

var (
	// ErrUnsupported indicates the device has no location capability.
	ErrUnsupported = errors.New("geolocation unsupported on this device")

	// ErrDenied indicates location permission was refused.
	ErrDenied = errors.New("geolocation permission denied")

	// ErrTimeout indicates the provider did not settle in time.
	ErrTimeout = errors.New("geolocation timed out")

	// ErrBusy indicates a capture is already in flight. Callers gate new
	// requests until the prior attempt settles; hitting this means the
	// gate was bypassed.
	ErrBusy = errors.New("location capture already in flight")
)

// SourceDevice marks samples that came from device geolocation hardware.
const SourceDevice = "device-geolocation"

// Sample is a single captured device location. Immutable once captured.
type Sample struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy"`
	CapturedAt     time.Time `json:"captured_at"`
	Source         string    `json:"source"`
}

// Wire converts the sample to its backend wire form.
func (s *Sample) Wire() *api.GPSData {
	if s == nil {
		return nil
	}
	return &api.GPSData{
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		AccuracyMeters: s.AccuracyMeters,
		CapturedAt:     s.CapturedAt,
		Source:         s.Source,
	}
}

// Provider reads a position from the underlying platform. Implementations
// map platform failures onto ErrUnsupported and ErrDenied and must honor
// context cancellation.
type Provider interface {
	Position(ctx context.Context) (Sample, error)
}

// Capturer runs bounded, single-flight location captures against a Provider.
type Capturer struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight bool
}

// NewCapturer creates a Capturer. timeout bounds each capture attempt.
func NewCapturer(provider Provider, timeout time.Duration, logger *zap.Logger) (*Capturer, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{
		provider: provider,
		timeout:  timeout,
		logger:   logger.Named("geo"),
	}, nil
}

// Capture reads one location sample, bounded by the configured timeout.
// At most one capture runs at a time; a second call while one is in flight
// returns ErrBusy without starting anything.
func (c *Capturer) Capture(ctx context.Context) (Sample, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Sample{}, ErrBusy
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sample, err := c.provider.Position(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("location capture timed out", zap.Duration("timeout", c.timeout))
			return Sample{}, ErrTimeout
		}
		return Sample{}, err
	}

	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = time.Now().UTC()
	}
	if sample.Source == "" {
		sample.Source = SourceDevice
	}

	c.logger.Debug("location captured",
		zap.Float64("lat", sample.Latitude),
		zap.Float64("lng", sample.Longitude),
		zap.Float64("accuracy_m", sample.AccuracyMeters),
	)
	return sample, nil
}
