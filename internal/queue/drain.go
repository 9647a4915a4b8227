package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Sender delivers one payload to the backend. The drain uses the same
// transport as a live submission but bypasses recovery: a drain attempt is
// a direct retry, and any error counts as a failed attempt.
type Sender interface {
	Send(ctx context.Context, payload SubmissionPayload) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, payload SubmissionPayload) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, payload SubmissionPayload) error {
	return f(ctx, payload)
}

// DrainReport summarizes one drain pass.
type DrainReport struct {
	// Skipped is true when another drain was already in flight and this
	// call did nothing.
	Skipped bool

	Attempted int
	Delivered int
	Dropped   int
	Retained  int

	// Emptied is true when the pass ended with an empty queue. Callers
	// refresh list views once after an emptying drain.
	Emptied bool
}

// Drain replays pending entries in FIFO order. Each entry gets one attempt
// per pass: success removes it, failure increments its retry count, and an
// entry that has exhausted its retries is dropped permanently. Dropping is
// an explicit policy, not silent loss: it is logged and counted.
//
// Drain is idempotent under concurrent invocation: at most one pass runs at
// a time, and a call that finds one in flight is a no-op. Attempts are
// paced by limiter and processed strictly one at a time, awaiting each
// outcome before the next.
func (s *Store) Drain(ctx context.Context, sender Sender, limiter *rate.Limiter) (DrainReport, error) {
	if sender == nil {
		return DrainReport{}, fmt.Errorf("sender cannot be nil")
	}

	s.drainMu.Lock()
	if s.draining {
		s.drainMu.Unlock()
		s.logger.Debug("drain already in flight, skipping")
		return DrainReport{Skipped: true}, nil
	}
	s.draining = true
	s.drainMu.Unlock()

	defer func() {
		s.drainMu.Lock()
		s.draining = false
		s.drainMu.Unlock()
	}()

	start := time.Now()
	var report DrainReport

	for _, entry := range s.Load() {
		if err := ctx.Err(); err != nil {
			report.Retained = s.Len()
			return report, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				report.Retained = s.Len()
				return report, err
			}
		}

		report.Attempted++
		err := sender.Send(ctx, entry.Data)
		if err == nil {
			if rmErr := s.remove(entry.ID); rmErr != nil {
				return report, rmErr
			}
			report.Delivered++
			s.metrics.Delivered.Inc()
			s.logger.Info("queued submission delivered", zap.Int64("entry_id", entry.ID))
			continue
		}

		retries, bumpErr := s.bumpRetries(entry.ID)
		if bumpErr != nil {
			return report, bumpErr
		}
		if retries >= entry.MaxRetries {
			if rmErr := s.remove(entry.ID); rmErr != nil {
				return report, rmErr
			}
			report.Dropped++
			s.metrics.Dropped.Inc()
			// Dropping loses user data; it must be loud in the logs even
			// though it never interrupts the user.
			s.logger.Error("submission dropped after exhausting retries",
				zap.Int64("entry_id", entry.ID),
				zap.Int("retries", retries),
				zap.Time("enqueued_at", entry.EnqueuedAt),
				zap.Error(err),
			)
			continue
		}

		s.logger.Warn("queued submission replay failed, will retry",
			zap.Int64("entry_id", entry.ID),
			zap.Int("retries", retries),
			zap.Int("max_retries", entry.MaxRetries),
			zap.Error(err),
		)
	}

	report.Retained = s.Len()
	report.Emptied = report.Retained == 0
	s.metrics.Drains.Inc()
	s.metrics.DrainDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("drain pass complete",
		zap.Int("attempted", report.Attempted),
		zap.Int("delivered", report.Delivered),
		zap.Int("dropped", report.Dropped),
		zap.Int("retained", report.Retained),
	)
	return report, nil
}
