// Package submit runs the optimistic submission pipeline.
//
// One submission moves Pending -> {Confirmed, Recovered, Queued, Rejected}.
// The pipeline never reports outright failure for a transient network
// problem: an ambiguous gateway response triggers a recovery lookup, and
// anything unconfirmed lands on the offline queue. Only a structured
// backend rejection surfaces as a user-correctable failure.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/quenchsafe/fieldtag/internal/analysis"
	"github.com/quenchsafe/fieldtag/internal/api"
	"github.com/quenchsafe/fieldtag/internal/queue"
)

// Backend is the slice of the API client the pipeline uses.
// *api.Client satisfies it.
type Backend interface {
	CreateInspection(ctx context.Context, req api.CreateInspectionRequest) (*api.CreateInspectionResponse, error)
	ListInspections(ctx context.Context) ([]api.InspectionRecord, error)
}

// Pipeline submits payloads and classifies their outcomes.
type Pipeline struct {
	backend Backend
	store   *queue.Store
	logger  *zap.Logger
	metrics *Metrics

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewPipeline creates a Pipeline.
func NewPipeline(backend Backend, store *queue.Store, logger *zap.Logger) (*Pipeline, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("queue store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		backend: backend,
		store:   store,
		logger:  logger.Named("submit"),
		metrics: NewMetrics(),
		now:     time.Now,
	}, nil
}

// Submit sends one payload and settles it into a terminal state. The
// returned error is reserved for local faults (invalid payload, queue
// persistence failure); every network or backend condition is expressed as
// an Outcome.
func (p *Pipeline) Submit(ctx context.Context, payload queue.SubmissionPayload) (Outcome, error) {
	if err := payload.Validate(); err != nil {
		return Outcome{}, err
	}

	startedAt := p.now().UTC()
	resp, err := p.backend.CreateInspection(ctx, buildRequest(payload))

	switch {
	case err == nil:
		return p.confirmed(resp), nil

	case api.IsAmbiguous(err):
		return p.recoverOrQueue(ctx, payload, startedAt, err)

	case api.IsRejection(err):
		return p.rejected(err), nil

	case api.IsUnreachable(err):
		return p.queued(payload, "You appear to be offline. The inspection is saved and will upload automatically.")

	default:
		// Non-gateway 5xx: the backend answered and failed. Surfaced like
		// a rejection so the user can decide, rather than silently
		// retried against a server that already looked at the payload.
		p.logger.Error("backend error on submission", zap.Error(err))
		p.metrics.Submissions.WithLabelValues(string(StateRejected)).Inc()
		return Outcome{State: StateRejected, Message: err.Error()}, nil
	}
}

// Send is the direct transport used by queue drains: one attempt, no
// recovery, any error counts as a failed replay. It satisfies queue.Sender.
func (p *Pipeline) Send(ctx context.Context, payload queue.SubmissionPayload) error {
	_, err := p.backend.CreateInspection(ctx, buildRequest(payload))
	return err
}

func (p *Pipeline) confirmed(resp *api.CreateInspectionResponse) Outcome {
	var raw any
	if len(resp.Analysis) > 0 {
		// Analysis may be a JSON object or a bare string; let the
		// normalizer sort it out.
		if err := json.Unmarshal(resp.Analysis, &raw); err != nil {
			raw = string(resp.Analysis)
		}
	}

	p.metrics.Submissions.WithLabelValues(string(StateConfirmed)).Inc()
	p.logger.Info("submission confirmed", zap.String("inspection_id", resp.InspectionID))

	return Outcome{
		State:        StateConfirmed,
		InspectionID: resp.InspectionID,
		Analysis:     analysis.Normalize(raw),
		RefreshLists: true,
	}
}

func (p *Pipeline) rejected(err error) Outcome {
	var re *api.RejectionError
	msg := err.Error()
	if errors.As(err, &re) && re.Detail != "" {
		// Server-provided message, surfaced verbatim.
		msg = re.Detail
	}

	p.metrics.Submissions.WithLabelValues(string(StateRejected)).Inc()
	p.logger.Warn("submission rejected", zap.String("detail", msg))

	return Outcome{State: StateRejected, Message: msg}
}

func (p *Pipeline) queued(payload queue.SubmissionPayload, message string) (Outcome, error) {
	entry, err := p.store.Enqueue(payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("queueing submission: %w", err)
	}

	p.metrics.Submissions.WithLabelValues(string(StateQueued)).Inc()

	return Outcome{
		State:   StateQueued,
		Entry:   &entry,
		Message: message,
	}, nil
}

// recoverOrQueue resolves a gateway-ambiguous submission. The create may
// have landed server-side after the gateway gave up, so the record list is
// re-fetched and filtered to records created at or after this submission
// started; the newest candidate is taken as the outcome. With no candidate
// (or a failed lookup) the payload is queued with a soft warning, never
// reported as an outright failure, because it may have succeeded.
//
// The timestamp window is a best-effort heuristic, not a correctness
// guarantee: another device submitting in the same window could be
// mis-attributed. The match is logged so the ambiguity stays observable.
func (p *Pipeline) recoverOrQueue(ctx context.Context, payload queue.SubmissionPayload, startedAt time.Time, cause error) (Outcome, error) {
	p.logger.Warn("gateway gave up on submission, attempting recovery", zap.Error(cause))

	records, err := p.backend.ListInspections(ctx)
	if err != nil {
		p.metrics.Recoveries.WithLabelValues("lookup_failed").Inc()
		return p.queued(payload, "The upload may have been saved. It has been queued again to be safe.")
	}

	var candidates []api.InspectionRecord
	for _, r := range records {
		if !r.CreatedAt.Before(startedAt) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		p.metrics.Recoveries.WithLabelValues("no_match").Inc()
		return p.queued(payload, "The upload may have been saved. It has been queued again to be safe.")
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	match := candidates[0]

	p.metrics.Recoveries.WithLabelValues("matched").Inc()
	p.metrics.Submissions.WithLabelValues(string(StateRecovered)).Inc()
	p.logger.Warn("submission recovered from record list",
		zap.String("inspection_id", match.ID),
		zap.Time("window_start", startedAt),
		zap.Time("record_created_at", match.CreatedAt),
	)

	return Outcome{
		State:        StateRecovered,
		InspectionID: match.ID,
		Analysis:     analysis.Normalize(match.RawAnalysis()),
		Record:       &match,
		RefreshLists: true,
	}, nil
}

// buildRequest maps a payload onto the backend wire shape.
func buildRequest(payload queue.SubmissionPayload) api.CreateInspectionRequest {
	return api.CreateInspectionRequest{
		ImageBase64:  payload.ImageBase64,
		Location:     payload.Location,
		BusinessName: payload.BusinessName,
		Notes:        payload.Notes,
		SubmittedBy:  payload.SubmittedBy,
		GPSData:      payload.GPS.Wire(),
		Mode:         string(payload.Mode),
	}
}
