package submit

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenchsafe/fieldtag/internal/api"
	"github.com/quenchsafe/fieldtag/internal/queue"
)

// fakeBackend scripts create and list behavior.
type fakeBackend struct {
	createResp *api.CreateInspectionResponse
	createErr  error
	records    []api.InspectionRecord
	listErr    error

	createCalls int
	lastReq     api.CreateInspectionRequest
}

func (f *fakeBackend) CreateInspection(ctx context.Context, req api.CreateInspectionRequest) (*api.CreateInspectionResponse, error) {
	f.createCalls++
	f.lastReq = req
	return f.createResp, f.createErr
}

func (f *fakeBackend) ListInspections(ctx context.Context) ([]api.InspectionRecord, error) {
	return f.records, f.listErr
}

func newTestPipeline(t *testing.T, backend *fakeBackend) (*Pipeline, *queue.Store) {
	t.Helper()
	store, err := queue.NewStore(filepath.Join(t.TempDir(), "queue.json"), 3, nil)
	require.NoError(t, err)
	p, err := NewPipeline(backend, store, nil)
	require.NoError(t, err)
	return p, store
}

func payload() queue.SubmissionPayload {
	return queue.SubmissionPayload{
		ImageBase64: "aGVsbG8=",
		Location:    "Floor 2",
		Mode:        queue.ModeTechnician,
		CapturedAt:  time.Now().UTC(),
	}
}

func TestSubmitConfirmed(t *testing.T) {
	backend := &fakeBackend{
		createResp: &api.CreateInspectionResponse{
			InspectionID: "ins-1",
			Analysis:     json.RawMessage(`{"condition": "Good"}`),
		},
	}
	p, store := newTestPipeline(t, backend)

	outcome, err := p.Submit(context.Background(), payload())
	require.NoError(t, err)

	assert.Equal(t, StateConfirmed, outcome.State)
	assert.Equal(t, "ins-1", outcome.InspectionID)
	assert.Equal(t, "Good", outcome.Analysis.Condition)
	assert.Empty(t, outcome.Analysis.ExtinguisherType)
	assert.True(t, outcome.RefreshLists)
	assert.True(t, outcome.State.ClearsForm())
	assert.Equal(t, 0, store.Len(), "nothing queued on success")

	assert.Equal(t, "Floor 2", backend.lastReq.Location)
	assert.Equal(t, "technician", backend.lastReq.Mode)
}

func TestSubmitConfirmedStringAnalysis(t *testing.T) {
	backend := &fakeBackend{
		createResp: &api.CreateInspectionResponse{
			InspectionID: "ins-2",
			Analysis:     json.RawMessage("\"```json\\n{\\\"condition\\\": \\\"Fair\\\"}\\n```\""),
		},
	}
	p, _ := newTestPipeline(t, backend)

	outcome, err := p.Submit(context.Background(), payload())
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, outcome.State)
	assert.Equal(t, "Fair", outcome.Analysis.Condition)
}

func TestSubmitRejected(t *testing.T) {
	backend := &fakeBackend{
		createErr: &api.RejectionError{StatusCode: 422, Detail: "location is required"},
	}
	p, store := newTestPipeline(t, backend)

	outcome, err := p.Submit(context.Background(), payload())
	require.NoError(t, err)

	assert.Equal(t, StateRejected, outcome.State)
	assert.Equal(t, "location is required", outcome.Message, "server detail verbatim")
	assert.False(t, outcome.State.ClearsForm(), "form preserved for correction")
	assert.False(t, outcome.RefreshLists)
	assert.Equal(t, 0, store.Len(), "rejections are not queued")
}

func TestSubmitOffline(t *testing.T) {
	backend := &fakeBackend{createErr: api.ErrUnreachable}
	p, store := newTestPipeline(t, backend)

	outcome, err := p.Submit(context.Background(), payload())
	require.NoError(t, err)

	assert.Equal(t, StateQueued, outcome.State)
	assert.True(t, outcome.State.ClearsForm(), "form clears exactly as on success")
	require.NotNil(t, outcome.Entry)
	assert.Equal(t, 0, outcome.Entry.Retries)
	assert.Equal(t, 1, store.Len())
	assert.Contains(t, outcome.Message, "upload automatically")
}

func TestSubmitGatewayRecovery(t *testing.T) {
	now := time.Now().UTC()

	t.Run("matching record recovered, newest wins", func(t *testing.T) {
		backend := &fakeBackend{
			createErr: &api.GatewayError{StatusCode: 504},
			records: []api.InspectionRecord{
				{ID: "old", CreatedAt: now.Add(-time.Hour)},
				{ID: "newer", CreatedAt: now.Add(2 * time.Second)},
				{ID: "newest", CreatedAt: now.Add(5 * time.Second), Analysis: json.RawMessage(`{"condition": "Good"}`)},
			},
		}
		p, store := newTestPipeline(t, backend)
		p.now = func() time.Time { return now }

		outcome, err := p.Submit(context.Background(), payload())
		require.NoError(t, err)

		assert.Equal(t, StateRecovered, outcome.State)
		require.NotNil(t, outcome.Record)
		assert.Equal(t, "newest", outcome.Record.ID)
		assert.Equal(t, "newest", outcome.InspectionID, "recovered record id is surfaced like a confirmed one")
		assert.Equal(t, "Good", outcome.Analysis.Condition)
		assert.True(t, outcome.Analysis.Parsed)
		assert.True(t, outcome.RefreshLists)
		assert.Equal(t, 0, store.Len(), "recovered submissions are not queued")
	})

	t.Run("no matching record queues with soft warning", func(t *testing.T) {
		backend := &fakeBackend{
			createErr: &api.GatewayError{StatusCode: 504},
			records: []api.InspectionRecord{
				{ID: "old", CreatedAt: now.Add(-time.Hour)},
			},
		}
		p, store := newTestPipeline(t, backend)
		p.now = func() time.Time { return now }

		outcome, err := p.Submit(context.Background(), payload())
		require.NoError(t, err)

		assert.Equal(t, StateQueued, outcome.State)
		assert.Contains(t, outcome.Message, "may have been saved", "soft warning, not a hard error")
		assert.Equal(t, 1, store.Len())
	})

	t.Run("recovery lookup failure queues", func(t *testing.T) {
		backend := &fakeBackend{
			createErr: &api.GatewayError{StatusCode: 502},
			listErr:   api.ErrUnreachable,
		}
		p, store := newTestPipeline(t, backend)

		outcome, err := p.Submit(context.Background(), payload())
		require.NoError(t, err)
		assert.Equal(t, StateQueued, outcome.State)
		assert.Equal(t, 1, store.Len())
	})
}

func TestSubmitInvalidPayload(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeBackend{})
	_, err := p.Submit(context.Background(), queue.SubmissionPayload{Mode: queue.ModeTechnician})
	require.Error(t, err)
}

func TestSendIsDirect(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		backend := &fakeBackend{createResp: &api.CreateInspectionResponse{InspectionID: "x"}}
		p, _ := newTestPipeline(t, backend)
		require.NoError(t, p.Send(context.Background(), payload()))
		assert.Equal(t, 1, backend.createCalls)
	})

	t.Run("gateway error propagates without recovery", func(t *testing.T) {
		backend := &fakeBackend{
			createErr: &api.GatewayError{StatusCode: 504},
			records:   []api.InspectionRecord{{ID: "r", CreatedAt: time.Now()}},
		}
		p, store := newTestPipeline(t, backend)

		err := p.Send(context.Background(), payload())
		require.Error(t, err)
		assert.Equal(t, 0, store.Len(), "direct send never enqueues")
	})
}

func TestQueueDrainEndToEnd(t *testing.T) {
	// Submit while offline, then replay once the backend is reachable.
	backend := &fakeBackend{createErr: api.ErrUnreachable}
	p, store := newTestPipeline(t, backend)

	outcome, err := p.Submit(context.Background(), payload())
	require.NoError(t, err)
	require.Equal(t, StateQueued, outcome.State)
	require.Equal(t, 1, store.Len())

	// Connectivity restored.
	backend.createErr = nil
	backend.createResp = &api.CreateInspectionResponse{InspectionID: "ins-3"}

	report, err := store.Drain(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Delivered)
	assert.True(t, report.Emptied)
	assert.Equal(t, 0, store.Len())
}
