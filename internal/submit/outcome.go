package submit

import (
	"github.com/quenchsafe/fieldtag/internal/analysis"
	"github.com/quenchsafe/fieldtag/internal/api"
	"github.com/quenchsafe/fieldtag/internal/queue"
)

// State is the terminal state of one submission attempt.
type State string

const (
	// StateConfirmed: the backend acknowledged the create with 2xx.
	StateConfirmed State = "confirmed"

	// StateRecovered: the gateway timed out but a just-created matching
	// record was found by the recovery lookup.
	StateRecovered State = "recovered"

	// StateQueued: the outcome could not be confirmed; the payload is on
	// the offline queue for later replay.
	StateQueued State = "queued"

	// StateRejected: the backend refused the submission with a structured
	// message. The form is preserved so the user can correct it.
	StateRejected State = "rejected"
)

// IsValid returns true if the state is a recognized value.
func (s State) IsValid() bool {
	switch s {
	case StateConfirmed, StateRecovered, StateQueued, StateRejected:
		return true
	}
	return false
}

// Terminal states after which the form clears: submission is decoupled from
// confirmation, so queued payloads clear the form exactly like confirmed
// ones. Only a rejection keeps the form for correction.
func (s State) ClearsForm() bool {
	return s != StateRejected
}

// Outcome describes how a submission attempt settled.
type Outcome struct {
	State State

	// Analysis is the normalized model response, set when Confirmed or
	// Recovered.
	Analysis analysis.Analysis

	// InspectionID is the created record id, set when Confirmed or
	// Recovered.
	InspectionID string

	// Record is the recovered server record, set when Recovered.
	Record *api.InspectionRecord

	// Entry is the queued entry, set when Queued.
	Entry *queue.Entry

	// Message is the user-facing explanation: the soft "may have been
	// saved" warning, the pending-upload notice, or the backend's
	// rejection detail verbatim.
	Message string

	// RefreshLists is true when downstream list and due-list views must
	// be invalidated and reloaded.
	RefreshLists bool
}
