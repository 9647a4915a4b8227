package queue

import (
	"fmt"
	"time"

	"github.com/quenchsafe/fieldtag/internal/geo"
)

// Mode selects which submission path a payload takes.
type Mode string

const (
	// ModeTechnician is the full checklist path keyed by a location label.
	ModeTechnician Mode = "technician"

	// ModeQuickShot is the reduced-field path keyed by a business name.
	ModeQuickShot Mode = "quick_shot"
)

// IsValid returns true if the mode is a recognized value.
func (m Mode) IsValid() bool {
	switch m {
	case ModeTechnician, ModeQuickShot:
		return true
	}
	return false
}

// SubmissionPayload is everything needed to submit one inspection. It is
// self-contained: replaying it later produces an identical request, with no
// references to transient UI state.
type SubmissionPayload struct {
	ImageBase64  string      `json:"image_base64"`
	Location     string      `json:"location,omitempty"`
	BusinessName string      `json:"business_name,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	SubmittedBy  string      `json:"submitted_by,omitempty"`
	GPS          *geo.Sample `json:"gps,omitempty"`
	Mode         Mode        `json:"mode"`
	CapturedAt   time.Time   `json:"captured_at"`
}

// Validate checks the payload carries enough to be replayed.
func (p *SubmissionPayload) Validate() error {
	if p.ImageBase64 == "" {
		return fmt.Errorf("image is required")
	}
	if !p.Mode.IsValid() {
		return fmt.Errorf("unknown mode %q", p.Mode)
	}
	switch p.Mode {
	case ModeTechnician:
		if p.Location == "" {
			return fmt.Errorf("location is required in technician mode")
		}
	case ModeQuickShot:
		if p.BusinessName == "" {
			return fmt.Errorf("business name is required in quick-shot mode")
		}
	}
	return nil
}

// Entry is one queued submission awaiting replay. Mutated only by
// incrementing Retries on a failed replay; removed on success or when
// retries are exhausted.
type Entry struct {
	ID         int64             `json:"id"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	Data       SubmissionPayload `json:"data"`
	Retries    int               `json:"retries"`
	MaxRetries int               `json:"max_retries"`
}
