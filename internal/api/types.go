package api

import (
	"encoding/json"
	"time"
)

// CreateInspectionRequest is the body for POST /api/inspections.
// Exactly one of Location (technician mode) or BusinessName (quick-shot
// mode) identifies where the extinguisher lives.
type CreateInspectionRequest struct {
	ImageBase64  string   `json:"image_base64,omitempty"`
	ImageDataURL string   `json:"image_data_url,omitempty"`
	Location     string   `json:"location,omitempty"`
	BusinessName string   `json:"business_name,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	SubmittedBy  string   `json:"submitted_by,omitempty"`
	GPSData      *GPSData `json:"gps_data,omitempty"`
	Mode         string   `json:"mode,omitempty"`
}

// GPSData is the wire form of a device location sample.
type GPSData struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy"`
	CapturedAt     time.Time `json:"captured_at"`
	Source         string    `json:"source"`
}

// CreateInspectionResponse is the success body for POST /api/inspections.
// Analysis is kept raw: the model response may be an object or a string and
// is normalized downstream.
type CreateInspectionResponse struct {
	InspectionID string          `json:"inspection_id"`
	Analysis     json.RawMessage `json:"analysis"`
	Message      string          `json:"message,omitempty"`
	Success      *bool           `json:"success,omitempty"`
	DurationMS   int64           `json:"duration_ms,omitempty"`
	Model        string          `json:"model,omitempty"`
}

// InspectionRecord is a server-owned inspection as returned by the list
// endpoints. The client reads it; it never constructs one.
type InspectionRecord struct {
	ID             string          `json:"id"`
	Location       string          `json:"location,omitempty"`
	BusinessName   string          `json:"business_name,omitempty"`
	ImageBase64    string          `json:"image_base64,omitempty"`
	InspectionDate time.Time       `json:"inspection_date"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Status         string          `json:"status,omitempty"`
	Analysis       json.RawMessage `json:"analysis,omitempty"`
	GeminiResponse string          `json:"gemini_response,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	SubmittedBy    string          `json:"submitted_by,omitempty"`
	GPSData        *GPSData        `json:"gps_data,omitempty"`
	Mode           string          `json:"mode,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RawAnalysis returns the record's analysis value in whichever field the
// backend populated. Older records carry a gemini_response string; newer
// ones a structured analysis value.
func (r *InspectionRecord) RawAnalysis() any {
	if len(r.Analysis) > 0 {
		var v any
		if err := json.Unmarshal(r.Analysis, &v); err == nil {
			return v
		}
		return string(r.Analysis)
	}
	if r.GeminiResponse != "" {
		return r.GeminiResponse
	}
	return nil
}

// DateUpdate mirrors the backend's editable {year,month,day} date shape.
type DateUpdate struct {
	Year          *int   `json:"year,omitempty"`
	Month         *int   `json:"month,omitempty"`
	Day           *int   `json:"day,omitempty"`
	ExtractedText string `json:"extracted_text,omitempty"`
}

// UpdateInspectionRequest is the body for PUT /api/inspections/{id}.
// Nil fields are left unchanged server-side.
type UpdateInspectionRequest struct {
	LastInspectionDate *DateUpdate `json:"last_inspection_date,omitempty"`
	NextDueDate        *DateUpdate `json:"next_due_date,omitempty"`
	ExtinguisherType   *string     `json:"extinguisher_type,omitempty"`
	MaintenanceNotes   *string     `json:"maintenance_notes,omitempty"`
	Condition          *string     `json:"condition,omitempty"`
	RequiresAttention  *bool       `json:"requires_attention,omitempty"`
	Location           *string     `json:"location,omitempty"`
	Notes              *string     `json:"notes,omitempty"`
}

// Place is a nearby-place suggestion from GET /api/places/nearby.
type Place struct {
	Name    string   `json:"name"`
	Address string   `json:"address,omitempty"`
	Rating  *float64 `json:"rating,omitempty"`
}

type placesResponse struct {
	Places []Place `json:"places"`
}

// errorBody is the backend's structured error shape.
type errorBody struct {
	Detail string `json:"detail"`
}
