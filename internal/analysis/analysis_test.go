package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeObjects(t *testing.T) {
	t.Run("canonical object round-trips unchanged", func(t *testing.T) {
		a := Normalize(map[string]any{
			"last_inspection_date": "2024-05-28",
			"next_due_date":        "2025-05-28",
			"extinguisher_type":    "ABC",
			"condition":            "Good",
			"requires_attention":   false,
		})

		require.True(t, a.Parsed)
		assert.Equal(t, "2024-05-28", a.LastInspectionDate)
		assert.Equal(t, "2025-05-28", a.NextDueDate)
		assert.Equal(t, "ABC", a.ExtinguisherType)
		assert.Equal(t, "Good", a.Condition)
		require.NotNil(t, a.RequiresAttention)
		assert.False(t, *a.RequiresAttention)
		assert.Empty(t, a.Raw)
	})

	t.Run("date triple is zero padded", func(t *testing.T) {
		a := Normalize(map[string]any{
			"last_inspection_date": map[string]any{"year": float64(2024), "month": float64(5), "day": float64(28)},
		})
		assert.Equal(t, "2024-05-28", a.LastInspectionDate)
	})

	t.Run("consolidated backend shape", func(t *testing.T) {
		a := Normalize(map[string]any{
			"last_inspection_date": map[string]any{
				"year": float64(2024), "month": float64(3), "day": float64(9),
				"extracted_text": "Year: 2024, Month: 3, Day: 9",
			},
			"next_due_date": map[string]any{
				"year": float64(2025), "month": float64(3), "day": float64(9),
			},
			"extinguisher_type": "CO2",
			"condition":         "Fair",
			"confidence_score":  0.8,
			"raw_text_analysis": "TAG OCR TEXT",
		})
		assert.Equal(t, "2024-03-09", a.LastInspectionDate)
		assert.Equal(t, "2025-03-09", a.NextDueDate)
		require.NotNil(t, a.ConfidenceScore)
		assert.InDelta(t, 0.8, *a.ConfidenceScore, 0.001)
		assert.Equal(t, "TAG OCR TEXT", a.RawText)
	})
}

func TestNormalizeStrings(t *testing.T) {
	t.Run("fenced json block", func(t *testing.T) {
		raw := "Here is the analysis:\n```json\n{\"condition\": \"Good\", \"extinguisher_type\": \"ABC\"}\n```\nLet me know if you need more."
		a := Normalize(raw)
		require.True(t, a.Parsed)
		assert.Equal(t, "Good", a.Condition)
		assert.Equal(t, "ABC", a.ExtinguisherType)
	})

	t.Run("bare json string", func(t *testing.T) {
		a := Normalize(`{"condition": "Poor", "requires_attention": true}`)
		require.True(t, a.Parsed)
		assert.Equal(t, "Poor", a.Condition)
		require.NotNil(t, a.RequiresAttention)
		assert.True(t, *a.RequiresAttention)
	})

	t.Run("brace span inside prose", func(t *testing.T) {
		a := Normalize(`The model said {"condition": "Good"} with confidence.`)
		require.True(t, a.Parsed)
		assert.Equal(t, "Good", a.Condition)
	})

	t.Run("unparseable text preserved verbatim", func(t *testing.T) {
		raw := "The tag is too blurry to read."
		a := Normalize(raw)
		assert.False(t, a.Parsed)
		assert.Equal(t, raw, a.Raw)
	})

	t.Run("malformed braces fall through to raw", func(t *testing.T) {
		raw := "mismatched { not json }"
		a := Normalize(raw)
		assert.False(t, a.Parsed)
		assert.Equal(t, raw, a.Raw)
	})

	t.Run("empty string", func(t *testing.T) {
		a := Normalize("")
		assert.False(t, a.Parsed)
		assert.Empty(t, a.Raw)
	})
}

func TestNormalizeNeverPanics(t *testing.T) {
	inputs := []any{
		nil,
		42,
		3.14,
		true,
		[]any{"a", "b"},
		map[string]any{"last_inspection_date": []any{1, 2}},
		map[string]any{"equipment_numbers": "not-a-map"},
		map[string]any{"requires_attention": "yes"},
		"```json\n{broken\n```",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Normalize(in) })
	}
}

func TestUnknownSentinel(t *testing.T) {
	a := Normalize(map[string]any{
		"extinguisher_type": "unknown",
		"condition":         "Unknown",
		"equipment_numbers": map[string]any{"ae": "unknown", "he": "HE-1142"},
		"service_company":   map[string]any{"name": "unknown", "phone": "unknown", "address": "unknown", "website": "unknown"},
		"service_details":   map[string]any{"service_type": "unknown", "additional_services": []any{"unknown", "Recharge"}},
	})

	assert.Empty(t, a.ExtinguisherType)
	assert.Empty(t, a.Condition)
	require.NotNil(t, a.EquipmentNumbers)
	assert.Empty(t, a.EquipmentNumbers.AE)
	assert.Equal(t, "HE-1142", a.EquipmentNumbers.HE)
	assert.Nil(t, a.ServiceCompany, "all-unknown service company collapses to absent")
	require.NotNil(t, a.ServiceDetails)
	assert.Empty(t, a.ServiceDetails.ServiceType)
	assert.Equal(t, []string{"Recharge"}, a.ServiceDetails.AdditionalServices)
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "canonical passthrough", in: "2024-05-28", want: "2024-05-28"},
		{name: "rfc3339", in: "2024-05-28T10:30:00Z", want: "2024-05-28"},
		{name: "us slash", in: "05/28/2024", want: "2024-05-28"},
		{name: "long form", in: "May 28, 2024", want: "2024-05-28"},
		{name: "triple", in: map[string]any{"year": float64(2024), "month": float64(5), "day": float64(28)}, want: "2024-05-28"},
		{name: "triple with string components", in: map[string]any{"year": "2024", "month": "5", "day": "28"}, want: "2024-05-28"},
		{name: "unknown string", in: "unknown", want: ""},
		{name: "garbage", in: "sometime next spring", want: ""},
		{name: "partial triple", in: map[string]any{"year": float64(2024), "month": nil, "day": float64(28)}, want: ""},
		{name: "out of range month", in: map[string]any{"year": float64(2024), "month": float64(13), "day": float64(1)}, want: ""},
		{name: "nil", in: nil, want: ""},
		{name: "number", in: float64(20240528), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeDate(tt.in))
		})
	}
}
