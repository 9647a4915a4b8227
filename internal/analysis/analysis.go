// Package analysis normalizes vision-model inspection analyses.
//
// The backend returns the model's answer in whatever shape the model
// produced it: a structured JSON object, a markdown-fenced JSON block, a
// bare JSON string, or free text. Normalize converts any of those into one
// canonical Analysis used by every display and export path. It never fails;
// input that cannot be parsed degrades to a raw-text passthrough.
package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Analysis is the canonical structured form of a model response.
// Empty string fields and nil pointers mean the model did not produce
// that field.
type Analysis struct {
	LastInspectionDate string            `json:"last_inspection_date,omitempty"`
	NextDueDate        string            `json:"next_due_date,omitempty"`
	ExtinguisherType   string            `json:"extinguisher_type,omitempty"`
	Condition          string            `json:"condition,omitempty"`
	MaintenanceNotes   string            `json:"maintenance_notes,omitempty"`
	RequiresAttention  *bool             `json:"requires_attention,omitempty"`
	EquipmentNumbers   *EquipmentNumbers `json:"equipment_numbers,omitempty"`
	ServiceCompany     *ServiceCompany   `json:"service_company,omitempty"`
	ServiceDetails     *ServiceDetails   `json:"service_details,omitempty"`
	ConfidenceScore    *float64          `json:"confidence_score,omitempty"`
	RawText            string            `json:"raw_text_analysis,omitempty"`

	// Parsed reports whether any structured content was recovered. When
	// false, Raw holds the original input for literal display.
	Parsed bool   `json:"parsed"`
	Raw    string `json:"raw,omitempty"`
}

// EquipmentNumbers holds the stamped equipment identifiers on a tag.
type EquipmentNumbers struct {
	AE string `json:"ae,omitempty"`
	HE string `json:"he,omitempty"`
	EE string `json:"ee,omitempty"`
	FE string `json:"fe,omitempty"`
}

// ServiceCompany identifies the servicing company printed on a tag.
type ServiceCompany struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Website string `json:"website,omitempty"`
}

// ServiceDetails describes the service performed.
type ServiceDetails struct {
	ServiceType        string   `json:"service_type,omitempty"`
	AdditionalServices []string `json:"additional_services,omitempty"`
}

// fencedJSON matches a markdown code fence opened with a json language tag.
var fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// Normalize converts a raw analysis value into an Analysis. It is total:
// any input yields a value, never an error. The parse chain is ordered:
//
//  1. Already-structured objects are used directly.
//  2. Strings are searched for a ```json fenced block.
//  3. Failing that, the first-to-last brace span is tried.
//  4. Failing that, the whole string is parsed as JSON.
//  5. Failing everything, the input is preserved verbatim in Raw.
func Normalize(raw any) Analysis {
	switch v := raw.(type) {
	case nil:
		return Analysis{}
	case map[string]any:
		return fromMap(v)
	case string:
		return normalizeString(v)
	case json.RawMessage:
		return normalizeString(string(v))
	case []byte:
		return normalizeString(string(v))
	default:
		// Numbers, bools and other scalars carry no structure.
		return Analysis{Raw: fmt.Sprint(raw)}
	}
}

func normalizeString(s string) Analysis {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Analysis{}
	}

	for _, candidate := range jsonCandidates(trimmed) {
		var m map[string]any
		if err := json.Unmarshal([]byte(candidate), &m); err == nil {
			return fromMap(m)
		}
	}

	return Analysis{Raw: s}
}

// jsonCandidates returns the substrings to attempt JSON parsing on,
// in preference order.
func jsonCandidates(s string) []string {
	var out []string
	if m := fencedJSON.FindStringSubmatch(s); m != nil {
		out = append(out, m[1])
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		out = append(out, s[start:end+1])
	}
	return append(out, s)
}

func fromMap(m map[string]any) Analysis {
	a := Analysis{Parsed: true}

	a.LastInspectionDate = normalizeDate(m["last_inspection_date"])
	a.NextDueDate = normalizeDate(m["next_due_date"])
	a.ExtinguisherType = cleanString(m["extinguisher_type"])
	a.Condition = cleanString(m["condition"])
	a.MaintenanceNotes = cleanString(m["maintenance_notes"])
	a.RawText = cleanString(m["raw_text_analysis"])

	if b, ok := m["requires_attention"].(bool); ok {
		a.RequiresAttention = &b
	}
	if f, ok := m["confidence_score"].(float64); ok {
		a.ConfidenceScore = &f
	}

	if eq, ok := m["equipment_numbers"].(map[string]any); ok {
		n := EquipmentNumbers{
			AE: cleanString(eq["ae"]),
			HE: cleanString(eq["he"]),
			EE: cleanString(eq["ee"]),
			FE: cleanString(eq["fe"]),
		}
		if n != (EquipmentNumbers{}) {
			a.EquipmentNumbers = &n
		}
	}

	if sc, ok := m["service_company"].(map[string]any); ok {
		c := ServiceCompany{
			Name:    cleanString(sc["name"]),
			Phone:   cleanString(sc["phone"]),
			Address: cleanString(sc["address"]),
			Website: cleanString(sc["website"]),
		}
		if c != (ServiceCompany{}) {
			a.ServiceCompany = &c
		}
	}

	if sd, ok := m["service_details"].(map[string]any); ok {
		d := ServiceDetails{ServiceType: cleanString(sd["service_type"])}
		if extra, ok := sd["additional_services"].([]any); ok {
			for _, e := range extra {
				if s := cleanString(e); s != "" {
					d.AdditionalServices = append(d.AdditionalServices, s)
				}
			}
		}
		if d.ServiceType != "" || len(d.AdditionalServices) > 0 {
			a.ServiceDetails = &d
		}
	}

	return a
}

// cleanString extracts a string field, treating the model's "unknown"
// sentinel as absent.
func cleanString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "unknown") {
		return ""
	}
	return s
}

// isoDate matches an already-canonical YYYY-MM-DD value.
var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// dateLayouts are the formats models have been observed to emit.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// normalizeDate converts a date value to YYYY-MM-DD, or "" when absent or
// unparseable. Accepted inputs: a canonical YYYY-MM-DD string (passed
// through unchanged), any parseable date string, or a {year,month,day}
// object with numeric components.
func normalizeDate(v any) string {
	switch d := v.(type) {
	case string:
		d = strings.TrimSpace(d)
		if isoDate.MatchString(d) {
			return d
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return t.Format("2006-01-02")
			}
		}
		return ""
	case map[string]any:
		year, okY := dateComponent(d["year"])
		month, okM := dateComponent(d["month"])
		day, okD := dateComponent(d["day"])
		if !okY || !okM || !okD {
			return ""
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return ""
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	default:
		return ""
	}
}

// dateComponent accepts the numeric forms JSON decoding produces.
func dateComponent(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case string:
		var i int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &i); err == nil {
			return i, true
		}
		return 0, false
	default:
		return 0, false
	}
}
