package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// deviceFix is the on-disk shape the platform location service writes.
type deviceFix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	FixedAt   string  `json:"fixed_at"`
}

// DeviceProvider reads position fixes from the platform location service,
// which exposes the most recent fix as a JSON file. A missing file means
// the device has no location capability; a permission failure means
// location access was refused.
type DeviceProvider struct {
	path string
}

// NewDeviceProvider creates a DeviceProvider reading fixes from path.
func NewDeviceProvider(path string) (*DeviceProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("device path required")
	}
	return &DeviceProvider{path: path}, nil
}

// Position implements Provider.
func (p *DeviceProvider) Position(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}

	b, err := os.ReadFile(p.path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return Sample{}, ErrUnsupported
		case errors.Is(err, fs.ErrPermission):
			return Sample{}, ErrDenied
		default:
			return Sample{}, fmt.Errorf("reading location fix: %w", err)
		}
	}

	var fix deviceFix
	if err := json.Unmarshal(b, &fix); err != nil {
		return Sample{}, fmt.Errorf("parsing location fix %s: %w", p.path, err)
	}
	if fix.Latitude < -90 || fix.Latitude > 90 || fix.Longitude < -180 || fix.Longitude > 180 {
		return Sample{}, fmt.Errorf("location fix out of range: lat=%v lng=%v", fix.Latitude, fix.Longitude)
	}

	sample := Sample{
		Latitude:       fix.Latitude,
		Longitude:      fix.Longitude,
		AccuracyMeters: fix.Accuracy,
		Source:         SourceDevice,
	}
	if fix.FixedAt != "" {
		if t, err := time.Parse(time.RFC3339, fix.FixedAt); err == nil {
			sample.CapturedAt = t
		}
	}
	return sample, nil
}
