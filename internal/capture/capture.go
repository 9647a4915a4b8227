// Package capture acquires camera frames and crops them to the inspection
// tag outline.
//
// A Stream is a scoped hardware handle: Open acquires it, Close releases it,
// and Close is safe and required on every exit path. Captured frames are
// projected into the fixed tag shape and encoded as JPEG.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoding for snapshot sources
	"io/fs"
	"os"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrCameraUnavailable indicates no capture device exists at the
	// configured path.
	ErrCameraUnavailable = errors.New("no camera found on this device")

	// ErrPermissionDenied indicates camera access was refused.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrDeviceBusy indicates the camera is exclusively held elsewhere.
	ErrDeviceBusy = errors.New("camera is already in use by another application")

	// ErrStreamClosed indicates a capture was attempted on a released
	// stream.
	ErrStreamClosed = errors.New("capture stream is closed")
)

// Image is a single captured, tag-cropped, JPEG-encoded still frame.
// It is owned by the in-progress submission until submit or discard and is
// never persisted on its own.
type Image struct {
	Bytes      []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// Base64 returns the frame as standard base64, the backend's
// image_base64 field.
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Bytes)
}

// DataURL returns the frame as a data URL with a sniffed media type.
func (i *Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", SniffMediaType(i.Bytes), i.Base64())
}

// Source produces raw frames from a capture device. Implementations must
// tolerate Close after a failed read.
type Source interface {
	// ReadFrame returns the current frame.
	ReadFrame(ctx context.Context) (image.Image, error)

	// Close releases the underlying device.
	Close() error
}

// Config holds capture configuration.
type Config struct {
	// Device is the capture source path. The platform camera service
	// exposes the current frame as an image file here.
	Device string

	// Shape is the tag outline frames are projected into.
	Shape TagShape

	// JPEGQuality is the encode quality (1-100).
	JPEGQuality int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("device path required")
	}
	if err := c.Shape.Validate(); err != nil {
		return err
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be 1-100, got %d", c.JPEGQuality)
	}
	return nil
}

// Stream is an open capture handle. Exactly one Close releases the
// underlying device; further Close calls are no-ops.
type Stream struct {
	source    Source
	config    Config
	logger    *zap.Logger
	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

// Open acquires the configured capture device and returns a Stream.
// Acquisition failures map onto the hardware error taxonomy:
// ErrCameraUnavailable, ErrPermissionDenied, ErrDeviceBusy.
func Open(cfg Config, logger *zap.Logger) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	source, err := openSnapshotSource(cfg.Device)
	if err != nil {
		return nil, classifyOpenError(err)
	}

	logger.Named("capture").Debug("camera stream opened", zap.String("device", cfg.Device))
	return &Stream{
		source: source,
		config: cfg,
		logger: logger.Named("capture"),
	}, nil
}

// NewStream wraps an already-open Source. Used by tests and alternative
// device integrations.
func NewStream(source Source, cfg Config, logger *zap.Logger) (*Stream, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{source: source, config: cfg, logger: logger.Named("capture")}, nil
}

// Capture reads the current frame, projects it into the tag shape, and
// encodes it as JPEG.
func (s *Stream) Capture(ctx context.Context) (*Image, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	s.mu.Unlock()

	frame, err := s.source.ReadFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}

	cropped := s.config.Shape.Project(frame)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: s.config.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}

	img := &Image{
		Bytes:      buf.Bytes(),
		Width:      s.config.Shape.Width,
		Height:     s.config.Shape.Height,
		CapturedAt: time.Now().UTC(),
	}
	s.logger.Debug("frame captured",
		zap.Int("width", img.Width),
		zap.Int("height", img.Height),
		zap.Int("bytes", len(img.Bytes)),
	)
	return img, nil
}

// Close releases the underlying device. Safe to call on every exit path;
// only the first call reaches the hardware.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		err = s.source.Close()
		s.logger.Debug("camera stream closed")
	})
	return err
}

// classifyOpenError maps platform open failures onto the hardware taxonomy.
func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%w: %v", ErrDeviceBusy, err)
	default:
		return fmt.Errorf("opening capture device: %w", err)
	}
}

// snapshotSource reads frames from a still-image file kept current by the
// platform camera service.
type snapshotSource struct {
	path string
}

func openSnapshotSource(path string) (Source, error) {
	// Probe the device now so Open reports hardware errors eagerly,
	// before the user lines up a shot.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f.Close()
	return &snapshotSource{path: path}, nil
}

func (s *snapshotSource) ReadFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, classifyOpenError(err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding frame from %s: %w", s.path, err)
	}
	return img, nil
}

func (s *snapshotSource) Close() error {
	return nil
}
