package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quenchsafe/fieldtag/internal/logging"
)

// Duration wraps time.Duration for text unmarshaling (YAML, env vars).
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Secret wraps strings that should be redacted in logs and serialization.
// Use Value() to access the actual secret value.
type Secret string

// String implements fmt.Stringer. Always returns redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

// Value returns the actual secret value. Use sparingly.
func (s Secret) Value() string {
	return string(s)
}

// MarshalJSON implements json.Marshaler. Secrets never serialize in clear.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Config is the root configuration for the fieldtag agent and CLI.
type Config struct {
	Backend BackendConfig  `koanf:"backend"`
	Queue   QueueConfig    `koanf:"queue"`
	Capture CaptureConfig  `koanf:"capture"`
	GPS     GPSConfig      `koanf:"gps"`
	Server  ServerConfig   `koanf:"server"`
	Logging logging.Config `koanf:"logging"`
	State   StateConfig    `koanf:"state"`
}

// BackendConfig points at the inspection backend API.
type BackendConfig struct {
	// BaseURL is the backend root, e.g. https://inspections.example.com
	BaseURL string `koanf:"base_url"`

	// SessionToken is attached to every request via the Session-Token header.
	SessionToken Secret `koanf:"session_token"`

	// Timeout bounds each backend request.
	Timeout Duration `koanf:"timeout"`
}

// QueueConfig controls the offline submission queue.
type QueueConfig struct {
	// Path is the durable queue file.
	Path string `koanf:"path"`

	// MaxRetries is how many replay attempts an entry gets before it is
	// dropped.
	MaxRetries int `koanf:"max_retries"`

	// SettleDelay is how long the agent waits after startup before the
	// first drain, so a drain never races agent initialization.
	SettleDelay Duration `koanf:"settle_delay"`

	// DrainRate caps replay attempts per second during a drain.
	DrainRate float64 `koanf:"drain_rate"`
}

// CaptureConfig controls tag-shape frame capture.
type CaptureConfig struct {
	// Device is the capture source, e.g. /dev/video0 or a snapshot path.
	Device string `koanf:"device"`

	// TagWidth and TagHeight are the fixed tag crop dimensions.
	TagWidth  int `koanf:"tag_width"`
	TagHeight int `koanf:"tag_height"`

	// JPEGQuality is the encode quality for captured frames (1-100).
	JPEGQuality int `koanf:"jpeg_quality"`
}

// GPSConfig controls best-effort location enrichment.
type GPSConfig struct {
	// Device is where the platform location service publishes the most
	// recent fix as a JSON file.
	Device string `koanf:"device"`

	// Timeout bounds a single location capture.
	Timeout Duration `koanf:"timeout"`

	// PlacesRadius is the nearby-places lookup radius in meters.
	PlacesRadius int `koanf:"places_radius"`
}

// ServerConfig controls the local status server.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StateConfig controls durable agent state outside the queue.
type StateConfig struct {
	// Path is the agent state file (remembered submitter name).
	Path string `koanf:"path"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.Timeout.Duration() <= 0 {
		return fmt.Errorf("backend.timeout must be > 0")
	}
	if c.Queue.Path == "" {
		return fmt.Errorf("queue.path is required")
	}
	if c.Queue.MaxRetries < 1 {
		return fmt.Errorf("queue.max_retries must be >= 1, got %d", c.Queue.MaxRetries)
	}
	if c.Queue.DrainRate <= 0 {
		return fmt.Errorf("queue.drain_rate must be > 0")
	}
	if c.Capture.TagWidth <= 0 || c.Capture.TagHeight <= 0 {
		return fmt.Errorf("capture.tag_width and capture.tag_height must be > 0")
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture.jpeg_quality must be 1-100, got %d", c.Capture.JPEGQuality)
	}
	if c.GPS.Timeout.Duration() <= 0 {
		return fmt.Errorf("gps.timeout must be > 0")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
