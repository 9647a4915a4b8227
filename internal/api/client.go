// Package api is the typed client for the inspection backend.
//
// The backend is an opaque collaborator: this package owns the wire shapes,
// attaches the session credential to every request, and classifies non-2xx
// outcomes into the taxonomy callers branch on (rejection, ambiguous
// gateway, unreachable). It contains no retry or queueing logic of its own.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sessionTokenHeader carries the session credential on every request.
const sessionTokenHeader = "Session-Token"

// requestIDHeader carries a per-attempt id so replays of the same payload
// are distinguishable in backend logs.
const requestIDHeader = "X-Client-Request-Id"

// Config holds client configuration.
type Config struct {
	// BaseURL is the backend root, without a trailing slash.
	BaseURL string

	// SessionToken is sent in the Session-Token header.
	SessionToken string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	return nil
}

// Client calls the inspection backend.
type Client struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a backend client. httpClient may be nil, in which case
// a default client is used; pass one with a timeout in production.
func NewClient(config Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		client: httpClient,
		logger: logger.Named("api"),
	}, nil
}

// CreateInspection submits a new inspection for analysis.
func (c *Client) CreateInspection(ctx context.Context, req CreateInspectionRequest) (*CreateInspectionResponse, error) {
	var resp CreateInspectionResponse
	if err := c.do(ctx, http.MethodPost, "/api/inspections", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListInspections fetches all inspection records.
func (c *Client) ListInspections(ctx context.Context) ([]InspectionRecord, error) {
	var records []InspectionRecord
	if err := c.do(ctx, http.MethodGet, "/api/inspections", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ListDueInspections fetches inspections due or overdue.
func (c *Client) ListDueInspections(ctx context.Context) ([]InspectionRecord, error) {
	var records []InspectionRecord
	if err := c.do(ctx, http.MethodGet, "/api/inspections/due", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateInspection edits fields of an existing inspection.
func (c *Client) UpdateInspection(ctx context.Context, id string, req UpdateInspectionRequest) (*InspectionRecord, error) {
	var record InspectionRecord
	if err := c.do(ctx, http.MethodPut, "/api/inspections/"+url.PathEscape(id), req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteInspection removes an inspection.
func (c *Client) DeleteInspection(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/inspections/"+url.PathEscape(id), nil, nil)
}

// NearbyPlaces fetches place-name suggestions around a coordinate.
func (c *Client) NearbyPlaces(ctx context.Context, lat, lng float64, radiusMeters int) ([]Place, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(radiusMeters))

	var resp placesResponse
	if err := c.do(ctx, http.MethodGet, "/api/places/nearby?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Places, nil
}

// Health probes the backend. A nil return means the backend is reachable;
// the network monitor uses this as its connectivity signal.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// do runs one request/response cycle: marshal, send, classify, decode.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.SessionToken != "" {
		req.Header.Set(sessionTokenHeader, c.config.SessionToken)
	}
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		// No response at all: transport failure, DNS, timeout, refused.
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := readDetail(resp.Body)
		c.logger.Debug("backend error response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return classifyStatus(resp.StatusCode, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// readDetail extracts the backend's {detail} error message when the body is
// structured JSON. Gateways return opaque HTML bodies; those yield "".
func readDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 64*1024))
	if err != nil {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(b, &eb); err != nil {
		return ""
	}
	return eb.Detail
}
