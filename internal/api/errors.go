package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnreachable indicates no HTTP response was received at all. Submissions
// hitting it are queued for later replay rather than failed.
var ErrUnreachable = errors.New("backend unreachable")

// RejectionError is a 4xx response carrying a server-provided message.
// The message is surfaced to the user verbatim so they can correct the
// submission; the form is not cleared.
type RejectionError struct {
	StatusCode int
	Detail     string
}

func (e *RejectionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend rejected request (%d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend rejected request (%d)", e.StatusCode)
}

// GatewayError is a 502/504 response: the gateway gave up but the backend
// may have completed the operation. Callers must treat it as ambiguous,
// never as a confirmed failure.
type GatewayError struct {
	StatusCode int
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %d: outcome ambiguous", e.StatusCode)
}

// ServerError is any other 5xx response.
type ServerError struct {
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error (%d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend error (%d)", e.StatusCode)
}

// IsAmbiguous reports whether err leaves the server-side outcome unknown:
// a gateway timeout, where the create may have landed after the gateway
// stopped waiting.
func IsAmbiguous(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// IsRejection reports whether err is a structured 4xx rejection.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// IsUnreachable reports whether err means no response was received.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// classifyStatus converts a non-2xx response into the error taxonomy.
func classifyStatus(status int, detail string) error {
	switch {
	case status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		return &GatewayError{StatusCode: status}
	case status >= 400 && status < 500:
		return &RejectionError{StatusCode: status, Detail: detail}
	default:
		return &ServerError{StatusCode: status, Detail: detail}
	}
}
