// Package httpapi provides the agent's local HTTP API.
//
// The daemon exposes a loopback surface so capture frontends and scripts can
// submit inspections, inspect the offline queue, and trigger a drain without
// talking to the remote backend directly.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quenchsafe/fieldtag/internal/geo"
	"github.com/quenchsafe/fieldtag/internal/queue"
	"github.com/quenchsafe/fieldtag/internal/submit"
)

// Submitter runs the submission pipeline. *submit.Pipeline satisfies it.
type Submitter interface {
	Submit(ctx context.Context, payload queue.SubmissionPayload) (submit.Outcome, error)
	Send(ctx context.Context, payload queue.SubmissionPayload) error
}

// QueueStore is the durable queue surface the server needs.
type QueueStore interface {
	Load() []queue.Entry
	Len() int
	Drain(ctx context.Context, sender queue.Sender, limiter *rate.Limiter) (queue.DrainReport, error)
}

// StatusReporter reports backend reachability. *netmon.Monitor satisfies it.
type StatusReporter interface {
	Online() bool
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides HTTP endpoints for the agent.
type Server struct {
	echo      *echo.Echo
	submitter Submitter
	store     QueueStore
	status    StatusReporter
	limiter   *rate.Limiter
	logger    *zap.Logger
	config    *Config
}

// NewServer creates a new local API server. limiter paces manual drains the
// same way the agent paces automatic ones; nil leaves them unpaced.
func NewServer(submitter Submitter, store QueueStore, status StatusReporter, limiter *rate.Limiter, logger *zap.Logger, cfg *Config) (*Server, error) {
	if submitter == nil {
		return nil, fmt.Errorf("submitter cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("queue store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9343,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		submitter: submitter,
		store:     store,
		status:    status,
		limiter:   limiter,
		logger:    logger,
		config:    cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check
	s.echo.GET("/health", s.handleHealth)

	// Prometheus metrics
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/submissions", s.handleSubmit)
	v1.GET("/queue", s.handleQueueStatus)
	v1.POST("/queue/drain", s.handleDrain)
}

// SubmitRequest is the request body for POST /api/v1/submissions.
type SubmitRequest struct {
	ImageBase64  string      `json:"image_base64"`
	Location     string      `json:"location,omitempty"`
	BusinessName string      `json:"business_name,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	SubmittedBy  string      `json:"submitted_by,omitempty"`
	Mode         string      `json:"mode,omitempty"`
	GPS          *geo.Sample `json:"gps,omitempty"`
}

// SubmitResponse is the response body for POST /api/v1/submissions.
type SubmitResponse struct {
	State        string `json:"state"`
	InspectionID string `json:"inspection_id,omitempty"`
	Message      string `json:"message,omitempty"`
	ClearsForm   bool   `json:"clears_form"`
	RefreshLists bool   `json:"refresh_lists"`
	Analysis     any    `json:"analysis,omitempty"`
}

// QueueEntrySummary is one queued submission in GET /api/v1/queue.
type QueueEntrySummary struct {
	ID         int64     `json:"id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Location   string    `json:"location,omitempty"`
	Mode       string    `json:"mode"`
	Retries    int       `json:"retries"`
	MaxRetries int       `json:"max_retries"`
}

// QueueStatusResponse is the response body for GET /api/v1/queue.
type QueueStatusResponse struct {
	Depth   int                 `json:"depth"`
	Online  bool                `json:"online"`
	Entries []QueueEntrySummary `json:"entries"`
}

// DrainResponse is the response body for POST /api/v1/queue/drain.
type DrainResponse struct {
	Skipped   bool `json:"skipped"`
	Attempted int  `json:"attempted"`
	Delivered int  `json:"delivered"`
	Dropped   int  `json:"dropped"`
	Retained  int  `json:"retained"`
	Emptied   bool `json:"emptied"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Online     bool   `json:"online"`
	QueueDepth int    `json:"queue_depth"`
}

// handleHealth reports agent liveness plus backend reachability.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:     "ok",
		Online:     s.online(),
		QueueDepth: s.store.Len(),
	})
}

// handleSubmit runs a submission through the pipeline and reports the outcome.
func (s *Server) handleSubmit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid submission request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	payload := queue.SubmissionPayload{
		ImageBase64:  req.ImageBase64,
		Location:     req.Location,
		BusinessName: req.BusinessName,
		Notes:        req.Notes,
		SubmittedBy:  req.SubmittedBy,
		Mode:         queue.Mode(req.Mode),
		GPS:          req.GPS,
		CapturedAt:   time.Now().UTC(),
	}
	if payload.Mode == "" {
		payload.Mode = queue.ModeTechnician
	}
	if err := payload.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	outcome, err := s.submitter.Submit(c.Request().Context(), payload)
	if err != nil {
		s.logger.Error("submission pipeline failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "submission failed")
	}

	resp := SubmitResponse{
		State:        string(outcome.State),
		InspectionID: outcome.InspectionID,
		Message:      outcome.Message,
		ClearsForm:   outcome.State.ClearsForm(),
		RefreshLists: outcome.RefreshLists,
	}
	if outcome.State == submit.StateConfirmed || outcome.State == submit.StateRecovered {
		resp.Analysis = outcome.Analysis
	}

	status := http.StatusOK
	if outcome.State == submit.StateRejected {
		status = http.StatusUnprocessableEntity
	}
	return c.JSON(status, resp)
}

// handleQueueStatus lists pending submissions without image payloads.
func (s *Server) handleQueueStatus(c echo.Context) error {
	entries := s.store.Load()
	summaries := make([]QueueEntrySummary, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, QueueEntrySummary{
			ID:         e.ID,
			EnqueuedAt: e.EnqueuedAt,
			Location:   e.Data.Location,
			Mode:       string(e.Data.Mode),
			Retries:    e.Retries,
			MaxRetries: e.MaxRetries,
		})
	}
	return c.JSON(http.StatusOK, QueueStatusResponse{
		Depth:   len(summaries),
		Online:  s.online(),
		Entries: summaries,
	})
}

// handleDrain attempts to deliver every queued submission now.
func (s *Server) handleDrain(c echo.Context) error {
	report, err := s.store.Drain(c.Request().Context(), queue.SenderFunc(s.submitter.Send), s.limiter)
	if err != nil {
		s.logger.Error("manual drain failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "drain failed")
	}
	return c.JSON(http.StatusOK, DrainResponse{
		Skipped:   report.Skipped,
		Attempted: report.Attempted,
		Delivered: report.Delivered,
		Dropped:   report.Dropped,
		Retained:  report.Retained,
		Emptied:   report.Emptied,
	})
}

func (s *Server) online() bool {
	if s.status == nil {
		return false
	}
	return s.status.Online()
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
