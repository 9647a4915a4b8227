// Fieldtagd is the fieldtag agent daemon.
//
// The daemon owns the durable offline queue: it exposes a loopback HTTP API
// for submitting inspections, watches backend reachability, and drains the
// queue whenever connectivity returns. Capture frontends talk to the daemon
// instead of the backend so a dead network never loses an inspection.
//
// Configuration is loaded from ~/.config/fieldtag/config.yaml with
// environment-variable overrides. See internal/config for details.
//
// Usage:
//
//	# Start the agent with defaults
//	fieldtagd
//
//	# Point at a different config file
//	fieldtagd -config /etc/fieldtag/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quenchsafe/fieldtag/internal/api"
	"github.com/quenchsafe/fieldtag/internal/config"
	"github.com/quenchsafe/fieldtag/internal/httpapi"
	"github.com/quenchsafe/fieldtag/internal/logging"
	"github.com/quenchsafe/fieldtag/internal/netmon"
	"github.com/quenchsafe/fieldtag/internal/queue"
	"github.com/quenchsafe/fieldtag/internal/submit"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Agent error: %v", err)
	}

	log.Println("Agent shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("fieldtagd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the agent and blocks until context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger
//  3. Open the durable queue and build the backend client
//  4. Wire the submission pipeline and connectivity monitor
//  5. Start the local HTTP API
//  6. After the settle delay, start draining on connectivity
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(&cfg.Logging, "fieldtagd")
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting fieldtag agent",
		zap.String("version", version),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("queue_path", cfg.Queue.Path),
		zap.Int("port", cfg.Server.Port),
	)

	store, err := queue.NewStore(cfg.Queue.Path, cfg.Queue.MaxRetries, logger)
	if err != nil {
		return fmt.Errorf("opening queue: %w", err)
	}
	logger.Info("queue opened", zap.Int("pending", store.Len()))

	client, err := api.NewClient(api.Config{
		BaseURL:      cfg.Backend.BaseURL,
		SessionToken: cfg.Backend.SessionToken.Value(),
	}, &http.Client{Timeout: cfg.Backend.Timeout.Duration()}, logger)
	if err != nil {
		return fmt.Errorf("building backend client: %w", err)
	}

	pipeline, err := submit.NewPipeline(client, store, logger)
	if err != nil {
		return fmt.Errorf("building submission pipeline: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Queue.DrainRate), 1)
	drain := func(ctx context.Context) {
		report, err := store.Drain(ctx, pipeline, limiter)
		if err != nil {
			logger.Warn("drain interrupted", zap.Error(err))
			return
		}
		if report.Skipped {
			return
		}
		if report.Emptied && report.Delivered > 0 {
			logger.Info("queue emptied", zap.Int("delivered", report.Delivered))
		}
	}

	monitor := netmon.NewMonitor(client, netmon.Config{}, drain, logger)

	server, err := httpapi.NewServer(pipeline, store, monitor, limiter, logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("building http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Let startup settle before the first probe so a restart with a full
	// queue does not drain against a half-initialized agent.
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.Queue.SettleDelay.Duration()):
		}
		monitor.Run(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
