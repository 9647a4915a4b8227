// Package main implements the fieldtag CLI for inspection capture and
// manual operations against the fieldtag agent and the inspection backend.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quenchsafe/fieldtag/internal/api"
	"github.com/quenchsafe/fieldtag/internal/config"
)

var (
	// agentURL is the base URL for the local fieldtag agent
	agentURL string
	// configPath overrides the default config file location
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fieldtag",
	Short: "CLI for fire-extinguisher inspection tag capture",
	Long: `fieldtag is a command-line interface for capturing inspection tags and
managing inspections. Submissions go through the local fieldtag agent so
they survive network loss; list and edit operations talk to the backend
directly.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&agentURL, "agent", "http://localhost:9343", "fieldtag agent URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(inspectionsCmd)
	rootCmd.AddCommand(placesCmd)
	rootCmd.AddCommand(healthCmd)
}

// healthCmd checks agent health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check fieldtag agent health",
	Long: `Check the health of the local fieldtag agent, including backend
reachability and queue depth.

Examples:
  # Check health
  fieldtag health

  # Check a different agent
  fieldtag health --agent http://localhost:8080`,
	RunE: runHealth,
}

// AgentHealth matches internal/httpapi HealthResponse
type AgentHealth struct {
	Status     string `json:"status"`
	Online     bool   `json:"online"`
	QueueDepth int    `json:"queue_depth"`
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	var resp AgentHealth
	if err := agentGet("/health", &resp); err != nil {
		return err
	}

	fmt.Printf("Agent Status: %s\n", resp.Status)
	fmt.Printf("Backend:      %s\n", onlineLabel(resp.Online))
	fmt.Printf("Queue Depth:  %d\n", resp.QueueDepth)
	return nil
}

func onlineLabel(online bool) string {
	if online {
		return "reachable"
	}
	return "unreachable"
}

// loadConfig loads the agent configuration for commands that need direct
// backend or device access.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// backendClient builds a direct backend client from configuration.
func backendClient(cfg *config.Config) (*api.Client, error) {
	client, err := api.NewClient(api.Config{
		BaseURL:      cfg.Backend.BaseURL,
		SessionToken: cfg.Backend.SessionToken.Value(),
	}, &http.Client{Timeout: cfg.Backend.Timeout.Duration()}, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("building backend client: %w", err)
	}
	return client, nil
}

// agentGet issues a GET against the local agent and decodes the response.
func agentGet(path string, out any) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(agentURL + path)
	if err != nil {
		return fmt.Errorf("failed to connect to agent at %s: %w", agentURL, err)
	}
	defer resp.Body.Close()

	return decodeAgentResponse(resp, out)
}

// agentPost issues a POST against the local agent and decodes the response.
// A nil body sends an empty request.
func agentPost(path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(http.MethodPost, agentURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to agent at %s: %w", agentURL, err)
	}
	defer resp.Body.Close()

	return decodeAgentResponse(resp, out)
}

func decodeAgentResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 422 carries a structured submission outcome the caller wants.
		if resp.StatusCode == http.StatusUnprocessableEntity && out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err == nil {
				return nil
			}
		}
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("agent returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("agent returned status %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
