package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// queueCmd groups offline-queue operations
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and drain the offline submission queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending submissions",
	Long: `List the submissions waiting in the agent's offline queue.

Examples:
  fieldtag queue list`,
	RunE: runQueueList,
}

var queueDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Attempt to deliver every queued submission now",
	Long: `Ask the agent to replay the offline queue immediately instead of
waiting for the next connectivity change.

Examples:
  fieldtag queue drain`,
	RunE: runQueueDrain,
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueDrainCmd)
}

// QueueStatus matches internal/httpapi QueueStatusResponse
type QueueStatus struct {
	Depth   int  `json:"depth"`
	Online  bool `json:"online"`
	Entries []struct {
		ID         int64     `json:"id"`
		EnqueuedAt time.Time `json:"enqueued_at"`
		Location   string    `json:"location"`
		Mode       string    `json:"mode"`
		Retries    int       `json:"retries"`
		MaxRetries int       `json:"max_retries"`
	} `json:"entries"`
}

// DrainResult matches internal/httpapi DrainResponse
type DrainResult struct {
	Skipped   bool `json:"skipped"`
	Attempted int  `json:"attempted"`
	Delivered int  `json:"delivered"`
	Dropped   int  `json:"dropped"`
	Retained  int  `json:"retained"`
	Emptied   bool `json:"emptied"`
}

// runQueueList handles the queue list command
func runQueueList(cmd *cobra.Command, args []string) error {
	var status QueueStatus
	if err := agentGet("/api/v1/queue", &status); err != nil {
		return err
	}

	fmt.Printf("Backend: %s, %d pending\n", onlineLabel(status.Online), status.Depth)
	if status.Depth == 0 {
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tENQUEUED\tMODE\tLOCATION\tRETRIES")
	for _, e := range status.Entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\n",
			e.ID,
			e.EnqueuedAt.Local().Format("2006-01-02 15:04"),
			e.Mode,
			e.Location,
			e.Retries,
			e.MaxRetries,
		)
	}
	return w.Flush()
}

// runQueueDrain handles the queue drain command
func runQueueDrain(cmd *cobra.Command, args []string) error {
	var result DrainResult
	if err := agentPost("/api/v1/queue/drain", nil, &result); err != nil {
		return err
	}

	if result.Skipped {
		fmt.Println("A drain is already in progress.")
		return nil
	}

	fmt.Printf("Attempted: %d, delivered: %d, dropped: %d, retained: %d\n",
		result.Attempted, result.Delivered, result.Dropped, result.Retained)
	if result.Dropped > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d submission(s) exhausted their retries and were dropped\n", result.Dropped)
	}
	return nil
}
