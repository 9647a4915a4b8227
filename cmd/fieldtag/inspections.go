package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quenchsafe/fieldtag/internal/analysis"
	"github.com/quenchsafe/fieldtag/internal/api"
)

// inspectionsCmd groups backend inspection operations
var inspectionsCmd = &cobra.Command{
	Use:     "inspections",
	Aliases: []string{"insp"},
	Short:   "List and manage inspections on the backend",
}

var inspectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent inspections",
	RunE:  runInspectionsList,
}

var inspectionsDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List inspections that are due or overdue",
	RunE:  runInspectionsDue,
}

var inspectionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export inspections as CSV",
	Long: `Export all inspections as CSV to stdout.

Examples:
  fieldtag inspections export > inspections.csv`,
	RunE: runInspectionsExport,
}

var inspectionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an inspection",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspectionsDelete,
}

var (
	updateLastInspection string
	updateNextDue        string
	updateType           string
	updateCondition      string
	updateMaintNotes     string
	updateAttention      string
	updateLocation       string
	updateNotes          string
)

var inspectionsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Correct fields on an inspection",
	Long: `Update an inspection's extracted fields after reviewing the tag. Only
the flags you pass are changed.

Examples:
  # Fix a misread due date
  fieldtag inspections update 7f3a --next-due 2027-03-01

  # Flag an extinguisher for attention
  fieldtag inspections update 7f3a --requires-attention true --condition Poor`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionsUpdate,
}

func init() {
	inspectionsUpdateCmd.Flags().StringVar(&updateLastInspection, "last-inspection", "", "last inspection date (YYYY-MM-DD)")
	inspectionsUpdateCmd.Flags().StringVar(&updateNextDue, "next-due", "", "next due date (YYYY-MM-DD)")
	inspectionsUpdateCmd.Flags().StringVar(&updateType, "type", "", "extinguisher type")
	inspectionsUpdateCmd.Flags().StringVar(&updateCondition, "condition", "", "condition")
	inspectionsUpdateCmd.Flags().StringVar(&updateMaintNotes, "maintenance-notes", "", "maintenance notes")
	inspectionsUpdateCmd.Flags().StringVar(&updateAttention, "requires-attention", "", "requires attention (true/false)")
	inspectionsUpdateCmd.Flags().StringVar(&updateLocation, "location", "", "location label")
	inspectionsUpdateCmd.Flags().StringVar(&updateNotes, "notes", "", "free-form notes")

	inspectionsCmd.AddCommand(inspectionsListCmd)
	inspectionsCmd.AddCommand(inspectionsDueCmd)
	inspectionsCmd.AddCommand(inspectionsExportCmd)
	inspectionsCmd.AddCommand(inspectionsUpdateCmd)
	inspectionsCmd.AddCommand(inspectionsDeleteCmd)
}

// runInspectionsList handles the inspections list command
func runInspectionsList(cmd *cobra.Command, args []string) error {
	records, err := fetchInspections(cmd, false)
	if err != nil {
		return err
	}
	return printInspections(records)
}

// runInspectionsDue handles the inspections due command
func runInspectionsDue(cmd *cobra.Command, args []string) error {
	records, err := fetchInspections(cmd, true)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("Nothing due.")
		return nil
	}
	return printInspections(records)
}

func fetchInspections(cmd *cobra.Command, dueOnly bool) ([]api.InspectionRecord, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := backendClient(cfg)
	if err != nil {
		return nil, err
	}
	if dueOnly {
		return client.ListDueInspections(cmd.Context())
	}
	return client.ListInspections(cmd.Context())
}

func printInspections(records []api.InspectionRecord) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tWHERE\tTYPE\tCONDITION\tNEXT DUE\tATTENTION")
	for _, r := range records {
		a := analysis.Normalize(r.RawAnalysis())
		attention := ""
		if a.RequiresAttention != nil && *a.RequiresAttention {
			attention = "YES"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02"),
			where(r),
			a.ExtinguisherType,
			a.Condition,
			a.NextDueDate,
			attention,
		)
	}
	return w.Flush()
}

func where(r api.InspectionRecord) string {
	if r.Location != "" {
		return r.Location
	}
	return r.BusinessName
}

// runInspectionsExport handles the inspections export command
func runInspectionsExport(cmd *cobra.Command, args []string) error {
	records, err := fetchInspections(cmd, false)
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	header := []string{
		"id", "created_at", "location", "business_name", "submitted_by", "mode",
		"last_inspection_date", "next_due_date", "extinguisher_type", "condition",
		"requires_attention", "confidence_score", "maintenance_notes", "notes",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range records {
		a := analysis.Normalize(r.RawAnalysis())
		attention := ""
		if a.RequiresAttention != nil {
			attention = strconv.FormatBool(*a.RequiresAttention)
		}
		confidence := ""
		if a.ConfidenceScore != nil {
			confidence = strconv.FormatFloat(*a.ConfidenceScore, 'f', -1, 64)
		}
		row := []string{
			r.ID,
			r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			r.Location,
			r.BusinessName,
			r.SubmittedBy,
			r.Mode,
			a.LastInspectionDate,
			a.NextDueDate,
			a.ExtinguisherType,
			a.Condition,
			attention,
			confidence,
			a.MaintenanceNotes,
			r.Notes,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// runInspectionsUpdate handles the inspections update command
func runInspectionsUpdate(cmd *cobra.Command, args []string) error {
	var req api.UpdateInspectionRequest

	if updateLastInspection != "" {
		d, err := parseDateUpdate(updateLastInspection)
		if err != nil {
			return fmt.Errorf("--last-inspection: %w", err)
		}
		req.LastInspectionDate = d
	}
	if updateNextDue != "" {
		d, err := parseDateUpdate(updateNextDue)
		if err != nil {
			return fmt.Errorf("--next-due: %w", err)
		}
		req.NextDueDate = d
	}
	if cmd.Flags().Changed("type") {
		req.ExtinguisherType = &updateType
	}
	if cmd.Flags().Changed("condition") {
		req.Condition = &updateCondition
	}
	if cmd.Flags().Changed("maintenance-notes") {
		req.MaintenanceNotes = &updateMaintNotes
	}
	if cmd.Flags().Changed("location") {
		req.Location = &updateLocation
	}
	if cmd.Flags().Changed("notes") {
		req.Notes = &updateNotes
	}
	if updateAttention != "" {
		v, err := strconv.ParseBool(updateAttention)
		if err != nil {
			return fmt.Errorf("--requires-attention: %w", err)
		}
		req.RequiresAttention = &v
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := backendClient(cfg)
	if err != nil {
		return err
	}

	record, err := client.UpdateInspection(cmd.Context(), args[0], req)
	if err != nil {
		return fmt.Errorf("updating inspection: %w", err)
	}

	fmt.Printf("Updated inspection %s\n", record.ID)
	return nil
}

// parseDateUpdate converts a YYYY-MM-DD flag into the backend's editable
// date shape.
func parseDateUpdate(value string) (*api.DateUpdate, error) {
	parts := strings.Split(value, "-")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected YYYY-MM-DD, got %q", value)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("bad year in %q", value)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return nil, fmt.Errorf("bad month in %q", value)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil || day < 1 || day > 31 {
		return nil, fmt.Errorf("bad day in %q", value)
	}
	return &api.DateUpdate{Year: &year, Month: &month, Day: &day}, nil
}

// runInspectionsDelete handles the inspections delete command
func runInspectionsDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := backendClient(cfg)
	if err != nil {
		return err
	}

	if err := client.DeleteInspection(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("deleting inspection: %w", err)
	}

	fmt.Printf("Deleted inspection %s\n", args[0])
	return nil
}
