package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quenchsafe/fieldtag/internal/capture"
	"github.com/quenchsafe/fieldtag/internal/config"
	"github.com/quenchsafe/fieldtag/internal/geo"
	"github.com/quenchsafe/fieldtag/internal/state"
)

var (
	submitImage    string
	submitCapture  bool
	submitLocation string
	submitBusiness string
	submitQuick    bool
	submitNotes    string
	submitBy       string
	submitGPS      bool
	submitLat      float64
	submitLng      float64
)

// submitCmd submits an inspection through the local agent
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit an inspection tag photo",
	Long: `Submit an inspection through the local fieldtag agent. The agent queues
the submission durably if the backend is unreachable, so this command
never loses an inspection to a dead network.

Technician mode requires a location label; quick-shot mode requires a
business name instead.

Examples:
  # Submit a captured frame for a known location, with a device GPS fix
  fieldtag submit --capture --location "Building 7 east stairwell" --gps

  # Submit an existing photo in quick-shot mode
  fieldtag submit --image tag.jpg --quick-shot --business "Harbor Diner"

  # Quick-shot with the business name suggested from the GPS fix
  fieldtag submit --capture --quick-shot --gps

  # Attach coordinates recorded by hand
  fieldtag submit --image tag.jpg --location "Dock 3" --lat 47.61 --lng -122.33`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitImage, "image", "", "image file to submit")
	submitCmd.Flags().BoolVar(&submitCapture, "capture", false, "capture the image from the configured camera")
	submitCmd.Flags().StringVar(&submitLocation, "location", "", "location label (technician mode)")
	submitCmd.Flags().StringVar(&submitBusiness, "business", "", "business name (quick-shot mode)")
	submitCmd.Flags().BoolVar(&submitQuick, "quick-shot", false, "use quick-shot mode")
	submitCmd.Flags().StringVar(&submitNotes, "notes", "", "free-form notes")
	submitCmd.Flags().StringVar(&submitBy, "by", "", "submitter name (remembered for later submissions)")
	submitCmd.Flags().BoolVar(&submitGPS, "gps", false, "attach a device location fix")
	submitCmd.Flags().Float64Var(&submitLat, "lat", 0, "latitude to attach")
	submitCmd.Flags().Float64Var(&submitLng, "lng", 0, "longitude to attach")
}

// runSubmit handles the submit command
func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	imageBase64, err := resolveImage(cmd, cfg)
	if err != nil {
		return err
	}

	sample, err := resolveLocation(cmd, cfg)
	if err != nil {
		return err
	}

	submitter, err := resolveSubmitter(cfg.State.Path)
	if err != nil {
		return err
	}

	mode := "technician"
	if submitQuick {
		mode = "quick_shot"
		if submitBusiness == "" {
			if submitBusiness, err = suggestBusiness(cmd, cfg, sample); err != nil {
				return err
			}
		}
	}

	req := map[string]any{
		"image_base64":  imageBase64,
		"location":      submitLocation,
		"business_name": submitBusiness,
		"notes":         submitNotes,
		"submitted_by":  submitter,
		"mode":          mode,
	}
	if sample != nil {
		req["gps"] = sample
	}

	var resp struct {
		State        string `json:"state"`
		InspectionID string `json:"inspection_id"`
		Message      string `json:"message"`
		ClearsForm   bool   `json:"clears_form"`
	}
	if err := agentPost("/api/v1/submissions", req, &resp); err != nil {
		return err
	}

	switch resp.State {
	case "confirmed":
		fmt.Printf("Submitted. Inspection ID: %s\n", resp.InspectionID)
	case "recovered":
		fmt.Printf("Submitted (confirmed after timeout). Inspection ID: %s\n", resp.InspectionID)
	case "queued":
		fmt.Println("Saved for later delivery.")
		if resp.Message != "" {
			fmt.Println(resp.Message)
		}
	case "rejected":
		fmt.Fprintf(os.Stderr, "Rejected: %s\n", resp.Message)
		return fmt.Errorf("submission rejected")
	default:
		fmt.Printf("Outcome: %s\n", resp.State)
	}
	return nil
}

// resolveLocation produces the GPS sample for the submission: a device fix
// for --gps, manual coordinates for --lat/--lng, nil otherwise. A failed
// device capture degrades to a warning, never a failed submission.
func resolveLocation(cmd *cobra.Command, cfg *config.Config) (*geo.Sample, error) {
	manual := cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng")

	switch {
	case submitGPS && manual:
		return nil, fmt.Errorf("--gps and --lat/--lng are mutually exclusive")
	case submitGPS:
		provider, err := geo.NewDeviceProvider(cfg.GPS.Device)
		if err != nil {
			return nil, fmt.Errorf("opening location device: %w", err)
		}
		capturer, err := geo.NewCapturer(provider, cfg.GPS.Timeout.Duration(), zap.NewNop())
		if err != nil {
			return nil, fmt.Errorf("building location capturer: %w", err)
		}
		sample, err := capturer.Capture(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: location unavailable: %v\n", err)
			return nil, nil
		}
		return &sample, nil
	case manual:
		return &geo.Sample{
			Latitude:   submitLat,
			Longitude:  submitLng,
			CapturedAt: time.Now().UTC(),
			Source:     "manual",
		}, nil
	default:
		return nil, nil
	}
}

// suggestBusiness fills a missing quick-shot business name from nearby
// places around the captured fix.
func suggestBusiness(cmd *cobra.Command, cfg *config.Config, sample *geo.Sample) (string, error) {
	if sample == nil {
		return "", fmt.Errorf("quick-shot needs --business, or --gps to suggest one")
	}

	client, err := backendClient(cfg)
	if err != nil {
		return "", err
	}

	suggester := geo.NewSuggester(client, cfg.GPS.PlacesRadius, zap.NewNop())
	places := suggester.Suggest(cmd.Context(), *sample)
	if len(places) == 0 {
		return "", fmt.Errorf("no nearby places found, pass --business explicitly")
	}

	fmt.Fprintf(os.Stderr, "Using nearest place: %s\n", places[0].Name)
	return places[0].Name, nil
}

// resolveImage produces the base64 payload from --image or --capture.
func resolveImage(cmd *cobra.Command, cfg *config.Config) (string, error) {
	switch {
	case submitCapture && submitImage != "":
		return "", fmt.Errorf("--image and --capture are mutually exclusive")
	case submitCapture:
		stream, err := capture.Open(capture.Config{
			Device: cfg.Capture.Device,
			Shape: capture.TagShape{
				Width:  cfg.Capture.TagWidth,
				Height: cfg.Capture.TagHeight,
			},
			JPEGQuality: cfg.Capture.JPEGQuality,
		}, zap.NewNop())
		if err != nil {
			return "", fmt.Errorf("opening camera: %w", err)
		}
		defer stream.Close()

		img, err := stream.Capture(cmd.Context())
		if err != nil {
			return "", fmt.Errorf("capturing frame: %w", err)
		}
		return img.Base64(), nil
	case submitImage != "":
		b, err := os.ReadFile(submitImage)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", submitImage, err)
		}
		return base64.StdEncoding.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("either --image or --capture is required")
	}
}

// resolveSubmitter applies the remembered submitter name: an explicit --by
// is remembered, an absent one falls back to the stored name.
func resolveSubmitter(statePath string) (string, error) {
	store, err := state.NewStore(statePath)
	if err != nil {
		return "", fmt.Errorf("opening agent state: %w", err)
	}

	if submitBy == "" {
		return store.SubmitterName(), nil
	}
	if submitBy != store.SubmitterName() {
		if err := store.SetSubmitterName(submitBy); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not remember submitter name: %v\n", err)
		}
	}
	return submitBy, nil
}
