package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quenchsafe/fieldtag/internal/capture"
)

var captureOutput string

// captureCmd captures one tag-shaped frame from the configured device
var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture a tag-shaped frame from the camera",
	Long: `Capture one frame from the configured camera device, projected into the
fixed tag crop, and write it as a JPEG.

Examples:
  # Capture to a file
  fieldtag capture -o tag.jpg

  # Capture and print a base64 payload for scripting
  fieldtag capture`,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVarP(&captureOutput, "output", "o", "", "write the JPEG to this file instead of printing base64")
}

// runCapture handles the capture command
func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stream, err := capture.Open(capture.Config{
		Device: cfg.Capture.Device,
		Shape: capture.TagShape{
			Width:  cfg.Capture.TagWidth,
			Height: cfg.Capture.TagHeight,
		},
		JPEGQuality: cfg.Capture.JPEGQuality,
	}, zap.NewNop())
	if err != nil {
		return fmt.Errorf("opening camera: %w", err)
	}
	defer stream.Close()

	img, err := stream.Capture(cmd.Context())
	if err != nil {
		return fmt.Errorf("capturing frame: %w", err)
	}

	if captureOutput != "" {
		if err := os.WriteFile(captureOutput, img.Bytes, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", captureOutput, err)
		}
		fmt.Fprintf(os.Stderr, "Captured %dx%d tag frame to %s\n", img.Width, img.Height, captureOutput)
		return nil
	}

	fmt.Println(img.Base64())
	return nil
}
