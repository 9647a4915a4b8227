package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	placesLat    float64
	placesLng    float64
	placesRadius int
)

// placesCmd suggests business names near a coordinate
var placesCmd = &cobra.Command{
	Use:   "places",
	Short: "Suggest nearby business names for quick-shot submissions",
	Long: `Look up businesses near a coordinate, for filling in the business name
on a quick-shot submission.

Examples:
  fieldtag places --lat 47.61 --lng -122.33
  fieldtag places --lat 47.61 --lng -122.33 --radius 500`,
	RunE: runPlaces,
}

func init() {
	placesCmd.Flags().Float64Var(&placesLat, "lat", 0, "latitude")
	placesCmd.Flags().Float64Var(&placesLng, "lng", 0, "longitude")
	placesCmd.Flags().IntVar(&placesRadius, "radius", 0, "search radius in meters (default from config)")
	placesCmd.MarkFlagRequired("lat")
	placesCmd.MarkFlagRequired("lng")
}

// runPlaces handles the places command
func runPlaces(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := backendClient(cfg)
	if err != nil {
		return err
	}

	radius := placesRadius
	if radius <= 0 {
		radius = cfg.GPS.PlacesRadius
	}

	places, err := client.NearbyPlaces(cmd.Context(), placesLat, placesLng, radius)
	if err != nil {
		return fmt.Errorf("looking up nearby places: %w", err)
	}
	if len(places) == 0 {
		fmt.Println("No places found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRATING")
	for _, p := range places {
		rating := ""
		if p.Rating != nil {
			rating = fmt.Sprintf("%.1f", *p.Rating)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Address, rating)
	}
	return w.Flush()
}
