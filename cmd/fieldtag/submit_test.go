package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/quenchsafe/fieldtag/internal/config"
	"github.com/quenchsafe/fieldtag/internal/geo"
)

func TestResolveSubmitterRemembersName(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")

	submitBy = "J. Alvarez"
	t.Cleanup(func() { submitBy = "" })

	name, err := resolveSubmitter(statePath)
	require.NoError(t, err)
	require.Equal(t, "J. Alvarez", name)

	// A later run without --by falls back to the remembered name.
	submitBy = ""
	name, err = resolveSubmitter(statePath)
	require.NoError(t, err)
	require.Equal(t, "J. Alvarez", name)
}

func newLocationTestCmd(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "submit"}
	cmd.Flags().Float64Var(&submitLat, "lat", 0, "")
	cmd.Flags().Float64Var(&submitLng, "lng", 0, "")
	cmd.SetContext(context.Background())
	t.Cleanup(func() {
		submitGPS = false
		submitLat = 0
		submitLng = 0
	})
	return cmd
}

func TestResolveLocationDeviceFix(t *testing.T) {
	fixPath := filepath.Join(t.TempDir(), "gps.json")
	require.NoError(t, os.WriteFile(fixPath, []byte(`{"latitude": 47.61, "longitude": -122.33, "accuracy": 5.0}`), 0600))

	cmd := newLocationTestCmd(t)
	submitGPS = true

	cfg := &config.Config{}
	cfg.GPS.Device = fixPath
	cfg.GPS.Timeout = config.Duration(time.Second)

	sample, err := resolveLocation(cmd, cfg)
	require.NoError(t, err)
	require.NotNil(t, sample)
	require.Equal(t, 47.61, sample.Latitude)
	require.Equal(t, geo.SourceDevice, sample.Source)
}

func TestResolveLocationDeviceUnavailableDegrades(t *testing.T) {
	cmd := newLocationTestCmd(t)
	submitGPS = true

	cfg := &config.Config{}
	cfg.GPS.Device = filepath.Join(t.TempDir(), "absent.json")
	cfg.GPS.Timeout = config.Duration(time.Second)

	// A device without location capability degrades to no sample, never a
	// failed submission.
	sample, err := resolveLocation(cmd, cfg)
	require.NoError(t, err)
	require.Nil(t, sample)
}

func TestResolveLocationManualCoordinates(t *testing.T) {
	cmd := newLocationTestCmd(t)
	require.NoError(t, cmd.Flags().Set("lat", "1.5"))
	require.NoError(t, cmd.Flags().Set("lng", "-2.5"))

	sample, err := resolveLocation(cmd, &config.Config{})
	require.NoError(t, err)
	require.NotNil(t, sample)
	require.Equal(t, 1.5, sample.Latitude)
	require.Equal(t, -2.5, sample.Longitude)
	require.Equal(t, "manual", sample.Source)
}

func TestResolveLocationGPSAndManualConflict(t *testing.T) {
	cmd := newLocationTestCmd(t)
	submitGPS = true
	require.NoError(t, cmd.Flags().Set("lat", "1"))
	require.NoError(t, cmd.Flags().Set("lng", "2"))

	_, err := resolveLocation(cmd, &config.Config{})
	require.Error(t, err)
}

func TestResolveLocationAbsentFlags(t *testing.T) {
	cmd := newLocationTestCmd(t)

	sample, err := resolveLocation(cmd, &config.Config{})
	require.NoError(t, err)
	require.Nil(t, sample)
}

func TestResolveSubmitterEmptyWhenNeverSet(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")

	submitBy = ""
	name, err := resolveSubmitter(statePath)
	require.NoError(t, err)
	require.Empty(t, name)
}
