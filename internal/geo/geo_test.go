package geo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenchsafe/fieldtag/internal/api"
)

// fakeProvider settles after delay with the configured result.
type fakeProvider struct {
	sample Sample
	err    error
	delay  time.Duration
}

func (p *fakeProvider) Position(ctx context.Context) (Sample, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return Sample{}, ctx.Err()
		}
	}
	return p.sample, p.err
}

func TestCapture(t *testing.T) {
	t.Run("success fills defaults", func(t *testing.T) {
		c, err := NewCapturer(&fakeProvider{sample: Sample{Latitude: 47.61, Longitude: -122.33, AccuracyMeters: 8}}, time.Second, nil)
		require.NoError(t, err)

		sample, err := c.Capture(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 47.61, sample.Latitude)
		assert.Equal(t, SourceDevice, sample.Source)
		assert.False(t, sample.CapturedAt.IsZero())
	})

	t.Run("timeout maps to ErrTimeout", func(t *testing.T) {
		c, err := NewCapturer(&fakeProvider{delay: time.Second}, 20*time.Millisecond, nil)
		require.NoError(t, err)

		_, err = c.Capture(context.Background())
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("denied passes through", func(t *testing.T) {
		c, err := NewCapturer(&fakeProvider{err: ErrDenied}, time.Second, nil)
		require.NoError(t, err)

		_, err = c.Capture(context.Background())
		assert.ErrorIs(t, err, ErrDenied)
	})

	t.Run("second concurrent capture is refused", func(t *testing.T) {
		c, err := NewCapturer(&fakeProvider{delay: 100 * time.Millisecond}, time.Second, nil)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Capture(context.Background())
		}()

		time.Sleep(20 * time.Millisecond)
		_, err = c.Capture(context.Background())
		assert.ErrorIs(t, err, ErrBusy)
		wg.Wait()

		// Settled: a new capture may start.
		_, err = c.Capture(context.Background())
		assert.NoError(t, err)
	})
}

type fakeLookup struct {
	places []api.Place
	err    error
	calls  int
}

func (f *fakeLookup) NearbyPlaces(ctx context.Context, lat, lng float64, radius int) ([]api.Place, error) {
	f.calls++
	return f.places, f.err
}

func TestSuggest(t *testing.T) {
	t.Run("returns places", func(t *testing.T) {
		lookup := &fakeLookup{places: []api.Place{{Name: "Harbor Freight"}}}
		s := NewSuggester(lookup, 200, nil)

		places := s.Suggest(context.Background(), Sample{Latitude: 1, Longitude: 2})
		require.Len(t, places, 1)
		assert.Equal(t, "Harbor Freight", places[0].Name)
	})

	t.Run("lookup failure is silent", func(t *testing.T) {
		s := NewSuggester(&fakeLookup{err: errors.New("boom")}, 200, nil)
		assert.Empty(t, s.Suggest(context.Background(), Sample{}))
	})

	t.Run("nil lookup yields empty", func(t *testing.T) {
		s := NewSuggester(nil, 0, nil)
		assert.Empty(t, s.Suggest(context.Background(), Sample{}))
	})
}
