package geo

import (
	"context"

	"go.uber.org/zap"

	"github.com/quenchsafe/fieldtag/internal/api"
)

// PlacesLookup fetches nearby place suggestions for a coordinate.
// *api.Client satisfies it.
type PlacesLookup interface {
	NearbyPlaces(ctx context.Context, lat, lng float64, radiusMeters int) ([]api.Place, error)
}

// Suggester turns a captured sample into place-name suggestions for the
// location field. Lookup failures are silent: suggestions are a convenience
// and an empty set is always a valid answer.
type Suggester struct {
	lookup       PlacesLookup
	radiusMeters int
	logger       *zap.Logger
}

// NewSuggester creates a Suggester.
func NewSuggester(lookup PlacesLookup, radiusMeters int, logger *zap.Logger) *Suggester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if radiusMeters <= 0 {
		radiusMeters = 200
	}
	return &Suggester{
		lookup:       lookup,
		radiusMeters: radiusMeters,
		logger:       logger.Named("places"),
	}
}

// Suggest returns nearby places for the sample. Never returns an error:
// on lookup failure it logs and yields an empty suggestion set.
func (s *Suggester) Suggest(ctx context.Context, sample Sample) []api.Place {
	if s.lookup == nil {
		return nil
	}
	places, err := s.lookup.NearbyPlaces(ctx, sample.Latitude, sample.Longitude, s.radiusMeters)
	if err != nil {
		s.logger.Debug("nearby places lookup failed", zap.Error(err))
		return nil
	}
	return places
}
