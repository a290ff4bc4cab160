package locations

import (
	"context"
	"errors"

	"github.com/atlasguess/atlasguess/internal/dependencies/random"
	"github.com/atlasguess/atlasguess/internal/model"
)

// ErrPoolEmpty is returned when the pool has no stock to sample
var ErrPoolEmpty = errors.New("location pool is empty")

// StaticSource serves from a fixed list of locations. Used in development
// and tests in place of the external geocoding service.
type StaticSource struct {
	locs   []model.Location
	random random.Random
}

// NewStaticSource creates a source over the given locations
func NewStaticSource(locs []model.Location, rnd random.Random) *StaticSource {
	return &StaticSource{locs: locs, random: rnd}
}

var _ PointSource = (*StaticSource)(nil)

// RandomPoint returns a random location, ignoring the area filter except
// for exact country matches
func (s *StaticSource) RandomPoint(_ context.Context, area string) (model.Location, error) {
	if len(s.locs) == 0 {
		return model.Location{}, ErrPoolEmpty
	}
	if area != "" && area != "all" {
		var filtered []model.Location
		for _, l := range s.locs {
			if l.Country == area {
				filtered = append(filtered, l)
			}
		}
		if len(filtered) > 0 {
			return filtered[s.random.Intn(len(filtered))], nil
		}
	}
	return s.locs[s.random.Intn(len(s.locs))], nil
}
