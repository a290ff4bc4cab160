// Package locations supplies playable round locations. The actual
// street-level validity heuristics live in an external service; this package
// only defines the supplier contract and a pooled implementation that keeps
// session creation fast.
package locations

import (
	"context"

	"github.com/atlasguess/atlasguess/internal/model"
)

// Supplier generates round locations for a session. Implementations may be
// slow or fallible; callers run Generate off the scheduler loop and surface
// failures as client notices.
type Supplier interface {
	Generate(ctx context.Context, count int, area string) ([]model.Location, error)
}

// PointSource produces one candidate location for an area. This is the
// boundary to the external geocoding service.
type PointSource interface {
	RandomPoint(ctx context.Context, area string) (model.Location, error)
}
