package locations

import (
	"context"
	"log/slog"
	"sync"

	"github.com/atlasguess/atlasguess/internal/dependencies/random"
	"github.com/atlasguess/atlasguess/internal/model"
)

// DefaultPoolSize is how many world locations the pool keeps warm
const DefaultPoolSize = 2000

// Pool is a Supplier backed by a pre-generated reservoir of world
// locations. Area-filtered requests bypass the pool and hit the source
// directly; "all" requests are served from the reservoir without blocking
// on the external service.
type Pool struct {
	mu     sync.RWMutex
	points []model.Location

	source PointSource
	random random.Random
	size   int
	logger *slog.Logger
}

// NewPool creates a pool over the given source. Call Fill to warm it.
func NewPool(source PointSource, rnd random.Random, size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{
		source: source,
		random: rnd,
		size:   size,
		logger: logger.With(slog.String("component", "location-pool")),
	}
}

var _ Supplier = (*Pool)(nil)

// Fill tops the reservoir up to its configured size. Intended to run in a
// background goroutine at startup and again periodically to rotate stock.
func (p *Pool) Fill(ctx context.Context) error {
	for {
		p.mu.RLock()
		n := len(p.points)
		p.mu.RUnlock()
		if n >= p.size {
			return nil
		}

		loc, err := p.source.RandomPoint(ctx, "all")
		if err != nil {
			return err
		}

		p.mu.Lock()
		p.points = append(p.points, loc)
		n = len(p.points)
		p.mu.Unlock()

		if n%100 == 0 {
			p.logger.Info("location pool filling", slog.Int("generated", n), slog.Int("target", p.size))
		}
	}
}

// Rotate replaces the oldest pooled location with a fresh one
func (p *Pool) Rotate(ctx context.Context) error {
	loc, err := p.source.RandomPoint(ctx, "all")
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.points) == 0 {
		p.points = append(p.points, loc)
		return nil
	}
	p.points = append(p.points[1:], loc)
	return nil
}

// Generate returns count locations. World requests sample the pool;
// area-filtered requests call the source once per location.
func (p *Pool) Generate(ctx context.Context, count int, area string) ([]model.Location, error) {
	if area == "" || area == "all" {
		return p.sample(count)
	}

	locs := make([]model.Location, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loc, err := p.source.RandomPoint(ctx, area)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func (p *Pool) sample(count int) ([]model.Location, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.points) == 0 {
		return nil, ErrPoolEmpty
	}

	locs := make([]model.Location, 0, count)
	for i := 0; i < count; i++ {
		locs = append(locs, p.points[p.random.Intn(len(p.points))])
	}
	return locs, nil
}

// Size returns the current reservoir size
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.points)
}
