package sim

import (
	"context"

	"github.com/san-kum/sdgsim/internal/grid"
	"golang.org/x/sync/errgroup"
)

// Member is one run of an ensemble.
type Member struct {
	Seed   int64
	Result *Result
	Err    error
}

// Ensemble runs independent simulations seeded seedStart, seedStart+1, ...
// Simulators are built per member because integrators keep scratch state.
type Ensemble struct {
	build     func() *Simulator
	init      func(seed int64) (grid.Field[complex128], error)
	numRuns   int
	seedStart int64
	limit     int
}

func NewEnsemble(build func() *Simulator, init func(seed int64) (grid.Field[complex128], error), numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{build: build, init: init, numRuns: numRuns, seedStart: seedStart, limit: -1}
}

// SetLimit caps the number of members running at once.
func (e *Ensemble) SetLimit(n int) { e.limit = n }

// Run returns one Member per run in seed order. A diverged member is
// reported through its Err and does not stop the others; a failure to
// build the initial field cancels the ensemble.
func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]Member, error) {
	members := make([]Member, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			seed := e.seedStart + int64(i)
			psi0, err := e.init(seed)
			if err != nil {
				return err
			}
			res, err := e.build().Run(ctx, psi0, grid.Scalar{}, cfg)
			members[i] = Member{Seed: seed, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return members, nil
}
