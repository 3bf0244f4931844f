// Package optim searches parameter grids for the setting that minimises a
// run score.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrRanges    = errors.New("optim: every parameter needs a non-empty range")
	ErrNoFinite  = errors.New("optim: no grid point produced a finite score")
	ErrDuplicate = errors.New("optim: parameter listed twice")
)

// Objective scores one grid point; lower is better.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

// Trial is one evaluated grid point. A failed trial carries Err and a NaN
// score.
type Trial struct {
	Params map[string]float64
	Score  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%w: %d names, %d ranges", ErrRanges, len(params), len(ranges))
	}
	seen := make(map[string]bool, len(params))
	for i, name := range params {
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrRanges, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, name)
		}
		seen[name] = true
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search evaluates every grid point in order, the last parameter varying
// fastest. Trials whose objective fails or returns a non-finite score
// never win. The returned trials are sorted best first with failures last.
func (g *GridSearch) Search(ctx context.Context, objective Objective) (Trial, []Trial, error) {
	trials := make([]Trial, 0, g.Size())
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), objective, &trials); err != nil {
		return Trial{}, trials, err
	}

	sort.SliceStable(trials, func(i, j int) bool {
		a, b := trials[i].Score, trials[j].Score
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a < b
	})
	if len(trials) == 0 || math.IsNaN(trials[0].Score) {
		return Trial{}, trials, ErrNoFinite
	}
	return trials[0], trials, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	objective Objective,
	trials *[]Trial,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		params := make(map[string]float64, len(current))
		for k, v := range current {
			params[k] = v
		}

		score, err := objective(ctx, params)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil && (math.IsNaN(score) || math.IsInf(score, 0)) {
			err = fmt.Errorf("optim: non-finite score %v", score)
		}
		if err != nil {
			score = math.NaN()
		}
		*trials = append(*trials, Trial{Params: params, Score: score, Err: err})
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[paramName] = val
		if err := g.searchRecursive(ctx, depth+1, current, objective, trials); err != nil {
			return err
		}
	}
	delete(current, paramName)
	return nil
}

// ParseRange reads a comma-separated list of values, or lo:hi:n for n
// evenly spaced values including both ends.
func ParseRange(s string) ([]float64, error) {
	var lo, hi float64
	var n int
	if c, err := fmt.Sscanf(s, "%g:%g:%d", &lo, &hi, &n); err == nil && c == 3 {
		if n < 1 {
			return nil, fmt.Errorf("%w: %q", ErrRanges, s)
		}
		if n == 1 {
			return []float64{lo}, nil
		}
		out := make([]float64, n)
		step := (hi - lo) / float64(n-1)
		for i := range out {
			out[i] = lo + float64(i)*step
		}
		out[n-1] = hi
		return out, nil
	}

	var out []float64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("optim: bad value %q: %w", field, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrRanges, s)
	}
	return out, nil
}
