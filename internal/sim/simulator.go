package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/sdgsim/internal/geometry"
	"github.com/san-kum/sdgsim/internal/grid"
	"github.com/san-kum/sdgsim/internal/integrators"
)

type Simulator struct {
	solver     *geometry.Solver[complex128]
	integrator integrators.Integrator
	params     geometry.Params
	metrics    []Metric
	observers  []Observer
	logger     *slog.Logger
}

func New(solver *geometry.Solver[complex128], integrator integrators.Integrator, prm geometry.Params, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		solver:     solver,
		integrator: integrator,
		params:     prm,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
		logger:     logger,
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Solver() *geometry.Solver[complex128] { return s.solver }
func (s *Simulator) Params() geometry.Params              { return s.params }

// Start builds the initial state for psi0 with rho0 as the first warm
// start. A zero-value rho0 starts from the vacuum density.
func (s *Simulator) Start(psi0 grid.Field[complex128], rho0 grid.Scalar) State {
	if rho0.Data == nil {
		rho0 = grid.ConstScalar(psi0.Shape, s.params.RhoVac)
	}
	return State{Psi: psi0.Clone(), Density: rho0.Clone()}
}

// Advance takes one step of size dt. The geometry is computed once from the
// incoming field and held fixed across the integrator's stages.
func (s *Simulator) Advance(st State, dt float64) (State, error) {
	geom, err := s.solver.Geometry(st.Psi, st.Density, s.params)
	if err != nil {
		return st, err
	}
	rate := func(psi grid.Field[complex128], _ float64) (grid.Field[complex128], error) {
		return s.solver.Increment(psi, geom, s.params.Epsilon)
	}
	psi, err := s.integrator.Step(rate, st.Psi, st.Time, dt)
	if err != nil {
		return st, err
	}
	return State{
		Psi:      psi,
		Density:  geom.Density,
		Geometry: geom,
		Time:     st.Time + dt,
		Step:     st.Step + 1,
	}, nil
}

// Run integrates for cfg.Steps steps. When the state stops being valid the
// run ends early and the returned error wraps ErrDiverged; the result still
// holds everything up to and including the offending step.
func (s *Simulator) Run(ctx context.Context, psi0 grid.Field[complex128], rho0 grid.Scalar, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if _, err := s.solver.Warmup(psi0.Shape); err != nil {
		return nil, err
	}

	result := &Result{
		Snapshots: make([]State, 0, cfg.Steps/max(cfg.SnapshotEvery, 1)+1),
		Times:     make([]float64, 0, cfg.Steps+1),
		Mass:      make([]float64, 0, cfg.Steps+1),
		Metrics:   make(map[string]float64),
		Errors:    make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	st := s.Start(psi0, rho0)
	s.record(result, st, cfg)

	threshold := s.solver.Policy().DivergenceThreshold
	var runErr error

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			result.Final = st
			s.collect(result)
			return result, ctx.Err()
		default:
		}

		next, err := s.Advance(st, cfg.Dt)
		if err != nil {
			runErr = &StepError{Step: i, Time: st.Time, Err: err}
			result.Errors = append(result.Errors, runErr)
			break
		}
		st = next
		result.StepsTaken++

		for _, m := range s.metrics {
			m.Observe(&st)
		}
		for _, obs := range s.observers {
			obs.OnStep(&st)
		}
		s.record(result, st, cfg)

		if cfg.ValidateState && !st.IsValid(threshold) {
			runErr = &StepError{
				Step: st.Step,
				Time: st.Time,
				Err:  fmt.Errorf("%w: density max %g", ErrDiverged, st.Density.Max()),
			}
			result.Errors = append(result.Errors, runErr)
			s.logger.Warn("run diverged", "step", st.Step, "t", st.Time)
			break
		}
	}

	result.Final = st
	s.collect(result)
	s.logger.Debug("run finished", "steps", result.StepsTaken, "t", st.Time)
	return result, runErr
}

func (s *Simulator) record(result *Result, st State, cfg Config) {
	result.Times = append(result.Times, st.Time)
	result.Mass = append(result.Mass, st.Psi.Density().Mean())
	if cfg.SnapshotEvery > 0 && st.Step%cfg.SnapshotEvery == 0 {
		result.Snapshots = append(result.Snapshots, st.Clone())
	}
}

func (s *Simulator) collect(result *Result) {
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Steps < 0 {
		return fmt.Errorf("%w: steps must be non-negative, got %d", ErrInvalidConfig, cfg.Steps)
	}
	return nil
}
