// Package automation wires configuration into simulators and drives
// scripted batches of runs: YAML scenarios and parameter sweeps.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/sdgsim/internal/analysis"
	"github.com/san-kum/sdgsim/internal/archive"
	"github.com/san-kum/sdgsim/internal/compute"
	"github.com/san-kum/sdgsim/internal/config"
	"github.com/san-kum/sdgsim/internal/geometry"
	"github.com/san-kum/sdgsim/internal/grid"
	"github.com/san-kum/sdgsim/internal/integrators"
	"github.com/san-kum/sdgsim/internal/metrics"
	"github.com/san-kum/sdgsim/internal/sim"
	"github.com/san-kum/sdgsim/internal/validate"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownParam  = errors.New("automation: unknown parameter")
	ErrEmptyScenario = errors.New("automation: scenario has no steps")
)

// Tunable lists the names SetParam accepts.
var Tunable = []string{"kappa", "eta", "alpha", "rho_vac", "epsilon", "dt", "relax_omega"}

// SetParam overrides one numeric setting of cfg by name.
func SetParam(cfg *config.Config, name string, v float64) error {
	switch name {
	case "kappa":
		cfg.Physics.Kappa = v
	case "eta":
		cfg.Physics.Eta = v
	case "alpha":
		cfg.Physics.Alpha = v
	case "rho_vac":
		cfg.Physics.RhoVac = v
	case "epsilon":
		cfg.Physics.Epsilon = v
	case "dt":
		cfg.Run.Dt = v
	case "relax_omega":
		cfg.Policy.RelaxOmega = v
	default:
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	return nil
}

// Shape is the square grid cfg describes.
func Shape(cfg *config.Config) grid.Shape {
	n := cfg.Physics.SpatialResolution
	return grid.Shape{Rows: n, Cols: n}
}

func SimConfig(cfg *config.Config) sim.Config {
	return sim.Config{
		Dt:            cfg.Run.Dt,
		Steps:         cfg.Run.Steps,
		SnapshotEvery: cfg.Run.SnapshotEvery,
		ValidateState: cfg.Run.ValidateState,
	}
}

func ValidateOptions(cfg *config.Config) validate.Options {
	return validate.Options{
		DataDir:             cfg.Validation.DataDir,
		ProvenanceDir:       cfg.Validation.ProvenanceDir,
		SSEMetricKey:        cfg.Validation.SSEMetricKey,
		StabilityMetricKey:  cfg.Validation.StabilityMetricKey,
		SentinelFailure:     cfg.Validation.SentinelFailure,
		SentinelDivergence:  cfg.Validation.SentinelDivergence,
		DivergenceThreshold: cfg.Policy.DivergenceThreshold,
	}
}

// NewSimulator builds a simulator for cfg with the standard metrics. A nil
// cache gives the solver a private one.
func NewSimulator(cfg *config.Config, cache *compute.Cache, logger *slog.Logger) (*sim.Simulator, error) {
	policy := cfg.GeometryPolicy()
	solver, err := geometry.NewSolver[complex128](cfg.Physics.SpatialResolution, policy, cache)
	if err != nil {
		return nil, err
	}
	integ, err := integrators.New(cfg.Run.Integrator)
	if err != nil {
		return nil, err
	}
	s := sim.New(solver, integ, cfg.GeometryParams(), logger)
	for _, m := range metrics.Standard(policy.DivergenceThreshold) {
		s.AddMetric(m)
	}
	return s, nil
}

// Metadata describes a run of cfg for the archive.
func Metadata(cfg *config.Config, job, preset string) archive.RunMetadata {
	return archive.RunMetadata{
		JobID:      job,
		Timestamp:  time.Now(),
		Preset:     preset,
		Init:       cfg.Run.Init,
		Seed:       cfg.Run.Seed,
		Resolution: cfg.Physics.SpatialResolution,
		Dt:         cfg.Run.Dt,
		Steps:      cfg.Run.Steps,
		Integrator: cfg.Run.Integrator,
		Physics:    cfg.GeometryParams(),
	}
}

// Simulate runs cfg from its initial profile. A divergence is returned
// together with the partial result.
func Simulate(ctx context.Context, cfg *config.Config, cache *compute.Cache, logger *slog.Logger) (*sim.Result, error) {
	psi0, err := sim.InitialField(cfg.Run.Init, Shape(cfg), cfg.Run.Seed)
	if err != nil {
		return nil, err
	}
	s, err := NewSimulator(cfg, cache, logger)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, psi0, grid.Scalar{}, SimConfig(cfg))
}

// FidelityObjective scores a grid point by the spectral fidelity of the
// final density of base with params applied. Diverged runs score
// validate.DivergencePenalty.
func FidelityObjective(base *config.Config, cache *compute.Cache, logger *slog.Logger) func(context.Context, map[string]float64) (float64, error) {
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg := *base
		for name, v := range params {
			if err := SetParam(&cfg, name, v); err != nil {
				return 0, err
			}
		}
		res, err := Simulate(ctx, &cfg, cache, logger)
		if errors.Is(err, sim.ErrDiverged) {
			return validate.DivergencePenalty, nil
		}
		if err != nil {
			return 0, err
		}
		rho := res.Final.Psi.Density()
		rays, err := analysis.Rays([]int{rho.Rows, rho.Cols}, rho.Data)
		if err != nil {
			return 0, err
		}
		return analysis.SpectralFidelity(rays), nil
	}
}

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from Preset (or the defaults) and applies the
// non-zero overrides.
type ScenarioStep struct {
	Name       string             `yaml:"name"`
	Preset     string             `yaml:"preset"`
	Init       string             `yaml:"init"`
	Integrator string             `yaml:"integrator"`
	Resolution int                `yaml:"spatial_resolution"`
	Steps      int                `yaml:"steps"`
	Seed       int64              `yaml:"seed"`
	Params     map[string]float64 `yaml:"params"`
	Validate   bool               `yaml:"validate"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyScenario, path)
	}
	return &scenario, nil
}

// Config resolves the step against base, which supplies the validation
// and archive settings.
func (s ScenarioStep) Config(base *config.Config) (*config.Config, error) {
	cfg := *base
	if s.Preset != "" {
		p := config.GetPreset(s.Preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s", s.Preset)
		}
		cfg.Physics, cfg.Run, cfg.Policy = p.Physics, p.Run, p.Policy
	}
	if s.Init != "" {
		cfg.Run.Init = s.Init
	}
	if s.Integrator != "" {
		cfg.Run.Integrator = s.Integrator
	}
	if s.Resolution != 0 {
		cfg.Physics.SpatialResolution = s.Resolution
	}
	if s.Steps != 0 {
		cfg.Run.Steps = s.Steps
	}
	if s.Seed != 0 {
		cfg.Run.Seed = s.Seed
	}
	for name, v := range s.Params {
		if err := SetParam(&cfg, name, v); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Outcome is one archived scenario step. Record is nil unless the step
// asked for validation.
type Outcome struct {
	Step     string
	JobID    string
	Result   *sim.Result
	Record   *validate.Record
	Diverged bool
}

// RunScenario executes all steps in a scenario, archiving each run under
// base's data directory. Diverged steps are archived and the scenario
// continues; any other failure stops it.
func RunScenario(ctx context.Context, scenario *Scenario, base *config.Config, logger *slog.Logger) ([]Outcome, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store := archive.New(base.Validation.DataDir, logger)
	if err := store.Init(); err != nil {
		return nil, err
	}
	validator := validate.New(ValidateOptions(base), logger)
	cache := compute.NewCache(nil)

	outcomes := make([]Outcome, 0, len(scenario.Steps))
	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		logger.Info("scenario step", "scenario", scenario.Name, "step", name, "n", i+1, "of", len(scenario.Steps))

		cfg, err := step.Config(base)
		if err != nil {
			return outcomes, fmt.Errorf("step %d: %w", i+1, err)
		}

		result, err := Simulate(ctx, cfg, cache, logger)
		diverged := errors.Is(err, sim.ErrDiverged)
		if err != nil && !diverged {
			return outcomes, fmt.Errorf("step %d run: %w", i+1, err)
		}

		job := uuid.NewString()
		meta := Metadata(cfg, job, step.Preset)
		if diverged {
			meta.Error = err.Error()
		}
		if err := store.Save(meta, result); err != nil {
			return outcomes, fmt.Errorf("step %d save: %w", i+1, err)
		}

		out := Outcome{Step: name, JobID: job, Result: result, Diverged: diverged}
		if step.Validate {
			rec, err := validator.Run(job)
			if err != nil {
				return outcomes, fmt.Errorf("step %d validate: %w", i+1, err)
			}
			out.Record = rec
		}
		outcomes = append(outcomes, out)
	}

	return outcomes, nil
}
