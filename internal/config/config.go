package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/san-kum/sdgsim/internal/geometry"
	"gopkg.in/yaml.v3"
)

const (
	DefaultKappa      = 1.0
	DefaultEta        = 1.0
	DefaultResolution = 64
	DefaultAlpha      = 0.5
	DefaultRhoVac     = 1.0
	DefaultEpsilon    = 0.01
	DefaultDt         = 1e-3
	DefaultSteps      = 200

	DefaultSSEMetricKey       = "log_prime_sse"
	DefaultStabilityMetricKey = "h_norm"
	DefaultSentinelFailure    = 999
	DefaultSentinelDivergence = 1002
)

var ErrInvalidConfig = errors.New("config: invalid value")

type Config struct {
	Physics    PhysicsConfig    `yaml:"physics"`
	Policy     PolicyConfig     `yaml:"policy"`
	Run        RunConfig        `yaml:"run"`
	Validation ValidationConfig `yaml:"validation"`
}

type PhysicsConfig struct {
	Kappa             float64 `yaml:"kappa"`
	Eta               float64 `yaml:"eta"`
	SpatialResolution int     `yaml:"spatial_resolution"`
	Alpha             float64 `yaml:"alpha"`
	RhoVac            float64 `yaml:"rho_vac"`
	Epsilon           float64 `yaml:"epsilon"`
}

type PolicyConfig struct {
	RelaxIterations     int        `yaml:"relax_iterations"`
	RelaxOmega          float64    `yaml:"relax_omega"`
	DiffusionPhase      [2]float64 `yaml:"diffusion_phase"`
	DivergenceThreshold float64    `yaml:"divergence_threshold"`
	DensityFloor        float64    `yaml:"density_floor"`
	SqrtFloor           float64    `yaml:"sqrt_floor"`
	Signature           [4]float64 `yaml:"signature"`
	Diagnostics         bool       `yaml:"diagnostics"`
}

type RunConfig struct {
	Dt            float64 `yaml:"dt"`
	Steps         int     `yaml:"steps"`
	Integrator    string  `yaml:"integrator"`
	Init          string  `yaml:"init"`
	Seed          int64   `yaml:"seed"`
	SnapshotEvery int     `yaml:"snapshot_every"`
	ValidateState bool    `yaml:"validate_state"`
}

type ValidationConfig struct {
	DataDir            string `yaml:"data_dir"`
	ProvenanceDir      string `yaml:"provenance_dir"`
	SSEMetricKey       string `yaml:"sse_metric_key"`
	StabilityMetricKey string `yaml:"stability_metric_key"`
	SentinelFailure    int    `yaml:"sentinel_failure"`
	SentinelDivergence int    `yaml:"sentinel_divergence"`
}

func DefaultConfig() *Config {
	p := geometry.DefaultPolicy()
	return &Config{
		Physics: PhysicsConfig{
			Kappa:             DefaultKappa,
			Eta:               DefaultEta,
			SpatialResolution: DefaultResolution,
			Alpha:             DefaultAlpha,
			RhoVac:            DefaultRhoVac,
			Epsilon:           DefaultEpsilon,
		},
		Policy: PolicyConfig{
			RelaxIterations:     p.RelaxIterations,
			RelaxOmega:          p.RelaxOmega,
			DiffusionPhase:      [2]float64{real(p.DiffusionPhase), imag(p.DiffusionPhase)},
			DivergenceThreshold: p.DivergenceThreshold,
			DensityFloor:        p.DensityFloor,
			SqrtFloor:           p.SqrtFloor,
			Signature:           p.Signature,
		},
		Run: RunConfig{
			Dt:            DefaultDt,
			Steps:         DefaultSteps,
			Integrator:    "rk4",
			Init:          "wave",
			SnapshotEvery: 10,
			ValidateState: true,
		},
		Validation: ValidationConfig{
			DataDir:            "simulation_data",
			ProvenanceDir:      "provenance_reports",
			SSEMetricKey:       DefaultSSEMetricKey,
			StabilityMetricKey: DefaultStabilityMetricKey,
			SentinelFailure:    DefaultSentinelFailure,
			SentinelDivergence: DefaultSentinelDivergence,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the values the solver and driver cannot run without.
// Physically questionable combinations (e.g. alpha/rho_vac driving the
// conformal scale to zero) are left to the caller.
func (c *Config) Validate() error {
	switch {
	case c.Physics.SpatialResolution <= 0:
		return fmt.Errorf("%w: spatial_resolution %d", ErrInvalidConfig, c.Physics.SpatialResolution)
	case c.Policy.RelaxIterations <= 0:
		return fmt.Errorf("%w: relax_iterations %d", ErrInvalidConfig, c.Policy.RelaxIterations)
	case c.Run.Dt <= 0:
		return fmt.Errorf("%w: dt %g", ErrInvalidConfig, c.Run.Dt)
	case c.Run.Steps < 0:
		return fmt.Errorf("%w: steps %d", ErrInvalidConfig, c.Run.Steps)
	}
	return nil
}

func (c *Config) GeometryPolicy() geometry.Policy {
	return geometry.Policy{
		RelaxIterations:     c.Policy.RelaxIterations,
		RelaxOmega:          c.Policy.RelaxOmega,
		DiffusionPhase:      complex(c.Policy.DiffusionPhase[0], c.Policy.DiffusionPhase[1]),
		DivergenceThreshold: c.Policy.DivergenceThreshold,
		DensityFloor:        c.Policy.DensityFloor,
		SqrtFloor:           c.Policy.SqrtFloor,
		Signature:           c.Policy.Signature,
		Diagnostics:         c.Policy.Diagnostics,
	}
}

func (c *Config) GeometryParams() geometry.Params {
	return geometry.Params{
		Kappa:   c.Physics.Kappa,
		Eta:     c.Physics.Eta,
		Alpha:   c.Physics.Alpha,
		RhoVac:  c.Physics.RhoVac,
		Epsilon: c.Physics.Epsilon,
	}
}
