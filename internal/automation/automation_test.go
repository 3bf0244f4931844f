package automation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/sdgsim/internal/archive"
	"github.com/san-kum/sdgsim/internal/config"
	"github.com/san-kum/sdgsim/internal/validate"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func smallConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Physics.SpatialResolution = 8
	cfg.Run.Steps = 3
	cfg.Run.Init = "wave"
	cfg.Validation.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Validation.ProvenanceDir = filepath.Join(t.TempDir(), "prov")
	return cfg
}

func TestSetParam(t *testing.T) {
	cfg := config.DefaultConfig()
	for i, name := range Tunable {
		if err := SetParam(cfg, name, float64(i+1)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if cfg.Physics.Kappa != 1 || cfg.Physics.Epsilon != 5 || cfg.Run.Dt != 6 || cfg.Policy.RelaxOmega != 7 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if err := SetParam(cfg, "spin", 1); !errors.Is(err, ErrUnknownParam) {
		t.Errorf("got %v, want ErrUnknownParam", err)
	}
}

func TestScenarioStepConfig(t *testing.T) {
	base := smallConfig(t)

	cfg, err := ScenarioStep{Preset: "vortex", Steps: 7, Params: map[string]float64{"alpha": 0.3}}.Config(base)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Run.Init != "vortex" || cfg.Run.Steps != 7 || cfg.Physics.Alpha != 0.3 {
		t.Errorf("step not applied: %+v", cfg.Run)
	}
	if cfg.Policy.RelaxOmega != 0.8 {
		t.Errorf("preset policy not applied: omega %v", cfg.Policy.RelaxOmega)
	}
	if cfg.Validation.DataDir != base.Validation.DataDir {
		t.Error("step should keep the base archive settings")
	}
	if base.Run.Steps != 3 {
		t.Error("base config modified")
	}

	if _, err := (ScenarioStep{Preset: "nope"}).Config(base); err == nil {
		t.Error("expected unknown preset error")
	}
	if _, err := (ScenarioStep{Params: map[string]float64{"dt": -1}}).Config(base); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	doc := `name: smoke
steps:
  - name: flat
    preset: vacuum
    steps: 2
  - init: wave
    params:
      alpha: 0.25
    validate: true
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "smoke" || len(sc.Steps) != 2 {
		t.Fatalf("got %+v", sc)
	}
	if sc.Steps[1].Params["alpha"] != 0.25 || !sc.Steps[1].Validate {
		t.Errorf("second step parsed as %+v", sc.Steps[1])
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("name: none\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScenario(empty); !errors.Is(err, ErrEmptyScenario) {
		t.Errorf("got %v, want ErrEmptyScenario", err)
	}
}

func TestRunScenario(t *testing.T) {
	base := smallConfig(t)
	sc := &Scenario{Name: "smoke", Steps: []ScenarioStep{
		{Name: "flat", Init: "uniform"},
		{Init: "wave", Validate: true},
	}}

	outcomes, err := RunScenario(context.Background(), sc, base, quiet)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes", len(outcomes))
	}
	if outcomes[0].Step != "flat" || outcomes[1].Step != "step-2" {
		t.Errorf("step names %q, %q", outcomes[0].Step, outcomes[1].Step)
	}
	if outcomes[0].Record != nil {
		t.Error("unvalidated step should have no record")
	}

	store := archive.New(base.Validation.DataDir, quiet)
	for _, o := range outcomes {
		if o.Result.StepsTaken != 3 || o.Diverged {
			t.Errorf("%s: %d steps, diverged %v", o.Step, o.Result.StepsTaken, o.Diverged)
		}
		if _, err := store.Load(o.JobID); err != nil {
			t.Errorf("%s not archived: %v", o.Step, err)
		}
	}

	rec := outcomes[1].Record
	if rec == nil || rec.ValidationStatus != validate.StatusPass {
		t.Fatalf("record %+v", rec)
	}
	if _, err := os.Stat(filepath.Join(base.Validation.ProvenanceDir, "provenance_"+outcomes[1].JobID+".json")); err != nil {
		t.Errorf("provenance not written: %v", err)
	}
}

func TestRunScenario_StopsOnError(t *testing.T) {
	base := smallConfig(t)
	sc := &Scenario{Steps: []ScenarioStep{{Init: "uniform"}, {Init: "spiral"}, {Init: "wave"}}}

	outcomes, err := RunScenario(context.Background(), sc, base, quiet)
	if err == nil {
		t.Fatal("expected an error for the unknown init")
	}
	if len(outcomes) != 1 {
		t.Errorf("got %d outcomes before the failure, want 1", len(outcomes))
	}
}

func TestFidelityObjective(t *testing.T) {
	base := smallConfig(t)
	objective := FidelityObjective(base, nil, quiet)

	score, err := objective(context.Background(), map[string]float64{"alpha": 0.25})
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(score) || score < 0 {
		t.Errorf("score = %v", score)
	}
	if base.Physics.Alpha != config.DefaultAlpha {
		t.Error("objective modified the base config")
	}

	base.Policy.DivergenceThreshold = 1e-3
	score, err = FidelityObjective(base, nil, quiet)(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if score != validate.DivergencePenalty {
		t.Errorf("diverged score = %v, want %v", score, validate.DivergencePenalty)
	}

	if _, err := objective(context.Background(), map[string]float64{"spin": 1}); !errors.Is(err, ErrUnknownParam) {
		t.Errorf("got %v, want ErrUnknownParam", err)
	}
}
