package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/san-kum/sdgsim/internal/compute"
	"github.com/san-kum/sdgsim/internal/config"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	logLevel   string
	noColor    bool
	backend    string
	workers    int
	configFile string
	preset     string

	dt             float64
	steps          int
	resolution     int
	integratorName string
	initKind       string
	seed           int64
	kappa          float64
	eta            float64
	alpha          float64
	rhoVac         float64
	epsilon        float64
	relaxIters     int
	relaxOmega     float64
	diagnostics    bool

	doValidate    bool
	ensembleRuns  int
	quiet         bool
	jobUUID       string
	provenanceDir string
	themeName     string
	benchSteps    int
	sweepSpecs    []string
	exportFormat  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "sdgsim",
		Short:         "emergent geometry from a complex field",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(logLevel, noColor); err != nil {
				return err
			}
			b, err := compute.ParseBackend(backend, workers)
			if err != nil {
				return err
			}
			compute.SetBackend(b)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "simulation_data", "archive directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured log output")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "auto", "kernel backend: "+strings.Join(compute.BackendNames(), ", "))
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "worker goroutines for the cpu backend (0 = one per CPU)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and archive it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	addPhysicsFlags(runCmd)
	runCmd.Flags().BoolVar(&doValidate, "validate", false, "validate the archived run")
	runCmd.Flags().IntVar(&ensembleRuns, "ensemble", 1, "number of runs over consecutive seeds")
	runCmd.Flags().BoolVar(&quiet, "quiet", false, "no progress line")
	runCmd.Flags().StringVar(&provenanceDir, "provenance", "", "provenance report directory")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "validate an archived run and write its provenance record",
		Args:  cobra.NoArgs,
		RunE:  validateRun,
	}
	addConfigFlags(validateCmd)
	validateCmd.Flags().StringVar(&jobUUID, "job_uuid", "", "job to validate")
	validateCmd.Flags().StringVar(&provenanceDir, "provenance", "", "provenance report directory")
	_ = validateCmd.MarkFlagRequired("job_uuid")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list archived runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [job]",
		Short: "plot the mass history and final density profile of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [job]",
		Short: "spectral fidelity of a run's final density",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [job]",
		Short: "export a run as JSON or SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json, density (svg) or mass (svg)")
	exportCmd.Flags().StringVar(&themeName, "theme", "inferno", "colour theme for svg output")

	warmupCmd := &cobra.Command{
		Use:   "warmup",
		Short: "build the kernels for a resolution and report the cost",
		Args:  cobra.NoArgs,
		RunE:  warmupKernels,
	}
	addConfigFlags(warmupCmd)
	addPhysicsFlags(warmupCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "measure step throughput across resolutions",
		Args:  cobra.NoArgs,
		RunE:  benchSolver,
	}
	benchCmd.Flags().IntVar(&benchSteps, "steps", 20, "steps per resolution")
	benchCmd.Flags().StringVar(&integratorName, "integrator", "rk4", "euler or rk4")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "run a preset with live visualisation",
		Args:  cobra.NoArgs,
		RunE:  watchRun,
	}
	watchCmd.Flags().StringVar(&preset, "preset", "", "skip the menu and run this preset")
	watchCmd.Flags().StringVar(&themeName, "theme", "inferno", "colour theme")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				p := config.Presets[name]
				fmt.Printf("  %-8s %-9s %3dx%-3d %s\n", name, p.Run.Init,
					p.Physics.SpatialResolution, p.Physics.SpatialResolution, p.Description)
			}
		},
	}

	sweepCmd := &cobra.Command{
		Use:     "sweep",
		Short:   "grid-search parameters for the lowest spectral SSE",
		Example: "  sdgsim sweep --preset wave --steps 50 --param alpha=0.25,0.5,0.75 --param kappa=0.5:2:4",
		Args:    cobra.NoArgs,
		RunE:    sweepParams,
	}
	addConfigFlags(sweepCmd)
	addPhysicsFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepSpecs, "param", nil, "name=v1,v2,... or name=lo:hi:n (repeatable)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file.yaml]",
		Short: "run a scripted batch of simulations",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	addConfigFlags(scenarioCmd)
	scenarioCmd.Flags().StringVar(&provenanceDir, "provenance", "", "provenance report directory")

	rootCmd.AddCommand(runCmd, validateCmd, listCmd, plotCmd, analyzeCmd, exportCmd, warmupCmd, benchCmd, watchCmd, presetsCmd, sweepCmd, scenarioCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

func addPhysicsFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	cmd.Flags().Float64Var(&dt, "dt", d.Run.Dt, "timestep")
	cmd.Flags().IntVar(&steps, "steps", d.Run.Steps, "number of steps")
	cmd.Flags().IntVar(&resolution, "resolution", d.Physics.SpatialResolution, "grid points per axis")
	cmd.Flags().StringVar(&integratorName, "integrator", d.Run.Integrator, "euler or rk4")
	cmd.Flags().StringVar(&initKind, "init", d.Run.Init, "initial field profile")
	cmd.Flags().Int64Var(&seed, "seed", d.Run.Seed, "random seed")
	cmd.Flags().Float64Var(&kappa, "kappa", d.Physics.Kappa, "phase-gradient coupling")
	cmd.Flags().Float64Var(&eta, "eta", d.Physics.Eta, "amplitude-gradient coupling")
	cmd.Flags().Float64Var(&alpha, "alpha", d.Physics.Alpha, "metric response exponent")
	cmd.Flags().Float64Var(&rhoVac, "rho-vac", d.Physics.RhoVac, "vacuum density")
	cmd.Flags().Float64Var(&epsilon, "epsilon", d.Physics.Epsilon, "diffusion strength")
	cmd.Flags().IntVar(&relaxIters, "relax-iterations", d.Policy.RelaxIterations, "jacobi sweeps per step")
	cmd.Flags().Float64Var(&relaxOmega, "relax-omega", d.Policy.RelaxOmega, "jacobi relaxation weight")
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", false, "compute the volume element each step")
}

// resolveConfig layers defaults, preset, config file and explicitly set
// flags, in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	changed := flags.Changed
	if changed("dt") {
		cfg.Run.Dt = dt
	}
	if changed("steps") {
		cfg.Run.Steps = steps
	}
	if changed("resolution") {
		cfg.Physics.SpatialResolution = resolution
	}
	if changed("integrator") {
		cfg.Run.Integrator = integratorName
	}
	if changed("init") {
		cfg.Run.Init = initKind
	}
	if changed("seed") {
		cfg.Run.Seed = seed
	}
	if changed("kappa") {
		cfg.Physics.Kappa = kappa
	}
	if changed("eta") {
		cfg.Physics.Eta = eta
	}
	if changed("alpha") {
		cfg.Physics.Alpha = alpha
	}
	if changed("rho-vac") {
		cfg.Physics.RhoVac = rhoVac
	}
	if changed("epsilon") {
		cfg.Physics.Epsilon = epsilon
	}
	if changed("relax-iterations") {
		cfg.Policy.RelaxIterations = relaxIters
	}
	if changed("relax-omega") {
		cfg.Policy.RelaxOmega = relaxOmega
	}
	if changed("diagnostics") {
		cfg.Policy.Diagnostics = diagnostics
	}
	if cmd.Root().PersistentFlags().Changed("data") || configFile == "" {
		cfg.Validation.DataDir = dataDir
	}
	if changed("provenance") {
		cfg.Validation.ProvenanceDir = provenanceDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(level string, plain bool) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      lvl,
			TimeFormat: "15:04:05",
			NoColor:    plain,
		}),
	))
	return nil
}
