package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/sdgsim/internal/analysis"
	"github.com/san-kum/sdgsim/internal/archive"
	"github.com/san-kum/sdgsim/internal/automation"
	"github.com/san-kum/sdgsim/internal/compute"
	"github.com/san-kum/sdgsim/internal/config"
	"github.com/san-kum/sdgsim/internal/export"
	"github.com/san-kum/sdgsim/internal/geometry"
	"github.com/san-kum/sdgsim/internal/grid"
	"github.com/san-kum/sdgsim/internal/optim"
	"github.com/san-kum/sdgsim/internal/sim"
	"github.com/san-kum/sdgsim/internal/tui"
	"github.com/san-kum/sdgsim/internal/validate"
	"github.com/san-kum/sdgsim/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.Default()

	st := archive.New(cfg.Validation.DataDir, logger)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if ensembleRuns > 1 {
		return runEnsemble(ctx, cfg, st, logger)
	}

	psi0, err := sim.InitialField(cfg.Run.Init, automation.Shape(cfg), cfg.Run.Seed)
	if err != nil {
		return err
	}
	s, err := automation.NewSimulator(cfg, nil, logger)
	if err != nil {
		return err
	}
	var progress *tui.Progress
	if !quiet {
		progress = tui.NewProgress(os.Stderr, cfg.Run.Init, cfg.Run.Steps, 10)
		s.AddObserver(progress)
	}

	job := uuid.NewString()
	fmt.Printf("running %s at %dx%d...\n", cfg.Run.Init, cfg.Physics.SpatialResolution, cfg.Physics.SpatialResolution)
	start := time.Now()

	result, runErr := s.Run(ctx, psi0, grid.Scalar{}, automation.SimConfig(cfg))
	if progress != nil {
		progress.Done()
	}
	if runErr != nil && !errors.Is(runErr, sim.ErrDiverged) {
		return runErr
	}
	elapsed := time.Since(start)

	meta := automation.Metadata(cfg, job, preset)
	if runErr != nil {
		meta.Error = runErr.Error()
		logger.Warn("run diverged", "job", job, "err", runErr)
	}
	if err := st.Save(meta, result); err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("job uuid: %s\n", job)
	fmt.Printf("steps: %d/%d\n", result.StepsTaken, cfg.Run.Steps)
	printMetrics(result.Metrics)

	if doValidate {
		return validateJob(cfg, job)
	}
	return nil
}

func runEnsemble(ctx context.Context, cfg *config.Config, st *archive.Store, logger *slog.Logger) error {
	// One cache for every member; kernels are keyed by shape alone.
	cache := compute.NewCache(nil)
	if _, err := automation.NewSimulator(cfg, cache, logger); err != nil {
		return err
	}
	shape := automation.Shape(cfg)
	ens := sim.NewEnsemble(
		func() *sim.Simulator {
			s, _ := automation.NewSimulator(cfg, cache, logger)
			return s
		},
		func(seed int64) (grid.Field[complex128], error) {
			return sim.InitialField(cfg.Run.Init, shape, seed)
		},
		ensembleRuns, cfg.Run.Seed,
	)

	fmt.Printf("running %d members of %s...\n", ensembleRuns, cfg.Run.Init)
	members, err := ens.Run(ctx, automation.SimConfig(cfg))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tJOB\tSTEPS\tMASS\tH_NORM\tSTATUS")
	for _, m := range members {
		if m.Err != nil && !errors.Is(m.Err, sim.ErrDiverged) {
			fmt.Fprintf(w, "%d\t-\t-\t-\t-\t%v\n", m.Seed, m.Err)
			continue
		}
		job := uuid.NewString()
		meta := automation.Metadata(cfg, job, preset)
		meta.Seed = m.Seed
		status := "ok"
		if m.Err != nil {
			meta.Error = m.Err.Error()
			status = "diverged"
		}
		if err := st.Save(meta, m.Result); err != nil {
			return err
		}
		if doValidate {
			rec, err := validate.New(automation.ValidateOptions(cfg), logger).Run(job)
			if err != nil {
				return err
			}
			status = string(rec.ValidationStatus)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.6f\t%.4g\t%s\n", m.Seed, job, m.Result.StepsTaken,
			m.Result.Metrics["mass"], m.Result.Metrics["h_norm"], status)
	}
	return w.Flush()
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, m[name])
	}
}

func validateRun(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	return validateJob(cfg, jobUUID)
}

func validateJob(cfg *config.Config, job string) error {
	v := validate.New(automation.ValidateOptions(cfg), slog.Default())
	rec, err := v.Run(job)
	if err != nil {
		return err
	}

	fmt.Printf("\nvalidation: %s (sentinel %d)\n", rec.ValidationStatus, rec.SentinelCode)
	for _, key := range []string{cfg.Validation.SSEMetricKey, cfg.Validation.StabilityMetricKey} {
		if v, ok := rec.Metrics[key]; ok {
			fmt.Printf("  %s: %.6g\n", key, v)
		}
	}
	if rec.Error != "" {
		fmt.Printf("  error: %s\n", rec.Error)
	}
	fmt.Printf("record: %s\n", v.ProvenancePath(job))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := archive.New(dataDir, slog.Default())
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tTIME\tINIT\tRES\tDT\tSTEPS\tINTEG\tSTATUS")
	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "diverged"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4g\t%d/%d\t%s\t%s\n",
			run.JobID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Init,
			run.Resolution,
			run.Dt,
			run.StepsTaken, run.Steps,
			run.Integrator,
			status,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := archive.New(dataDir, slog.Default())
	snap, err := st.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("job: %s\n", snap.Meta.JobID)
	fmt.Printf("init: %s  resolution: %d  samples: %d\n\n", snap.Meta.Init, snap.Meta.Resolution, len(snap.Mass))

	if len(snap.Mass) > 1 {
		fmt.Println(asciigraph.Plot(snap.Mass,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("mean |psi|^2 vs time"),
		))
		fmt.Println()
	}

	rho := snap.Psi.Density()
	if rho.Rank() == 2 {
		rows, cols := rho.Dims[0], rho.Dims[1]
		r := rows / 2
		fmt.Println(asciigraph.Plot(rho.Data[r*cols:(r+1)*cols],
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption("final density, centre row"),
		))
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := archive.New(dataDir, slog.Default())
	snap, err := st.Load(args[0])
	if err != nil {
		return err
	}

	rho := snap.Psi.Density()
	rays, err := analysis.Rays(rho.Dims, rho.Data)
	if err != nil {
		return err
	}
	targets := analysis.LogPrimeTargets()

	fmt.Printf("job: %s\n\n", snap.Meta.JobID)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RAY\tLEN\tPEAKS\tSSE")
	for i, ray := range rays {
		spec := analysis.HannSpectrum(ray)
		peaks := 0
		if len(spec) > 0 {
			peaks = len(analysis.FindPeaks(spec, analysis.PeakFraction*floats.Max(spec)))
		}
		if sse, ok := analysis.RaySSE(ray, targets); ok {
			fmt.Fprintf(w, "%d\t%d\t%d\t%.6g\n", i, len(ray), peaks, sse)
		} else {
			fmt.Fprintf(w, "%d\t%d\t%d\t-\n", i, len(ray), peaks)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nspectral fidelity: %.6g\n", analysis.SpectralFidelity(rays))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := archive.New(dataDir, slog.Default())
	snap, err := st.Load(args[0])
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		return archive.ExportJSON(os.Stdout, snap)
	case "density":
		rho := snap.Psi.Density()
		if rho.Rank() != 2 {
			return fmt.Errorf("density export needs a 2-d field, got rank %d", rho.Rank())
		}
		theme := viz.GetTheme(themeName)
		ramp, err := theme.Ramp()
		if err != nil {
			return err
		}
		_, err = fmt.Println(export.DensitySVG(rho.Data, rho.Dims[0], rho.Dims[1], 8, ramp))
		return err
	case "mass":
		svg := export.SeriesSVG(snap.Times, snap.Mass, 640, 240, string(viz.GetTheme(themeName).Primary))
		if svg == "" {
			return fmt.Errorf("job %s has fewer than two finite mass samples", args[0])
		}
		_, err = fmt.Println(svg)
		return err
	}
	return fmt.Errorf("unknown export format %q (json, density, mass)", exportFormat)
}

func warmupKernels(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	solver, err := geometry.NewSolver[complex128](cfg.Physics.SpatialResolution, cfg.GeometryPolicy(), nil)
	if err != nil {
		return err
	}

	shape := automation.Shape(cfg)
	cold, err := solver.Warmup(shape)
	if err != nil {
		return err
	}
	warm, err := solver.Warmup(shape)
	if err != nil {
		return err
	}
	stats := solver.Cache().Stats()
	fmt.Printf("backend: %s (%d workers)\n", solver.Cache().Backend().Name(), solver.Cache().Backend().Workers())
	fmt.Printf("kernel %dx%d: build %v, cached %v\n", shape.Rows, shape.Cols, cold, warm)
	fmt.Printf("cache: %d hits, %d misses, %d builds\n", stats.Hits, stats.Misses, stats.Builds)
	return nil
}

func benchSolver(cmd *cobra.Command, args []string) error {
	resolutions := []int{16, 32, 64, 128}
	cache := compute.NewCache(nil)

	fmt.Printf("benchmarking %s on %s\n\n", integratorName, cache.Backend().Name())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GRID\tWARMUP\tSTEPS\tTIME\tSTEPS/SEC")

	for _, n := range resolutions {
		cfg := config.DefaultConfig()
		cfg.Physics.SpatialResolution = n
		cfg.Run.Integrator = integratorName
		s, err := automation.NewSimulator(cfg, cache, slog.Default())
		if err != nil {
			return err
		}
		shape := automation.Shape(cfg)
		warmup, err := s.Solver().Warmup(shape)
		if err != nil {
			return err
		}
		psi0, err := sim.InitialField("wave", shape, 0)
		if err != nil {
			return err
		}

		st := s.Start(psi0, grid.Scalar{})
		start := time.Now()
		for i := 0; i < benchSteps; i++ {
			if st, err = s.Advance(st, cfg.Run.Dt); err != nil {
				return err
			}
		}
		elapsed := time.Since(start)

		fmt.Fprintf(w, "%dx%d\t%v\t%d\t%v\t%.1f\n",
			n, n, warmup, benchSteps, elapsed, float64(benchSteps)/elapsed.Seconds())
	}
	return w.Flush()
}

func buildLive(name string) (viz.Model, error) {
	cfg := config.GetPreset(name)
	if cfg == nil {
		return viz.Model{}, fmt.Errorf("unknown preset: %s", name)
	}
	// Keep the TUI logger quiet; it would tear the alt screen.
	s, err := automation.NewSimulator(cfg, nil, slog.New(slog.DiscardHandler))
	if err != nil {
		return viz.Model{}, err
	}
	psi0, err := sim.InitialField(cfg.Run.Init, automation.Shape(cfg), cfg.Run.Seed)
	if err != nil {
		return viz.Model{}, err
	}
	return viz.NewModel(s, s.Start(psi0, grid.Scalar{}), cfg.Run.Dt, cfg.Run.Steps, name), nil
}

func watchRun(cmd *cobra.Command, args []string) error {
	viz.SetTheme(themeName)

	if preset != "" {
		m, err := buildLive(preset)
		if err != nil {
			return err
		}
		return viz.Run(m)
	}

	names := config.ListPresets()
	describe := make(map[string]string, len(names))
	for _, name := range names {
		describe[name] = config.Presets[name].Description
	}
	return viz.Run(viz.NewPicker(names, describe, buildLive))
}

func sweepParams(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if len(sweepSpecs) == 0 {
		return fmt.Errorf("at least one --param name=values is required (tunable: %s)", strings.Join(automation.Tunable, ", "))
	}

	names := make([]string, 0, len(sweepSpecs))
	ranges := make([][]float64, 0, len(sweepSpecs))
	for _, spec := range sweepSpecs {
		name, values, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("bad --param %q, want name=values", spec)
		}
		if err := automation.SetParam(config.DefaultConfig(), name, 0); err != nil {
			return err
		}
		r, err := optim.ParseRange(values)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, r)
	}
	search, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	quietLog := slog.New(slog.DiscardHandler)
	objective := automation.FidelityObjective(cfg, compute.NewCache(nil), quietLog)
	done := 0
	progress := func(ctx context.Context, p map[string]float64) (float64, error) {
		done++
		slog.Info("sweep", "point", done, "of", search.Size(), "params", p)
		return objective(ctx, p)
	}

	best, trials, err := search.Search(ctx, progress)
	if err != nil && !errors.Is(err, optim.ErrNoFinite) {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\tSSE")
	for _, tr := range trials {
		for _, name := range names {
			fmt.Fprintf(w, "%.4g\t", tr.Params[name])
		}
		if tr.Err != nil {
			fmt.Fprintf(w, "%v\n", tr.Err)
		} else {
			fmt.Fprintf(w, "%.6g\n", tr.Score)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if best.Params == nil {
		return optim.ErrNoFinite
	}
	fmt.Printf("\nbest: %v sse=%.6g\n", best.Params, best.Score)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	outcomes, err := automation.RunScenario(ctx, scenario, base, slog.Default())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tJOB\tSTEPS\tMASS\tSTATUS")
	for _, o := range outcomes {
		status := "ok"
		if o.Diverged {
			status = "diverged"
		}
		if o.Record != nil {
			status = fmt.Sprintf("%s (%d)", o.Record.ValidationStatus, o.Record.SentinelCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.6f\t%s\n", o.Step, o.JobID, o.Result.StepsTaken, o.Result.Metrics["mass"], status)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
}
