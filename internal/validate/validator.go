package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/san-kum/sdgsim/internal/analysis"
	"github.com/san-kum/sdgsim/internal/archive"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type Status string

const (
	StatusPass       Status = "PASS"
	StatusDivergence Status = "DIVERGENCE"
	StatusCrash      Status = "CRASH"
)

// DivergencePenalty is the SSE recorded for a diverged run.
const DivergencePenalty = 1000.0

var ErrPanic = errors.New("validate: analysis panicked")

// Record is the provenance document. Fields are declared in key order so
// the encoded keys come out sorted.
type Record struct {
	Error            string             `json:"error,omitempty"`
	JobUUID          string             `json:"job_uuid"`
	Metrics          map[string]float64 `json:"metrics"`
	SentinelCode     int                `json:"sentinel_code"`
	Traceback        string             `json:"traceback,omitempty"`
	ValidationStatus Status             `json:"validation_status"`
}

type Options struct {
	DataDir             string
	ProvenanceDir       string
	SSEMetricKey        string
	StabilityMetricKey  string
	SentinelFailure     int
	SentinelDivergence  int
	DivergenceThreshold float64
}

func DefaultOptions() Options {
	return Options{
		DataDir:             "simulation_data",
		ProvenanceDir:       "provenance_reports",
		SSEMetricKey:        "log_prime_sse",
		StabilityMetricKey:  "h_norm",
		SentinelFailure:     999,
		SentinelDivergence:  1002,
		DivergenceThreshold: 1e6,
	}
}

// Validator re-derives a run's quality metrics from its archive alone and
// writes one provenance record per job.
type Validator struct {
	opts    Options
	store   *archive.Store
	logger  *slog.Logger
	analyze func(dims []int, rho []float64) (float64, error)
}

func New(opts Options, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		opts:    opts,
		store:   archive.New(opts.DataDir, logger),
		logger:  logger,
		analyze: spectralSSE,
	}
}

func spectralSSE(dims []int, rho []float64) (float64, error) {
	rays, err := analysis.Rays(dims, rho)
	if err != nil {
		return 0, err
	}
	return analysis.SpectralFidelity(rays), nil
}

func (v *Validator) ProvenancePath(job string) string {
	return filepath.Join(v.opts.ProvenanceDir, fmt.Sprintf("provenance_%s.json", job))
}

// Run validates job and writes its record. Analysis failures become a
// CRASH record rather than an error; the error return is reserved for
// failing to write the record itself.
func (v *Validator) Run(job string) (*Record, error) {
	rec := &Record{
		JobUUID:          job,
		Metrics:          map[string]float64{},
		ValidationStatus: StatusPass,
	}

	if trace, err := v.evaluate(job, rec); err != nil {
		v.logger.Error("validation crashed", "job", job, "err", err)
		rec.Metrics = map[string]float64{}
		rec.SentinelCode = v.opts.SentinelFailure
		rec.ValidationStatus = StatusCrash
		rec.Error = err.Error()
		rec.Traceback = trace
	}

	path := v.ProvenancePath(job)
	if err := writeAtomic(path, rec); err != nil {
		return rec, err
	}
	v.logger.Info("provenance generated", "path", path, "sentinel", rec.SentinelCode, "status", rec.ValidationStatus)
	return rec, nil
}

func (v *Validator) evaluate(job string, rec *Record) (trace string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			trace = string(debug.Stack())
		}
	}()

	snap, err := v.store.Load(job)
	if err != nil {
		return string(debug.Stack()), err
	}

	rho := snap.Psi.Density()
	hNorm := 0.0
	if snap.Metric != nil && len(snap.Metric.Data) > 0 {
		hNorm = stat.PopVariance(snap.Metric.Data, nil)
	}

	// A metric that cannot be summarised finitely came from a blown-up
	// density and is classified the same way.
	if diverged(rho.Data, v.opts.DivergenceThreshold) || math.IsNaN(hNorm) || math.IsInf(hNorm, 0) {
		rec.SentinelCode = v.opts.SentinelDivergence
		rec.ValidationStatus = StatusDivergence
		rec.Metrics[v.opts.SSEMetricKey] = DivergencePenalty
		return "", nil
	}

	sse, err := v.analyze(rho.Dims, rho.Data)
	if err != nil {
		return string(debug.Stack()), err
	}

	rec.Metrics[v.opts.SSEMetricKey] = sse
	rec.Metrics[v.opts.StabilityMetricKey] = hNorm
	return "", nil
}

func diverged(rho []float64, threshold float64) bool {
	if len(rho) == 0 {
		return false
	}
	for _, x := range rho {
		if math.IsNaN(x) {
			return true
		}
	}
	return floats.Max(rho) > threshold
}

func writeAtomic(path string, rec *Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadRecord loads a provenance record written by Run.
func ReadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
