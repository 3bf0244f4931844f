package archive

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/sdgsim/internal/geometry"
	"github.com/san-kum/sdgsim/internal/sim"
)

const (
	DirPrefix    = "rho_history_"
	MetadataFile = "metadata.json"
	PsiFile      = "final_psi.csv"
	MetricFile   = "final_g_mu_nu.csv"
	HistoryFile  = "history.csv"
)

var (
	ErrNotFound     = errors.New("archive: not found")
	ErrMissingEntry = errors.New("archive: final_psi missing")
)

type Store struct {
	baseDir string
	logger  *slog.Logger
}

func New(baseDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{baseDir: baseDir, logger: logger}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) BaseDir() string { return s.baseDir }

// Dir is the archive directory for job.
func (s *Store) Dir(job string) string {
	return filepath.Join(s.baseDir, DirPrefix+job)
}

type RunMetadata struct {
	JobID      string             `json:"job_uuid"`
	Timestamp  time.Time          `json:"timestamp"`
	Preset     string             `json:"preset,omitempty"`
	Init       string             `json:"init"`
	Seed       int64              `json:"seed"`
	Resolution int                `json:"spatial_resolution"`
	Dt         float64            `json:"dt"`
	Steps      int                `json:"steps"`
	StepsTaken int                `json:"steps_taken"`
	Integrator string             `json:"integrator"`
	Physics    geometry.Params    `json:"physics"`
	Metrics    map[string]float64 `json:"metrics"`
	// NonFinite names metrics dropped from Metrics because JSON cannot
	// carry NaN or Inf.
	NonFinite []string `json:"non_finite_metrics,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Snapshot is what Load reads back. Metric is nil when the run never
// produced a geometry.
type Snapshot struct {
	Meta   *RunMetadata
	Psi    ComplexArray
	Metric *RealArray
	Times  []float64
	Mass   []float64
}

// Save writes the final field, the final metric when present and the mass
// history of result under job's directory.
func (s *Store) Save(meta RunMetadata, result *sim.Result) error {
	dir := s.Dir(meta.JobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.StepsTaken = result.StepsTaken
	if meta.Metrics == nil {
		meta.Metrics = result.Metrics
	}
	meta.Metrics, meta.NonFinite = finiteMetrics(meta.Metrics)

	if err := writeFile(filepath.Join(dir, PsiFile), func(f *os.File) error {
		return WriteComplex(f, FieldArray(result.Final.Psi))
	}); err != nil {
		return err
	}

	if g := result.Final.Geometry; g != nil && g.Metric != nil {
		if err := writeFile(filepath.Join(dir, MetricFile), func(f *os.File) error {
			return WriteReal(f, TensorArray(g.Metric))
		}); err != nil {
			return err
		}
	}

	if err := writeFile(filepath.Join(dir, HistoryFile), func(f *os.File) error {
		return writeHistory(f, result.Times, result.Mass)
	}); err != nil {
		return err
	}

	if err := writeFile(filepath.Join(dir, MetadataFile), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return err
	}

	s.logger.Debug("archive saved", "job", meta.JobID, "dir", dir)
	return nil
}

func finiteMetrics(in map[string]float64) (map[string]float64, []string) {
	out := make(map[string]float64, len(in))
	var dropped []string
	for k, v := range in {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			dropped = append(dropped, k)
			continue
		}
		out[k] = v
	}
	sort.Strings(dropped)
	return out, dropped
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeHistory(f *os.File, times, mass []float64) error {
	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "mass"}); err != nil {
		return err
	}
	for i := range times {
		m := 0.0
		if i < len(mass) {
			m = mass[i]
		}
		if err := w.Write([]string{formatFloat(times[i]), formatFloat(m)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readHistory(path string) ([]float64, []float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return []float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	mass := make([]float64, 0, len(records)-1)
	for _, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		m, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}
		times = append(times, t)
		mass = append(mass, m)
	}
	return times, mass, nil
}

// Load reads job back. A missing directory is ErrNotFound; a directory
// without final_psi is ErrMissingEntry. Metadata and history are optional.
func (s *Store) Load(job string) (*Snapshot, error) {
	dir := s.Dir(job)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, err
	}

	psiFile, err := os.Open(filepath.Join(dir, PsiFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingEntry, dir)
		}
		return nil, err
	}
	defer psiFile.Close()

	snap := &Snapshot{}
	if snap.Psi, err = ReadComplex(psiFile); err != nil {
		return nil, fmt.Errorf("%s: %w", PsiFile, err)
	}

	if f, err := os.Open(filepath.Join(dir, MetricFile)); err == nil {
		defer f.Close()
		g, err := ReadReal(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", MetricFile, err)
		}
		snap.Metric = &g
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if meta, err := s.LoadMetadata(job); err == nil {
		snap.Meta = meta
	}
	if times, mass, err := readHistory(filepath.Join(dir, HistoryFile)); err == nil {
		snap.Times, snap.Mass = times, mass
	}
	return snap, nil
}

func (s *Store) LoadMetadata(job string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(job), MetadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, job)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// List returns the metadata of every archived run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), DirPrefix) {
			continue
		}
		meta, err := s.LoadMetadata(strings.TrimPrefix(entry.Name(), DirPrefix))
		if err != nil {
			s.logger.Debug("skipping archive", "dir", entry.Name(), "err", err)
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}
