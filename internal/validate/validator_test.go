package validate

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/sdgsim/internal/analysis"
	"github.com/san-kum/sdgsim/internal/archive"
	"github.com/san-kum/sdgsim/internal/geometry"
	"github.com/san-kum/sdgsim/internal/grid"
	"github.com/san-kum/sdgsim/internal/integrators"
	"github.com/san-kum/sdgsim/internal/sim"
	"gonum.org/v1/gonum/stat"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeArchive(dataDir, job string, psi *archive.ComplexArray, metric *archive.RealArray) {
	dir := archive.New(dataDir, quiet).Dir(job)
	Expect(os.MkdirAll(dir, 0755)).To(Succeed())
	if psi != nil {
		f, err := os.Create(filepath.Join(dir, archive.PsiFile))
		Expect(err).NotTo(HaveOccurred())
		Expect(archive.WriteComplex(f, *psi)).To(Succeed())
		Expect(f.Close()).To(Succeed())
	}
	if metric != nil {
		f, err := os.Create(filepath.Join(dir, archive.MetricFile))
		Expect(err).NotTo(HaveOccurred())
		Expect(archive.WriteReal(f, *metric)).To(Succeed())
		Expect(f.Close()).To(Succeed())
	}
}

// fromDensity builds psi = sqrt(rho) so that |psi|^2 reproduces rho.
func fromDensity(dims []int, rho func(i int) float64) *archive.ComplexArray {
	n := 1
	for _, d := range dims {
		n *= d
	}
	a := &archive.ComplexArray{Dims: dims, Data: make([]complex128, n)}
	for i := range a.Data {
		a.Data[i] = complex(math.Sqrt(rho(i)), 0)
	}
	return a
}

func rowWave(cols int) func(i int) float64 {
	return func(i int) float64 {
		r, c := i/cols, i%cols
		return 2 + math.Cos(2*math.Pi*4*float64(c)/float64(cols)) + 0.5*math.Cos(2*math.Pi*12*float64(r)/float64(cols))
	}
}

var _ = Describe("Validator", func() {
	var (
		opts Options
		v    *Validator
	)

	BeforeEach(func() {
		root := GinkgoT().TempDir()
		opts = DefaultOptions()
		opts.DataDir = filepath.Join(root, "data")
		opts.ProvenanceDir = filepath.Join(root, "prov")
		v = New(opts, quiet)
	})

	readBack := func(job string) *Record {
		rec, err := ReadRecord(v.ProvenancePath(job))
		Expect(err).NotTo(HaveOccurred())
		return rec
	}

	Context("when the archive cannot be used", func() {
		It("records a CRASH for a missing archive", func() {
			rec, err := v.Run("ghost")
			Expect(err).NotTo(HaveOccurred())

			Expect(rec.ValidationStatus).To(Equal(StatusCrash))
			Expect(rec.SentinelCode).To(Equal(999))
			Expect(rec.Error).To(ContainSubstring("not found"))
			Expect(rec.Traceback).NotTo(BeEmpty())
			Expect(rec.Metrics).To(BeEmpty())

			Expect(readBack("ghost")).To(Equal(rec))
		})

		It("records a CRASH when final_psi is missing", func() {
			writeArchive(opts.DataDir, "hollow", nil, nil)

			rec, err := v.Run("hollow")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ValidationStatus).To(Equal(StatusCrash))
			Expect(rec.Error).To(ContainSubstring("final_psi missing"))
		})

		It("records a CRASH for a field it cannot sample", func() {
			writeArchive(opts.DataDir, "line", fromDensity([]int{16}, func(int) float64 { return 1 }), nil)

			rec, err := v.Run("line")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ValidationStatus).To(Equal(StatusCrash))
			Expect(rec.Error).To(ContainSubstring("rank"))
		})

		It("turns an analysis panic into a CRASH", func() {
			writeArchive(opts.DataDir, "boom", fromDensity([]int{4, 4}, func(int) float64 { return 1 }), nil)
			v.analyze = func([]int, []float64) (float64, error) { panic("index out of range") }

			rec, err := v.Run("boom")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ValidationStatus).To(Equal(StatusCrash))
			Expect(rec.SentinelCode).To(Equal(999))
			Expect(rec.Error).To(ContainSubstring("index out of range"))
			Expect(rec.Traceback).To(ContainSubstring("goroutine"))
		})
	})

	Context("when the density has diverged", func() {
		DescribeTable("records DIVERGENCE with the maximum penalty",
			func(rho func(i int) float64) {
				writeArchive(opts.DataDir, "blowup", fromDensity([]int{8, 8}, rho), nil)

				rec, err := v.Run("blowup")
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.ValidationStatus).To(Equal(StatusDivergence))
				Expect(rec.SentinelCode).To(Equal(1002))
				Expect(rec.Metrics).To(Equal(map[string]float64{"log_prime_sse": 1000.0}))
				Expect(rec.Error).To(BeEmpty())
			},
			Entry("NaN anywhere", func(i int) float64 {
				if i == 17 {
					return math.NaN()
				}
				return 1
			}),
			Entry("density above 1e6", func(i int) float64 {
				if i == 3 {
					return 4e6
				}
				return 1
			}),
			Entry("infinite density", func(int) float64 { return math.Inf(1) }),
		)

		It("treats a non-finite stored metric as divergence", func() {
			metric := &archive.RealArray{Dims: []int{4, 4, 2, 2}, Data: make([]float64, 64)}
			metric.Data[5] = math.Inf(1)
			writeArchive(opts.DataDir, "metric", fromDensity([]int{2, 2}, func(int) float64 { return 1 }), metric)

			rec, err := v.Run("metric")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ValidationStatus).To(Equal(StatusDivergence))
		})

		It("does not flag a density exactly at the threshold", func() {
			writeArchive(opts.DataDir, "edge", fromDensity([]int{8, 8}, func(int) float64 { return 1e6 }), nil)

			rec, err := v.Run("edge")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ValidationStatus).To(Equal(StatusPass))
		})
	})

	Context("when the archive is healthy", func() {
		It("reports the spectral SSE and the metric variance", func() {
			psi := fromDensity([]int{64, 64}, rowWave(64))
			metric := &archive.RealArray{Dims: []int{4, 4, 1, 2}, Data: make([]float64, 32)}
			for i := range metric.Data {
				metric.Data[i] = float64(i % 5)
			}
			writeArchive(opts.DataDir, "good", psi, metric)

			rec, err := v.Run("good")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ValidationStatus).To(Equal(StatusPass))
			Expect(rec.SentinelCode).To(BeZero())

			rho := psi.Density()
			rays, err := analysis.Rays(rho.Dims, rho.Data)
			Expect(err).NotTo(HaveOccurred())
			Expect(rays).To(HaveLen(3))
			Expect(rec.Metrics).To(HaveKeyWithValue("log_prime_sse", analysis.SpectralFidelity(rays)))
			Expect(rec.Metrics).To(HaveKeyWithValue("h_norm", stat.PopVariance(metric.Data, nil)))
		})

		It("reports h_norm 0 when no metric was stored", func() {
			writeArchive(opts.DataDir, "bare", fromDensity([]int{16, 16}, rowWave(16)), nil)

			rec, err := v.Run("bare")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ValidationStatus).To(Equal(StatusPass))
			Expect(rec.Metrics).To(HaveKeyWithValue("h_norm", 0.0))
		})

		It("samples rank-3 fields along four rays", func() {
			writeArchive(opts.DataDir, "cube", fromDensity([]int{8, 8, 8}, func(i int) float64 {
				return 2 + math.Cos(2*math.Pi*2*float64(i%8)/8)
			}), nil)

			rec, err := v.Run("cube")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ValidationStatus).To(Equal(StatusPass))
			Expect(rec.Metrics).To(HaveKey("log_prime_sse"))
		})

		It("uses the configured keys and sentinels", func() {
			opts.SSEMetricKey = "sse"
			opts.StabilityMetricKey = "stab"
			opts.SentinelDivergence = 7
			v = New(opts, quiet)

			writeArchive(opts.DataDir, "a", fromDensity([]int{8, 8}, rowWave(8)), nil)
			rec, err := v.Run("a")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Metrics).To(HaveKey("sse"))
			Expect(rec.Metrics).To(HaveKey("stab"))

			writeArchive(opts.DataDir, "b", fromDensity([]int{8, 8}, func(int) float64 { return math.NaN() }), nil)
			rec, err = v.Run("b")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.SentinelCode).To(Equal(7))
		})

		It("writes sorted keys atomically", func() {
			writeArchive(opts.DataDir, "sorted", fromDensity([]int{8, 8}, rowWave(8)), nil)
			_, err := v.Run("sorted")
			Expect(err).NotTo(HaveOccurred())

			raw, err := os.ReadFile(v.ProvenancePath("sorted"))
			Expect(err).NotTo(HaveOccurred())
			doc := string(raw)
			order := []string{`"job_uuid"`, `"metrics"`, `"sentinel_code"`, `"validation_status"`}
			last := -1
			for _, key := range order {
				idx := strings.Index(doc, key)
				Expect(idx).To(BeNumerically(">", last), key)
				last = idx
			}
			Expect(doc).NotTo(ContainSubstring(`"error"`))
			Expect(v.ProvenancePath("sorted") + ".tmp").NotTo(BeAnExistingFile())
		})
	})

	It("validates a run archived by the simulator", func() {
		solver, err := geometry.NewSolver[complex128](16, geometry.DefaultPolicy(), nil)
		Expect(err).NotTo(HaveOccurred())
		prm := geometry.Params{Kappa: 1, Eta: 1, Alpha: 0.5, RhoVac: 1, Epsilon: 0.01}
		s := sim.New(solver, integrators.NewRK4(), prm, quiet)

		psi0, err := sim.InitialField("uniform", grid.Shape{Rows: 16, Cols: 16}, 0)
		Expect(err).NotTo(HaveOccurred())
		result, err := s.Run(context.Background(), psi0, grid.Scalar{}, sim.Config{Dt: 1e-3, Steps: 3, ValidateState: true})
		Expect(err).NotTo(HaveOccurred())

		store := archive.New(opts.DataDir, quiet)
		Expect(store.Save(archive.RunMetadata{JobID: "e2e"}, result)).To(Succeed())

		rec, err := v.Run("e2e")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.ValidationStatus).To(Equal(StatusPass))
		// A flat density has no spectral peaks.
		Expect(rec.Metrics).To(HaveKeyWithValue("log_prime_sse", analysis.NoPeaksPenalty))
		Expect(rec.Metrics["h_norm"]).To(BeNumerically(">", 0))
	})
})
