package geometry_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/sdgsim/internal/compute"
	"github.com/san-kum/sdgsim/internal/geometry"
	"github.com/san-kum/sdgsim/internal/grid"
)

var _ = Describe("one pipeline step", func() {
	var (
		shape  grid.Shape
		solver *geometry.Solver[complex128]
		prm    geometry.Params
	)

	BeforeEach(func() {
		shape = grid.Shape{Rows: 32, Cols: 32}
		var err error
		solver, err = geometry.NewSolver[complex128](32, geometry.DefaultPolicy(), compute.NewCache(nil))
		Expect(err).NotTo(HaveOccurred())
		prm = geometry.Params{Kappa: 1, Eta: 1, Alpha: 0.5, RhoVac: 1, Epsilon: 0.05}
	})

	Context("with a unit-magnitude, zero-phase field and a vacuum warm start", func() {
		var (
			psi  grid.Field[complex128]
			geom *geometry.Geometry
			dpsi grid.Field[complex128]
		)

		BeforeEach(func() {
			psi = grid.NewField[complex128](shape)
			psi.Fill(1)
			var err error
			geom, dpsi, err = solver.Step(psi, grid.ConstScalar(shape, prm.RhoVac), prm)
			Expect(err).NotTo(HaveOccurred())
		})

		It("has no stress-energy", func() {
			for _, v := range geom.Source.Data {
				Expect(v).To(BeZero())
			}
		})

		It("leaves the density at the vacuum value", func() {
			for _, v := range geom.Density.Data {
				Expect(v).To(BeNumerically("~", prm.RhoVac, 1e-6))
			}
		})

		It("produces a unit conformal scale", func() {
			scale := geometry.ConformalScale(geom.Metric, solver.Policy())
			for _, v := range scale.Data {
				Expect(v).To(BeNumerically("~", 1.0, 1e-6))
			}
		})

		It("matches flat-space diffusion", func() {
			flat := geometry.Laplacian(psi, solver.DX(), nil)
			coef := complex(prm.Epsilon*0.5, prm.Epsilon*0.8)
			for n := range dpsi.Data {
				Expect(dpsi.Data[n]).To(Equal(coef * flat.Data[n]))
			}
		})
	})

	Context("with a modulated field", func() {
		var psi grid.Field[complex128]

		BeforeEach(func() {
			psi = grid.NewField[complex128](shape)
			for r := 0; r < shape.Rows; r++ {
				y := 2 * math.Pi * float64(r) / float64(shape.Rows)
				for c := 0; c < shape.Cols; c++ {
					psi.Set(r, c, complex(1+0.25*math.Cos(y), 0.1*math.Sin(y)))
				}
			}
		})

		It("never builds the metric from sub-floor densities", func() {
			geom, _, err := solver.Step(psi, grid.ConstScalar(shape, -5), prm)
			Expect(err).NotTo(HaveOccurred())
			Expect(geom.Density.Min()).To(BeNumerically(">=", geometry.DefaultDensityFloor))
		})

		It("is a pure function of its inputs", func() {
			rho := grid.ConstScalar(shape, 1)
			g1, d1, err := solver.Step(psi, rho, prm)
			Expect(err).NotTo(HaveOccurred())
			g2, d2, err := solver.Step(psi, rho, prm)
			Expect(err).NotTo(HaveOccurred())

			Expect(g1.Density.Data).To(Equal(g2.Density.Data))
			Expect(d1.Data).To(Equal(d2.Data))
			Expect(rho.Data[0]).To(Equal(1.0))
		})

		It("returns an increment with the field's shape", func() {
			_, dpsi, err := solver.Step(psi, grid.ConstScalar(shape, 1), prm)
			Expect(err).NotTo(HaveOccurred())
			Expect(dpsi.Shape).To(Equal(psi.Shape))
			Expect(dpsi.IsFinite()).To(BeTrue())
		})
	})
})
