package geometry

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/san-kum/sdgsim/internal/compute"
	"github.com/san-kum/sdgsim/internal/grid"
)

var testShape = grid.Shape{Rows: 16, Cols: 16}

func smoothField(s grid.Shape) grid.Field[complex128] {
	psi := grid.NewField[complex128](s)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			x := 2 * math.Pi * float64(c) / float64(s.Cols)
			y := 2 * math.Pi * float64(r) / float64(s.Rows)
			amp := 1 + 0.3*math.Sin(x)*math.Cos(y)
			psi.Set(r, c, cmplx.Rect(amp, 0.4*math.Sin(y)))
		}
	}
	return psi
}

// rowField varies along axis 0 only. Relaxation of such inputs stays in
// the modes that weighted Jacobi damps for every omega below 2.
func rowField(s grid.Shape) grid.Field[complex128] {
	psi := grid.NewField[complex128](s)
	for r := 0; r < s.Rows; r++ {
		y := 2 * math.Pi * float64(r) / float64(s.Rows)
		for c := 0; c < s.Cols; c++ {
			psi.Set(r, c, cmplx.Rect(1+0.2*math.Cos(y), 0.3*math.Sin(y)))
		}
	}
	return psi
}

func uniformMetric(s grid.Shape, scale float64) *grid.Tensor4[float64] {
	_, g := Assemble(grid.ConstScalar(s, 1), 1, scale, DefaultPolicy())
	return g
}

func TestStressEnergy_Deterministic(t *testing.T) {
	psi := smoothField(testShape)
	a := StressEnergy(psi, 1.3, 0.7, DefaultPolicy(), nil)
	b := StressEnergy(psi, 1.3, 0.7, DefaultPolicy(), nil)

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for n := range a.C[i][j] {
				if a.C[i][j][n] != b.C[i][j][n] {
					t.Fatalf("component [%d][%d] cell %d differs: %v vs %v", i, j, n, a.C[i][j][n], b.C[i][j][n])
				}
			}
		}
	}
}

func TestStressEnergy_OnlyT00Populated(t *testing.T) {
	psi := smoothField(testShape)
	tensor := StressEnergy(psi, 1, 1, DefaultPolicy(), nil)

	nonzero := false
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for _, v := range tensor.C[i][j] {
				if i == 0 && j == 0 {
					if v != 0 {
						nonzero = true
					}
					continue
				}
				if v != 0 {
					t.Fatalf("component [%d][%d] = %v, want exactly 0", i, j, v)
				}
			}
		}
	}
	if !nonzero {
		t.Error("expected a non-zero T00 for a modulated field")
	}
}

func TestStressEnergy_ConstantFieldIsZero(t *testing.T) {
	psi := grid.NewField[complex128](testShape)
	psi.Fill(1)
	tensor := StressEnergy(psi, 1, 1, DefaultPolicy(), nil)
	for n, v := range tensor.C[0][0] {
		if v != 0 {
			t.Fatalf("T00[%d] = %v, want 0", n, v)
		}
	}
}

func TestStressEnergy_PhaseTerm(t *testing.T) {
	s := grid.Shape{Rows: 4, Cols: 8}
	psi := grid.NewField[complex128](s)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			psi.Set(r, c, cmplx.Exp(complex(0, 0.1*float64(c))))
		}
	}
	tensor := StressEnergy(psi, 2.0, 0, DefaultPolicy(), nil)

	// interior columns see a phase slope of 0.1 per cell
	for r := 0; r < s.Rows; r++ {
		for c := 1; c < s.Cols-1; c++ {
			got := real(tensor.C[0][0][s.Index(r, c)])
			if math.Abs(got-2.0*0.01) > 1e-12 {
				t.Errorf("T00(%d,%d) = %g, want 0.02", r, c, got)
			}
		}
	}
	// column 0 wraps onto column 7: (0.1 - 0.7)/2
	got := real(tensor.C[0][0][s.Index(0, 0)])
	if math.Abs(got-2.0*0.09) > 1e-12 {
		t.Errorf("T00(0,0) = %g, want 0.18", got)
	}
}

func TestStressEnergy_AmplitudeTerm(t *testing.T) {
	s := grid.Shape{Rows: 8, Cols: 8}
	psi := grid.NewField[complex128](s)
	amp := func(c int) float64 { return 2 + math.Sin(2*math.Pi*float64(c)/8) }
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			psi.Set(r, c, complex(amp(c), 0))
		}
	}
	tensor := StressEnergy(psi, 5, 0.5, DefaultPolicy(), nil)
	for c := 0; c < s.Cols; c++ {
		d := (amp(c+1) - amp(c-1+8)) / 2
		want := 0.5 * d * d
		got := real(tensor.C[0][0][s.Index(3, c)])
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("T00(3,%d) = %g, want %g", c, got, want)
		}
	}
}

func TestStressEnergy_ExtendedAndStandardPrecision(t *testing.T) {
	psi64 := grid.NewField[complex64](testShape)
	psi128 := smoothField(testShape)
	for i, v := range psi128.Data {
		psi64.Data[i] = complex64(v)
	}

	var t64 *grid.Tensor4[complex64] = StressEnergy(psi64, 1, 1, DefaultPolicy(), nil)
	t128 := StressEnergy(psi128, 1, 1, DefaultPolicy(), nil)
	for n := range t128.C[0][0] {
		if math.Abs(real(complex128(t64.C[0][0][n]))-real(t128.C[0][0][n])) > 1e-5 {
			t.Fatalf("cell %d: complex64 %v vs complex128 %v", n, t64.C[0][0][n], t128.C[0][0][n])
		}
	}
}

func sinusoidGuess(s grid.Shape) grid.Scalar {
	g := grid.NewScalar(s)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			g.Set(r, c, 1+0.5*math.Sin(2*math.Pi*float64(r)/float64(s.Rows)))
		}
	}
	return g
}

func TestRelax_ZeroSourcePreservesMean(t *testing.T) {
	guess := sinusoidGuess(testShape)
	zero := grid.NewScalar(testShape)
	mean := guess.Mean()

	for _, iters := range []int{1, 2, 5, 20, DefaultRelaxIterations} {
		x := Relax(zero, guess, 1.0/16, iters, DefaultRelaxOmega, nil)
		if math.Abs(x.Mean()-mean) > 1e-12 {
			t.Errorf("after %d sweeps mean = %.15f, want %.15f", iters, x.Mean(), mean)
		}
	}
}

func TestRelax_SingleSweep(t *testing.T) {
	s := grid.Shape{Rows: 3, Cols: 3}
	guess := grid.NewScalar(s)
	for i := range guess.Data {
		guess.Data[i] = float64(i)
	}
	src := grid.ConstScalar(s, 4)
	dx := 0.5
	omega := 1.5

	x := Relax(src, guess, dx, 1, omega, nil)

	// cell (1,1) = 4; neighbours 1, 7, 3, 5
	xn := (1.0 + 7 + 3 + 5 + 4*dx*dx) / 4
	want := (1-omega)*4 + omega*xn
	if got := x.At(1, 1); math.Abs(got-want) > 1e-12 {
		t.Errorf("center = %g, want %g", got, want)
	}

	// cell (0,0) = 0; wrapped neighbours 6, 3, 2, 1
	xn = (6.0 + 3 + 2 + 1 + 4*dx*dx) / 4
	want = omega * xn
	if got := x.At(0, 0); math.Abs(got-want) > 1e-12 {
		t.Errorf("corner = %g, want %g", got, want)
	}
}

func TestRelax_DoesNotModifyGuess(t *testing.T) {
	guess := sinusoidGuess(testShape)
	before := guess.Clone()
	Relax(grid.ConstScalar(testShape, 3), guess, 0.1, 10, DefaultRelaxOmega, nil)
	for i := range guess.Data {
		if guess.Data[i] != before.Data[i] {
			t.Fatal("relaxation mutated its initial guess")
		}
	}
}

func TestRelax_ParallelMatchesSerial(t *testing.T) {
	s := grid.Shape{Rows: 64, Cols: 32}
	guess := sinusoidGuess(s)
	src := grid.ConstScalar(s, 0.25)

	key := compute.Key{Rows: s.Rows, Cols: s.Cols, Iterations: 30}
	serial := Relax(src, guess, 1.0/64, 30, DefaultRelaxOmega, compute.NewKernel(key, compute.NewSerialBackend()))
	parallel := Relax(src, guess, 1.0/64, 30, DefaultRelaxOmega, compute.NewKernel(key, compute.NewCPUBackend()))
	for i := range serial.Data {
		if serial.Data[i] != parallel.Data[i] {
			t.Fatalf("cell %d: serial %v parallel %v", i, serial.Data[i], parallel.Data[i])
		}
	}
}

func TestAssemble_VacuumGivesMinkowski(t *testing.T) {
	rhoVac := 0.8
	density, g := Assemble(grid.ConstScalar(testShape, rhoVac), 0.75, rhoVac, DefaultPolicy())

	for n := range density.Data {
		for a := 0; a < 4; a++ {
			for b := 0; b < 4; b++ {
				want := 0.0
				if a == b {
					want = MinkowskiSignature[a]
				}
				if got := g.C[a][b][n]; got != want {
					t.Fatalf("g[%d][%d] cell %d = %v, want %v", a, b, n, got, want)
				}
			}
		}
	}
	scale := ConformalScale(g, DefaultPolicy())
	if scale.Min() != 1 || scale.Max() != 1 {
		t.Errorf("scale range [%v, %v], want exactly 1", scale.Min(), scale.Max())
	}
}

func TestAssemble_ClipsAtFloor(t *testing.T) {
	rho := grid.NewScalar(grid.Shape{Rows: 2, Cols: 2})
	rho.Data = []float64{-3, 0, 1e-9, 2}
	density, g := Assemble(rho, 0.5, 1, DefaultPolicy())

	for i, v := range density.Data {
		if v < DefaultDensityFloor {
			t.Errorf("density[%d] = %g below floor", i, v)
		}
	}
	want := math.Pow(1/DefaultDensityFloor, 0.5)
	if got := g.C[1][1][0]; math.Abs(got-want) > 1e-9 {
		t.Errorf("scale at clipped cell = %g, want %g", got, want)
	}
	if rho.Data[0] != -3 {
		t.Error("Assemble modified its input")
	}
}

func TestChristoffel_UniformMetricIsFlat(t *testing.T) {
	conn := Christoffel(uniformMetric(testShape, 2), nil)

	for k := 0; k < 2; k++ {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				for n, v := range conn.Gamma[k][i][j].Data {
					if v != 0 {
						t.Fatalf("Gamma[%d][%d][%d] cell %d = %g, want 0", k, i, j, n, v)
					}
				}
			}
		}
	}
	if got := conn.Inverse[0][0].At(3, 4); math.Abs(got-0.5) > 1e-15 {
		t.Errorf("g^00 = %g, want 0.5", got)
	}
	if got := conn.Inverse[0][1].At(3, 4); got != 0 {
		t.Errorf("g^01 = %g, want 0", got)
	}
}

func TestChristoffel_ConformalGradient(t *testing.T) {
	s := grid.Shape{Rows: 4, Cols: 8}
	rho := grid.NewScalar(s)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			rho.Set(r, c, 1+0.1*float64(c))
		}
	}
	_, g := Assemble(rho, 1, 1, DefaultPolicy())
	conn := Christoffel(g, nil)
	scale := ConformalScale(g, DefaultPolicy())

	for c := 0; c < s.Cols; c++ {
		sc := scale.At(2, c)
		d := scale.At(2, c+1) - sc
		half := d / (2 * sc)

		cases := []struct {
			name    string
			k, i, j int
			want    float64
		}{
			{"G1_11", 1, 1, 1, half},
			{"G0_01", 0, 0, 1, half},
			{"G0_10", 0, 1, 0, half},
			{"G1_00", 1, 0, 0, -half},
			{"G0_00", 0, 0, 0, 0},
			{"G0_11", 0, 1, 1, 0},
			{"G1_01", 1, 0, 1, 0},
		}
		for _, tc := range cases {
			got := conn.Gamma[tc.k][tc.i][tc.j].At(2, c)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("col %d %s = %g, want %g", c, tc.name, got, tc.want)
			}
		}
	}
}

func TestVolumeElement(t *testing.T) {
	det, vol := VolumeElement(uniformMetric(testShape, 3))
	for n := range det.Data {
		if math.Abs(det.Data[n]+81) > 1e-9 {
			t.Fatalf("det = %g, want -81", det.Data[n])
		}
		if math.Abs(vol.Data[n]-9) > 1e-9 {
			t.Fatalf("volume = %g, want 9", vol.Data[n])
		}
	}
}

func TestDiffuse_FlatReduction(t *testing.T) {
	psi := smoothField(testShape)
	dx := 1.0 / 16
	scale := 2.5
	eps := 0.3

	got := CovariantDiffusion(psi, eps, uniformMetric(testShape, scale), dx, DefaultPolicy(), nil)
	lap := Laplacian(psi, dx, nil)

	coef := complex(eps*0.5, eps*0.8)
	for n := range got.Data {
		want := coef * lap.Data[n] / complex(scale, 0)
		if cmplx.Abs(got.Data[n]-want) > 1e-9*(1+cmplx.Abs(want)) {
			t.Fatalf("cell %d: got %v, want %v", n, got.Data[n], want)
		}
	}
}

func TestDiffuse_ConstantFieldIsStationary(t *testing.T) {
	psi := grid.NewField[complex128](testShape)
	psi.Fill(complex(0.6, -0.2))

	_, g := Assemble(sinusoidGuess(testShape), 0.5, 1, DefaultPolicy())
	out := CovariantDiffusion(psi, 1, g, 1.0/16, DefaultPolicy(), nil)
	for n, v := range out.Data {
		if v != 0 {
			t.Fatalf("cell %d: increment %v, want 0", n, v)
		}
	}
}

// anisotropicMetric has unequal diagonal entries and a non-zero
// off-diagonal in the spatial block, so its contracted connection does not
// vanish the way a conformal one does.
func anisotropicMetric(s grid.Shape) *grid.Tensor4[float64] {
	g := grid.NewTensor4[float64](s)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			x := 2 * math.Pi * float64(c) / float64(s.Cols)
			y := 2 * math.Pi * float64(r) / float64(s.Rows)
			n := s.Index(r, c)
			g.C[0][0][n] = -1
			g.C[1][1][n] = 1.5 + 0.3*math.Sin(x)
			g.C[2][2][n] = 2 + 0.2*math.Cos(y)
			g.C[1][2][n] = 0.1 * math.Sin(x+y)
			g.C[2][1][n] = g.C[1][2][n]
			g.C[3][3][n] = 1
		}
	}
	return g
}

// laplaceBeltramiAt evaluates the diffusion rate at one cell straight from
// the stencil definitions.
func laplaceBeltramiAt(psi grid.Field[complex128], metric *grid.Tensor4[float64], r, c int, dx float64, coef complex128) complex128 {
	s := psi.Shape
	step := [2][2]int{{1, 0}, {0, 1}}

	grad := func(ax, r, c int) complex128 {
		e := step[ax]
		return (psi.At(r+e[0], c+e[1]) - psi.At(r-e[0], c-e[1])) / complex(2*dx, 0)
	}
	gij := func(i, j, r, c int) float64 { return metric.C[i+1][j+1][s.Index(r, c)] }

	var g, inv [2][2]float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			g[i][j] = gij(i, j, r, c)
		}
	}
	det := g[0][0]*g[1][1] - g[0][1]*g[1][0]
	inv[0][0], inv[1][1] = g[1][1]/det, g[0][0]/det
	inv[0][1], inv[1][0] = -g[0][1]/det, -g[1][0]/det

	// dg[k][i][j] = g_ij(x + e_k) - g_ij(x)
	var dg [2][2][2]float64
	for k := 0; k < 2; k++ {
		e := step[k]
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				dg[k][i][j] = gij(i, j, r+e[0], c+e[1]) - g[i][j]
			}
		}
	}

	var lap, corr complex128
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			e := step[j]
			h := (grad(i, r+e[0], c+e[1]) - grad(i, r-e[0], c-e[1])) / complex(2*dx, 0)
			lap += complex(inv[i][j], 0) * h
			for k := 0; k < 2; k++ {
				gamma := 0.0
				for l := 0; l < 2; l++ {
					gamma += 0.5 * inv[k][l] * (dg[i][l][j] + dg[j][l][i] - dg[l][i][j])
				}
				corr += complex(inv[i][j]*gamma, 0) * grad(k, r, c)
			}
		}
	}
	return coef * (lap - corr)
}

func TestDiffuse_AnisotropicMetric(t *testing.T) {
	s := grid.Shape{Rows: 8, Cols: 8}
	dx := 0.125
	eps := 0.7
	psi := smoothField(s)
	g := anisotropicMetric(s)

	got := CovariantDiffusion(psi, eps, g, dx, DefaultPolicy(), nil)

	coef := complex(eps*0.5, eps*0.8)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			want := laplaceBeltramiAt(psi, g, r, c, dx, coef)
			if v := got.At(r, c); cmplx.Abs(v-want) > 1e-9*(1+cmplx.Abs(want)) {
				t.Fatalf("cell (%d,%d): got %v, want %v", r, c, v, want)
			}
		}
	}

	conn := Christoffel(g, nil)
	for k := range conn.Gamma {
		for i := range conn.Gamma[k] {
			for j := range conn.Gamma[k][i] {
				conn.Gamma[k][i][j].Fill(0)
			}
		}
	}
	flat := Diffuse(psi, eps, dx, conn, DefaultPolicy(), nil)

	diff := 0.0
	for n := range got.Data {
		diff = math.Max(diff, cmplx.Abs(got.Data[n]-flat.Data[n]))
	}
	if diff < 1e-6 {
		t.Errorf("connection term changed the rate by only %g", diff)
	}
}

func TestChristoffel_ConformalContractionVanishes(t *testing.T) {
	s := grid.Shape{Rows: 8, Cols: 8}
	rho := grid.NewScalar(s)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			rho.Set(r, c, 1+0.5*math.Sin(2*math.Pi*float64(c)/8))
		}
	}
	_, g := Assemble(rho, 1, 1, DefaultPolicy())
	conn := Christoffel(g, nil)

	for k := 0; k < 2; k++ {
		for n := 0; n < s.Len(); n++ {
			sum := 0.0
			for i := 0; i < 2; i++ {
				for j := 0; j < 2; j++ {
					sum += conn.Inverse[i][j].Data[n] * conn.Gamma[k][i][j].Data[n]
				}
			}
			if math.Abs(sum) > 1e-12 {
				t.Fatalf("g^ij Gamma^%d_ij = %g at cell %d, want 0", k, sum, n)
			}
		}
	}
}

func TestNewSolver_Validation(t *testing.T) {
	if _, err := NewSolver[complex128](0, DefaultPolicy(), nil); !errors.Is(err, ErrResolution) {
		t.Errorf("resolution 0: got %v, want ErrResolution", err)
	}
	p := DefaultPolicy()
	p.RelaxIterations = 0
	if _, err := NewSolver[complex128](32, p, nil); !errors.Is(err, ErrIterations) {
		t.Errorf("iterations 0: got %v, want ErrIterations", err)
	}
}

func TestSolver_ShapeMismatch(t *testing.T) {
	s, err := NewSolver[complex128](16, DefaultPolicy(), nil)
	if err != nil {
		t.Fatal(err)
	}
	psi := smoothField(testShape)
	rho := grid.ConstScalar(grid.Shape{Rows: 8, Cols: 16}, 1)

	_, _, err = s.Step(psi, rho, Params{Kappa: 1, Eta: 1, Alpha: 1, RhoVac: 1, Epsilon: 1})
	if !errors.Is(err, grid.ErrShapeMismatch) {
		t.Fatalf("got %v, want ErrShapeMismatch", err)
	}
	var se *grid.ShapeError
	if !errors.As(err, &se) || se.Got.Rows != 8 {
		t.Errorf("expected ShapeError with got rows 8, got %v", err)
	}
}

func TestSolver_WarmupAndCache(t *testing.T) {
	cache := compute.NewCache(compute.NewSerialBackend())
	s, err := NewSolver[complex128](16, DefaultPolicy(), cache)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Warmup(testShape); err != nil {
		t.Fatal(err)
	}
	if took, _ := s.Warmup(testShape); took != 0 {
		t.Errorf("second warmup reported %v, want 0", took)
	}

	psi := rowField(testShape)
	rho := grid.ConstScalar(testShape, 1)
	prm := Params{Kappa: 1, Eta: 1, Alpha: 0.5, RhoVac: 1, Epsilon: 0.1}
	for i := 0; i < 3; i++ {
		g, _, err := s.Step(psi, rho, prm)
		if err != nil {
			t.Fatal(err)
		}
		rho = g.Density
	}

	st := cache.Stats()
	if st.Builds != 1 {
		t.Errorf("builds = %d, want 1", st.Builds)
	}
	if st.Hits == 0 {
		t.Error("expected cache hits after warmup")
	}
}

func TestSolver_Diagnostics(t *testing.T) {
	p := DefaultPolicy()
	p.Diagnostics = true
	s, _ := NewSolver[complex128](16, p, nil)

	g, err := s.Geometry(rowField(testShape), grid.ConstScalar(testShape, 1), Params{Kappa: 1, Eta: 1, Alpha: 0.5, RhoVac: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Volume.Data) != testShape.Len() {
		t.Fatalf("volume element not populated")
	}
	scale := ConformalScale(g.Metric, p)
	for n := range g.Volume.Data {
		if math.Abs(g.Volume.Data[n]-scale.Data[n]*scale.Data[n]) > 1e-9 {
			t.Fatalf("cell %d: volume %g, want scale^2 %g", n, g.Volume.Data[n], scale.Data[n]*scale.Data[n])
		}
	}

	plain, _ := NewSolver[complex128](16, DefaultPolicy(), nil)
	g, _ = plain.Geometry(rowField(testShape), grid.ConstScalar(testShape, 1), Params{Kappa: 1, Eta: 1, Alpha: 0.5, RhoVac: 1})
	if g.Volume.Data != nil {
		t.Error("volume element computed without diagnostics")
	}
}

func BenchmarkRelax64(b *testing.B) {
	s := grid.Shape{Rows: 64, Cols: 64}
	k := compute.NewKernel(compute.Key{Rows: 64, Cols: 64, Iterations: DefaultRelaxIterations}, nil)
	guess := sinusoidGuess(s)
	src := grid.ConstScalar(s, 0.1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Relax(src, guess, 1.0/64, DefaultRelaxIterations, DefaultRelaxOmega, k)
	}
}

func BenchmarkStep64(b *testing.B) {
	s := grid.Shape{Rows: 64, Cols: 64}
	solver, _ := NewSolver[complex128](64, DefaultPolicy(), nil)
	if _, err := solver.Warmup(s); err != nil {
		b.Fatal(err)
	}
	psi := rowField(s)
	rho := grid.ConstScalar(s, 1)
	prm := Params{Kappa: 1, Eta: 1, Alpha: 0.5, RhoVac: 1, Epsilon: 0.01}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g, _, _ := solver.Step(psi, rho, prm)
		rho = g.Density
	}
}
