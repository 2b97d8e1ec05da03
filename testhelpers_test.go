package algopulse

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/cwbudde/algo-pulse/internal/monitoring"
)

// Shared test helper functions used across multiple test files

func init() {
	monitoring.SetLogger(nil)
}

func assertApproxComplex64f(t *testing.T, got, want complex64, tol float64, format string, args ...any) {
	t.Helper()

	diff := cmplx.Abs(complex128(got) - complex128(want))
	if diff > tol {
		t.Fatalf(format+": got %v want %v (diff=%v)", append(args, got, want, diff)...)
	}
}

func randomSampleTensor(t *testing.T, sets, cols, bins int, seed uint64) *SampleTensor {
	t.Helper()

	s, err := NewSampleTensor(sets, cols, bins)
	if err != nil {
		t.Fatalf("NewSampleTensor failed: %v", err)
	}

	rng := rand.New(rand.NewPCG(seed, 0xdecade))
	for i := range s.Data {
		s.Data[i] = complex(float32(rng.NormFloat64()), float32(rng.NormFloat64()))
	}

	return s
}

// referenceDecode computes the full decode of one pulse at one row in double
// precision with gonum's FFT.
func referenceDecode(series []complex64, code PhaseCode, row, size int) (spectrum []complex128, peak float64) {
	in := make([]complex128, size)
	for k := 0; k < size && k < len(code) && row+k < len(series); k++ {
		in[k] = complex128(series[row+k]) * complex(float64(code[k]), 0)
	}

	spectrum = fourier.NewCmplxFFT(size).Coefficients(nil, in)

	for _, v := range spectrum {
		peak = math.Max(peak, cmplx.Abs(v))
	}

	return spectrum, peak / float64(size)
}
