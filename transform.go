package algopulse

import (
	"fmt"
	"strings"
	"sync"

	algofft "github.com/cwbudde/algo-fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Engine selects the FFT library behind a Transform.
type Engine uint8

const (
	// EngineAlgoFFT uses algo-fft single precision plans.
	EngineAlgoFFT Engine = iota
	// EngineGonum uses gonum's complex FFT in double precision and rounds
	// the result to single precision.
	EngineGonum
)

func (e Engine) String() string {
	switch e {
	case EngineAlgoFFT:
		return "algofft"
	case EngineGonum:
		return "gonum"
	default:
		return fmt.Sprintf("Engine(%d)", uint8(e))
	}
}

// ParseEngine maps an engine name (as printed by String) to its Engine.
func ParseEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "algofft", "algo-fft":
		return EngineAlgoFFT, nil
	case "gonum":
		return EngineGonum, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// Transform is an unnormalized forward complex DFT of fixed length.
// A Transform is not safe for concurrent use.
type Transform interface {
	Len() int
	// Forward transforms data in place. len(data) must equal Len().
	Forward(data []complex64) error
}

// planMu serializes plan creation and release across all goroutines.
// Executing a plan does not take it.
var planMu sync.Mutex

// NewTransform creates an n-point transform backed by engine.
func NewTransform(engine Engine, n int) (Transform, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTransformSize, n)
	}

	planMu.Lock()
	defer planMu.Unlock()

	switch engine {
	case EngineAlgoFFT:
		plan, err := algofft.NewPlanT[complex64](n)
		if err != nil {
			return nil, fmt.Errorf("algofft plan for size %d: %w", n, err)
		}

		return &algoTransform{plan: plan, out: make([]complex64, n)}, nil
	case EngineGonum:
		return &gonumTransform{
			fft: fourier.NewCmplxFFT(n),
			in:  make([]complex128, n),
			out: make([]complex128, n),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, engine)
	}
}

// ReleaseTransform drops the plan's resources under the planning lock.
func ReleaseTransform(t Transform) {
	planMu.Lock()
	defer planMu.Unlock()

	switch t := t.(type) {
	case *algoTransform:
		t.plan = nil
		t.out = nil
	case *gonumTransform:
		t.fft = nil
		t.in = nil
		t.out = nil
	}
}

// ForwardBatch transforms every consecutive Len()-sized series in data.
func ForwardBatch(t Transform, data []complex64) error {
	n := t.Len()
	if n < 1 || len(data)%n != 0 {
		return fmt.Errorf("%w: batch of %d samples for transform size %d",
			ErrDimensionMismatch, len(data), n)
	}

	for start := 0; start < len(data); start += n {
		if err := t.Forward(data[start : start+n]); err != nil {
			return err
		}
	}

	return nil
}

type algoTransform struct {
	plan *algofft.Plan[complex64]
	out  []complex64
}

func (t *algoTransform) Len() int {
	return len(t.out)
}

func (t *algoTransform) Forward(data []complex64) error {
	if len(data) != len(t.out) {
		return fmt.Errorf("%w: series of %d for transform size %d",
			ErrDimensionMismatch, len(data), len(t.out))
	}

	if err := t.plan.Forward(t.out, data); err != nil {
		return err
	}

	copy(data, t.out)

	return nil
}

type gonumTransform struct {
	fft     *fourier.CmplxFFT
	in, out []complex128
}

func (t *gonumTransform) Len() int {
	return len(t.in)
}

func (t *gonumTransform) Forward(data []complex64) error {
	if len(data) != len(t.in) {
		return fmt.Errorf("%w: series of %d for transform size %d",
			ErrDimensionMismatch, len(data), len(t.in))
	}

	for i, v := range data {
		t.in[i] = complex128(v)
	}

	t.out = t.fft.Coefficients(t.out, t.in)

	for i, v := range t.out {
		data[i] = complex64(v)
	}

	return nil
}
