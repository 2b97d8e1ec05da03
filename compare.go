package algopulse

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Comparison summarizes the difference between two backend outputs.
// Relative error is measured against the larger peak magnitude of the two
// buffers, so near-zero elements do not inflate it.
type Comparison struct {
	MaxAbsErr  float64
	MaxRelErr  float64
	WorstIndex int
	Count      int
}

// Within reports whether the maximum relative error is at most tol.
func (c Comparison) Within(tol float64) bool {
	return c.MaxRelErr <= tol
}

func (c Comparison) String() string {
	return fmt.Sprintf("max_abs=%.3g max_rel=%.3g worst=%d n=%d", c.MaxAbsErr, c.MaxRelErr, c.WorstIndex, c.Count)
}

// CompareIntermediate diffs two intermediate buffers captured for the same
// row and stage.
func CompareIntermediate(a, b *IntermediateBuffer) (Comparison, error) {
	if err := a.validate(); err != nil {
		return Comparison{}, err
	}

	if err := b.validate(); err != nil {
		return Comparison{}, err
	}

	if a.Sets != b.Sets || a.Cols != b.Cols || a.Size != b.Size {
		return Comparison{}, fmt.Errorf("%w: comparing %dx%dx%d with %dx%dx%d",
			ErrDimensionMismatch, a.Sets, a.Cols, a.Size, b.Sets, b.Cols, b.Size)
	}

	if a.Row != b.Row {
		return Comparison{}, fmt.Errorf("%w: comparing row %d with row %d", ErrRowOutOfRange, a.Row, b.Row)
	}

	peak := 0.0
	for i := range a.Data {
		peak = math.Max(peak, cmplx.Abs(complex128(a.Data[i])))
		peak = math.Max(peak, cmplx.Abs(complex128(b.Data[i])))
	}

	cmp := Comparison{Count: len(a.Data)}
	for i := range a.Data {
		cmp.observe(i, cmplx.Abs(complex128(a.Data[i])-complex128(b.Data[i])), peak)
	}

	return cmp, nil
}

// CompareDecoded diffs two decoded tensors.
func CompareDecoded(a, b *DecodedTensor) (Comparison, error) {
	if err := a.validate(); err != nil {
		return Comparison{}, err
	}

	if err := b.validate(); err != nil {
		return Comparison{}, err
	}

	if a.Sets != b.Sets || a.Cols != b.Cols || a.Bins != b.Bins {
		return Comparison{}, fmt.Errorf("%w: comparing %dx%dx%d with %dx%dx%d",
			ErrDimensionMismatch, a.Sets, a.Cols, a.Bins, b.Sets, b.Cols, b.Bins)
	}

	peak := 0.0
	for i := range a.Data {
		peak = math.Max(peak, math.Abs(float64(a.Data[i])))
		peak = math.Max(peak, math.Abs(float64(b.Data[i])))
	}

	cmp := Comparison{Count: len(a.Data)}
	for i := range a.Data {
		cmp.observe(i, math.Abs(float64(a.Data[i])-float64(b.Data[i])), peak)
	}

	return cmp, nil
}

func (c *Comparison) observe(i int, diff, peak float64) {
	if diff <= c.MaxAbsErr {
		return
	}

	c.MaxAbsErr = diff
	c.WorstIndex = i

	if peak > 0 {
		c.MaxRelErr = diff / peak
	}
}
