package algopulse

import (
	"errors"
	"testing"
)

func TestApplyPhaseCode(t *testing.T) {
	t.Parallel()

	src := randomSampleTensor(t, 2, 3, 8, 1)
	code := PhaseCode{1, -1, 1}
	dst := NewIntermediateBuffer(2, 3, 8)

	// Garbage from a previous row must not survive.
	for i := range dst.Data {
		dst.Data[i] = 99
	}

	if err := ApplyPhaseCode(dst, src, code, 2); err != nil {
		t.Fatalf("ApplyPhaseCode failed: %v", err)
	}

	if dst.Row != 2 {
		t.Fatalf("Row = %d, want 2", dst.Row)
	}

	for set := range 2 {
		for col := range 3 {
			for k := range 8 {
				var want complex64
				if k < len(code) {
					want = src.At(set, col, 2+k) * complex(code[k], 0)
				}

				if got := dst.At(set, col, k); got != want {
					t.Fatalf("[%d][%d][%d] = %v, want %v", set, col, k, got, want)
				}
			}
		}
	}
}

func TestApplyPhaseCodeBoundaries(t *testing.T) {
	t.Parallel()

	src := randomSampleTensor(t, 1, 2, 6, 2)
	code := PhaseCode{1, 1, -1, 1}

	t.Run("k equal to code length is zero", func(t *testing.T) {
		dst := NewIntermediateBuffer(1, 2, 8)
		if err := ApplyPhaseCode(dst, src, code, 0); err != nil {
			t.Fatalf("ApplyPhaseCode failed: %v", err)
		}

		if got := dst.At(0, 1, len(code)); got != 0 {
			t.Fatalf("element k=L = %v, want 0", got)
		}

		if got, want := dst.At(0, 1, len(code)-1), src.At(0, 1, len(code)-1); got != want {
			t.Fatalf("element k=L-1 = %v, want %v", got, want)
		}
	})

	t.Run("last row", func(t *testing.T) {
		dst := NewIntermediateBuffer(1, 2, 4)
		if err := ApplyPhaseCode(dst, src, code, 5); err != nil {
			t.Fatalf("ApplyPhaseCode failed: %v", err)
		}

		for col := range 2 {
			if got, want := dst.At(0, col, 0), src.At(0, col, 5); got != want {
				t.Fatalf("col %d k=0: got %v want %v", col, got, want)
			}

			for k := 1; k < 4; k++ {
				if got := dst.At(0, col, k); got != 0 {
					t.Fatalf("col %d k=%d past the input = %v, want 0", col, k, got)
				}
			}
		}
	})

	t.Run("transform shorter than code", func(t *testing.T) {
		dst := NewIntermediateBuffer(1, 2, 2)
		if err := ApplyPhaseCode(dst, src, code, 1); err != nil {
			t.Fatalf("ApplyPhaseCode failed: %v", err)
		}

		if got, want := dst.At(0, 0, 1), src.At(0, 0, 2); got != want {
			t.Fatalf("k=1: got %v want %v", got, want)
		}
	})
}

func TestApplyPhaseCodeErrors(t *testing.T) {
	t.Parallel()

	src := randomSampleTensor(t, 2, 3, 8, 3)
	code := PhaseCode{1, -1}

	cases := []struct {
		name string
		dst  *IntermediateBuffer
		src  *SampleTensor
		row  int
		want error
	}{
		{"row past end", NewIntermediateBuffer(2, 3, 4), src, 8, ErrRowOutOfRange},
		{"negative row", NewIntermediateBuffer(2, 3, 4), src, -1, ErrRowOutOfRange},
		{"sets mismatch", NewIntermediateBuffer(1, 3, 4), src, 0, ErrDimensionMismatch},
		{"cols mismatch", NewIntermediateBuffer(2, 2, 4), src, 0, ErrDimensionMismatch},
		{"nil source", NewIntermediateBuffer(2, 3, 4), nil, 0, ErrNilTensor},
		{"short backing", &IntermediateBuffer{Sets: 2, Cols: 3, Size: 4, Data: make([]complex64, 5)}, src, 0, ErrDimensionMismatch},
	}

	for _, tc := range cases {
		err := ApplyPhaseCode(tc.dst, tc.src, code, tc.row)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}
