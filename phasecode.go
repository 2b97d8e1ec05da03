package algopulse

import "fmt"

// ApplyPhaseCode correlates code against the samples starting at range row.
//
// For every output index k in [0, dst.Size): when k < len(code) and
// row+k < src.Bins, dst[set][col][k] = src[set][col][row+k] * code[k];
// otherwise the element is zero. dst is cleared before the write so the
// padding is always deterministic.
func ApplyPhaseCode(dst *IntermediateBuffer, src *SampleTensor, code PhaseCode, row int) error {
	if err := src.validate(); err != nil {
		return err
	}

	if err := dst.validate(); err != nil {
		return err
	}

	if dst.Sets != src.Sets || dst.Cols != src.Cols {
		return fmt.Errorf("%w: phase code output is %dx%d (sets x cols), input is %dx%d",
			ErrDimensionMismatch, dst.Sets, dst.Cols, src.Sets, src.Cols)
	}

	if row < 0 || row >= src.Bins {
		return fmt.Errorf("%w: phase code offset %d, input has %d range bins",
			ErrRowOutOfRange, row, src.Bins)
	}

	clear(dst.Data)
	dst.Row = row

	chips := min(len(code), dst.Size, src.Bins-row)

	for set := range src.Sets {
		for col := range src.Cols {
			in := src.Series(set, col)[row : row+chips]
			out := dst.Series(set, col)

			for k, v := range in {
				c := code[k]
				out[k] = complex(real(v)*c, imag(v)*c)
			}
		}
	}

	return nil
}
