package algopulse

import (
	"fmt"
	"math"
)

// FindPeaks writes, for every pulse, sqrt(max_k |X_k|²) / F into
// dst[set][col][row], where X is the F-point spectrum held in src.
//
// The 1/F normalization of the forward transform is applied here rather
// than in the transform.
func FindPeaks(dst *DecodedTensor, src *IntermediateBuffer, row int) error {
	if err := src.validate(); err != nil {
		return err
	}

	if err := dst.validate(); err != nil {
		return err
	}

	if dst.Sets != src.Sets || dst.Cols != src.Cols {
		return fmt.Errorf("%w: decoded tensor is %dx%d (sets x cols), spectrum is %dx%d",
			ErrDimensionMismatch, dst.Sets, dst.Cols, src.Sets, src.Cols)
	}

	if row < 0 || row >= dst.Bins {
		return fmt.Errorf("%w: peak row %d, decoded tensor has %d range bins",
			ErrRowOutOfRange, row, dst.Bins)
	}

	scale := float32(src.Size)

	for set := range src.Sets {
		for col := range src.Cols {
			dst.Data[(set*dst.Cols+col)*dst.Bins+row] = peakMagnitude(src.Series(set, col)) / scale
		}
	}

	return nil
}

func peakMagnitude(spectrum []complex64) float32 {
	var best float32
	for _, v := range spectrum {
		re, im := real(v), imag(v)
		if p := re*re + im*im; p > best {
			best = p
		}
	}

	return float32(math.Sqrt(float64(best)))
}
