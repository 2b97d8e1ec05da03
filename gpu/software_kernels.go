package gpu

import (
	"fmt"
	"math"

	algopulse "github.com/cwbudde/algo-pulse"
)

type softKernelImpl struct {
	spec KernelSpec
	run  func(args []any, global int) error
}

// softwareKernels holds the host implementation of every entry point the
// software backend can build.
var softwareKernels = map[string]softKernelImpl{
	KernelPhaseCode: {spec: phaseCodeSpec, run: runPhaseCode},
	KernelTransform: {spec: transformSpec, run: runTransform},
	KernelPeakFind:  {spec: peakFindSpec, run: runPeakFind},
}

// runPhaseCode is one work item per output sample, as in the WGSL entry
// point: item i is chip k = i%size of series i/size.
func runPhaseCode(args []any, global int) error {
	samples, err := bufferArg(args, 0, ElemComplex64)
	if err != nil {
		return err
	}
	code, err := bufferArg(args, 1, ElemFloat32)
	if err != nil {
		return err
	}
	work, err := bufferArg(args, 2, ElemComplex64)
	if err != nil {
		return err
	}
	p, err := intArgs(args, 3, 5)
	if err != nil {
		return err
	}
	sets, cols, bins, size, row := p[0], p[1], p[2], p[3], p[4]

	total := sets * cols * size
	if len(samples.c64) != sets*cols*bins || len(work.c64) != total {
		return fmt.Errorf("%w: phase code of %dx%dx%d into %d samples over buffers of %d and %d",
			ErrLengthMismatch, sets, cols, bins, size, len(samples.c64), len(work.c64))
	}
	if row < 0 || row >= bins {
		return fmt.Errorf("%w: phase code row %d, input has %d range bins", algopulse.ErrRowOutOfRange, row, bins)
	}

	for i := range min(global, total) {
		k := i % size
		series := i / size
		src := row + k
		if k >= len(code.f32) || src >= bins {
			work.c64[i] = 0
			continue
		}

		v := samples.c64[series*bins+src]
		c := code.f32[k]
		work.c64[i] = complex(real(v)*c, imag(v)*c)
	}

	return nil
}

// runTransform uses the gonum engine so the device transform is computed by
// a different FFT than the CPU backend's default.
func runTransform(args []any, _ int) error {
	in, err := bufferArg(args, 0, ElemComplex64)
	if err != nil {
		return err
	}
	out, err := bufferArg(args, 1, ElemComplex64)
	if err != nil {
		return err
	}
	p, err := intArgs(args, 2, 3)
	if err != nil {
		return err
	}
	sets, cols, size := p[0], p[1], p[2]

	if n := sets * cols * size; len(in.c64) != n || len(out.c64) != n {
		return fmt.Errorf("%w: transform of %dx%dx%d over buffers of %d and %d",
			ErrLengthMismatch, sets, cols, size, len(in.c64), len(out.c64))
	}

	t, err := algopulse.NewTransform(algopulse.EngineGonum, size)
	if err != nil {
		return err
	}
	defer algopulse.ReleaseTransform(t)

	copy(out.c64, in.c64)
	return algopulse.ForwardBatch(t, out.c64)
}

// runPeakFind is one work item per pulse series.
func runPeakFind(args []any, global int) error {
	spectrum, err := bufferArg(args, 0, ElemComplex64)
	if err != nil {
		return err
	}
	decoded, err := bufferArg(args, 1, ElemFloat32)
	if err != nil {
		return err
	}
	p, err := intArgs(args, 2, 5)
	if err != nil {
		return err
	}
	sets, cols, bins, size, row := p[0], p[1], p[2], p[3], p[4]

	series := sets * cols
	if len(spectrum.c64) != series*size || len(decoded.f32) != series*bins {
		return fmt.Errorf("%w: peak find of %dx%d series over buffers of %d and %d",
			ErrLengthMismatch, sets, cols, len(spectrum.c64), len(decoded.f32))
	}
	if row < 0 || row >= bins {
		return fmt.Errorf("%w: peak row %d, decoded tensor has %d range bins", algopulse.ErrRowOutOfRange, row, bins)
	}

	for i := range min(global, series) {
		var best float32
		for _, v := range spectrum.c64[i*size : (i+1)*size] {
			best = max(best, real(v)*real(v)+imag(v)*imag(v))
		}
		decoded.f32[i*bins+row] = float32(math.Sqrt(float64(best))) / float32(size)
	}

	return nil
}

func bufferArg(args []any, i int, kind ElemKind) (*softBuffer, error) {
	b, ok := args[i].(*softBuffer)
	if !ok {
		return nil, fmt.Errorf("%w: argument %d is %T", ErrArgument, i, args[i])
	}
	if b.kind != kind {
		return nil, fmt.Errorf("%w: argument %d is a %s buffer, want %s", ErrTypeMismatch, i, b.kind, kind)
	}
	if b.len == 0 {
		return nil, ErrClosed
	}
	return b, nil
}

func intArgs(args []any, first, n int) ([]int, error) {
	out := make([]int, n)
	for i := range out {
		v, ok := args[first+i].(int)
		if !ok {
			return nil, fmt.Errorf("%w: argument %d is %T", ErrArgument, first+i, args[first+i])
		}
		out[i] = v
	}
	return out, nil
}
