package gpu

import _ "embed"

// Entry points of the decode program.
const (
	KernelPhaseCode = "apply_phasecode"
	KernelTransform = "dft_rows"
	KernelPeakFind  = "find_peaks"
)

// Argument layouts. Buffers come first, integer params after, in the order
// listed.
var (
	// apply_phasecode(samples, code, work; sets, cols, bins, size, row)
	phaseCodeSpec = KernelSpec{Name: KernelPhaseCode, Buffers: []Access{ReadOnly, ReadOnly, ReadWrite}, Params: 5}
	// dft_rows(work, spectrum; sets, cols, size)
	transformSpec = KernelSpec{Name: KernelTransform, Buffers: []Access{ReadOnly, ReadWrite}, Params: 3}
	// find_peaks(spectrum, decoded; sets, cols, bins, size, row)
	peakFindSpec = KernelSpec{Name: KernelPeakFind, Buffers: []Access{ReadOnly, ReadWrite}, Params: 5}
)

//go:embed kernels/decode.wgsl
var decodeWGSL string

// DecodeProgram returns the source of the three-kernel decode program.
func DecodeProgram() ProgramSource {
	return ProgramSource{
		Name:    "pulse_decode",
		WGSL:    decodeWGSL,
		Kernels: []KernelSpec{phaseCodeSpec, transformSpec, peakFindSpec},
	}
}
