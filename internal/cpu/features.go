// Package cpu reports host CPU capabilities for backend metadata.
package cpu

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// Features describes the SIMD extensions available on the host.
type Features struct {
	HasSSE2      bool
	HasSSE41     bool
	HasAVX       bool
	HasAVX2      bool
	HasAVX512    bool
	HasFMA       bool
	HasNEON      bool
	Architecture string
}

// DetectFeatures queries golang.org/x/sys/cpu. Flags for other
// architectures are always false.
func DetectFeatures() Features {
	return Features{
		HasSSE2:      cpu.X86.HasSSE2,
		HasSSE41:     cpu.X86.HasSSE41,
		HasAVX:       cpu.X86.HasAVX,
		HasAVX2:      cpu.X86.HasAVX2,
		HasAVX512:    cpu.X86.HasAVX512,
		HasFMA:       cpu.X86.HasFMA,
		HasNEON:      cpu.ARM64.HasASIMD,
		Architecture: runtime.GOARCH,
	}
}

// String renders the architecture followed by the detected extensions,
// e.g. "amd64 sse2 avx avx2 fma".
func (f Features) String() string {
	parts := []string{f.Architecture}

	flags := []struct {
		ok   bool
		name string
	}{
		{f.HasSSE2, "sse2"},
		{f.HasSSE41, "sse4.1"},
		{f.HasAVX, "avx"},
		{f.HasAVX2, "avx2"},
		{f.HasAVX512, "avx512"},
		{f.HasFMA, "fma"},
		{f.HasNEON, "neon"},
	}
	for _, fl := range flags {
		if fl.ok {
			parts = append(parts, fl.name)
		}
	}

	return strings.Join(parts, " ")
}

// Describe returns a device name for the host CPU, including the logical
// core count.
func Describe() string {
	return fmt.Sprintf("cpu/%s x%d", DetectFeatures(), runtime.NumCPU())
}
