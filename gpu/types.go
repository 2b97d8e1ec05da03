package gpu

import "time"

// ElemKind describes the element type of a device buffer.
type ElemKind uint8

const (
	ElemFloat32 ElemKind = iota
	ElemComplex64
)

func (k ElemKind) String() string {
	switch k {
	case ElemFloat32:
		return "float32"
	case ElemComplex64:
		return "complex64"
	default:
		return "unknown"
	}
}

// DeviceInfo describes a compute device.
type DeviceInfo struct {
	Name         string
	Vendor       string
	Driver       string
	MemoryMB     int
	ComputeUnits int
}

// BackendInfo describes a backend implementation.
type BackendInfo struct {
	Name        string
	Version     string
	Description string
}

// QueueOptions controls command queue creation.
type QueueOptions struct {
	// Profiling enables start/end timestamps on events.
	Profiling bool
}

// Access is the access mode of a kernel buffer argument.
type Access uint8

const (
	ReadOnly Access = iota
	ReadWrite
)

// KernelSpec declares a kernel entry point and its argument layout:
// len(Buffers) buffer arguments first, then Params integer arguments.
type KernelSpec struct {
	Name    string
	Buffers []Access
	Params  int
}

// Arity returns the total number of arguments.
func (s KernelSpec) Arity() int {
	return len(s.Buffers) + s.Params
}

// ProgramSource is the input of Context.BuildProgram.
type ProgramSource struct {
	Name string
	// WGSL holds the shader source for backends that compile it.
	WGSL    string
	Kernels []KernelSpec
}

// Profile holds device timestamps of one command, in nanoseconds on the
// device clock.
type Profile struct {
	Queued int64
	Start  int64
	End    int64
}

// Duration returns the execution time End-Start.
func (p Profile) Duration() time.Duration {
	return time.Duration(p.End - p.Start)
}
