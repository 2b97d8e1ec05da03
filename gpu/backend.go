package gpu

import "sync"

// Backend is implemented by accelerator backends (software, WebGPU).
// It is responsible for device discovery and context creation.
type Backend interface {
	Info() BackendInfo
	Available() bool
	Devices() ([]DeviceInfo, error)
	NewContext(deviceIndex int) (Context, error)
}

// Context represents a backend-specific device context. It owns the
// device, its compiled programs and its buffers.
type Context interface {
	Device() DeviceInfo
	// NewBuffer allocates a device buffer of elemCount elements.
	NewBuffer(elemCount int, kind ElemKind) (Buffer, error)
	// NewQueue creates a command queue. Kernels on one queue run as soon as
	// their wait-lists complete, so independent commands may overlap.
	NewQueue(opts QueueOptions) (Queue, error)
	// BuildProgram compiles src. Failures return a *BuildError carrying
	// the build log.
	BuildProgram(src ProgramSource) (Program, error)
	Close() error
}

// Buffer is a device buffer.
type Buffer interface {
	Len() int
	Kind() ElemKind
	// Upload copies from host to device and blocks until done.
	Upload(src any) error
	// Download copies from device to host and blocks until done.
	Download(dst any) error
	Close() error
}

// Program is a compiled set of kernels.
type Program interface {
	// Kernel returns a new kernel instance. Argument bindings are per
	// instance, so concurrent users need separate instances.
	Kernel(name string) (Kernel, error)
	Close() error
}

// Kernel is a kernel instance with its argument bindings.
type Kernel interface {
	Spec() KernelSpec
	// SetArg binds a Buffer (buffer slots) or an int (param slots).
	SetArg(index int, value any) error
	Close() error
}

// Queue is a command queue.
type Queue interface {
	// EnqueueKernel submits k over global work items. Arguments are captured
	// at submission; the kernel starts after every event in waitList
	// completed successfully.
	EnqueueKernel(k Kernel, global int, waitList []Event) (Event, error)
	// Finish blocks until every submitted command completed and returns the
	// first execution error.
	Finish() error
	Close() error
}

// Event is the completion handle of one enqueued command.
type Event interface {
	// Wait blocks until the command completed and returns its error.
	Wait() error
	// Profile returns the command's device timestamps.
	Profile() (Profile, error)
}

var (
	backendMu sync.RWMutex
	backend   Backend
)

// RegisterBackend registers a GPU backend. Passing nil clears the backend.
func RegisterBackend(b Backend) {
	backendMu.Lock()
	backend = b
	backendMu.Unlock()
}

// CurrentBackendInfo reports the currently registered backend, if any.
func CurrentBackendInfo() (BackendInfo, bool) {
	backendMu.RLock()
	b := backend
	backendMu.RUnlock()
	if b == nil {
		return BackendInfo{}, false
	}
	return b.Info(), true
}

// CurrentBackend returns the registered backend, or nil.
func CurrentBackend() Backend {
	backendMu.RLock()
	b := backend
	backendMu.RUnlock()
	return b
}
