package gpu

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBackend is returned when no GPU backend is registered.
	ErrNoBackend = errors.New("algopulse/gpu: no backend registered")

	// ErrBackendUnavailable is returned when the backend is registered but not available
	// on the current system (e.g., no device, driver missing).
	ErrBackendUnavailable = errors.New("algopulse/gpu: backend unavailable")

	// ErrInvalidLength is returned for invalid buffer sizes or work sizes.
	ErrInvalidLength = errors.New("algopulse/gpu: invalid length")

	// ErrLengthMismatch is returned when host and device lengths differ.
	ErrLengthMismatch = errors.New("algopulse/gpu: length mismatch")

	// ErrTypeMismatch is returned when a host slice or kernel argument has
	// the wrong type.
	ErrTypeMismatch = errors.New("algopulse/gpu: type mismatch")

	// ErrForeignObject is returned when an object created by one backend is
	// passed to another.
	ErrForeignObject = errors.New("algopulse/gpu: object belongs to another backend")

	// ErrUnknownKernel is returned for a kernel name the program does not define.
	ErrUnknownKernel = errors.New("algopulse/gpu: unknown kernel")

	// ErrArgument is returned for an out-of-range or unset kernel argument.
	ErrArgument = errors.New("algopulse/gpu: invalid kernel argument")

	// ErrProfilingDisabled is returned by Event.Profile on a queue created
	// without profiling.
	ErrProfilingDisabled = errors.New("algopulse/gpu: profiling disabled")

	// ErrEventPending is returned by Event.Profile before the command finished.
	ErrEventPending = errors.New("algopulse/gpu: event not complete")

	// ErrClosed is returned when using a released object.
	ErrClosed = errors.New("algopulse/gpu: object closed")
)

// BuildError reports a failed program build together with the build log.
type BuildError struct {
	Program string
	Log     string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("algopulse/gpu: build of program %q failed:\n%s", e.Program, e.Log)
}

// KernelError reports a failed kernel execution.
type KernelError struct {
	Kernel string
	Err    error
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("algopulse/gpu: kernel %s: %v", e.Kernel, e.Err)
}

func (e *KernelError) Unwrap() error {
	return e.Err
}
