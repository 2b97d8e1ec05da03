package gpu

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// SoftwareBackend is a host-executed accelerator backend. Kernels run on
// goroutines as soon as their wait-lists complete, and events carry
// timestamps from a per-context monotonic clock, so it models the
// scheduling behavior of a real out-of-order device queue.
type SoftwareBackend struct {
	devices []DeviceInfo
}

// NewSoftwareBackend returns a software backend exposing deviceCount fake
// devices (at least one).
func NewSoftwareBackend(deviceCount int) *SoftwareBackend {
	if deviceCount < 1 {
		deviceCount = 1
	}

	devices := make([]DeviceInfo, deviceCount)
	for i := range devices {
		devices[i] = DeviceInfo{
			Name:         fmt.Sprintf("SoftwareGPU:%d", i),
			Vendor:       "algopulse",
			Driver:       "software",
			ComputeUnits: 1,
		}
	}

	return &SoftwareBackend{devices: devices}
}

func (b *SoftwareBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "software",
		Version:     "1.0",
		Description: "host-executed device with out-of-order queue",
	}
}

func (b *SoftwareBackend) Available() bool {
	return true
}

func (b *SoftwareBackend) Devices() ([]DeviceInfo, error) {
	return slices.Clone(b.devices), nil
}

func (b *SoftwareBackend) NewContext(deviceIndex int) (Context, error) {
	if deviceIndex < 0 || deviceIndex >= len(b.devices) {
		return nil, fmt.Errorf("software backend: device index %d out of range", deviceIndex)
	}
	return &softContext{device: b.devices[deviceIndex], epoch: time.Now()}, nil
}

// RegisterSoftwareBackend registers a single-device software backend as the
// active backend.
func RegisterSoftwareBackend() {
	RegisterBackend(NewSoftwareBackend(1))
}

type softContext struct {
	device DeviceInfo
	epoch  time.Time
}

// now reads the device clock in nanoseconds.
func (c *softContext) now() int64 {
	return int64(time.Since(c.epoch))
}

func (c *softContext) Device() DeviceInfo {
	return c.device
}

func (c *softContext) NewBuffer(elemCount int, kind ElemKind) (Buffer, error) {
	if elemCount < 1 {
		return nil, ErrInvalidLength
	}
	switch kind {
	case ElemFloat32:
		return &softBuffer{kind: kind, len: elemCount, f32: make([]float32, elemCount)}, nil
	case ElemComplex64:
		return &softBuffer{kind: kind, len: elemCount, c64: make([]complex64, elemCount)}, nil
	default:
		return nil, fmt.Errorf("%w: buffer kind %s", ErrTypeMismatch, kind)
	}
}

func (c *softContext) NewQueue(opts QueueOptions) (Queue, error) {
	return &softQueue{ctx: c, profiling: opts.Profiling}, nil
}

func (c *softContext) BuildProgram(src ProgramSource) (Program, error) {
	var log strings.Builder

	if len(src.Kernels) == 0 {
		fmt.Fprintf(&log, "%s: error: program declares no kernels\n", src.Name)
	}

	kernels := make(map[string]softKernelImpl, len(src.Kernels))
	for _, spec := range src.Kernels {
		impl, ok := softwareKernels[spec.Name]
		if !ok {
			fmt.Fprintf(&log, "%s: error: no software implementation for entry point %q\n", src.Name, spec.Name)
			continue
		}
		if impl.spec.Arity() != spec.Arity() || len(impl.spec.Buffers) != len(spec.Buffers) {
			fmt.Fprintf(&log, "%s: error: entry point %q declares %d buffers and %d params, implementation takes %d and %d\n",
				src.Name, spec.Name, len(spec.Buffers), spec.Params, len(impl.spec.Buffers), impl.spec.Params)
			continue
		}
		kernels[spec.Name] = impl
	}

	if log.Len() > 0 {
		return nil, &BuildError{Program: src.Name, Log: log.String()}
	}

	return &softProgram{kernels: kernels}, nil
}

func (c *softContext) Close() error {
	return nil
}

type softBuffer struct {
	kind ElemKind
	len  int
	f32  []float32
	c64  []complex64
}

func (b *softBuffer) Len() int {
	return b.len
}

func (b *softBuffer) Kind() ElemKind {
	return b.kind
}

func (b *softBuffer) Upload(src any) error {
	switch b.kind {
	case ElemFloat32:
		data, ok := src.([]float32)
		if !ok {
			return fmt.Errorf("%w: upload %T to %s buffer", ErrTypeMismatch, src, b.kind)
		}
		if len(data) < b.len {
			return ErrLengthMismatch
		}
		copy(b.f32, data[:b.len])
		return nil
	case ElemComplex64:
		data, ok := src.([]complex64)
		if !ok {
			return fmt.Errorf("%w: upload %T to %s buffer", ErrTypeMismatch, src, b.kind)
		}
		if len(data) < b.len {
			return ErrLengthMismatch
		}
		copy(b.c64, data[:b.len])
		return nil
	default:
		return ErrClosed
	}
}

func (b *softBuffer) Download(dst any) error {
	switch b.kind {
	case ElemFloat32:
		data, ok := dst.([]float32)
		if !ok {
			return fmt.Errorf("%w: download %s buffer to %T", ErrTypeMismatch, b.kind, dst)
		}
		if len(data) < b.len {
			return ErrLengthMismatch
		}
		copy(data[:b.len], b.f32)
		return nil
	case ElemComplex64:
		data, ok := dst.([]complex64)
		if !ok {
			return fmt.Errorf("%w: download %s buffer to %T", ErrTypeMismatch, b.kind, dst)
		}
		if len(data) < b.len {
			return ErrLengthMismatch
		}
		copy(data[:b.len], b.c64)
		return nil
	default:
		return ErrClosed
	}
}

func (b *softBuffer) Close() error {
	b.f32 = nil
	b.c64 = nil
	b.len = 0
	return nil
}

type softProgram struct {
	kernels map[string]softKernelImpl
}

func (p *softProgram) Kernel(name string) (Kernel, error) {
	impl, ok := p.kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, name)
	}
	n := impl.spec.Arity()
	return &softKernel{impl: impl, args: make([]any, n), bound: make([]bool, n)}, nil
}

func (p *softProgram) Close() error {
	p.kernels = nil
	return nil
}

type softKernel struct {
	impl  softKernelImpl
	args  []any
	bound []bool
}

func (k *softKernel) Spec() KernelSpec {
	return k.impl.spec
}

func (k *softKernel) SetArg(index int, value any) error {
	if index < 0 || index >= len(k.args) {
		return fmt.Errorf("%w: %s has no argument %d", ErrArgument, k.impl.spec.Name, index)
	}

	if index < len(k.impl.spec.Buffers) {
		buf, ok := value.(Buffer)
		if !ok {
			return fmt.Errorf("%w: %s argument %d wants a Buffer, got %T", ErrArgument, k.impl.spec.Name, index, value)
		}
		sb, ok := buf.(*softBuffer)
		if !ok {
			return ErrForeignObject
		}
		k.args[index] = sb
	} else {
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("%w: %s argument %d wants an int, got %T", ErrArgument, k.impl.spec.Name, index, value)
		}
		k.args[index] = v
	}

	k.bound[index] = true
	return nil
}

func (k *softKernel) Close() error {
	clear(k.args)
	clear(k.bound)
	return nil
}

type softQueue struct {
	ctx       *softContext
	profiling bool

	mu     sync.Mutex
	wg     sync.WaitGroup
	events []*softEvent
	closed bool
}

func (q *softQueue) EnqueueKernel(k Kernel, global int, waitList []Event) (Event, error) {
	sk, ok := k.(*softKernel)
	if !ok {
		return nil, ErrForeignObject
	}
	if global < 1 {
		return nil, fmt.Errorf("%w: global size %d", ErrInvalidLength, global)
	}
	for i, ok := range sk.bound {
		if !ok {
			return nil, fmt.Errorf("%w: %s argument %d not set", ErrArgument, sk.impl.spec.Name, i)
		}
	}

	ev := &softEvent{done: make(chan struct{}), profiling: q.profiling, queued: q.ctx.now()}
	args := slices.Clone(sk.args)
	deps := slices.Clone(waitList)
	impl := sk.impl

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	q.events = append(q.events, ev)
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()

		for _, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Wait(); err != nil {
				ev.complete(0, 0, &KernelError{Kernel: impl.spec.Name, Err: fmt.Errorf("dependency failed: %w", err)})
				return
			}
		}

		start := q.ctx.now()
		err := impl.run(args, global)
		end := q.ctx.now()
		if err != nil {
			err = &KernelError{Kernel: impl.spec.Name, Err: err}
		}
		ev.complete(start, end, err)
	}()

	return ev, nil
}

func (q *softQueue) Finish() error {
	q.wg.Wait()

	q.mu.Lock()
	events := q.events
	q.events = nil
	q.mu.Unlock()

	for _, ev := range events {
		if ev.err != nil {
			return ev.err
		}
	}
	return nil
}

func (q *softQueue) Close() error {
	err := q.Finish()

	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	return err
}

type softEvent struct {
	done      chan struct{}
	profiling bool

	queued, start, end int64
	err                error
}

func (e *softEvent) complete(start, end int64, err error) {
	e.start = start
	e.end = end
	e.err = err
	close(e.done)
}

func (e *softEvent) Wait() error {
	<-e.done
	return e.err
}

func (e *softEvent) Profile() (Profile, error) {
	select {
	case <-e.done:
	default:
		return Profile{}, ErrEventPending
	}
	if !e.profiling {
		return Profile{}, ErrProfilingDisabled
	}
	return Profile{Queued: e.queued, Start: e.start, End: e.end}, nil
}
