//go:build webgpu

package gpu

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

// workgroupSize matches @workgroup_size in kernels/decode.wgsl.
const workgroupSize = 64

// WebGPUBackend runs the decode kernels as WGSL compute shaders through
// wgpu-native. It is enabled with the "webgpu" build tag.
//
// WebGPU has no per-command events, so every enqueued kernel is submitted
// and waited on before EnqueueKernel returns. Profile timestamps come from
// timestamp queries written at the start and end of the compute pass when
// the adapter supports them, and from the host clock around submit and poll
// otherwise.
type WebGPUBackend struct {
	once     sync.Once
	instance *wgpu.Instance
	adapters []*wgpu.Adapter
	devices  []DeviceInfo
	err      error
}

// NewWebGPUBackend returns a backend that discovers adapters on first use.
func NewWebGPUBackend() *WebGPUBackend {
	return &WebGPUBackend{}
}

// RegisterWebGPUBackend registers the WebGPU backend as the active backend.
func RegisterWebGPUBackend() {
	RegisterBackend(NewWebGPUBackend())
}

func (b *WebGPUBackend) discover() error {
	b.once.Do(func() {
		b.instance = wgpu.CreateInstance(nil)
		if b.instance == nil {
			b.err = fmt.Errorf("%w: cannot create WebGPU instance", ErrBackendUnavailable)
			return
		}

		b.adapters = b.instance.EnumerateAdapters(nil)
		if len(b.adapters) == 0 {
			a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
				PowerPreference: wgpu.PowerPreferenceHighPerformance,
			})
			if err != nil {
				b.err = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
				return
			}
			b.adapters = []*wgpu.Adapter{a}
		}

		for _, a := range b.adapters {
			info := a.GetInfo()
			b.devices = append(b.devices, DeviceInfo{
				Name:         info.Name,
				Vendor:       info.VendorName,
				Driver:       strings.TrimSpace(info.DriverDescription),
				ComputeUnits: 1,
			})
		}
	})
	return b.err
}

func (b *WebGPUBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "webgpu",
		Version:     "wgpu-native",
		Description: "WGSL compute shaders via wgpu-native",
	}
}

func (b *WebGPUBackend) Available() bool {
	return b.discover() == nil && len(b.devices) > 0
}

func (b *WebGPUBackend) Devices() ([]DeviceInfo, error) {
	if err := b.discover(); err != nil {
		return nil, err
	}
	return slices.Clone(b.devices), nil
}

func (b *WebGPUBackend) NewContext(deviceIndex int) (Context, error) {
	if err := b.discover(); err != nil {
		return nil, err
	}
	if deviceIndex < 0 || deviceIndex >= len(b.adapters) {
		return nil, fmt.Errorf("webgpu backend: device index %d out of range", deviceIndex)
	}

	adapter := b.adapters[deviceIndex]
	timestamps := slices.Contains(adapter.EnumerateFeatures(), wgpu.FeatureNameTimestampQuery)

	var features []wgpu.FeatureName
	if timestamps {
		features = []wgpu.FeatureName{wgpu.FeatureNameTimestampQuery}
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:            "pulse_decode",
		RequiredFeatures: features,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu backend: request device: %w", err)
	}

	return &wgpuContext{
		info:       b.devices[deviceIndex],
		device:     device,
		queue:      device.GetQueue(),
		epoch:      time.Now(),
		timestamps: timestamps,
	}, nil
}

type wgpuContext struct {
	info   DeviceInfo
	device *wgpu.Device
	queue  *wgpu.Queue
	epoch  time.Time

	// timestamps reports whether the device was opened with timestamp
	// queries.
	timestamps bool

	// mu serializes submissions; the wgpu queue is shared by every Queue of
	// this context.
	mu sync.Mutex
}

func (c *wgpuContext) now() int64 {
	return int64(time.Since(c.epoch))
}

func (c *wgpuContext) Device() DeviceInfo {
	return c.info
}

func elemSize(kind ElemKind) (int, error) {
	switch kind {
	case ElemFloat32:
		return 4, nil
	case ElemComplex64:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: buffer kind %s", ErrTypeMismatch, kind)
	}
}

func (c *wgpuContext) NewBuffer(elemCount int, kind ElemKind) (Buffer, error) {
	if elemCount < 1 {
		return nil, ErrInvalidLength
	}
	size, err := elemSize(kind)
	if err != nil {
		return nil, err
	}

	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: fmt.Sprintf("%s[%d]", kind, elemCount),
		Size:  uint64(elemCount * size),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer: %w", err)
	}

	return &wgpuBuffer{ctx: c, buf: buf, kind: kind, len: elemCount, bytes: uint64(elemCount * size)}, nil
}

func (c *wgpuContext) NewQueue(opts QueueOptions) (Queue, error) {
	return &wgpuQueue{ctx: c, profiling: opts.Profiling}, nil
}

func (c *wgpuContext) BuildProgram(src ProgramSource) (Program, error) {
	module, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          src.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.WGSL},
	})
	if err != nil {
		return nil, &BuildError{Program: src.Name, Log: err.Error()}
	}
	defer module.Release()

	var log strings.Builder
	prog := &wgpuProgram{ctx: c, kernels: make(map[string]wgpuKernelDef, len(src.Kernels))}
	for _, spec := range src.Kernels {
		pipe, err := c.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:   src.Name + "_" + spec.Name,
			Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: spec.Name},
		})
		if err != nil {
			fmt.Fprintf(&log, "%s: entry point %q: %v\n", src.Name, spec.Name, err)
			continue
		}
		prog.kernels[spec.Name] = wgpuKernelDef{spec: spec, pipeline: pipe}
	}

	if log.Len() > 0 {
		_ = prog.Close()
		return nil, &BuildError{Program: src.Name, Log: log.String()}
	}

	return prog, nil
}

func (c *wgpuContext) Close() error {
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	return nil
}

// poll blocks until done is closed, driving the device's callbacks.
func (c *wgpuContext) poll(done <-chan struct{}) {
	for {
		c.device.Poll(true, nil)
		select {
		case <-done:
			return
		default:
		}
	}
}

type wgpuBuffer struct {
	ctx   *wgpuContext
	buf   *wgpu.Buffer
	kind  ElemKind
	len   int
	bytes uint64
}

func (b *wgpuBuffer) Len() int {
	return b.len
}

func (b *wgpuBuffer) Kind() ElemKind {
	return b.kind
}

func (b *wgpuBuffer) Upload(src any) error {
	if b.buf == nil {
		return ErrClosed
	}

	var data []byte
	switch v := src.(type) {
	case []float32:
		if b.kind != ElemFloat32 {
			return fmt.Errorf("%w: upload %T to %s buffer", ErrTypeMismatch, src, b.kind)
		}
		if len(v) < b.len {
			return ErrLengthMismatch
		}
		data = wgpu.ToBytes(v[:b.len])
	case []complex64:
		if b.kind != ElemComplex64 {
			return fmt.Errorf("%w: upload %T to %s buffer", ErrTypeMismatch, src, b.kind)
		}
		if len(v) < b.len {
			return ErrLengthMismatch
		}
		data = wgpu.ToBytes(v[:b.len])
	default:
		return fmt.Errorf("%w: upload %T", ErrTypeMismatch, src)
	}

	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	b.ctx.queue.WriteBuffer(b.buf, 0, data)

	return nil
}

func (b *wgpuBuffer) Download(dst any) error {
	if b.buf == nil {
		return ErrClosed
	}
	switch v := dst.(type) {
	case []float32:
		if b.kind != ElemFloat32 {
			return fmt.Errorf("%w: download %s buffer to %T", ErrTypeMismatch, b.kind, dst)
		}
		if len(v) < b.len {
			return ErrLengthMismatch
		}
	case []complex64:
		if b.kind != ElemComplex64 {
			return fmt.Errorf("%w: download %s buffer to %T", ErrTypeMismatch, b.kind, dst)
		}
		if len(v) < b.len {
			return ErrLengthMismatch
		}
	default:
		return fmt.Errorf("%w: download to %T", ErrTypeMismatch, dst)
	}

	c := b.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.readback(b.buf, b.bytes)
	if err != nil {
		return err
	}
	switch v := dst.(type) {
	case []float32:
		copy(v[:b.len], wgpu.FromBytes[float32](raw))
	case []complex64:
		copy(v[:b.len], wgpu.FromBytes[complex64](raw))
	}

	return nil
}

// readback copies size bytes of src into host memory through a mappable
// staging buffer. The caller holds c.mu.
func (c *wgpuContext) readback(src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer staging.Destroy()

	enc, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	enc.CopyBufferToBuffer(src, 0, staging, 0, size)
	cmd, err := enc.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("finish command: %w", err)
	}
	c.queue.Submit(cmd)

	done := make(chan struct{})
	var mapErr error
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map status: %d", status)
		}
		close(done)
	})
	c.poll(done)
	if mapErr != nil {
		return nil, mapErr
	}

	raw := staging.GetMappedRange(0, uint(size))
	if raw == nil {
		return nil, fmt.Errorf("map staging buffer: mapped range is nil")
	}
	out := slices.Clone(raw)
	staging.Unmap()

	return out, nil
}

func (b *wgpuBuffer) Close() error {
	if b.buf != nil {
		b.buf.Destroy()
		b.buf = nil
	}
	return nil
}

type wgpuKernelDef struct {
	spec     KernelSpec
	pipeline *wgpu.ComputePipeline
}

type wgpuProgram struct {
	ctx     *wgpuContext
	kernels map[string]wgpuKernelDef
}

func (p *wgpuProgram) Kernel(name string) (Kernel, error) {
	def, ok := p.kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, name)
	}
	n := def.spec.Arity()
	return &wgpuKernel{def: def, args: make([]any, n), bound: make([]bool, n)}, nil
}

func (p *wgpuProgram) Close() error {
	for _, def := range p.kernels {
		def.pipeline.Release()
	}
	p.kernels = nil
	return nil
}

type wgpuKernel struct {
	def   wgpuKernelDef
	args  []any
	bound []bool
}

func (k *wgpuKernel) Spec() KernelSpec {
	return k.def.spec
}

func (k *wgpuKernel) SetArg(index int, value any) error {
	spec := k.def.spec
	if index < 0 || index >= len(k.args) {
		return fmt.Errorf("%w: %s has no argument %d", ErrArgument, spec.Name, index)
	}

	if index < len(spec.Buffers) {
		buf, ok := value.(*wgpuBuffer)
		if !ok {
			if _, isBuf := value.(Buffer); isBuf {
				return ErrForeignObject
			}
			return fmt.Errorf("%w: %s argument %d wants a Buffer, got %T", ErrArgument, spec.Name, index, value)
		}
		k.args[index] = buf
	} else {
		v, ok := value.(int)
		if !ok || v < 0 {
			return fmt.Errorf("%w: %s argument %d wants a non-negative int, got %v", ErrArgument, spec.Name, index, value)
		}
		k.args[index] = v
	}

	k.bound[index] = true
	return nil
}

func (k *wgpuKernel) Close() error {
	clear(k.args)
	clear(k.bound)
	return nil
}

// uniformWords packs the integer params of args into u32 words, padded to a
// multiple of four words.
func uniformWords(spec KernelSpec, args []any) []uint32 {
	words := make([]uint32, (spec.Params+3)/4*4)
	for i := range spec.Params {
		words[i] = uint32(args[len(spec.Buffers)+i].(int))
	}
	return words
}

type wgpuQueue struct {
	ctx       *wgpuContext
	profiling bool

	mu     sync.Mutex
	events []*wgpuEvent
	closed bool
}

func (q *wgpuQueue) EnqueueKernel(k Kernel, global int, waitList []Event) (Event, error) {
	wk, ok := k.(*wgpuKernel)
	if !ok {
		return nil, ErrForeignObject
	}
	if global < 1 {
		return nil, fmt.Errorf("%w: global size %d", ErrInvalidLength, global)
	}
	spec := wk.def.spec
	for i, ok := range wk.bound {
		if !ok {
			return nil, fmt.Errorf("%w: %s argument %d not set", ErrArgument, spec.Name, i)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}

	ev := &wgpuEvent{profiling: q.profiling, queued: q.ctx.now()}
	q.events = append(q.events, ev)

	for _, dep := range waitList {
		if dep == nil {
			continue
		}
		if err := dep.Wait(); err != nil {
			ev.err = &KernelError{Kernel: spec.Name, Err: fmt.Errorf("dependency failed: %w", err)}
			return ev, nil
		}
	}

	ev.start, ev.end, ev.err = q.dispatch(wk.def, slices.Clone(wk.args), global)
	if ev.err != nil {
		ev.err = &KernelError{Kernel: spec.Name, Err: ev.err}
	}
	return ev, nil
}

func (q *wgpuQueue) dispatch(def wgpuKernelDef, args []any, global int) (start, end int64, err error) {
	c := q.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	words := uniformWords(def.spec, args)
	uniform, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: def.spec.Name + "_params",
		Size:  uint64(len(words) * 4),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("create uniform buffer: %w", err)
	}
	defer uniform.Destroy()
	c.queue.WriteBuffer(uniform, 0, wgpu.ToBytes(words))

	nbuf := len(def.spec.Buffers)
	entries := make([]wgpu.BindGroupEntry, 0, nbuf+1)
	for i := range nbuf {
		b := args[i].(*wgpuBuffer)
		if b.buf == nil {
			return 0, 0, ErrClosed
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i), Buffer: b.buf, Size: b.bytes})
	}
	entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(nbuf), Buffer: uniform, Size: uniform.GetSize()})

	bind, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   def.spec.Name + "_bind",
		Layout:  def.pipeline.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("create bind group: %w", err)
	}
	defer bind.Release()

	enc, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return 0, 0, fmt.Errorf("create command encoder: %w", err)
	}

	passDesc := &wgpu.ComputePassDescriptor{Label: def.spec.Name}

	var stamps *timestampQuery
	if q.profiling && c.timestamps {
		if stamps, err = c.newTimestampQuery(def.spec.Name); err != nil {
			return 0, 0, err
		}
		defer stamps.release()

		passDesc.TimestampWrites = &wgpu.ComputePassTimestampWrites{
			QuerySet:                  stamps.set,
			BeginningOfPassWriteIndex: 0,
			EndOfPassWriteIndex:       1,
		}
	}

	pass := enc.BeginComputePass(passDesc)
	pass.SetPipeline(def.pipeline)
	pass.SetBindGroup(0, bind, nil)
	pass.DispatchWorkgroups(uint32((global+workgroupSize-1)/workgroupSize), 1, 1)
	pass.End()
	if stamps != nil {
		enc.ResolveQuerySet(stamps.set, 0, 2, stamps.resolve, 0)
	}
	cmd, err := enc.Finish(nil)
	if err != nil {
		return 0, 0, fmt.Errorf("finish command: %w", err)
	}

	start = c.now()
	c.queue.Submit(cmd)
	c.device.Poll(true, nil)
	end = c.now()

	if stamps == nil {
		return start, end, nil
	}

	raw, err := c.readback(stamps.resolve, timestampBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("read timestamps: %w", err)
	}
	ticks := wgpu.FromBytes[uint64](raw)

	return int64(ticks[0]), int64(ticks[1]), nil
}

// timestampBytes holds the two u64 timestamps of one compute pass.
const timestampBytes = 16

type timestampQuery struct {
	set     *wgpu.QuerySet
	resolve *wgpu.Buffer
}

func (c *wgpuContext) newTimestampQuery(label string) (*timestampQuery, error) {
	set, err := c.device.CreateQuerySet(&wgpu.QuerySetDescriptor{
		Label: label + "_timestamps",
		Type:  wgpu.QueryTypeTimestamp,
		Count: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("create query set: %w", err)
	}

	resolve, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + "_timestamps_resolve",
		Size:  timestampBytes,
		Usage: wgpu.BufferUsageQueryResolve | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		set.Release()
		return nil, fmt.Errorf("create timestamp buffer: %w", err)
	}

	return &timestampQuery{set: set, resolve: resolve}, nil
}

func (t *timestampQuery) release() {
	t.resolve.Destroy()
	t.set.Release()
}

func (q *wgpuQueue) Finish() error {
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

func (q *wgpuQueue) Close() error {
	err := q.Finish()

	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	return err
}

// wgpuEvent is complete when EnqueueKernel returns it.
type wgpuEvent struct {
	profiling bool

	queued, start, end int64
	err                error
}

func (e *wgpuEvent) Wait() error {
	return e.err
}

// Profile returns device timestamps in nanoseconds when the device supports
// timestamp queries. Without them Start and End fall back to the host clock
// read around submit and poll. Queued is always a host reading.
func (e *wgpuEvent) Profile() (Profile, error) {
	if !e.profiling {
		return Profile{}, ErrProfilingDisabled
	}
	return Profile{Queued: e.queued, Start: e.start, End: e.end}, nil
}
