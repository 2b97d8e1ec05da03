package gpu

import (
	"fmt"

	algopulse "github.com/cwbudde/algo-pulse"
)

// decodePlan owns the device objects of one decode call: a profiling queue,
// fresh kernel instances and the device buffers. Nothing in it is shared
// with other calls.
type decodePlan struct {
	sets, cols, bins, size int

	queue Queue

	phaseCode Kernel
	transform Kernel
	peakFind  Kernel

	samples  Buffer
	code     Buffer
	work     Buffer
	spectrum Buffer
	decoded  Buffer
}

// rowEvents holds the completion handles of one row's kernels. Skipped
// kernels leave their event nil.
type rowEvents struct {
	phaseCode Event
	transform Event
	peakFind  Event
}

func (e rowEvents) last() Event {
	switch {
	case e.peakFind != nil:
		return e.peakFind
	case e.transform != nil:
		return e.transform
	default:
		return e.phaseCode
	}
}

// newDecodePlan creates the plan and uploads samples and code. The upload
// blocks until the data is on the device.
func newDecodePlan(ctx Context, prog Program, samples *algopulse.SampleTensor, code algopulse.PhaseCode, size int) (*decodePlan, error) {
	p := &decodePlan{
		sets: samples.Sets,
		cols: samples.Cols,
		bins: samples.Bins,
		size: size,
	}

	if err := p.init(ctx, prog, samples, code); err != nil {
		_ = p.Close()
		return nil, err
	}

	return p, nil
}

func (p *decodePlan) init(ctx Context, prog Program, samples *algopulse.SampleTensor, code algopulse.PhaseCode) error {
	var err error

	if p.queue, err = ctx.NewQueue(QueueOptions{Profiling: true}); err != nil {
		return fmt.Errorf("create queue: %w", err)
	}

	if p.phaseCode, err = prog.Kernel(KernelPhaseCode); err != nil {
		return err
	}
	if p.transform, err = prog.Kernel(KernelTransform); err != nil {
		return err
	}
	if p.peakFind, err = prog.Kernel(KernelPeakFind); err != nil {
		return err
	}

	series := p.sets * p.cols
	buffers := []struct {
		dst  *Buffer
		n    int
		kind ElemKind
	}{
		{&p.samples, series * p.bins, ElemComplex64},
		{&p.code, len(code), ElemFloat32},
		{&p.work, series * p.size, ElemComplex64},
		{&p.spectrum, series * p.size, ElemComplex64},
		{&p.decoded, series * p.bins, ElemFloat32},
	}
	for _, b := range buffers {
		if *b.dst, err = ctx.NewBuffer(b.n, b.kind); err != nil {
			return fmt.Errorf("allocate %d x %s: %w", b.n, b.kind, err)
		}
	}

	if err := p.samples.Upload(samples.Data); err != nil {
		return fmt.Errorf("upload samples: %w", err)
	}
	if err := p.code.Upload([]float32(code)); err != nil {
		return fmt.Errorf("upload phase code: %w", err)
	}

	// Everything but the row index is bound once per call.
	binds := []struct {
		k    Kernel
		args []any
	}{
		{p.phaseCode, []any{p.samples, p.code, p.work, p.sets, p.cols, p.bins, p.size, 0}},
		{p.transform, []any{p.work, p.spectrum, p.sets, p.cols, p.size}},
		{p.peakFind, []any{p.spectrum, p.decoded, p.sets, p.cols, p.bins, p.size, 0}},
	}
	for _, b := range binds {
		if err := bindArgs(b.k, b.args...); err != nil {
			return err
		}
	}

	return nil
}

// enqueueRow submits the scheduled kernels for row. The phase-code kernel
// waits on prev, the final event of the previous row; each later kernel
// waits on the one before it.
func (p *decodePlan) enqueueRow(row int, sched algopulse.Schedule, prev Event) (rowEvents, error) {
	var (
		ev  rowEvents
		err error
	)

	if err = p.phaseCode.SetArg(7, row); err != nil {
		return ev, err
	}
	ev.phaseCode, err = p.queue.EnqueueKernel(p.phaseCode, p.sets*p.cols*p.size, waitOn(prev))
	if err != nil {
		return ev, fmt.Errorf("row %d: enqueue %s: %w", row, KernelPhaseCode, err)
	}

	if !sched.Transform {
		return ev, nil
	}
	ev.transform, err = p.queue.EnqueueKernel(p.transform, p.sets*p.cols*p.size, waitOn(ev.phaseCode))
	if err != nil {
		return ev, fmt.Errorf("row %d: enqueue %s: %w", row, KernelTransform, err)
	}

	if !sched.PeakFind {
		return ev, nil
	}
	if err = p.peakFind.SetArg(6, row); err != nil {
		return ev, err
	}
	ev.peakFind, err = p.queue.EnqueueKernel(p.peakFind, p.sets*p.cols, waitOn(ev.transform))
	if err != nil {
		return ev, fmt.Errorf("row %d: enqueue %s: %w", row, KernelPeakFind, err)
	}

	return ev, nil
}

// Close releases every device object. It returns the first error.
func (p *decodePlan) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if p.queue != nil {
		keep(p.queue.Close())
		p.queue = nil
	}
	for _, k := range []Kernel{p.phaseCode, p.transform, p.peakFind} {
		if k != nil {
			keep(k.Close())
		}
	}
	for _, b := range []Buffer{p.samples, p.code, p.work, p.spectrum, p.decoded} {
		if b != nil {
			keep(b.Close())
		}
	}
	p.phaseCode, p.transform, p.peakFind = nil, nil, nil
	p.samples, p.code, p.work, p.spectrum, p.decoded = nil, nil, nil, nil, nil

	return firstErr
}

func waitOn(ev Event) []Event {
	if ev == nil {
		return nil
	}
	return []Event{ev}
}

func bindArgs(k Kernel, args ...any) error {
	for i, a := range args {
		if err := k.SetArg(i, a); err != nil {
			return fmt.Errorf("bind %s: %w", k.Spec().Name, err)
		}
	}
	return nil
}
