package gpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	algopulse "github.com/cwbudde/algo-pulse"
)

func newSoftContext(t *testing.T) (Context, Program) {
	t.Helper()

	ctx, err := NewSoftwareBackend(1).NewContext(0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })

	prog, err := ctx.BuildProgram(DecodeProgram())
	require.NoError(t, err)
	t.Cleanup(func() { _ = prog.Close() })

	return ctx, prog
}

func TestSoftwareBackendDevices(t *testing.T) {
	t.Parallel()

	b := NewSoftwareBackend(2)
	require.True(t, b.Available())

	devices, err := b.Devices()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "SoftwareGPU:0", devices[0].Name)
	assert.Equal(t, "SoftwareGPU:1", devices[1].Name)

	if _, err := b.NewContext(2); err == nil {
		t.Fatalf("NewContext(2) on two devices succeeded")
	}

	assert.Len(t, mustDevices(t, NewSoftwareBackend(0)), 1)
}

func mustDevices(t *testing.T, b Backend) []DeviceInfo {
	t.Helper()

	d, err := b.Devices()
	require.NoError(t, err)

	return d
}

func TestBuildProgramReportsLog(t *testing.T) {
	t.Parallel()

	ctx, err := NewSoftwareBackend(1).NewContext(0)
	require.NoError(t, err)

	src := DecodeProgram()
	src.Kernels = append(src.Kernels, KernelSpec{Name: "range_doppler", Buffers: []Access{ReadWrite}, Params: 1})
	src.Kernels[0].Params = 4

	_, err = ctx.BuildProgram(src)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "pulse_decode", be.Program)
	assert.Contains(t, be.Log, `"range_doppler"`)
	assert.Contains(t, be.Log, `"apply_phasecode"`)
	assert.Equal(t, 2, strings.Count(be.Log, "error:"))
}

func TestBufferUploadDownload(t *testing.T) {
	t.Parallel()

	ctx, _ := newSoftContext(t)

	buf, err := ctx.NewBuffer(4, ElemComplex64)
	require.NoError(t, err)

	require.NoError(t, buf.Upload([]complex64{1, 2i, 3, 4i, 99}))

	out := make([]complex64, 4)
	require.NoError(t, buf.Download(out))
	assert.Equal(t, []complex64{1, 2i, 3, 4i}, out)

	require.ErrorIs(t, buf.Upload([]float32{1, 2, 3, 4}), ErrTypeMismatch)
	require.ErrorIs(t, buf.Upload([]complex64{1}), ErrLengthMismatch)
	require.ErrorIs(t, buf.Download(make([]complex64, 3)), ErrLengthMismatch)

	_, err = ctx.NewBuffer(0, ElemFloat32)
	require.ErrorIs(t, err, ErrInvalidLength)
}

func TestKernelArgumentChecks(t *testing.T) {
	t.Parallel()

	ctx, prog := newSoftContext(t)

	_, err := prog.Kernel("range_doppler")
	require.ErrorIs(t, err, ErrUnknownKernel)

	k, err := prog.Kernel(KernelTransform)
	require.NoError(t, err)

	require.ErrorIs(t, k.SetArg(0, 3), ErrArgument)
	require.ErrorIs(t, k.SetArg(2, "three"), ErrArgument)
	require.ErrorIs(t, k.SetArg(5, 1), ErrArgument)

	q, err := ctx.NewQueue(QueueOptions{})
	require.NoError(t, err)

	_, err = q.EnqueueKernel(k, 8, nil)
	require.ErrorIs(t, err, ErrArgument)

	require.NoError(t, q.Close())

	_, err = q.EnqueueKernel(k, 8, nil)
	require.Error(t, err)
}

// chain builds the three decode kernels over a 1x1x4 input with F=4.
func chain(t *testing.T, ctx Context, prog Program, row int) (Kernel, Kernel, Kernel, Buffer) {
	t.Helper()

	const sets, cols, bins, size = 1, 1, 4, 4

	buffers := make([]Buffer, 5)
	kinds := []ElemKind{ElemComplex64, ElemFloat32, ElemComplex64, ElemComplex64, ElemFloat32}
	lens := []int{bins, 2, size, size, bins}
	for i := range buffers {
		b, err := ctx.NewBuffer(lens[i], kinds[i])
		require.NoError(t, err)
		buffers[i] = b
	}

	require.NoError(t, buffers[0].Upload([]complex64{1, 2, 3, 4}))
	require.NoError(t, buffers[1].Upload([]float32{1, -1}))

	pc, err := prog.Kernel(KernelPhaseCode)
	require.NoError(t, err)
	require.NoError(t, bindArgs(pc, buffers[0], buffers[1], buffers[2], sets, cols, bins, size, row))

	tr, err := prog.Kernel(KernelTransform)
	require.NoError(t, err)
	require.NoError(t, bindArgs(tr, buffers[2], buffers[3], sets, cols, size))

	pk, err := prog.Kernel(KernelPeakFind)
	require.NoError(t, err)
	require.NoError(t, bindArgs(pk, buffers[3], buffers[4], sets, cols, bins, size, row))

	return pc, tr, pk, buffers[4]
}

func TestQueueWaitListOrdering(t *testing.T) {
	t.Parallel()

	ctx, prog := newSoftContext(t)
	pc, tr, pk, decoded := chain(t, ctx, prog, 1)

	q, err := ctx.NewQueue(QueueOptions{Profiling: true})
	require.NoError(t, err)
	defer func() { _ = q.Close() }()

	e1, err := q.EnqueueKernel(pc, 4, nil)
	require.NoError(t, err)
	e2, err := q.EnqueueKernel(tr, 4, []Event{e1})
	require.NoError(t, err)
	e3, err := q.EnqueueKernel(pk, 1, []Event{e2})
	require.NoError(t, err)

	require.NoError(t, q.Finish())

	p1, err := e1.Profile()
	require.NoError(t, err)
	p2, err := e2.Profile()
	require.NoError(t, err)
	p3, err := e3.Profile()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, p2.Start, p1.End)
	assert.GreaterOrEqual(t, p3.Start, p2.End)
	assert.GreaterOrEqual(t, p1.Start, p1.Queued)
	assert.GreaterOrEqual(t, p1.End, p1.Start)

	// row 1 with code [+1,-1]: work = {2, -3, 0, 0}; the DFT peaks at
	// |2+3| = 5 for k=2, so the decoded value is 5/4.
	out := make([]float32, 4)
	require.NoError(t, decoded.Download(out))
	assert.InDelta(t, 1.25, out[1], 1e-6)
	assert.Zero(t, out[0])
	assert.Zero(t, out[2])
}

func TestEventProfilingDisabled(t *testing.T) {
	t.Parallel()

	ctx, prog := newSoftContext(t)
	pc, _, _, _ := chain(t, ctx, prog, 0)

	q, err := ctx.NewQueue(QueueOptions{})
	require.NoError(t, err)

	ev, err := q.EnqueueKernel(pc, 4, nil)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())

	_, err = ev.Profile()
	require.ErrorIs(t, err, ErrProfilingDisabled)
	require.NoError(t, q.Close())
}

func TestKernelErrorPropagates(t *testing.T) {
	t.Parallel()

	ctx, prog := newSoftContext(t)
	pc, tr, _, _ := chain(t, ctx, prog, 0)

	// Row 4 is outside the 4-bin input.
	require.NoError(t, pc.SetArg(7, 4))

	q, err := ctx.NewQueue(QueueOptions{Profiling: true})
	require.NoError(t, err)

	e1, err := q.EnqueueKernel(pc, 4, nil)
	require.NoError(t, err)
	e2, err := q.EnqueueKernel(tr, 4, []Event{e1})
	require.NoError(t, err)

	err = q.Finish()

	var ke *KernelError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, KernelPhaseCode, ke.Kernel)
	require.ErrorIs(t, err, algopulse.ErrRowOutOfRange)

	err = e2.Wait()
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, KernelTransform, ke.Kernel)
	assert.True(t, errors.Is(err, algopulse.ErrRowOutOfRange))

	require.NoError(t, q.Close())
}

func TestArgsCapturedAtEnqueue(t *testing.T) {
	t.Parallel()

	ctx, prog := newSoftContext(t)
	pc, tr, pk, decoded := chain(t, ctx, prog, 0)

	q, err := ctx.NewQueue(QueueOptions{Profiling: true})
	require.NoError(t, err)

	var prev Event
	for row := range 4 {
		require.NoError(t, pc.SetArg(7, row))
		require.NoError(t, pk.SetArg(6, row))

		e1, err := q.EnqueueKernel(pc, 4, waitOn(prev))
		require.NoError(t, err)
		e2, err := q.EnqueueKernel(tr, 4, waitOn(e1))
		require.NoError(t, err)
		prev, err = q.EnqueueKernel(pk, 1, waitOn(e2))
		require.NoError(t, err)
	}
	require.NoError(t, q.Close())

	out := make([]float32, 4)
	require.NoError(t, decoded.Download(out))

	// Correlation windows: {1,-2}, {2,-3}, {3,-4}, {4,0}. The peak of each
	// 4-point DFT is |a|+|b| at k=2, except the last, whose spectrum is flat.
	want := []float32{3.0 / 4, 5.0 / 4, 7.0 / 4, 4.0 / 4}
	for i := range want {
		assert.InDelta(t, want[i], out[i], 1e-6, "row %d", i)
	}
}

func TestPhaseCodeKernelWorkItems(t *testing.T) {
	t.Parallel()

	ctx, prog := newSoftContext(t)
	pc, _, _, _ := chain(t, ctx, prog, 2)

	work, err := ctx.NewBuffer(4, ElemComplex64)
	require.NoError(t, err)
	require.NoError(t, work.Upload([]complex64{9, 9, 9, 9}))
	require.NoError(t, pc.SetArg(2, work))

	q, err := ctx.NewQueue(QueueOptions{})
	require.NoError(t, err)

	// Only the first three work items run. Item 2 lies past the two-chip
	// code and is zeroed; item 3 keeps its old value.
	_, err = q.EnqueueKernel(pc, 3, nil)
	require.NoError(t, err)
	require.NoError(t, q.Close())

	out := make([]complex64, 4)
	require.NoError(t, work.Download(out))
	assert.Equal(t, []complex64{3, -4, 0, 9}, out)
}
