package gpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	algopulse "github.com/cwbudde/algo-pulse"
	"github.com/cwbudde/algo-pulse/internal/monitoring"
)

// DecoderOptions configures a Decoder.
type DecoderOptions struct {
	// Backend to run on. nil uses the registered backend.
	Backend Backend
	// DeviceIndex selects which device to use (0 = default).
	DeviceIndex int
}

// Decoder runs the decode pipeline as three kernels per range row on one
// device. The device context and compiled program are created on first use
// and reused; every Decode call gets its own queue, kernel instances and
// buffers, so concurrent calls do not share argument bindings.
type Decoder struct {
	backend Backend
	opts    DecoderOptions

	once    sync.Once
	ctx     Context
	program Program
	openErr error
}

var _ algopulse.Decoder = (*Decoder)(nil)

// NewDecoder returns a decoder bound to opts.Backend or the registered
// backend.
func NewDecoder(opts DecoderOptions) (*Decoder, error) {
	b := opts.Backend
	if b == nil {
		b = CurrentBackend()
	}
	if b == nil {
		return nil, ErrNoBackend
	}
	return &Decoder{backend: b, opts: opts}, nil
}

// Name implements algopulse.Decoder.
func (d *Decoder) Name() string { return "gpu" }

// Init implements algopulse.Decoder and returns the number of devices the
// backend discovered.
func (d *Decoder) Init() (int, error) {
	if !d.backend.Available() {
		return 0, ErrBackendUnavailable
	}
	devices, err := d.backend.Devices()
	if err != nil {
		return 0, err
	}
	return len(devices), nil
}

func (d *Decoder) open() error {
	d.once.Do(func() {
		if !d.backend.Available() {
			d.openErr = ErrBackendUnavailable
			return
		}
		ctx, err := d.backend.NewContext(d.opts.DeviceIndex)
		if err != nil {
			d.openErr = fmt.Errorf("create context on device %d: %w", d.opts.DeviceIndex, err)
			return
		}
		prog, err := ctx.BuildProgram(DecodeProgram())
		if err != nil {
			_ = ctx.Close()
			d.openErr = err
			return
		}
		d.ctx = ctx
		d.program = prog
	})
	if d.openErr == nil && d.ctx == nil {
		return ErrClosed
	}
	return d.openErr
}

// Decode implements algopulse.Decoder.
//
// Rows are submitted back to back on one queue. Row i's phase-code kernel
// waits on row i-1's last kernel; within a row each kernel waits on the
// previous one. The host blocks once, after the last row, then reads the
// results back and converts the event profiles into the timing table.
// Setup and Cleanup are recorded as zero.
func (d *Decoder) Decode(samples *algopulse.SampleTensor, code algopulse.PhaseCode, cfg *algopulse.DecodingConfig) (*algopulse.Result, error) {
	start := time.Now()

	sched, err := algopulse.Prepare(samples, code, cfg)
	if err != nil {
		return nil, err
	}

	if err := d.open(); err != nil {
		return nil, err
	}

	info := d.backend.Info()
	cfg.RunID = uuid.New()
	cfg.BackendName = d.Name() + "/" + info.Name
	cfg.BackendVersion = info.Version
	cfg.DeviceName = d.ctx.Device().Name
	cfg.Threads = 1

	res := algopulse.NewResult(samples, cfg, sched)
	if len(sched.Rows) == 0 {
		cfg.Elapsed = time.Since(start)
		return res, nil
	}

	plan, err := newDecodePlan(d.ctx, d.program, samples, code, cfg.TransformSize)
	if err != nil {
		return nil, fmt.Errorf("gpu %s: setup: %w", sched.Stage, err)
	}
	defer plan.Close()

	events := make([]rowEvents, len(sched.Rows))

	var prev Event
	for i, row := range sched.Rows {
		ev, err := plan.enqueueRow(row, sched, prev)
		if err != nil {
			_ = plan.queue.Finish()
			return nil, fmt.Errorf("gpu %s: %w", sched.Stage, err)
		}
		events[i] = ev
		prev = ev.last()
	}

	if err := plan.queue.Finish(); err != nil {
		return nil, fmt.Errorf("gpu %s: %w", sched.Stage, err)
	}

	if sched.PeakFind {
		if err := plan.decoded.Download(res.Decoded.Data); err != nil {
			return nil, fmt.Errorf("gpu %s: read decoded tensor: %w", sched.Stage, err)
		}
	}

	if sched.Capture {
		src := plan.work
		if sched.Transform {
			src = plan.spectrum
		}
		if err := src.Download(res.Intermediate.Data); err != nil {
			return nil, fmt.Errorf("gpu %s: read intermediate buffer: %w", sched.Stage, err)
		}
		res.Intermediate.Row = sched.Rows[len(sched.Rows)-1]
	}

	for i, row := range sched.Rows {
		rt, err := rowTiming(events[i])
		if err != nil {
			return nil, fmt.Errorf("gpu %s row %d: %w", sched.Stage, row, err)
		}
		res.Timing.RecordRow(row, rt)
	}

	cfg.Elapsed = time.Since(start)
	monitoring.Logf("algopulse: gpu run %s done: %s %s", cfg.RunID, cfg, res.Timing.Summary())

	return res, nil
}

// Close releases the device context and program.
func (d *Decoder) Close() error {
	var firstErr error
	if d.program != nil {
		firstErr = d.program.Close()
		d.program = nil
	}
	if d.ctx != nil {
		if err := d.ctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.ctx = nil
	}
	return firstErr
}

func rowTiming(ev rowEvents) (algopulse.RowTiming, error) {
	var rt algopulse.RowTiming

	slots := []struct {
		ev  Event
		dst *time.Duration
	}{
		{ev.phaseCode, &rt.PhaseCode},
		{ev.transform, &rt.Transform},
		{ev.peakFind, &rt.PeakFind},
	}
	for _, s := range slots {
		if s.ev == nil {
			continue
		}
		prof, err := s.ev.Profile()
		if err != nil {
			return rt, err
		}
		*s.dst = max(prof.Duration(), 0)
	}

	return rt, nil
}
