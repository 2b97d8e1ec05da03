package algopulse

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-pulse/internal/cpu"
	"github.com/cwbudde/algo-pulse/internal/monitoring"
)

// CPUBackendVersion is reported in DecodingConfig.BackendVersion.
const CPUBackendVersion = "1.0"

// defaultProgressEvery is the row interval between progress log lines.
const defaultProgressEvery = 64

// CPUOptions configures a CPUDecoder.
type CPUOptions struct {
	// Workers is the worker pool size. 0 uses GOMAXPROCS.
	Workers int
	// Engine selects the FFT library.
	Engine Engine
	// ProgressEvery logs running statistics every N rows. 0 uses the
	// default, a negative value disables progress logging.
	ProgressEvery int
}

// CPUDecoder decodes range rows in parallel on a fixed-size worker pool.
// Every row creates and releases its own transform plan.
type CPUDecoder struct {
	opts CPUOptions
}

// NewCPUDecoder returns a CPU decoder.
func NewCPUDecoder(opts CPUOptions) *CPUDecoder {
	if opts.ProgressEvery == 0 {
		opts.ProgressEvery = defaultProgressEvery
	}

	return &CPUDecoder{opts: opts}
}

// Name implements Decoder.
func (d *CPUDecoder) Name() string { return "cpu" }

// Init implements Decoder. The host is always one logical context.
func (d *CPUDecoder) Init() (int, error) { return 1, nil }

// Decode implements Decoder.
func (d *CPUDecoder) Decode(samples *SampleTensor, code PhaseCode, cfg *DecodingConfig) (*Result, error) {
	start := time.Now()

	sched, err := Prepare(samples, code, cfg)
	if err != nil {
		return nil, err
	}

	cfg.RunID = uuid.New()
	cfg.BackendName = d.Name() + "/" + d.opts.Engine.String()
	cfg.BackendVersion = CPUBackendVersion
	cfg.DeviceName = cpu.Describe()
	cfg.Threads = 0

	res := NewResult(samples, cfg, sched)
	if len(sched.Rows) == 0 {
		cfg.Elapsed = time.Since(start)
		return res, nil
	}

	workers := d.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	workers = min(workers, len(sched.Rows))
	cfg.Threads = workers

	run := &cpuRun{
		opts:    d.opts,
		cfg:     cfg,
		sched:   sched,
		samples: samples,
		code:    code,
		res:     res,
		diag:    &Diagnostics{},
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)

	for _, row := range sched.Rows {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			return run.decodeRow(row)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	cfg.Elapsed = time.Since(start)
	monitoring.Logf("algopulse: cpu run %s done: %s %s", cfg.RunID, cfg, run.diag)

	return res, nil
}

// cpuRun is the state shared by the workers of one Decode call. Workers
// write disjoint rows of res, so only diag needs locking.
type cpuRun struct {
	opts    CPUOptions
	cfg     *DecodingConfig
	sched   Schedule
	samples *SampleTensor
	code    PhaseCode
	res     *Result
	diag    *Diagnostics
}

func (r *cpuRun) decodeRow(row int) error {
	var rt RowTiming

	t0 := time.Now()

	var (
		plan Transform
		err  error
	)

	if r.sched.Transform {
		plan, err = NewTransform(r.opts.Engine, r.cfg.TransformSize)
		if err != nil {
			return fmt.Errorf("cpu %s row %d: setup: %w", r.sched.Stage, row, err)
		}

		defer func() {
			if plan != nil {
				ReleaseTransform(plan)
			}
		}()
	}

	work := r.res.Intermediate
	if work == nil {
		work = NewIntermediateBuffer(r.samples.Sets, r.samples.Cols, r.cfg.TransformSize)
	}

	t1 := time.Now()
	rt.Setup = t1.Sub(t0)

	if err := ApplyPhaseCode(work, r.samples, r.code, row); err != nil {
		return fmt.Errorf("cpu %s row %d: phase code: %w", r.sched.Stage, row, err)
	}

	t2 := time.Now()
	rt.PhaseCode = t2.Sub(t1)

	if r.sched.Transform {
		if err := ForwardBatch(plan, work.Data); err != nil {
			return fmt.Errorf("cpu %s row %d: transform: %w", r.sched.Stage, row, err)
		}
	}

	t3 := time.Now()
	rt.Transform = t3.Sub(t2)

	if r.sched.PeakFind {
		if err := FindPeaks(r.res.Decoded, work, row); err != nil {
			return fmt.Errorf("cpu %s row %d: peak find: %w", r.sched.Stage, row, err)
		}
	}

	t4 := time.Now()
	rt.PeakFind = t4.Sub(t3)

	if plan != nil {
		ReleaseTransform(plan)
		plan = nil
	}

	t5 := time.Now()
	rt.Cleanup = t5.Sub(t4)
	rt.Total = t5.Sub(t0)

	r.res.Timing.RecordRow(row, rt)

	n := r.diag.Observe(r.res.Timing, row)
	if every := r.opts.ProgressEvery; every > 0 && n%every == 0 {
		monitoring.Logf("algopulse: cpu run %s: %d/%d rows %s", r.cfg.RunID, n, len(r.sched.Rows), r.diag)
	}

	return nil
}
