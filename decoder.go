package algopulse

// Decoder is implemented by every decode backend (CPU worker pool, GPU
// kernel chain). Backends are interchangeable so their outputs can be
// cross-validated.
type Decoder interface {
	// Name identifies the backend ("cpu", "gpu").
	Name() string
	// Init probes the backend and returns the number of usable execution
	// contexts.
	Init() (int, error)
	// Decode runs the stage selected by cfg over samples and records the
	// run metadata into cfg. Any error aborts the whole call; a failed
	// decode returns no partial result.
	Decode(samples *SampleTensor, code PhaseCode, cfg *DecodingConfig) (*Result, error)
}

// Result is the output of one decode call.
type Result struct {
	// Decoded is shaped [S][C][R]. Only StageFull writes it; partial stages
	// leave it zeroed.
	Decoded *DecodedTensor
	// Timing has one column per input range row.
	Timing *TimingTable
	// Intermediate is the captured state of the inspected row for
	// StagePhaseCodeOnly and StagePostTransform, nil otherwise.
	Intermediate *IntermediateBuffer
}

// NewResult allocates the output buffers for a validated request.
func NewResult(samples *SampleTensor, cfg *DecodingConfig, sched Schedule) *Result {
	res := &Result{
		Decoded: NewDecodedTensor(samples.Sets, samples.Cols, samples.Bins),
		Timing:  NewTimingTable(samples.Bins),
	}

	if sched.Capture {
		res.Intermediate = NewIntermediateBuffer(samples.Sets, samples.Cols, cfg.TransformSize)
	}

	return res
}
