package algopulse

import "fmt"

// Schedule is the result of the single stage dispatch made at the start of a
// decode: which rows to process and which pipeline steps to run for each.
type Schedule struct {
	Stage Stage
	// Rows lists the range rows to process, in submission order. Empty for
	// StageTimeIntegration.
	Rows []int
	// Transform and PeakFind report whether those steps run after the
	// phase-code correlation.
	Transform bool
	PeakFind  bool
	// Capture reports whether the last step's output is returned as the
	// intermediate buffer.
	Capture bool
}

// ScheduleFor dispatches on cfg.Stage. bins is the input range-bin count.
func ScheduleFor(cfg *DecodingConfig, bins int) (Schedule, error) {
	if cfg == nil {
		return Schedule{}, ErrNilTensor
	}

	sched := Schedule{Stage: cfg.Stage}

	switch cfg.Stage {
	case StageFull:
		sched.Rows = make([]int, bins)
		for i := range sched.Rows {
			sched.Rows[i] = i
		}

		sched.Transform = true
		sched.PeakFind = true
	case StagePhaseCodeOnly, StagePostTransform:
		if cfg.InspectRow < 0 || cfg.InspectRow >= bins {
			return Schedule{}, fmt.Errorf("%w: stage %s inspects row %d, input has %d range bins",
				ErrRowOutOfRange, cfg.Stage, cfg.InspectRow, bins)
		}

		sched.Rows = []int{cfg.InspectRow}
		sched.Transform = cfg.Stage == StagePostTransform
		sched.Capture = true
	case StageTimeIntegration:
	case StagePower:
		return Schedule{}, fmt.Errorf("%w: %s", ErrUnsupportedStage, cfg.Stage)
	default:
		return Schedule{}, fmt.Errorf("%w: %s", ErrInvalidStage, cfg.Stage)
	}

	return sched, nil
}

// Prepare validates a decode request and returns its schedule. The stage is
// checked before any tensor is inspected, so an unsupported stage fails
// without touching the inputs.
func Prepare(samples *SampleTensor, code PhaseCode, cfg *DecodingConfig) (Schedule, error) {
	if cfg == nil {
		return Schedule{}, fmt.Errorf("%w: decoding config", ErrNilTensor)
	}

	switch cfg.Stage {
	case StagePower:
		return Schedule{}, fmt.Errorf("%w: %s", ErrUnsupportedStage, cfg.Stage)
	case StageFull, StagePhaseCodeOnly, StagePostTransform, StageTimeIntegration:
	default:
		return Schedule{}, fmt.Errorf("%w: %s", ErrInvalidStage, cfg.Stage)
	}

	if err := samples.validate(); err != nil {
		return Schedule{}, err
	}

	if err := code.Validate(); err != nil {
		return Schedule{}, err
	}

	if cfg.TransformSize < 1 {
		return Schedule{}, fmt.Errorf("%w: %d", ErrInvalidTransformSize, cfg.TransformSize)
	}

	return ScheduleFor(cfg, samples.Bins)
}
