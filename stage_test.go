package algopulse

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScheduleFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cfg  DecodingConfig
		want Schedule
	}{
		{
			DecodingConfig{Stage: StageFull, InspectRow: 99},
			Schedule{Stage: StageFull, Rows: []int{0, 1, 2, 3}, Transform: true, PeakFind: true},
		},
		{
			DecodingConfig{Stage: StagePhaseCodeOnly, InspectRow: 3},
			Schedule{Stage: StagePhaseCodeOnly, Rows: []int{3}, Capture: true},
		},
		{
			DecodingConfig{Stage: StagePostTransform, InspectRow: 0},
			Schedule{Stage: StagePostTransform, Rows: []int{0}, Transform: true, Capture: true},
		},
		{
			DecodingConfig{Stage: StageTimeIntegration},
			Schedule{Stage: StageTimeIntegration},
		},
	}

	for _, tc := range cases {
		got, err := ScheduleFor(&tc.cfg, 4)
		if err != nil {
			t.Fatalf("ScheduleFor(%s) failed: %v", tc.cfg.Stage, err)
		}

		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("ScheduleFor(%s) mismatch (-want +got):\n%s", tc.cfg.Stage, diff)
		}
	}
}

func TestScheduleForErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cfg  DecodingConfig
		want error
	}{
		{DecodingConfig{Stage: StagePower}, ErrUnsupportedStage},
		{DecodingConfig{Stage: Stage(42)}, ErrInvalidStage},
		{DecodingConfig{Stage: StagePhaseCodeOnly, InspectRow: 4}, ErrRowOutOfRange},
		{DecodingConfig{Stage: StagePostTransform, InspectRow: -1}, ErrRowOutOfRange},
	}

	for _, tc := range cases {
		if _, err := ScheduleFor(&tc.cfg, 4); !errors.Is(err, tc.want) {
			t.Fatalf("ScheduleFor(%s row %d): got %v, want %v", tc.cfg.Stage, tc.cfg.InspectRow, err, tc.want)
		}
	}
}

func TestPrepareChecksStageFirst(t *testing.T) {
	t.Parallel()

	// POWER and unknown stages fail before the nil tensor is looked at.
	if _, err := Prepare(nil, nil, &DecodingConfig{Stage: StagePower}); !errors.Is(err, ErrUnsupportedStage) {
		t.Fatalf("power: got %v", err)
	}

	if _, err := Prepare(nil, nil, &DecodingConfig{Stage: Stage(9)}); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("unknown stage: got %v", err)
	}

	if _, err := Prepare(nil, PhaseCode{1}, &DecodingConfig{TransformSize: 4}); !errors.Is(err, ErrNilTensor) {
		t.Fatalf("nil samples: got %v", err)
	}

	samples := randomSampleTensor(t, 1, 1, 4, 1)

	if _, err := Prepare(samples, PhaseCode{}, &DecodingConfig{TransformSize: 4}); !errors.Is(err, ErrInvalidPhaseCode) {
		t.Fatalf("empty code: got %v", err)
	}

	if _, err := Prepare(samples, PhaseCode{1}, &DecodingConfig{}); !errors.Is(err, ErrInvalidTransformSize) {
		t.Fatalf("zero transform size: got %v", err)
	}

	if _, err := Prepare(samples, PhaseCode{1}, nil); !errors.Is(err, ErrNilTensor) {
		t.Fatalf("nil config: got %v", err)
	}
}

func TestParseStage(t *testing.T) {
	t.Parallel()

	for _, s := range []Stage{StageFull, StagePhaseCodeOnly, StagePostTransform, StagePower, StageTimeIntegration} {
		got, err := ParseStage(s.String())
		if err != nil {
			t.Fatalf("ParseStage(%q) failed: %v", s, err)
		}

		if got != s {
			t.Fatalf("ParseStage(%q) = %v", s, got)
		}
	}

	if _, err := ParseStage("doppler"); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("ParseStage(doppler): got %v", err)
	}

	if got := Stage(200).String(); got != "Stage(200)" {
		t.Fatalf("String() = %q", got)
	}
}
