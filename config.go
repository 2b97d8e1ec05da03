package algopulse

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage selects how much of the decode pipeline a call runs.
type Stage uint8

const (
	// StageFull runs phase-code, transform and peak-find for every range row.
	StageFull Stage = iota
	// StagePhaseCodeOnly runs the phase-code correlation for the inspected
	// row and captures its output.
	StagePhaseCodeOnly
	// StagePostTransform runs phase-code and transform for the inspected row
	// and captures the spectrum.
	StagePostTransform
	// StagePower is reserved. Requesting it fails with ErrUnsupportedStage.
	StagePower
	// StageTimeIntegration is reserved for pulse integration and currently
	// returns without processing any row.
	StageTimeIntegration
)

var stageNames = [...]string{
	StageFull:            "full",
	StagePhaseCodeOnly:   "phasecode",
	StagePostTransform:   "transform",
	StagePower:           "power",
	StageTimeIntegration: "integration",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}

	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// ParseStage maps a stage name (as printed by String) to its Stage.
func ParseStage(name string) (Stage, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidStage, name)
}

// DecodingConfig describes one decode call. The caller fills the request
// fields; the backend fills the reported fields to record what actually ran.
// A config must not be shared between concurrent decode calls.
type DecodingConfig struct {
	Stage Stage
	// InspectRow is the range row processed by partial stages.
	InspectRow int
	// TransformSize is the per-row DFT length F.
	TransformSize int

	// Reported by the backend.
	Threads        int
	DeviceName     string
	Elapsed        time.Duration
	BackendName    string
	BackendVersion string
	RunID          uuid.UUID
}

// String summarizes the reported metadata for logs.
func (c *DecodingConfig) String() string {
	return fmt.Sprintf("stage=%s row=%d fft=%d backend=%s/%s device=%q threads=%d elapsed=%s",
		c.Stage, c.InspectRow, c.TransformSize, c.BackendName, c.BackendVersion,
		c.DeviceName, c.Threads, c.Elapsed)
}
