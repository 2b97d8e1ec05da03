package algopulse

import (
	"fmt"
	"time"
)

// Phase names one row of the timing table.
type Phase int

const (
	PhaseSetup Phase = iota
	PhasePhaseCode
	PhaseTransform
	PhasePeakFind
	PhaseCleanup
	PhaseRowTotal
)

// NumPhases is the number of rows in a TimingTable.
const NumPhases = 6

// numRowPhases counts the phases that make up a row total.
const numRowPhases = 5

var phaseNames = [NumPhases]string{"Setup", "Phasecode", "Transform", "Peakfind", "Cleanup", "RowTotal"}

func (p Phase) String() string {
	if p >= 0 && int(p) < NumPhases {
		return phaseNames[p]
	}

	return fmt.Sprintf("Phase(%d)", int(p))
}

// RowTiming is the measured time of each phase for one range row.
// Total is the wall time of the whole row; zero means "sum of phases".
type RowTiming struct {
	Setup     time.Duration
	PhaseCode time.Duration
	Transform time.Duration
	PeakFind  time.Duration
	Cleanup   time.Duration
	Total     time.Duration
}

// TimingTable records per-phase seconds for every range row, shaped
// [NumPhases][Rows]. Rows never recorded keep their initial value of 0.
//
// Distinct rows may be recorded concurrently.
type TimingTable struct {
	Rows      int
	seconds   [NumPhases][]float64
	processed []bool
}

// NewTimingTable allocates a zeroed table for rows range rows.
func NewTimingTable(rows int) *TimingTable {
	t := &TimingTable{
		Rows:      rows,
		processed: make([]bool, rows),
	}
	for p := range t.seconds {
		t.seconds[p] = make([]float64, rows)
	}

	return t
}

// Get returns the seconds recorded for phase p at row.
func (t *TimingTable) Get(p Phase, row int) float64 {
	return t.seconds[p][row]
}

// Phase returns the per-row series of phase p. The slice aliases the table.
func (t *TimingTable) Phase(p Phase) []float64 {
	return t.seconds[p]
}

// Processed reports whether row was recorded.
func (t *TimingTable) Processed(row int) bool {
	return t.processed[row]
}

// RecordRow stores one row's timings. RowTotal is the measured total, raised
// to the sum of the five phases if the measurement came out smaller.
func (t *TimingTable) RecordRow(row int, rt RowTiming) {
	phases := [numRowPhases]float64{
		rt.Setup.Seconds(),
		rt.PhaseCode.Seconds(),
		rt.Transform.Seconds(),
		rt.PeakFind.Seconds(),
		rt.Cleanup.Seconds(),
	}

	sum := 0.0
	for p, v := range phases {
		t.seconds[p][row] = v
		sum += v
	}

	total := rt.Total.Seconds()
	if total < sum {
		total = sum
	}

	t.seconds[PhaseRowTotal][row] = total
	t.processed[row] = true
}

// Summary folds every processed row into a Diagnostics value.
func (t *TimingTable) Summary() *Diagnostics {
	d := &Diagnostics{}
	for row, ok := range t.processed {
		if ok {
			d.Observe(t, row)
		}
	}

	return d
}
