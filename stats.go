package algopulse

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// Accumulator keeps running min/mean/max/count statistics.
// The zero value is empty and ready to use.
type Accumulator struct {
	Min   float64
	Max   float64
	Sum   float64
	Count int
}

// Add folds v into the statistics.
func (a *Accumulator) Add(v float64) {
	if a.Count == 0 {
		a.Min, a.Max = v, v
	} else {
		a.Min = math.Min(a.Min, v)
		a.Max = math.Max(a.Max, v)
	}

	a.Sum += v
	a.Count++
}

// Merge folds another accumulator into a.
func (a *Accumulator) Merge(b Accumulator) {
	if b.Count == 0 {
		return
	}

	if a.Count == 0 {
		*a = b
		return
	}

	a.Min = math.Min(a.Min, b.Min)
	a.Max = math.Max(a.Max, b.Max)
	a.Sum += b.Sum
	a.Count += b.Count
}

// Mean returns the arithmetic mean, or 0 when empty.
func (a Accumulator) Mean() float64 {
	if a.Count == 0 {
		return 0
	}

	return a.Sum / float64(a.Count)
}

func (a Accumulator) String() string {
	return fmt.Sprintf("min=%.3gs mean=%.3gs max=%.3gs n=%d", a.Min, a.Mean(), a.Max, a.Count)
}

// Diagnostics accumulates per-row timings for the five row phases. It is
// safe for concurrent use.
type Diagnostics struct {
	mu     sync.Mutex
	phases [numRowPhases]Accumulator
	rows   int
}

// Observe adds row's phases from t and returns the number of rows observed
// so far.
func (d *Diagnostics) Observe(t *TimingTable, row int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	for p := range d.phases {
		d.phases[p].Add(t.seconds[p][row])
	}

	d.rows++

	return d.rows
}

// Phase returns a copy of the statistics of one row phase. PhaseRowTotal is
// not tracked and returns an empty Accumulator.
func (d *Diagnostics) Phase(p Phase) Accumulator {
	if p < 0 || int(p) >= numRowPhases {
		return Accumulator{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.phases[p]
}

// Rows returns the number of rows observed.
func (d *Diagnostics) Rows() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.rows
}

// String prints one "name: stats" entry per phase.
func (d *Diagnostics) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var b strings.Builder

	fmt.Fprintf(&b, "rows=%d", d.rows)

	for p, acc := range d.phases {
		fmt.Fprintf(&b, " %s[%s]", Phase(p), acc)
	}

	return b.String()
}
