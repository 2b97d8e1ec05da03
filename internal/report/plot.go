// Package report renders decode timing tables.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	algopulse "github.com/cwbudde/algo-pulse"
)

// ErrNoRows is returned when a timing table has no processed rows to plot.
var ErrNoRows = errors.New("report: timing table has no processed rows")

// phaseColors is indexed by algopulse.Phase.
var phaseColors = [algopulse.NumPhases]color.Color{
	color.RGBA{R: 128, G: 128, B: 128, A: 255},
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
}

// PlotTimings draws one line per phase of t against the range row and saves
// it to path. The image format follows the file extension (png, svg, pdf).
// Rows that were never processed are skipped.
func PlotTimings(t *algopulse.TimingTable, title, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Range row"
	p.Y.Label.Text = "Time (ms)"

	rows := 0
	for row := range t.Rows {
		if t.Processed(row) {
			rows++
		}
	}
	if rows == 0 {
		return ErrNoRows
	}

	for ph := range algopulse.NumPhases {
		phase := algopulse.Phase(ph)
		series := t.Phase(phase)

		pts := make(plotter.XYs, 0, rows)
		for row, sec := range series {
			if t.Processed(row) {
				pts = append(pts, plotter.XY{X: float64(row), Y: sec * 1e3})
			}
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("%s line: %w", phase, err)
		}
		line.Color = phaseColors[ph]
		line.Width = vg.Points(1)
		if phase == algopulse.PhaseRowTotal {
			line.Width = vg.Points(2)
		}

		p.Add(line)
		p.Legend.Add(phase.String(), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save timing plot: %w", err)
	}

	return nil
}
