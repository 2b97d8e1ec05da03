package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	algopulse "github.com/cwbudde/algo-pulse"
)

func TestPlotTimings(t *testing.T) {
	t.Parallel()

	tt := algopulse.NewTimingTable(8)
	for row := range 6 {
		tt.RecordRow(row, algopulse.RowTiming{
			Setup:     time.Duration(row+1) * time.Microsecond,
			PhaseCode: 20 * time.Microsecond,
			Transform: time.Duration(50+row) * time.Microsecond,
			PeakFind:  10 * time.Microsecond,
		})
	}

	path := filepath.Join(t.TempDir(), "plots", "timing.png")
	require.NoError(t, PlotTimings(tt, "cpu/algofft", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

func TestPlotTimingsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timing.svg")
	err := PlotTimings(algopulse.NewTimingTable(4), "empty", path)
	require.ErrorIs(t, err, ErrNoRows)

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
