package gpu

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	algopulse "github.com/cwbudde/algo-pulse"
)

// recordingQueue remembers the wait-list of every enqueued kernel.
type recordingQueue struct {
	Queue

	mu    sync.Mutex
	waits map[Event][]Event
}

func (q *recordingQueue) EnqueueKernel(k Kernel, global int, waitList []Event) (Event, error) {
	ev, err := q.Queue.EnqueueKernel(k, global, waitList)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.waits[ev] = append([]Event(nil), waitList...)

	return ev, nil
}

func TestEnqueueRowChainsRows(t *testing.T) {
	t.Parallel()

	const rows = 24

	ctx, prog := newSoftContext(t)
	samples := randomSamples(t, 2, 2, rows, 5)

	plan, err := newDecodePlan(ctx, prog, samples, algopulse.PhaseCode{1, -1, 1}, 8)
	require.NoError(t, err)
	defer func() { _ = plan.Close() }()

	rec := &recordingQueue{Queue: plan.queue, waits: make(map[Event][]Event)}
	plan.queue = rec

	sched, err := algopulse.ScheduleFor(&algopulse.DecodingConfig{Stage: algopulse.StageFull, TransformSize: 8}, rows)
	require.NoError(t, err)

	events := make([]rowEvents, 0, rows)
	var prev Event
	for _, row := range sched.Rows {
		ev, err := plan.enqueueRow(row, sched, prev)
		require.NoError(t, err)
		events = append(events, ev)
		prev = ev.last()
	}
	require.NoError(t, rec.Finish())

	assert.Empty(t, rec.waits[events[0].phaseCode], "row 0 has no predecessor")

	for i, ev := range events {
		require.NotNil(t, ev.peakFind, "row %d", i)
		assert.Equal(t, []Event{ev.phaseCode}, rec.waits[ev.transform], "row %d", i)
		assert.Equal(t, []Event{ev.transform}, rec.waits[ev.peakFind], "row %d", i)

		if i == 0 {
			continue
		}

		assert.Equal(t, []Event{events[i-1].peakFind}, rec.waits[ev.phaseCode], "row %d", i)

		start, err := ev.phaseCode.Profile()
		require.NoError(t, err)
		before, err := events[i-1].peakFind.Profile()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, start.Start, before.End, "row %d starts before row %d finished", i, i-1)
	}
}

func TestEnqueueRowPartialStage(t *testing.T) {
	t.Parallel()

	ctx, prog := newSoftContext(t)
	samples := randomSamples(t, 1, 2, 6, 8)

	plan, err := newDecodePlan(ctx, prog, samples, algopulse.PhaseCode{1, 1}, 4)
	require.NoError(t, err)
	defer func() { _ = plan.Close() }()

	cfg := &algopulse.DecodingConfig{Stage: algopulse.StagePhaseCodeOnly, InspectRow: 3, TransformSize: 4}
	sched, err := algopulse.ScheduleFor(cfg, 6)
	require.NoError(t, err)

	ev, err := plan.enqueueRow(3, sched, nil)
	require.NoError(t, err)
	require.NoError(t, plan.queue.Finish())

	assert.NotNil(t, ev.phaseCode)
	assert.Nil(t, ev.transform)
	assert.Nil(t, ev.peakFind)
	assert.Equal(t, ev.phaseCode, ev.last())
}
