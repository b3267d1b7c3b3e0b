package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRescheduleAlignsWithOriginalCadence(t *testing.T) {
	task := &Task{start: 0, deadline: 100}

	// period 100, so the repair window is 200 wide; the first slot past
	// current+200 that lies on the original cadence is 600
	rescheduleTask(task, 250, 10)

	assert.Equal(t, Tick(600), task.start)
	assert.Equal(t, Tick(800), task.deadline)
}

func TestRescheduleStopsAtFirstAlignedSlot(t *testing.T) {
	task := &Task{start: 0, deadline: 100}

	rescheduleTask(task, 0, 10)

	// current is 0, so the very first advance already clears current+delta
	assert.Equal(t, Tick(400), task.start)
	assert.Equal(t, Tick(600), task.deadline)
}

func TestRescheduleFallsBackWhenDriftedTooFar(t *testing.T) {
	task := &Task{start: 0, deadline: 1}
	current := Tick(1_000_000)

	// delta is 2 ticks; ten tries advance start to at most 20, nowhere
	// near current, so alignment is abandoned
	rescheduleTask(task, current, 10)

	assert.Equal(t, current+2, task.start)
	assert.Equal(t, current+4, task.deadline)
}

func TestRescheduleAlwaysProducesFutureWindow(t *testing.T) {
	cases := []struct {
		name     string
		start    Tick
		deadline Tick
		current  Tick
	}{
		{"just missed", 0, 1000, 1001},
		{"missed by one period", 0, 1000, 2000},
		{"missed by many periods", 0, 1000, 50_000},
		{"short period far behind", 100, 110, 90_000},
		{"long period", 0, 1_000_000, 2_500_000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := &Task{start: tc.start, deadline: tc.deadline}
			delta := (tc.deadline - tc.start) << 1

			rescheduleTask(task, tc.current, 10)

			require.Greater(t, task.deadline, task.start)
			assert.Equal(t, task.start+delta, task.deadline,
				"repair keeps twice the period as slack")
			assert.Greater(t, task.start, tc.current,
				"the repaired window must lie in the future")
		})
	}
}
