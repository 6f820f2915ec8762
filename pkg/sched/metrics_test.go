package sched

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	s := newTestScheduler(t, Opts{})
	require.NoError(t, s.Spawn(TaskList, Task{PID: 1}))
	require.NoError(t, s.Spawn(TaskList, Task{PID: 2}))
	require.NoError(t, s.Spawn(TaskList, Task{PID: 3}))
	require.NoError(t, s.Attach(RunList, 1))
	require.NoError(t, s.Detach(TaskList, 2))
	_, _, err := s.PopBack(TaskList)
	require.NoError(t, err)
	_, _, err = s.Tick(RunList)
	require.NoError(t, err)

	expected := `
# HELP list_length Number of tasks in the list.
# TYPE list_length gauge
list_length{list="run"} 1
list_length{list="task"} 1
# HELP live_elements Number of allocated tasks, orphans included.
# TYPE live_elements gauge
live_elements 2
# HELP orphaned_elements Number of allocated tasks that are in no list.
# TYPE orphaned_elements gauge
orphaned_elements 1
# HELP pops_total Number of retired tasks.
# TYPE pops_total counter
pops_total 1
# HELP ticks_total Number of round-robin ticks.
# TYPE ticks_total counter
ticks_total 1
`
	c := NewCollector(s)
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
	require.Equal(t, 6, testutil.CollectAndCount(c))
}
