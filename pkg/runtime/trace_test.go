package runtime_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirkhaki/watson/pkg/runtime"
)

func TestTraceIsJSONLines(t *testing.T) {
	loc := runtime.Location{Task: 1, Seq: 2, Field: "lock"}
	trace := []runtime.Event{
		{Task: 2, Kind: runtime.KindStart, Target: 1},
		{Task: 2, Kind: runtime.KindSchedule},
		{Task: 2, Kind: runtime.KindLockAcquire, Loc: &loc},
	}
	var buf bytes.Buffer
	require.NoError(t, runtime.WriteTrace(&buf, trace))
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), len(trace))

	got, err := runtime.ReadTrace(&buf)
	require.NoError(t, err)
	assert.Equal(t, trace, got)
	assert.Equal(t, []runtime.TaskID{2}, runtime.ScheduleOf(got))
}

func TestReadTraceRejectsGarbage(t *testing.T) {
	_, err := runtime.ReadTrace(strings.NewReader(`{"task":1,"kind":1}` + "\n" + `{"task":`))
	assert.ErrorContains(t, err, "event 1")
}

func TestLoadTraceMissingFile(t *testing.T) {
	_, err := runtime.LoadReplayStrategy("does-not-exist.trace")
	assert.Error(t, err)
}
