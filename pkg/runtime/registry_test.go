package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirkhaki/watson/pkg/runtime"
)

func TestRegistryPauseResume(t *testing.T) {
	r := runtime.NewRegistry()
	id := r.Create()
	assert.Equal(t, runtime.TaskID(1), id)

	h, err := r.Pause(id)
	require.NoError(t, err)
	state, ok := r.State(id)
	require.True(t, ok)
	assert.Equal(t, runtime.TaskBlocked, state)

	require.NoError(t, r.Resume(id))
	assert.Nil(t, h.Wait())
	state, _ = r.State(id)
	assert.Equal(t, runtime.TaskRunning, state)
	assert.Equal(t, 1, r.Running())
}

func TestRegistryContractViolations(t *testing.T) {
	r := runtime.NewRegistry()
	id := r.Create()

	assert.ErrorIs(t, r.Resume(id), runtime.ErrTaskNotExists)
	assert.ErrorIs(t, r.Resume(42), runtime.ErrTaskNotExists)

	_, err := r.Pause(id)
	require.NoError(t, err)
	_, err = r.Pause(id)
	assert.ErrorIs(t, err, runtime.ErrTaskAlreadyPaused)

	require.NoError(t, r.Resume(id))
	assert.ErrorIs(t, r.Resume(id), runtime.ErrTaskNotExists)
}

func TestRegistryFail(t *testing.T) {
	r := runtime.NewRegistry()
	id := r.Create()
	h, err := r.Pause(id)
	require.NoError(t, err)

	halt := runtime.TaskHalt(id, runtime.ErrBlocked)
	require.NoError(t, r.Fail(id, halt))
	assert.Same(t, halt, h.Wait())
	assert.ErrorIs(t, r.Fail(id, halt), runtime.ErrTaskNotExists)
}

func TestRegistryStopAll(t *testing.T) {
	r := runtime.NewRegistry()
	a, b := r.Create(), r.Create()
	ha, err := r.Pause(a)
	require.NoError(t, err)
	hb, err := r.Pause(b)
	require.NoError(t, err)

	halt := runtime.ExecutionHalt(runtime.ErrStopping)
	r.StopAll(halt)
	assert.Same(t, halt, ha.Wait())
	assert.Same(t, halt, hb.Wait())
	assert.Same(t, halt, r.Stopped())

	// Pausing after the stop completes at once.
	h, err := r.Pause(a)
	require.NoError(t, err)
	assert.Same(t, halt, h.Wait())

	// The first halt wins.
	r.StopAll(runtime.CheckerHalt(runtime.ErrTimeout))
	assert.Same(t, halt, r.Stopped())
}

func TestRegistryReset(t *testing.T) {
	r := runtime.NewRegistry()
	id := r.Create()
	h, err := r.Pause(id)
	require.NoError(t, err)
	r.StopAll(runtime.ExecutionHalt(nil))

	r.Reset()
	got := h.Wait()
	require.NotNil(t, got)
	assert.Nil(t, r.Stopped())
	assert.Empty(t, r.Live())
	assert.Equal(t, runtime.TaskID(1), r.Create())
}

func TestRegistryLive(t *testing.T) {
	r := runtime.NewRegistry()
	a, b, c := r.Create(), r.Create(), r.Create()
	r.Terminate(b)
	assert.Equal(t, []runtime.TaskID{a, c}, r.Live())
	state, _ := r.State(b)
	assert.Equal(t, runtime.TaskTerminated, state)
}

func TestHalt(t *testing.T) {
	h := runtime.TaskHalt(3, runtime.ErrBlocked)
	assert.ErrorIs(t, h, runtime.ErrBlocked)
	assert.False(t, h.OK())

	got, ok := runtime.AsHalt(h)
	require.True(t, ok)
	assert.Equal(t, runtime.HaltTask, got.Kind)
	assert.Equal(t, runtime.TaskID(3), got.Task)

	assert.True(t, runtime.ExecutionHalt(nil).OK())
	assert.True(t, runtime.ExecutionHalt(runtime.ErrStopping).OK())
	assert.False(t, runtime.CheckerHalt(runtime.ErrTimeout).OK())

	_, ok = runtime.AsHalt(runtime.ErrBlocked)
	assert.False(t, ok)
}
