package runtime_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirkhaki/watson/pkg/runtime"
)

// iterate runs program n times under s and returns every result.
func iterate(t *testing.T, s runtime.Strategy, n int, program func(*runtime.Runtime)) []runtime.Result {
	t.Helper()
	rt := runtime.New(s, runtime.Options{})
	defer rt.Close()
	var results []runtime.Result
	for i := range n {
		require.NoError(t, s.InitIteration(i))
		results = append(results, rt.Run(context.Background(), program))
		s.ResetIteration(i)
	}
	return results
}

func counter(locked bool) func(*runtime.Runtime) {
	return func(rt *runtime.Runtime) {
		count := runtime.NewVar(rt, 0)
		mu := runtime.NewMutex(rt)
		var ids []runtime.TaskID
		for range 2 {
			ids = append(ids, rt.Go(func() {
				if locked {
					mu.Lock()
					defer mu.Unlock()
				}
				rt.Assert(rt.Registry().Running() <= 1, "%d tasks running", rt.Registry().Running())
				count.Store(count.Load() + 1)
				rt.Assert(rt.Registry().Running() <= 1, "%d tasks running", rt.Registry().Running())
			}))
		}
		for _, id := range ids {
			rt.Join(id)
		}
		rt.Assert(count.Load() == 2, "lost update")
	}
}

func TestLockedCounterNeverFails(t *testing.T) {
	for i, res := range iterate(t, runtime.NewRandomStrategy(1), 50, counter(true)) {
		require.Equal(t, runtime.OutcomeSuccess, res.Outcome, "iteration %d: %v", i, res)
		assert.NotEmpty(t, res.Schedule)
	}
}

func TestBuggyCounterFails(t *testing.T) {
	var failure *runtime.AssertionError
	for _, res := range iterate(t, runtime.NewRandomStrategy(1), 200, counter(false)) {
		if res.Outcome == runtime.OutcomeAssertionFailure {
			require.ErrorAs(t, res.Err, &failure)
			break
		}
		require.Equal(t, runtime.OutcomeSuccess, res.Outcome, res.String())
	}
	require.NotNil(t, failure, "no iteration lost an update")
	assert.Equal(t, "lost update", failure.Msg)
	assert.Equal(t, runtime.TaskID(1), failure.Task)
}

func TestDeadlock(t *testing.T) {
	program := func(rt *runtime.Runtime) {
		mu := runtime.NewMutex(rt)
		mu.Lock()
		id := rt.Go(func() { mu.Lock() })
		rt.Join(id)
	}
	for _, res := range iterate(t, runtime.NewRandomStrategy(3), 5, program) {
		require.Equal(t, runtime.OutcomeDeadlock, res.Outcome, res.String())
		assert.Equal(t, []runtime.TaskID{1, 2}, res.Deadlocked)
		assert.True(t, res.Outcome.Bug())
	}
}

func TestAssumeBlocks(t *testing.T) {
	program := func(rt *runtime.Runtime) {
		id := rt.Go(func() {
			rt.Assume(false)
			rt.Assert(false, "unreachable")
		})
		rt.Assume(true)
		rt.Join(id)
	}
	for _, res := range iterate(t, runtime.NewRandomStrategy(5), 5, program) {
		assert.Equal(t, runtime.OutcomeBlocked, res.Outcome, res.String())
	}
}

func TestPanicIsAFailure(t *testing.T) {
	program := func(rt *runtime.Runtime) {
		rt.Join(rt.Go(func() { panic("boom") }))
	}
	res := iterate(t, runtime.NewRandomStrategy(1), 1, program)[0]
	require.Equal(t, runtime.OutcomeAssertionFailure, res.Outcome)
	assert.ErrorContains(t, res.Err, "boom")
}

func TestMutexMisuse(t *testing.T) {
	recursive := func(rt *runtime.Runtime) {
		mu := runtime.NewMutex(rt)
		mu.Lock()
		mu.Lock()
	}
	res := iterate(t, runtime.NewRandomStrategy(1), 1, recursive)[0]
	assert.Equal(t, runtime.OutcomeAssertionFailure, res.Outcome)
	assert.ErrorContains(t, res.Err, "recursive lock")

	foreign := func(rt *runtime.Runtime) {
		mu := runtime.NewMutex(rt)
		mu.Lock()
		rt.Join(rt.Go(func() { mu.Unlock() }))
	}
	res = iterate(t, runtime.NewRandomStrategy(1), 1, foreign)[0]
	assert.Equal(t, runtime.OutcomeAssertionFailure, res.Outcome)
	assert.ErrorContains(t, res.Err, "not held")
}

func TestParkHandoff(t *testing.T) {
	program := func(rt *runtime.Runtime) {
		box := runtime.NewVar(rt, 0)
		consumer := rt.Go(func() {
			rt.Park()
			rt.Assert(box.Load() == 7, "woke up early")
		})
		producer := rt.Go(func() {
			box.Store(7)
			rt.Unpark(consumer)
		})
		rt.Join(producer)
		rt.Join(consumer)
	}
	for _, res := range iterate(t, runtime.NewRandomStrategy(11), 50, program) {
		require.Equal(t, runtime.OutcomeSuccess, res.Outcome, res.String())
	}
}

func TestTimeout(t *testing.T) {
	s := runtime.NewRandomStrategy(1)
	rt := runtime.New(s, runtime.Options{})
	defer rt.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, s.InitIteration(0))
	res := rt.Run(ctx, func(rt *runtime.Runtime) {
		v := runtime.NewVar(rt, 0)
		for {
			v.Store(v.Load() + 1)
		}
	})
	s.ResetIteration(0)
	assert.Equal(t, runtime.OutcomeTimeout, res.Outcome)
	assert.ErrorIs(t, res.Err, runtime.ErrTimeout)
}

func TestReplayReproducesFailure(t *testing.T) {
	rec := runtime.NewRecordStrategy(runtime.NewRandomStrategy(1))
	rt := runtime.New(rec, runtime.Options{})
	var failed runtime.Result
	for i := 0; i < 200 && failed.Outcome != runtime.OutcomeAssertionFailure; i++ {
		require.NoError(t, rec.InitIteration(i))
		failed = rt.Run(context.Background(), counter(false))
		rec.ResetIteration(i)
	}
	rt.Close()
	require.Equal(t, runtime.OutcomeAssertionFailure, failed.Outcome)
	require.Equal(t, failed.Schedule, runtime.ScheduleOf(rec.Trace()))

	filename := filepath.Join(t.TempDir(), "failure.trace")
	require.NoError(t, rec.RecordTrace(filename))
	replay, err := runtime.LoadReplayStrategy(filename)
	require.NoError(t, err)

	res := iterate(t, replay, 1, counter(false))[0]
	assert.Equal(t, runtime.OutcomeAssertionFailure, res.Outcome)
	assert.Equal(t, failed.Schedule, res.Schedule)

	h, ok := runtime.AsHalt(replay.InitIteration(1))
	require.True(t, ok)
	assert.Equal(t, runtime.HaltChecker, h.Kind)
}

func TestCoverageCountsSchedules(t *testing.T) {
	cov := runtime.NewCoverageStrategy(runtime.NewRandomStrategy(2))
	iterate(t, cov, 30, counter(true))
	assert.Equal(t, 30, cov.Iterations())
	assert.GreaterOrEqual(t, cov.Distinct(), 2)
	assert.Equal(t, cov.Iterations()-cov.Distinct(), cov.Duplicates())
}

func TestIndependentSessions(t *testing.T) {
	var wg sync.WaitGroup
	results := make([][]runtime.Result, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = iterate(t, runtime.NewRandomStrategy(int64(i)), 20, counter(true))
		}()
	}
	wg.Wait()
	for _, rs := range results {
		for _, res := range rs {
			assert.Equal(t, runtime.OutcomeSuccess, res.Outcome, res.String())
		}
	}
}
