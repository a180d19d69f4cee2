package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amirkhaki/watson/pkg/runtime"
)

func lockEvent(task runtime.TaskID, kind runtime.Kind, lock runtime.Location) runtime.Event {
	return runtime.Event{Task: task, Kind: kind, Loc: &lock}
}

func TestTrackerLocks(t *testing.T) {
	tr := runtime.NewTracker()
	lock := runtime.Location{Task: 1, Seq: 1, Field: "lock"}
	for _, id := range []runtime.TaskID{1, 2, 3} {
		tr.Update(runtime.Event{Task: id, Kind: runtime.KindStart})
	}
	assert.Equal(t, []runtime.TaskID{1, 2, 3}, tr.Active())

	// Two tasks ask for the lock; both stay enabled until one gets it.
	tr.Update(lockEvent(2, runtime.KindLockAcquire, lock))
	tr.Update(lockEvent(3, runtime.KindLockAcquire, lock))
	assert.Equal(t, []runtime.TaskID{1, 2, 3}, tr.Active())

	tr.Update(lockEvent(2, runtime.KindLockAcquired, lock))
	assert.Equal(t, []runtime.TaskID{1, 2}, tr.Active())

	// A request while the lock is held blocks at once.
	tr.Update(lockEvent(1, runtime.KindLockAcquire, lock))
	assert.Equal(t, []runtime.TaskID{2}, tr.Active())

	// Releasing enables every waiter.
	tr.Update(lockEvent(2, runtime.KindLockRelease, lock))
	assert.Equal(t, []runtime.TaskID{1, 2, 3}, tr.Active())

	tr.Update(lockEvent(3, runtime.KindLockAcquired, lock))
	assert.Equal(t, []runtime.TaskID{2, 3}, tr.Active())
}

func TestTrackerJoin(t *testing.T) {
	tr := runtime.NewTracker()
	tr.Update(runtime.Event{Task: 1, Kind: runtime.KindStart})
	tr.Update(runtime.Event{Task: 2, Kind: runtime.KindStart, Target: 1})
	tr.Update(runtime.Event{Task: 3, Kind: runtime.KindStart, Target: 1})

	tr.Update(runtime.Event{Task: 1, Kind: runtime.KindJoinRequest, Target: 2})
	assert.Equal(t, []runtime.TaskID{2, 3}, tr.Active())

	tr.Update(runtime.Event{Task: 2, Kind: runtime.KindFinish})
	assert.Equal(t, []runtime.TaskID{1, 3}, tr.Active())

	// Joining a finished task does not block.
	tr.Update(runtime.Event{Task: 1, Kind: runtime.KindJoinRequest, Target: 2})
	assert.True(t, tr.Enabled(1))

	// A halted task never wakes its joiners.
	tr.Update(runtime.Event{Task: 1, Kind: runtime.KindJoinRequest, Target: 3})
	tr.Update(runtime.Event{Task: 3, Kind: runtime.KindHalt})
	assert.Empty(t, tr.Active())
}

func TestTrackerPark(t *testing.T) {
	tr := runtime.NewTracker()
	tr.Update(runtime.Event{Task: 1, Kind: runtime.KindStart})
	tr.Update(runtime.Event{Task: 2, Kind: runtime.KindStart, Target: 1})

	tr.Update(runtime.Event{Task: 2, Kind: runtime.KindPark})
	assert.False(t, tr.Enabled(2))
	tr.Update(runtime.Event{Task: 1, Kind: runtime.KindUnpark, Target: 2})
	assert.True(t, tr.Enabled(2))

	// An unpark ahead of the park leaves a permit behind.
	tr.Update(runtime.Event{Task: 1, Kind: runtime.KindUnpark, Target: 2})
	tr.Update(runtime.Event{Task: 2, Kind: runtime.KindPark})
	assert.True(t, tr.Enabled(2))
	tr.Update(runtime.Event{Task: 2, Kind: runtime.KindPark})
	assert.False(t, tr.Enabled(2))
}

func TestTrackerReset(t *testing.T) {
	tr := runtime.NewTracker()
	tr.Update(runtime.Event{Task: 1, Kind: runtime.KindStart})
	tr.Reset()
	assert.Empty(t, tr.Active())
	assert.False(t, tr.Enabled(1))
}

func TestRandomStrategyDegenerate(t *testing.T) {
	s := runtime.NewRandomStrategy(7)
	assert.Equal(t, runtime.End(), s.NextTask())

	s.UpdateEvent(runtime.Event{Task: 1, Kind: runtime.KindStart})
	for range 10 {
		assert.Equal(t, runtime.Resume(1), s.NextTask())
	}

	s.UpdateEvent(runtime.Event{Task: 2, Kind: runtime.KindStart, Target: 1})
	seen := map[runtime.TaskID]bool{}
	for range 100 {
		c := s.NextTask()
		assert.Equal(t, runtime.ChoiceTask, c.Kind)
		seen[c.Task] = true
	}
	assert.Len(t, seen, 2)

	s.ResetIteration(0)
	assert.Equal(t, runtime.End(), s.NextTask())
}
