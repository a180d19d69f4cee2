package runtime

import (
	"errors"
	"fmt"
)

// ErrReplayDiverged is raised when a run stops following the schedule it replays.
var ErrReplayDiverged = errors.New("replay diverged")

// ReplayStrategy replays a recorded schedule. Once the schedule is
// exhausted the lowest enabled task runs.
type ReplayStrategy struct {
	tracker  *Tracker
	schedule []TaskID
	idx      int
}

// NewReplayStrategy creates a replay strategy from a recorded trace.
func NewReplayStrategy(trace []Event) *ReplayStrategy {
	return &ReplayStrategy{tracker: NewTracker(), schedule: ScheduleOf(trace)}
}

// LoadReplayStrategy creates a replay strategy from a trace file.
func LoadReplayStrategy(filename string) (*ReplayStrategy, error) {
	trace, err := LoadTrace(filename)
	if err != nil {
		return nil, err
	}
	return NewReplayStrategy(trace), nil
}

func (s *ReplayStrategy) InitIteration(i int) error {
	if i > 0 {
		return CheckerHalt(nil)
	}
	return nil
}

func (s *ReplayStrategy) UpdateEvent(e Event) error {
	s.tracker.Update(e)
	return nil
}

func (s *ReplayStrategy) NextTask() Choice {
	if s.idx < len(s.schedule) {
		id := s.schedule[s.idx]
		s.idx++
		if !s.tracker.Enabled(id) {
			return BlockExecution(fmt.Errorf("%w: task %d is not enabled at step %d", ErrReplayDiverged, id, s.idx))
		}
		return Resume(id)
	}
	active := s.tracker.Active()
	if len(active) == 0 {
		return End()
	}
	return Resume(active[0])
}

func (s *ReplayStrategy) ResetIteration(int) {
	s.tracker.Reset()
	s.idx = 0
}

func (s *ReplayStrategy) Teardown() {}

// ScheduleOf extracts the resumption order from a recorded trace.
func ScheduleOf(trace []Event) []TaskID {
	var schedule []TaskID
	for _, e := range trace {
		if e.Kind == KindSchedule {
			schedule = append(schedule, e.Task)
		}
	}
	return schedule
}
