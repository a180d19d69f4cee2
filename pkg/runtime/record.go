package runtime

// RecordStrategy wraps another strategy and records, for the current
// iteration, every reported event and every resumption it decides.
type RecordStrategy struct {
	Strategy
	trace []Event
	last  []Event
}

// NewRecordStrategy creates a new recording strategy around inner.
func NewRecordStrategy(inner Strategy) *RecordStrategy {
	return &RecordStrategy{Strategy: inner}
}

func (s *RecordStrategy) InitIteration(i int) error {
	s.trace = nil
	return s.Strategy.InitIteration(i)
}

// UpdateEvent records the event and forwards it.
func (s *RecordStrategy) UpdateEvent(e Event) error {
	s.trace = append(s.trace, e)
	return s.Strategy.UpdateEvent(e)
}

func (s *RecordStrategy) NextTask() Choice {
	c := s.Strategy.NextTask()
	if c.Kind == ChoiceTask {
		s.trace = append(s.trace, Event{Task: c.Task, Kind: KindSchedule})
	}
	return c
}

func (s *RecordStrategy) ResetIteration(i int) {
	s.last = s.trace
	s.trace = nil
	s.Strategy.ResetIteration(i)
}

// Trace returns the trace of the last completed iteration.
func (s *RecordStrategy) Trace() []Event {
	return s.last
}

// RecordTrace saves the trace of the last completed iteration.
func (s *RecordStrategy) RecordTrace(filename string) error {
	return SaveTrace(filename, s.last)
}
