package runtime

// Strategy defines the interface for scheduling strategies.
// Implementations decide which task proceeds at every scheduling point.
//
// A strategy is only ever called by one goroutine at a time: either the
// running task (UpdateEvent) or the coordinator (NextTask) or the checker
// between iterations. It needs no locking of its own.
type Strategy interface {
	// InitIteration prepares iteration i. A checker halt ends the campaign.
	InitIteration(i int) error

	// UpdateEvent observes an event reported by the running task. A returned
	// *Halt stops the reporting task or the whole iteration.
	UpdateEvent(e Event) error

	// NextTask picks what happens at the current scheduling point.
	NextTask() Choice

	// ResetIteration is called once iteration i has fully unwound.
	ResetIteration(i int)

	// Teardown releases resources at the end of the campaign.
	Teardown()
}

// Recorder is a strategy that can save its execution trace.
type Recorder interface {
	Strategy
	Trace() []Event
	RecordTrace(filename string) error
}
