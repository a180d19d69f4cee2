package runtime

import "fmt"

// Outcome classifies one iteration.
type Outcome uint8

const (
	OutcomeSuccess Outcome = iota
	OutcomeAssertionFailure
	OutcomeDeadlock
	OutcomeTimeout
	OutcomeBlocked
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAssertionFailure:
		return "assertion-failure"
	case OutcomeDeadlock:
		return "deadlock"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Bug reports whether the outcome is a defect of the program under test.
func (o Outcome) Bug() bool {
	return o == OutcomeAssertionFailure || o == OutcomeDeadlock
}

// Result is what one iteration produced.
type Result struct {
	Outcome Outcome
	Err     error
	// Schedule lists the tasks in the order the coordinator resumed them.
	Schedule []TaskID
	// Deadlocked holds the tasks left suspended when no task was enabled.
	Deadlocked []TaskID
	// Halt is the first halt raised during the iteration, if any.
	Halt *Halt
}

func (r Result) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s: %v", r.Outcome, r.Err)
	case len(r.Deadlocked) > 0:
		return fmt.Sprintf("%s: tasks %v", r.Outcome, r.Deadlocked)
	default:
		return r.Outcome.String()
	}
}

// AssertionError is the failure raised by Runtime.Assert.
type AssertionError struct {
	Task TaskID
	Msg  string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed in task %d: %s", e.Task, e.Msg)
}
