package runtime

import (
	"errors"
	"fmt"
)

// HaltKind tells how far a halt unwinds.
type HaltKind uint8

const (
	// HaltTask stops a single task; the iteration goes on without it.
	HaltTask HaltKind = iota + 1
	// HaltExecution ends the current iteration.
	HaltExecution
	// HaltChecker ends the whole checking campaign.
	HaltChecker
)

func (k HaltKind) String() string {
	switch k {
	case HaltTask:
		return "task"
	case HaltExecution:
		return "execution"
	case HaltChecker:
		return "checker"
	default:
		return "unknown"
	}
}

var (
	// ErrStopping is carried by halts issued while tearing an iteration down.
	ErrStopping = errors.New("runtime is stopping")
	// ErrTimeout is carried by the checker halt raised when the campaign runs out of time.
	ErrTimeout = errors.New("timeout exceeded")
	// ErrBlocked is carried by task halts caused by a failed assumption.
	ErrBlocked = errors.New("assumption failed")
)

// Halt is the signal delivered to a suspended task instead of a resume.
// A nil Err means the halt is a normal stop.
type Halt struct {
	Kind HaltKind
	Task TaskID
	Err  error
}

func TaskHalt(id TaskID, err error) *Halt {
	return &Halt{Kind: HaltTask, Task: id, Err: err}
}

func ExecutionHalt(err error) *Halt {
	return &Halt{Kind: HaltExecution, Err: err}
}

func CheckerHalt(err error) *Halt {
	return &Halt{Kind: HaltChecker, Err: err}
}

func (h *Halt) Error() string {
	msg := fmt.Sprintf("%s halt", h.Kind)
	if h.Kind == HaltTask {
		msg = fmt.Sprintf("%s (task %d)", msg, h.Task)
	}
	if h.Err != nil {
		msg += ": " + h.Err.Error()
	}
	return msg
}

func (h *Halt) Unwrap() error { return h.Err }

// OK reports whether the halt is a normal stop rather than a failure.
func (h *Halt) OK() bool {
	return h.Err == nil || errors.Is(h.Err, ErrStopping)
}

// AsHalt extracts a halt from err, if there is one.
func AsHalt(err error) (*Halt, bool) {
	var h *Halt
	if errors.As(err, &h) {
		return h, true
	}
	return nil, false
}
