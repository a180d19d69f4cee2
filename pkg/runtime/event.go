package runtime

import "fmt"

// Kind represents the type of event
type Kind uint8

const (
	KindStart Kind = iota + 1
	KindFinish
	KindHalt
	KindRead
	KindWrite
	KindLockAcquire
	KindLockAcquired
	KindLockRelease
	KindJoinRequest
	KindJoinComplete
	KindPark
	KindUnpark
	KindAssume
	// KindSchedule never reaches a strategy; it marks a resumption in a recorded trace.
	KindSchedule
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindFinish:
		return "finish"
	case KindHalt:
		return "halt"
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindLockAcquire:
		return "lock-acquire"
	case KindLockAcquired:
		return "lock-acquired"
	case KindLockRelease:
		return "lock-release"
	case KindJoinRequest:
		return "join-request"
	case KindJoinComplete:
		return "join-complete"
	case KindPark:
		return "park"
	case KindUnpark:
		return "unpark"
	case KindAssume:
		return "assume"
	case KindSchedule:
		return "schedule"
	default:
		return "unknown"
	}
}

// Location identifies one shared cell: the task that allocated it, the
// allocation's sequence number within that task, and a field name.
// Re-running a task with the same schedule prefix yields the same locations.
type Location struct {
	Task  TaskID `json:"task"`
	Seq   int    `json:"seq"`
	Field string `json:"field,omitempty"`
}

func (l Location) String() string {
	if l.Field == "" {
		return fmt.Sprintf("%d.%d", l.Task, l.Seq)
	}
	return fmt.Sprintf("%d.%d.%s", l.Task, l.Seq, l.Field)
}

// Event represents a single observation reported by a task.
type Event struct {
	Task TaskID    `json:"task"`
	Kind Kind      `json:"kind"`
	Loc  *Location `json:"loc,omitempty"`
	// Target is the related task: the parent for start, the awaited task
	// for joins, the woken task for unpark.
	Target TaskID `json:"target,omitempty"`
	// Holds is the outcome of an assumption.
	Holds bool `json:"holds,omitempty"`
}

func (e Event) String() string {
	s := fmt.Sprintf("%s(task=%d", e.Kind, e.Task)
	if e.Loc != nil {
		s += " loc=" + e.Loc.String()
	}
	if e.Target != 0 {
		s += fmt.Sprintf(" target=%d", e.Target)
	}
	return s + ")"
}
