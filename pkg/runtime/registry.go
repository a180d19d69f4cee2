package runtime

import (
	"errors"
	"sort"
	"sync"
)

// TaskID identifies a task within one iteration. IDs start at 1; 0 means no task.
type TaskID int

// TaskState is the lifecycle state of a task.
type TaskState uint8

const (
	TaskCreated TaskState = iota + 1
	TaskRunning
	TaskBlocked
	TaskTerminated
)

func (s TaskState) String() string {
	switch s {
	case TaskCreated:
		return "created"
	case TaskRunning:
		return "running"
	case TaskBlocked:
		return "blocked"
	case TaskTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

var (
	ErrTaskAlreadyPaused = errors.New("task already paused")
	ErrTaskNotExists     = errors.New("task does not exist")
)

// Handle is a single-use suspension point. The paused task blocks in Wait
// until the registry resumes it (nil) or fails it with a halt.
type Handle struct {
	ch chan *Halt
}

func newHandle() *Handle {
	return &Handle{ch: make(chan *Halt, 1)}
}

// Wait blocks until the handle is completed.
func (h *Handle) Wait() *Halt {
	return <-h.ch
}

// Registry tracks task identity, lifecycle state and suspension handles.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	next    TaskID
	states  map[TaskID]TaskState
	handles map[TaskID]*Handle
	// stopped is set once every task has been told to halt; later pauses
	// complete immediately with it.
	stopped *Halt
}

func NewRegistry() *Registry {
	return &Registry{
		states:  make(map[TaskID]TaskState),
		handles: make(map[TaskID]*Handle),
	}
}

// Create registers a new task and returns its id.
func (r *Registry) Create() TaskID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.states[r.next] = TaskCreated
	return r.next
}

// Pause creates the suspension handle for id.
func (r *Registry) Pause(id TaskID) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[id]; ok {
		return nil, ErrTaskAlreadyPaused
	}
	h := newHandle()
	if r.stopped != nil {
		h.ch <- r.stopped
		return h, nil
	}
	r.handles[id] = h
	r.states[id] = TaskBlocked
	return h, nil
}

// Resume completes the pending handle of id and marks the task running.
func (r *Registry) Resume(id TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if !ok {
		return ErrTaskNotExists
	}
	delete(r.handles, id)
	r.states[id] = TaskRunning
	h.ch <- nil
	return nil
}

// Fail completes the pending handle of id with halt.
func (r *Registry) Fail(id TaskID, halt *Halt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if !ok {
		return ErrTaskNotExists
	}
	delete(r.handles, id)
	h.ch <- halt
	return nil
}

// StopAll fails every pending handle with halt. Tasks pausing afterwards
// are failed immediately, until Reset.
func (r *Registry) StopAll(halt *Halt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped == nil {
		r.stopped = halt
	}
	for id, h := range r.handles {
		delete(r.handles, id)
		h.ch <- halt
	}
}

// Stopped returns the halt passed to StopAll, or nil.
func (r *Registry) Stopped() *Halt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *Registry) Terminate(id TaskID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, id)
	r.states[id] = TaskTerminated
}

// Reset forgets every task. Pending handles are completed with a stopping halt.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, h := range r.handles {
		h.ch <- ExecutionHalt(ErrStopping)
		delete(r.handles, id)
	}
	r.next = 0
	r.states = make(map[TaskID]TaskState)
	r.stopped = nil
}

func (r *Registry) State(id TaskID) (TaskState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[id]
	return s, ok
}

// Running returns the number of tasks currently in the running state.
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s == TaskRunning {
			n++
		}
	}
	return n
}

// Live returns the ids of tasks that have not terminated, sorted.
func (r *Registry) Live() []TaskID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []TaskID
	for id, s := range r.states {
		if s != TaskTerminated {
			ids = append(ids, id)
		}
	}
	sortTaskIDs(ids)
	return ids
}

func sortTaskIDs(s []TaskID) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}
