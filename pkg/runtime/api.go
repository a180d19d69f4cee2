package runtime

import "fmt"

// Go starts f as a new task and returns its id. The caller is suspended
// until the coordinator picks it again.
func (rt *Runtime) Go(f func()) TaskID {
	parent := rt.CurrentTask()
	rt.unwindIfStopped(parent)
	id := rt.registry.Create()
	h, err := rt.registry.Pause(parent)
	if err != nil {
		rt.fail(fmt.Errorf("task %d: spawn: %w", parent, err))
		rt.stop(parent, ExecutionHalt(err))
	}
	rt.sched.clearCurrent()
	rt.wg.Add(1)
	go rt.runTask(id, parent, f)
	if halt := h.Wait(); halt != nil {
		rt.stop(parent, halt)
	}
	return id
}

// Join blocks the calling task until task id has finished.
func (rt *Runtime) Join(id TaskID) {
	self := rt.CurrentTask()
	rt.unwindIfStopped(self)
	rt.step(Event{Task: self, Kind: KindJoinRequest, Target: id}, true)
	rt.step(Event{Task: self, Kind: KindJoinComplete, Target: id}, false)
}

// Yield hands control to the coordinator without reporting an event.
func (rt *Runtime) Yield() {
	self := rt.CurrentTask()
	rt.unwindIfStopped(self)
	if h := rt.yield(self); h != nil {
		rt.stop(self, h)
	}
}

// Assert records an assertion failure and ends the iteration when cond is false.
func (rt *Runtime) Assert(cond bool, format string, args ...any) {
	if cond || rt.stopping() {
		return
	}
	self := rt.CurrentTask()
	err := &AssertionError{Task: self, Msg: fmt.Sprintf(format, args...)}
	rt.fail(err)
	rt.stop(self, ExecutionHalt(err))
}

// Assume stops the calling task when cond is false. The iteration is then
// reported as blocked rather than failed.
func (rt *Runtime) Assume(cond bool) {
	self := rt.CurrentTask()
	rt.unwindIfStopped(self)
	rt.step(Event{Task: self, Kind: KindAssume, Holds: cond}, cond)
	if !cond {
		rt.stop(self, TaskHalt(self, ErrBlocked))
	}
}

// Park suspends the calling task until another task unparks it. A permit
// granted earlier by Unpark is consumed instead.
func (rt *Runtime) Park() {
	self := rt.CurrentTask()
	rt.unwindIfStopped(self)
	rt.step(Event{Task: self, Kind: KindPark}, true)
}

// Unpark wakes task id, or grants it a permit if it is not parked.
func (rt *Runtime) Unpark(id TaskID) {
	self := rt.CurrentTask()
	rt.unwindIfStopped(self)
	rt.step(Event{Task: self, Kind: KindUnpark, Target: id}, true)
}

func (rt *Runtime) access(kind Kind, loc Location) {
	self := rt.CurrentTask()
	rt.unwindIfStopped(self)
	rt.step(Event{Task: self, Kind: kind, Loc: &loc}, true)
}

// Var is a shared variable. Every access is a scheduling point: the access
// is reported, the task yields, and the access happens once it is resumed.
type Var[T any] struct {
	rt  *Runtime
	loc Location
	val T
}

func NewVar[T any](rt *Runtime, v T) *Var[T] {
	return &Var[T]{rt: rt, loc: rt.alloc(""), val: v}
}

func (v *Var[T]) Load() T {
	v.rt.access(KindRead, v.loc)
	return v.val
}

func (v *Var[T]) Store(x T) {
	v.rt.access(KindWrite, v.loc)
	v.val = x
}

func (v *Var[T]) Location() Location { return v.loc }

// Mutex is a non-reentrant lock whose operations are scheduling points.
// Mutual exclusion comes from the coordinator: a task asking for a held
// mutex is not resumed until the owner releases it.
type Mutex struct {
	rt    *Runtime
	loc   Location
	owner TaskID
}

func NewMutex(rt *Runtime) *Mutex {
	return &Mutex{rt: rt, loc: rt.alloc("lock")}
}

func (m *Mutex) Lock() {
	self := m.rt.CurrentTask()
	m.rt.unwindIfStopped(self)
	if m.owner == self {
		err := fmt.Errorf("task %d: recursive lock of mutex %s", self, m.loc)
		m.rt.fail(err)
		m.rt.stop(self, ExecutionHalt(err))
	}
	m.rt.step(Event{Task: self, Kind: KindLockAcquire, Loc: &m.loc}, true)
	if m.owner != 0 {
		err := fmt.Errorf("task %d resumed while mutex %s is held by task %d", self, m.loc, m.owner)
		m.rt.fail(err)
		m.rt.stop(self, ExecutionHalt(err))
	}
	m.owner = self
	m.rt.step(Event{Task: self, Kind: KindLockAcquired, Loc: &m.loc}, false)
}

func (m *Mutex) Unlock() {
	self := m.rt.CurrentTask()
	if m.rt.stopping() {
		m.owner = 0
		return
	}
	if m.owner != self {
		err := fmt.Errorf("task %d: unlock of mutex %s not held by it", self, m.loc)
		m.rt.fail(err)
		m.rt.stop(self, ExecutionHalt(err))
	}
	m.owner = 0
	m.rt.step(Event{Task: self, Kind: KindLockRelease, Loc: &m.loc}, true)
}

func (m *Mutex) Location() Location { return m.loc }
