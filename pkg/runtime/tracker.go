package runtime

// SubTracker derives, from the event stream, the tasks it considers enabled.
type SubTracker interface {
	Update(e Event)
	// Enabled reports whether the tracker lets task id run.
	Enabled(id TaskID) bool
	Reset()
}

// Tracker intersects the answers of its sub-trackers over every task seen.
type Tracker struct {
	seen     map[TaskID]bool
	trackers []SubTracker
}

// NewTracker returns a tracker composed of the lifecycle, lock and park
// trackers, followed by extra.
func NewTracker(extra ...SubTracker) *Tracker {
	trackers := []SubTracker{NewTaskTracker(), NewLockTracker(), NewParkTracker()}
	return &Tracker{
		seen:     make(map[TaskID]bool),
		trackers: append(trackers, extra...),
	}
}

func (t *Tracker) Update(e Event) {
	t.seen[e.Task] = true
	for _, s := range t.trackers {
		s.Update(e)
	}
}

// Active returns the enabled tasks in ascending order.
func (t *Tracker) Active() []TaskID {
	var ids []TaskID
	for id := range t.seen {
		if t.Enabled(id) {
			ids = append(ids, id)
		}
	}
	sortTaskIDs(ids)
	return ids
}

func (t *Tracker) Enabled(id TaskID) bool {
	if !t.seen[id] {
		return false
	}
	for _, s := range t.trackers {
		if !s.Enabled(id) {
			return false
		}
	}
	return true
}

func (t *Tracker) Reset() {
	t.seen = make(map[TaskID]bool)
	for _, s := range t.trackers {
		s.Reset()
	}
}

// TaskTracker follows task lifecycles: started tasks are active until they
// finish or wait on a join.
type TaskTracker struct {
	active    map[TaskID]bool
	completed map[TaskID]bool
	// waiting maps a task to the tasks joining it.
	waiting map[TaskID][]TaskID
}

func NewTaskTracker() *TaskTracker {
	t := &TaskTracker{}
	t.Reset()
	return t
}

func (t *TaskTracker) Reset() {
	t.active = make(map[TaskID]bool)
	t.completed = make(map[TaskID]bool)
	t.waiting = make(map[TaskID][]TaskID)
}

func (t *TaskTracker) Update(e Event) {
	switch e.Kind {
	case KindStart:
		t.active[e.Task] = true
	case KindFinish:
		delete(t.active, e.Task)
		t.completed[e.Task] = true
		for _, w := range t.waiting[e.Task] {
			t.active[w] = true
		}
		delete(t.waiting, e.Task)
	case KindHalt:
		// A halted task never completes; its joiners stay waiting.
		delete(t.active, e.Task)
	case KindJoinRequest:
		if !t.completed[e.Target] {
			t.waiting[e.Target] = append(t.waiting[e.Target], e.Task)
			delete(t.active, e.Task)
		}
	}
}

func (t *TaskTracker) Enabled(id TaskID) bool { return t.active[id] }

// LockTracker disables tasks waiting for a held lock.
type LockTracker struct {
	owner   map[Location]TaskID
	wanting map[Location]map[TaskID]bool
	waiting map[Location]map[TaskID]bool
	blocked map[TaskID]bool
}

func NewLockTracker() *LockTracker {
	t := &LockTracker{}
	t.Reset()
	return t
}

func (t *LockTracker) Reset() {
	t.owner = make(map[Location]TaskID)
	t.wanting = make(map[Location]map[TaskID]bool)
	t.waiting = make(map[Location]map[TaskID]bool)
	t.blocked = make(map[TaskID]bool)
}

func (t *LockTracker) Update(e Event) {
	if e.Loc == nil {
		return
	}
	lock := *e.Loc
	switch e.Kind {
	case KindLockAcquire:
		if owner, ok := t.owner[lock]; ok && owner == e.Task {
			return
		}
		if waiting, ok := t.waiting[lock]; ok {
			waiting[e.Task] = true
			t.blocked[e.Task] = true
			return
		}
		if t.wanting[lock] == nil {
			t.wanting[lock] = make(map[TaskID]bool)
		}
		t.wanting[lock][e.Task] = true
	case KindLockAcquired:
		t.owner[lock] = e.Task
		if t.waiting[lock] == nil {
			t.waiting[lock] = make(map[TaskID]bool)
		}
		for id := range t.wanting[lock] {
			if id != e.Task {
				t.waiting[lock][id] = true
				t.blocked[id] = true
			}
		}
		delete(t.wanting, lock)
	case KindLockRelease:
		wanting := make(map[TaskID]bool)
		for id := range t.waiting[lock] {
			delete(t.blocked, id)
			wanting[id] = true
		}
		t.wanting[lock] = wanting
		delete(t.waiting, lock)
		delete(t.owner, lock)
	}
}

func (t *LockTracker) Enabled(id TaskID) bool { return !t.blocked[id] }

// Waiting returns the tasks queued on lock.
func (t *LockTracker) Waiting(lock Location) []TaskID {
	var ids []TaskID
	for id := range t.waiting[lock] {
		ids = append(ids, id)
	}
	sortTaskIDs(ids)
	return ids
}

// ParkTracker disables parked tasks until they are unparked.
type ParkTracker struct {
	parked  map[TaskID]bool
	permits map[TaskID]bool
}

func NewParkTracker() *ParkTracker {
	t := &ParkTracker{}
	t.Reset()
	return t
}

func (t *ParkTracker) Reset() {
	t.parked = make(map[TaskID]bool)
	t.permits = make(map[TaskID]bool)
}

func (t *ParkTracker) Update(e Event) {
	switch e.Kind {
	case KindPark:
		if t.permits[e.Task] {
			delete(t.permits, e.Task)
			return
		}
		t.parked[e.Task] = true
	case KindUnpark:
		if t.parked[e.Target] {
			delete(t.parked, e.Target)
			return
		}
		t.permits[e.Target] = true
	}
}

func (t *ParkTracker) Enabled(id TaskID) bool { return !t.parked[id] }
