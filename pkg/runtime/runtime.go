// Package runtime forces the tasks of a program under test to run one at a
// time, in the order a pluggable Strategy dictates.
package runtime

import (
	"context"
	"errors"
	"fmt"
	goruntime "runtime"
	"sync"
	"time"

	"v.io/x/lib/vlog"
)

// Options configure a Runtime.
type Options struct {
	// Retries bounds how often the coordinator retries resuming a task.
	Retries int
	// Backoff is the pause between two retries.
	Backoff time.Duration
	// Logger defaults to vlog.Log.
	Logger *vlog.Logger
}

// Runtime is one checking session: a task registry, a coordinator and the
// strategy driving them. Independent sessions may run side by side.
type Runtime struct {
	registry *Registry
	sched    *scheduler
	strategy Strategy
	log      *vlog.Logger

	wg sync.WaitGroup

	mu      sync.Mutex
	allocs  map[TaskID]int
	halts   map[TaskID]*Halt
	blocked []TaskID
	failure error
	err     error
}

// New creates a session driven by strategy. Close must be called when done.
func New(strategy Strategy, opts Options) *Runtime {
	log := opts.Logger
	if log == nil {
		log = vlog.Log
	}
	if opts.Retries <= 0 {
		opts.Retries = 10
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 10 * time.Millisecond
	}
	registry := NewRegistry()
	return &Runtime{
		registry: registry,
		sched:    newScheduler(registry, strategy, log, opts.Retries, opts.Backoff),
		strategy: strategy,
		log:      log,
		allocs:   make(map[TaskID]int),
		halts:    make(map[TaskID]*Halt),
	}
}

// Close stops the coordinator.
func (rt *Runtime) Close() {
	rt.sched.shutdown()
}

// Registry exposes the session's task registry.
func (rt *Runtime) Registry() *Registry { return rt.registry }

// Run executes one iteration of program as task 1 and blocks until every
// task it spawned has terminated or been halted.
func (rt *Runtime) Run(ctx context.Context, program func(rt *Runtime)) Result {
	rt.reset()
	rt.sched.begin()

	main := rt.registry.Create()
	rt.wg.Add(1)
	go rt.runTask(main, 0, func() { program(rt) })

	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()
	timedOut := false
	select {
	case <-done:
	case <-ctx.Done():
		timedOut = true
		rt.sched.stop(CheckerHalt(ErrTimeout))
		<-done
	}
	return rt.result(timedOut, rt.sched.end())
}

func (rt *Runtime) reset() {
	rt.registry.Reset()
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.allocs = make(map[TaskID]int)
	rt.halts = make(map[TaskID]*Halt)
	rt.blocked = nil
	rt.failure = nil
	rt.err = nil
}

func (rt *Runtime) result(timedOut bool, st iterationState) Result {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	res := Result{Schedule: st.schedule, Halt: st.halt}
	switch {
	case rt.failure != nil:
		res.Outcome, res.Err = OutcomeAssertionFailure, rt.failure
	case timedOut:
		res.Outcome, res.Err = OutcomeTimeout, ErrTimeout
	case rt.err != nil:
		res.Outcome, res.Err = OutcomeError, rt.err
	case st.halt != nil && !st.halt.OK():
		res.Outcome, res.Err = OutcomeError, st.halt
	case st.halt != nil || len(rt.blocked) > 0:
		res.Outcome = OutcomeBlocked
	case len(st.deadlock) > 0:
		res.Outcome, res.Deadlocked = OutcomeDeadlock, st.deadlock
	default:
		res.Outcome = OutcomeSuccess
	}
	return res
}

// CurrentTask returns the id of the running task, or 0 when none runs.
func (rt *Runtime) CurrentTask() TaskID {
	return rt.sched.currentTask()
}

func (rt *Runtime) stopping() bool {
	return rt.registry.Stopped() != nil
}

// runTask is the body of every task goroutine.
func (rt *Runtime) runTask(id, parent TaskID, f func()) {
	defer rt.wg.Done()
	if h := rt.report(Event{Task: id, Kind: KindStart, Target: parent}, true); h != nil {
		rt.exit(id, h)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("task %d panicked: %v", id, r)
			rt.fail(err)
			rt.exit(id, ExecutionHalt(err))
			return
		}
		rt.mu.Lock()
		h := rt.halts[id]
		rt.mu.Unlock()
		rt.exit(id, h)
	}()
	f()
}

// exit terminates task id. Unless the whole iteration is unwinding, the
// strategy hears about it and control goes back to the coordinator.
func (rt *Runtime) exit(id TaskID, h *Halt) {
	if rt.stopping() || (h != nil && h.Kind != HaltTask) {
		rt.registry.Terminate(id)
		return
	}
	kind := KindFinish
	if h != nil {
		kind = KindHalt
		if errors.Is(h.Err, ErrBlocked) {
			rt.mu.Lock()
			rt.blocked = append(rt.blocked, id)
			rt.mu.Unlock()
		}
	}
	if hh := rt.report(Event{Task: id, Kind: kind}, false); hh != nil && hh.Kind != HaltTask {
		rt.registry.Terminate(id)
		return
	}
	rt.registry.Terminate(id)
	rt.sched.handOff()
}

// report hands e to the strategy and, if yield is set, suspends the
// reporting task until the coordinator resumes it.
func (rt *Runtime) report(e Event, yield bool) *Halt {
	if h := rt.registry.Stopped(); h != nil {
		return h
	}
	rt.log.VI(3).Infof("event %v", e)
	if err := rt.strategy.UpdateEvent(e); err != nil {
		h, ok := AsHalt(err)
		if !ok {
			h = ExecutionHalt(err)
		}
		if h.Kind != HaltTask {
			rt.sched.stop(h)
		}
		return h
	}
	if !yield {
		return nil
	}
	return rt.yield(e.Task)
}

func (rt *Runtime) yield(id TaskID) *Halt {
	h, err := rt.registry.Pause(id)
	if err != nil {
		rt.mu.Lock()
		if rt.err == nil {
			rt.err = fmt.Errorf("task %d: %w", id, err)
		}
		rt.mu.Unlock()
		halt := ExecutionHalt(err)
		rt.sched.stop(halt)
		return halt
	}
	rt.sched.handOff()
	return h.Wait()
}

// step reports e and unwinds the calling goroutine if the task was halted.
func (rt *Runtime) step(e Event, yield bool) {
	if h := rt.report(e, yield); h != nil {
		rt.stop(e.Task, h)
	}
}

// unwindIfStopped unwinds a task that calls into the runtime after the
// iteration was stopped while it was running.
func (rt *Runtime) unwindIfStopped(id TaskID) {
	if h := rt.registry.Stopped(); h != nil {
		rt.stop(id, h)
	}
}

func (rt *Runtime) stop(id TaskID, h *Halt) {
	rt.mu.Lock()
	rt.halts[id] = h
	rt.mu.Unlock()
	goruntime.Goexit()
}

// fail records a failure of the program under test and ends the iteration.
func (rt *Runtime) fail(err error) {
	rt.mu.Lock()
	if rt.failure == nil {
		rt.failure = err
	}
	rt.mu.Unlock()
	rt.sched.stop(ExecutionHalt(err))
}

func (rt *Runtime) alloc(field string) Location {
	task := rt.CurrentTask()
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.allocs[task]++
	return Location{Task: task, Seq: rt.allocs[task], Field: field}
}
