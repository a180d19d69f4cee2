package runtime

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"v.io/x/lib/vlog"
)

// signal wakes the coordinator. Signals from a finished iteration carry a
// stale epoch and are dropped.
type signal struct {
	shutdown bool
	epoch    int64
}

// scheduler is the coordinator: a dedicated goroutine that, each time a
// task hands off control, asks the strategy for the next choice and
// enacts it.
type scheduler struct {
	registry *Registry
	strategy Strategy
	log      *vlog.Logger
	retries  int
	backoff  time.Duration

	enabling chan signal
	done     chan struct{}
	epoch    atomic.Int64
	// busy is held while a wake-up is being served.
	busy sync.Mutex

	mu       sync.Mutex
	current  TaskID
	schedule []TaskID
	halt     *Halt
	deadlock []TaskID
}

func newScheduler(registry *Registry, strategy Strategy, log *vlog.Logger, retries int, backoff time.Duration) *scheduler {
	s := &scheduler{
		registry: registry,
		strategy: strategy,
		log:      log,
		retries:  retries,
		backoff:  backoff,
		enabling: make(chan signal, 16),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *scheduler) run() {
	for sig := range s.enabling {
		if sig.shutdown {
			close(s.done)
			return
		}
		s.busy.Lock()
		if sig.epoch == s.epoch.Load() {
			s.scheduleNext()
		}
		s.busy.Unlock()
	}
}

func (s *scheduler) shutdown() {
	s.enabling <- signal{shutdown: true}
	<-s.done
}

// begin opens a new iteration.
func (s *scheduler) begin() {
	s.busy.Lock()
	defer s.busy.Unlock()
	s.epoch.Add(1)
	s.mu.Lock()
	s.current = 0
	s.schedule = nil
	s.halt = nil
	s.deadlock = nil
	s.mu.Unlock()
}

type iterationState struct {
	schedule []TaskID
	halt     *Halt
	deadlock []TaskID
}

// end closes the iteration once every task has unwound and returns what the
// coordinator observed.
func (s *scheduler) end() iterationState {
	s.busy.Lock()
	defer s.busy.Unlock()
	s.epoch.Add(1)
	for drained := false; !drained; {
		select {
		case <-s.enabling:
		default:
			drained = true
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return iterationState{schedule: s.schedule, halt: s.halt, deadlock: s.deadlock}
}

// enable wakes the coordinator.
func (s *scheduler) enable() {
	select {
	case s.enabling <- signal{epoch: s.epoch.Load()}:
	case <-s.done:
	}
}

// handOff gives control back to the coordinator.
func (s *scheduler) handOff() {
	s.clearCurrent()
	s.enable()
}

func (s *scheduler) currentTask() TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *scheduler) clearCurrent() {
	s.mu.Lock()
	s.current = 0
	s.mu.Unlock()
}

// stop fails every pending task with h. The first halt of an iteration wins.
func (s *scheduler) stop(h *Halt) {
	s.mu.Lock()
	if s.halt == nil {
		s.halt = h
	}
	s.mu.Unlock()
	s.registry.StopAll(h)
}

func (s *scheduler) scheduleNext() {
	choice := s.strategy.NextTask()
	s.log.VI(3).Infof("coordinator choice: %v", choice)
	switch choice.Kind {
	case ChoiceTask:
		s.mu.Lock()
		s.current = choice.Task
		s.schedule = append(s.schedule, choice.Task)
		s.mu.Unlock()
		if err := s.resume(choice.Task); err != nil {
			if s.registry.Stopped() != nil {
				return
			}
			s.log.Fatalf("watson: cannot resume task %d: %v", choice.Task, err)
		}
	case ChoiceBlockTask:
		if err := s.registry.Fail(choice.Task, TaskHalt(choice.Task, nil)); err != nil {
			s.log.Errorf("cannot block task %d: %v", choice.Task, err)
			s.stop(ExecutionHalt(err))
		}
	case ChoiceBlockExecution:
		s.stop(ExecutionHalt(choice.Err))
	default:
		live := s.registry.Live()
		if len(live) == 0 {
			return
		}
		s.log.VI(1).Infof("no enabled task, live tasks %v", live)
		s.mu.Lock()
		s.deadlock = live
		s.mu.Unlock()
		s.registry.StopAll(ExecutionHalt(ErrStopping))
	}
}

// resume retries for a bounded time: a task may hand off before its
// handle is observable.
func (s *scheduler) resume(id TaskID) error {
	var err error
	for i := 0; i <= s.retries; i++ {
		if err = s.registry.Resume(id); !errors.Is(err, ErrTaskNotExists) {
			return err
		}
		time.Sleep(s.backoff)
	}
	return err
}
