package trust

import (
	"errors"
	"fmt"
	"maps"
	"math/rand"
	"os"
	"path/filepath"
	"slices"

	"github.com/davecgh/go-spew/spew"
	"v.io/x/lib/vlog"

	"github.com/amirkhaki/watson/pkg/runtime"
)

// Policy picks among enabled tasks once a saved graph has been replayed.
type Policy uint8

const (
	FIFO Policy = iota
	Random
)

// Options configure the Trust strategy.
type Options struct {
	Policy Policy
	Seed   int64
	// DebugDir, when set, receives a dump of every iteration's graph.
	DebugDir string
	Logger   *vlog.Logger
}

// Strategy schedules tasks so that the Algo sees every distinct execution
// of the program once.
type Strategy struct {
	algo    *Algo
	tracker *runtime.Tracker
	// pending holds, per task, the reported access that happens once the
	// task is resumed.
	pending  map[runtime.TaskID]runtime.Event
	policy   Policy
	rng      *rand.Rand
	debugDir string
	log      *vlog.Logger
	aborted  bool
	// graphs holds the signature of every graph an iteration completed.
	graphs map[string]struct{}
	// unrecorded is set once the program parks, unparks or assumes. The
	// graph keeps none of those, so a saved graph may be out of reach.
	unrecorded bool
}

func NewStrategy(opts Options) *Strategy {
	log := opts.Logger
	if log == nil {
		log = vlog.Log
	}
	return &Strategy{
		algo:     NewAlgo(log),
		tracker:  runtime.NewTracker(),
		pending:  make(map[runtime.TaskID]runtime.Event),
		policy:   opts.Policy,
		rng:      rand.New(rand.NewSource(opts.Seed)),
		debugDir: opts.DebugDir,
		log:      log,
		graphs:   make(map[string]struct{}),
	}
}

// Algo exposes the exploration engine.
func (s *Strategy) Algo() *Algo { return s.algo }

func (s *Strategy) InitIteration(i int) error {
	s.aborted = false
	return s.algo.InitIteration(i)
}

// deferred reports whether the effect of an event of kind k happens only
// once the reporting task is resumed.
func deferred(k runtime.Kind) bool {
	switch k {
	case runtime.KindRead, runtime.KindWrite, runtime.KindLockAcquire:
		return true
	default:
		return false
	}
}

func (s *Strategy) UpdateEvent(e runtime.Event) error {
	s.tracker.Update(e)
	switch {
	case deferred(e.Kind):
		s.pending[e.Task] = e
		return nil
	case e.Kind == runtime.KindPark || e.Kind == runtime.KindUnpark || e.Kind == runtime.KindAssume:
		s.unrecorded = true
	}
	if err := s.algo.Commit(e); err != nil {
		s.aborted = true
		if s.outOfReach(err) {
			return runtime.ExecutionHalt(nil)
		}
		return err
	}
	return nil
}

// outOfReach reports whether err is a replay divergence the program's
// unrecorded operations explain. Such an iteration is only blocked; any
// other divergence is an error.
func (s *Strategy) outOfReach(err error) bool {
	if !s.unrecorded || !errors.Is(err, runtime.ErrReplayDiverged) {
		return false
	}
	s.log.VI(1).Infof("saved graph out of reach: %v", err)
	return true
}

func (s *Strategy) NextTask() runtime.Choice {
	active := s.tracker.Active()
	if s.algo.Guiding() {
		for _, id := range active {
			_, pending := s.pending[id]
			if s.algo.Replayable(id, pending) {
				return s.resume(id)
			}
		}
		s.aborted = true
		err := fmt.Errorf("%w: no task can replay the %d remaining events",
			runtime.ErrReplayDiverged, s.algo.Remaining())
		if s.outOfReach(err) {
			err = nil
		}
		return runtime.BlockExecution(err)
	}
	if len(active) == 0 {
		return runtime.End()
	}
	id := active[0]
	if s.policy == Random {
		id = active[s.rng.Intn(len(active))]
	}
	return s.resume(id)
}

// resume commits the pending access of id, if any, and resumes it.
func (s *Strategy) resume(id runtime.TaskID) runtime.Choice {
	e, ok := s.pending[id]
	if !ok {
		return runtime.Resume(id)
	}
	delete(s.pending, id)
	if err := s.algo.Commit(e); err != nil {
		s.aborted = true
		if h, ok := runtime.AsHalt(err); ok && h.Kind == runtime.HaltTask {
			return runtime.BlockTask(id)
		}
		if s.outOfReach(err) {
			err = nil
		}
		return runtime.BlockExecution(err)
	}
	return runtime.Resume(id)
}

func (s *Strategy) ResetIteration(i int) {
	if !s.aborted {
		for _, id := range sortedTasks(s.pending) {
			if e := s.pending[id]; e.Kind == runtime.KindLockAcquire {
				s.algo.Await(e)
			}
		}
		s.graphs[s.algo.Graph().Signature()] = struct{}{}
	}
	if s.debugDir != "" {
		if err := s.dump(i); err != nil {
			s.log.Errorf("cannot dump graph of iteration %d: %v", i, err)
		}
	}
	s.pending = make(map[runtime.TaskID]runtime.Event)
	s.tracker.Reset()
}

func (s *Strategy) dump(i int) error {
	if err := os.MkdirAll(s.debugDir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(s.debugDir, fmt.Sprintf("graph-%06d.txt", i)))
	if err != nil {
		return err
	}
	defer f.Close()
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	fmt.Fprint(f, s.algo.Graph().String())
	cfg.Fdump(f, s.algo.Graph())
	return nil
}

// Witness returns the events of the last iteration that the last event of
// task id depends on, each after its predecessors.
func (s *Strategy) Witness(id runtime.TaskID) []string {
	g := s.algo.Graph().Clone()
	last, ok := g.Last(int(id))
	if !ok {
		return nil
	}
	g.RestrictTo(last)
	var events []string
	for n := range g.Topological() {
		events = append(events, n.Event.String())
	}
	return events
}

// Graphs returns the number of distinct execution graphs completed so far.
func (s *Strategy) Graphs() int { return len(s.graphs) }

func (s *Strategy) Teardown() {
	s.log.VI(1).Infof("trust: %d graphs saved, %d left", s.algo.Pushed(), s.algo.Pending())
}

func sortedTasks(m map[runtime.TaskID]runtime.Event) []runtime.TaskID {
	return slices.Sorted(maps.Keys(m))
}
