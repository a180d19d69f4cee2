// Package trust explores the executions of a program with the Trust
// dynamic partial order reduction: every iteration grows an execution
// graph, and every reads-from or coherence alternative found on the way is
// saved as a graph to replay in a later iteration.
package trust

import (
	"fmt"
	"slices"

	"github.com/bits-and-blooms/bitset"
	"v.io/x/lib/vlog"

	"github.com/amirkhaki/watson/pkg/graph"
	"github.com/amirkhaki/watson/pkg/runtime"
)

// Algo owns the execution graph of the running iteration and the stack of
// graphs still to explore.
type Algo struct {
	log   *vlog.Logger
	g     *graph.Graph
	stack []*graph.Graph

	guiding bool
	// next[t] is the number of nodes of task t already replayed.
	next     []int
	replayed int
	// beyond holds the events tasks reported past their replayed nodes.
	// They join the graph once the replay completes.
	beyond []later

	pushed int
}

// later is an event reported past the replayed nodes of its task. For a
// start, spawned counts the nodes the parent had when it spawned the task.
type later struct {
	event   graph.Event
	spawned int
}

func NewAlgo(log *vlog.Logger) *Algo {
	if log == nil {
		log = vlog.Log
	}
	return &Algo{log: log, g: graph.New()}
}

// Graph returns the graph of the running iteration.
func (a *Algo) Graph() *graph.Graph { return a.g }

// Guiding reports whether the iteration still replays a saved graph.
func (a *Algo) Guiding() bool { return a.guiding }

// Pending returns the number of saved graphs not yet explored.
func (a *Algo) Pending() int { return len(a.stack) }

// Pushed returns the number of graphs saved so far.
func (a *Algo) Pushed() int { return a.pushed }

// InitIteration picks the graph iteration i starts from. The first
// iteration starts empty; later ones replay the most recently saved graph.
// An empty stack ends the exploration with a checker halt.
func (a *Algo) InitIteration(i int) error {
	a.beyond = nil
	if i == 0 {
		a.g = graph.New()
		a.guiding = false
		return nil
	}
	if len(a.stack) == 0 {
		return runtime.CheckerHalt(nil)
	}
	a.g = a.stack[len(a.stack)-1]
	a.stack = a.stack[:len(a.stack)-1]
	a.next = make([]int, a.g.Tasks())
	a.next[0] = 1
	a.replayed = 1
	a.guiding = a.replayed < a.g.Len()
	a.log.VI(2).Infof("iteration %d replays %d nodes, %d graphs left", i, a.g.Len(), len(a.stack))
	return nil
}

func (a *Algo) push(g *graph.Graph) {
	a.stack = append(a.stack, g)
	a.pushed++
}

// toEvent converts a runtime event into a graph event. ok is false for
// events the graph does not record.
func toEvent(e runtime.Event) (graph.Event, bool) {
	ge := graph.Event{Key: graph.Key{Task: int(e.Task)}}
	if e.Loc != nil {
		ge.Loc = *e.Loc
	}
	switch e.Kind {
	case runtime.KindStart:
		ge.Type, ge.Peer = graph.Start, int(e.Target)
	case runtime.KindJoinComplete:
		ge.Type, ge.Peer = graph.Join, int(e.Target)
	case runtime.KindFinish:
		ge.Type = graph.End
	case runtime.KindHalt:
		ge.Type = graph.Error
	case runtime.KindRead:
		ge.Type = graph.Read
	case runtime.KindWrite:
		ge.Type = graph.Write
	case runtime.KindLockAcquire:
		ge.Type = graph.ReadEx
	case runtime.KindLockRelease:
		ge.Type = graph.WriteEx
	default:
		return ge, false
	}
	return ge, true
}

// Commit adds the effect of e to the graph. While guiding, e must match
// the next node of its task in the replayed graph, unless the task already
// replayed all of its nodes.
func (a *Algo) Commit(e runtime.Event) error {
	ge, ok := toEvent(e)
	if !ok {
		return nil
	}
	if !a.guiding {
		a.add(ge)
		return nil
	}
	t := ge.Key.Task
	if a.nextOf(t) < a.g.TaskLen(t) {
		return a.replay(ge)
	}
	l := later{event: ge}
	if ge.Type == graph.Start && ge.Peer != 0 {
		l.spawned = a.nextOf(ge.Peer) + a.waiting(ge.Peer)
	}
	a.beyond = append(a.beyond, l)
	a.log.VI(3).Infof("holding %v until the replay completes", ge)
	return nil
}

// waiting returns the number of held events of task t.
func (a *Algo) waiting(t int) int {
	n := 0
	for _, l := range a.beyond {
		if l.event.Key.Task == t {
			n++
		}
	}
	return n
}

func (a *Algo) add(ge graph.Event) *graph.Node {
	n := a.g.AddEvent(ge)
	a.log.VI(3).Infof("added %v", n.Event)
	switch n.Type {
	case graph.Read:
		a.visitRead(n)
	case graph.Write:
		a.visitWrite(n)
	case graph.ReadEx:
		a.visitAcquire(n)
	}
	return n
}

// Await records an acquisition that never happened because the lock
// stayed held, and explores the orders in which it would have won.
func (a *Algo) Await(e runtime.Event) {
	if a.guiding || e.Loc == nil {
		return
	}
	n := a.g.AddEvent(graph.Event{Key: graph.Key{Task: int(e.Task)}, Type: graph.LockAwait, Loc: *e.Loc})
	a.visitAcquire(n)
}

func (a *Algo) replay(ge graph.Event) error {
	t := ge.Key.Task
	k := graph.Key{Task: t, TS: a.nextOf(t)}
	n := a.g.Node(k)
	if n == nil || n.Type != ge.Type || n.Loc != ge.Loc || n.Peer != ge.Peer {
		return runtime.ExecutionHalt(fmt.Errorf("%w: got %v, expected %v", runtime.ErrReplayDiverged, ge, n))
	}
	a.next[t]++
	a.replayed++
	if a.replayed == a.g.Len() {
		a.guiding = false
		if !a.g.IsConsistent() {
			return runtime.ExecutionHalt(nil)
		}
		a.flush()
	}
	return nil
}

// flush adds the held events in the order they were reported. A held start
// follows the node its parent was at when it spawned the task.
func (a *Algo) flush() {
	held := a.beyond
	a.beyond = nil
	for _, l := range held {
		ge := l.event
		if ge.Type != graph.Start || l.spawned == 0 {
			a.add(ge)
			continue
		}
		n := a.g.AddEvent(ge)
		from := graph.Key{Task: ge.Peer, TS: l.spawned - 1}
		if f, _ := n.From(); f != from {
			a.g.SetFrom(n.Key, from)
			a.g.RecomputeClocks()
		}
		a.log.VI(3).Infof("added %v", n.Event)
	}
}

func (a *Algo) nextOf(t int) int {
	if t < len(a.next) {
		return a.next[t]
	}
	return 0
}

func (a *Algo) isReplayed(k graph.Key) bool {
	return k.TS < a.nextOf(k.Task)
}

// Replayable reports whether task t may be resumed while guiding. pending
// tells whether t has reported an event the graph records and that is
// still waiting to happen.
func (a *Algo) Replayable(t runtime.TaskID, pending bool) bool {
	task := int(t)
	ts := a.nextOf(task)
	if ts < a.g.TaskLen(task) {
		if !pending {
			return true
		}
		for _, p := range a.g.Predecessors(a.g.Node(graph.Key{Task: task, TS: ts})) {
			if !a.isReplayed(p) {
				return false
			}
		}
		return true
	}
	if pending || ts == 0 {
		return false
	}
	// Past its replayed nodes, a task only runs to spawn a task that the
	// graph starts right after them.
	last := graph.Key{Task: task, TS: ts - 1}
	for c := 1; c < a.g.Tasks(); c++ {
		if a.nextOf(c) > 0 || a.g.TaskLen(c) == 0 {
			continue
		}
		if from, ok := a.g.Node(graph.Key{Task: c}).From(); ok && from == last {
			return true
		}
	}
	return false
}

// Remaining returns the number of nodes left to replay.
func (a *Algo) Remaining() int {
	if !a.guiding {
		return 0
	}
	return a.g.Len() - a.replayed
}

// visitRead saves, for every other write the new read r could read, the
// graph where it does.
func (a *Algo) visitRead(r *graph.Node) {
	cur, _ := r.ReadsFrom()
	ws := a.g.Coherence(r.Loc)
	pred := graph.Key{Task: r.Key.Task, TS: r.Key.TS - 1}
	for i, w := range ws {
		if w == cur || a.shadowed(ws[i+1:], pred) {
			continue
		}
		c := a.g.Clone()
		c.SetReadsFrom(r.Key, w)
		a.pushIfConsistent(c)
	}
}

// shadowed reports whether one of the writes happens before a read, judged
// against pred, the read's program-order predecessor. The read then cannot
// read anything older. Its own clock would already hold its current source.
func (a *Algo) shadowed(writes []graph.Key, pred graph.Key) bool {
	vc := a.g.Node(pred).VC
	for _, w := range writes {
		if vc.Covers(w) {
			return true
		}
	}
	return false
}

// visitWrite explores the coherence placements of the new write w and the
// reads it may revisit.
func (a *Algo) visitWrite(w *graph.Node) {
	a.placeWrite(a.g, w.Key)

	porf := a.g.Porf(w.Key)
	// The revisited read and the deleted nodes must have been added
	// maximally in a graph that did not contain w yet.
	prefix := porf.Clone()
	prefix.Clear(uint(w.Stamp()))
	for _, k := range a.readsOf(a.g, w.Loc) {
		r := a.g.Node(k)
		if porf.Test(uint(r.Stamp())) {
			continue
		}
		deleted := a.after(a.g, r.Stamp(), porf)
		if !a.maximal(a.g, r, prefix) || !a.allMaximal(a.g, deleted, prefix) {
			continue
		}
		c := a.g.Clone()
		c.Remove(deleted)
		c.SetReadsFrom(r.Key, w.Key)
		if a.pushIfConsistent(c) {
			a.placeWrite(c, w.Key)
		}
	}
}

// placeWrite saves, for every write w may precede in g, the graph where it does.
func (a *Algo) placeWrite(g *graph.Graph, w graph.Key) {
	loc := g.Node(w).Loc
	for _, p := range g.Coherence(loc) {
		if p == graph.InitKey || p == w || g.HappensBefore(p, w) {
			continue
		}
		c := g.Clone()
		if err := c.MoveBefore(w, p); err != nil {
			a.log.Errorf("cannot move %v before %v: %v", w, p, err)
			continue
		}
		a.pushIfConsistent(c)
	}
}

// visitAcquire lets a new acquisition n take the place of each earlier
// acquisition of the same lock by another task that it is not ordered after.
func (a *Algo) visitAcquire(n *graph.Node) {
	g := a.g
	pred := graph.Key{Task: n.Key.Task, TS: n.Key.TS - 1}
	porfPred := g.Porf(pred)
	for old := range g.Nodes() {
		if old.Type != graph.ReadEx || old.Loc != n.Loc || old.Key.Task == n.Key.Task || old.Key == n.Key {
			continue
		}
		if porfPred.Test(uint(old.Stamp())) {
			continue
		}
		rf, _ := old.ReadsFrom()
		keep := porfPred.Union(g.Porf(rf))
		keep.Set(uint(n.Stamp()))
		if !a.maximal(g, old, keep) {
			continue
		}
		deleted := a.after(g, old.Stamp(), keep)
		if !a.allMaximal(g, deleted, keep) {
			continue
		}
		deleted.Set(uint(old.Stamp()))
		c := g.Clone()
		c.Remove(deleted)
		acq := c.Node(n.Key)
		acq.Type = graph.ReadEx
		acq.Tagged = true
		c.SetReadsFrom(n.Key, rf)
		a.pushIfConsistent(c)
	}
}

func (a *Algo) pushIfConsistent(c *graph.Graph) bool {
	if !c.RecomputeClocks() || !c.IsConsistent() {
		return false
	}
	a.push(c)
	return true
}

// readsOf returns the plain reads of loc.
func (a *Algo) readsOf(g *graph.Graph, loc runtime.Location) []graph.Key {
	var rs []graph.Key
	for n := range g.Nodes() {
		if n.Type == graph.Read && n.Loc == loc {
			rs = append(rs, n.Key)
		}
	}
	return rs
}

// after returns the stamps added after stamp that keep does not hold.
func (a *Algo) after(g *graph.Graph, stamp int, keep *bitset.BitSet) *bitset.BitSet {
	set := bitset.New(uint(g.Len()))
	for i := stamp + 1; i < g.Len(); i++ {
		if !keep.Test(uint(i)) {
			set.Set(uint(i))
		}
	}
	return set
}

func (a *Algo) allMaximal(g *graph.Graph, set, keep *bitset.BitSet) bool {
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		if !a.maximal(g, g.At(int(i)), keep) {
			return false
		}
	}
	return true
}

// maximal reports whether n was added in its maximal way with respect to
// the nodes visible to it: those added no later than n, and keep. A read
// must read the coherence-latest visible write, a write must be
// coherence-latest among the visible writes. Tagged acquisitions are
// never maximal.
func (a *Algo) maximal(g *graph.Graph, n *graph.Node, keep *bitset.BitSet) bool {
	visible := func(k graph.Key) bool {
		m := g.Node(k)
		return m.Stamp() <= n.Stamp() || keep.Test(uint(m.Stamp()))
	}
	switch {
	case n.Type.IsRead():
		if n.Tagged {
			return false
		}
		rf, _ := n.ReadsFrom()
		if !visible(rf) {
			return false
		}
		return !slices.ContainsFunc(g.Coherence(n.Loc), func(w graph.Key) bool {
			return visible(w) && g.CoAfter(n.Loc, w, rf)
		})
	case n.Type.IsWrite():
		return !slices.ContainsFunc(g.Coherence(n.Loc), func(w graph.Key) bool {
			return visible(w) && g.CoAfter(n.Loc, w, n.Key)
		})
	default:
		return true
	}
}
