package graph

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/amirkhaki/watson/pkg/runtime"
)

// Graph is the execution graph of one iteration. Nodes live in per-task
// arenas and refer to each other by key, so a clone shares no mutable state.
type Graph struct {
	tasks [][]*Node
	// co holds, per location, the writes after the initial node in coherence order.
	co    map[runtime.Location][]Key
	order []Key
}

// New returns a graph holding only the initial node.
func New() *Graph {
	init := &Node{Event: Event{Key: InitKey, Type: Init}, VC: VC{1}}
	return &Graph{
		tasks: [][]*Node{{init}},
		co:    make(map[runtime.Location][]Key),
		order: []Key{InitKey},
	}
}

// Node returns the node with key k, or nil.
func (g *Graph) Node(k Key) *Node {
	if k.Task < 0 || k.Task >= len(g.tasks) || k.TS < 0 || k.TS >= len(g.tasks[k.Task]) {
		return nil
	}
	return g.tasks[k.Task][k.TS]
}

// Len returns the number of nodes, the initial node included.
func (g *Graph) Len() int { return len(g.order) }

// Tasks returns one more than the highest task id with an arena.
func (g *Graph) Tasks() int { return len(g.tasks) }

// TaskLen returns the number of nodes of task t.
func (g *Graph) TaskLen(t int) int {
	if t < 0 || t >= len(g.tasks) {
		return 0
	}
	return len(g.tasks[t])
}

// Last returns the key of the last node of task t.
func (g *Graph) Last(t int) (Key, bool) {
	n := g.TaskLen(t)
	if n == 0 {
		return Key{}, false
	}
	return Key{Task: t, TS: n - 1}, true
}

// At returns the node at position i of the total order.
func (g *Graph) At(i int) *Node { return g.Node(g.order[i]) }

// Nodes iterates over the nodes in total order.
func (g *Graph) Nodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, k := range g.order {
			if !yield(g.Node(k)) {
				return
			}
		}
	}
}

// Coherence returns the writes to loc in coherence order, initial node first.
func (g *Graph) Coherence(loc runtime.Location) []Key {
	return append([]Key{InitKey}, g.co[loc]...)
}

// Locations returns every location written in the graph, sorted.
func (g *Graph) Locations() []runtime.Location {
	locs := make([]runtime.Location, 0, len(g.co))
	for loc := range g.co {
		locs = append(locs, loc)
	}
	slices.SortFunc(locs, func(a, b runtime.Location) int {
		return cmp.Or(cmp.Compare(a.Task, b.Task), cmp.Compare(a.Seq, b.Seq), cmp.Compare(a.Field, b.Field))
	})
	return locs
}

func (g *Graph) coMax(loc runtime.Location) Key {
	if ws := g.co[loc]; len(ws) > 0 {
		return ws[len(ws)-1]
	}
	return InitKey
}

// coPred returns the write right before w in the coherence order of loc.
func (g *Graph) coPred(loc runtime.Location, w Key) (Key, bool) {
	ws := g.co[loc]
	i := slices.Index(ws, w)
	switch {
	case i < 0:
		return Key{}, false
	case i == 0:
		return InitKey, true
	default:
		return ws[i-1], true
	}
}

// CoAfter reports whether write a comes after write b in the coherence order of loc.
func (g *Graph) CoAfter(loc runtime.Location, a, b Key) bool {
	if a == b || a == InitKey {
		return false
	}
	if b == InitKey {
		return slices.Contains(g.co[loc], a)
	}
	ws := g.co[loc]
	ia, ib := slices.Index(ws, a), slices.Index(ws, b)
	return ia >= 0 && ib >= 0 && ia > ib
}

// AddEvent appends e to the program order of its task and to the total
// order. The key's timestamp is assigned here. A write becomes
// coherence-maximal; a read reads the coherence-maximal write.
func (g *Graph) AddEvent(e Event) *Node {
	t := e.Key.Task
	for len(g.tasks) <= t {
		g.tasks = append(g.tasks, nil)
	}
	e.Key.TS = len(g.tasks[t])
	n := &Node{Event: e}
	var vc VC
	if e.Key.TS > 0 {
		vc = g.tasks[t][e.Key.TS-1].VC.Clone()
	} else {
		vc = g.Node(InitKey).VC.Clone()
	}
	switch {
	case e.Type.IsRead():
		n.rf, n.hasRF = g.coMax(e.Loc), true
		vc = vc.Join(g.Node(n.rf).VC)
	case e.Type == Start || e.Type == Join:
		n.from, n.hasFrom = InitKey, true
		if last, ok := g.Last(e.Peer); ok && e.Peer != 0 {
			n.from = last
		}
		vc = vc.Join(g.Node(n.from).VC)
	}
	n.VC = vc.Set(t, e.Key.TS+1)
	n.stamp = len(g.order)
	g.tasks[t] = append(g.tasks[t], n)
	g.order = append(g.order, e.Key)
	if e.Type.IsWrite() {
		g.co[e.Loc] = append(g.co[e.Loc], e.Key)
	}
	return n
}

// SetReadsFrom makes read read write. Clocks are left stale; callers
// recompute them with RecomputeClocks or RestrictTo.
func (g *Graph) SetReadsFrom(read, write Key) {
	g.Node(read).rf = write
	g.Node(read).hasRF = true
}

// SetFrom makes the start or join k follow from. Clocks are left stale.
func (g *Graph) SetFrom(k, from Key) {
	g.Node(k).from = from
	g.Node(k).hasFrom = true
}

// MoveBefore moves write w right before write next in the coherence order.
func (g *Graph) MoveBefore(w, next Key) error {
	n := g.Node(w)
	if n == nil || !n.Type.IsWrite() {
		return fmt.Errorf("%v is not a write", w)
	}
	ws := slices.DeleteFunc(slices.Clone(g.co[n.Loc]), func(k Key) bool { return k == w })
	i := slices.Index(ws, next)
	if i < 0 {
		return fmt.Errorf("%v is not a write to %s", next, n.Loc)
	}
	g.co[n.Loc] = slices.Insert(ws, i, w)
	return nil
}

// Readers returns the reads of loc that read w.
func (g *Graph) Readers(loc runtime.Location, w Key) []Key {
	var rs []Key
	for _, k := range g.order {
		n := g.Node(k)
		if n.hasRF && n.rf == w && n.Loc == loc {
			rs = append(rs, k)
		}
	}
	return rs
}

// HappensBefore reports whether a happens before b along program order,
// reads-from, creation and join edges.
func (g *Graph) HappensBefore(a, b Key) bool {
	if a == b {
		return false
	}
	nb := g.Node(b)
	return nb != nil && nb.VC.Covers(a)
}

// Porf returns the stamps of the nodes that happen before or equal k.
func (g *Graph) Porf(k Key) *bitset.BitSet {
	set := bitset.New(uint(len(g.order)))
	vc := g.Node(k).VC
	for i, key := range g.order {
		if vc.Covers(key) {
			set.Set(uint(i))
		}
	}
	return set
}

// Keys returns the keys of the stamps in set.
func (g *Graph) Keys(set *bitset.BitSet) []Key {
	var keys []Key
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		if int(i) < len(g.order) {
			keys = append(keys, g.order[i])
		}
	}
	return keys
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		tasks: make([][]*Node, len(g.tasks)),
		co:    make(map[runtime.Location][]Key, len(g.co)),
		order: slices.Clone(g.order),
	}
	for t, chain := range g.tasks {
		c.tasks[t] = make([]*Node, len(chain))
		for i, n := range chain {
			c.tasks[t][i] = n.clone()
		}
	}
	for loc, ws := range g.co {
		c.co[loc] = slices.Clone(ws)
	}
	return c
}

// Remove deletes the nodes whose stamps are in deleted. The set must be
// closed under program-order successors; a task loses everything from its
// first deleted node on. Surviving nodes keep their relative order.
func (g *Graph) Remove(deleted *bitset.BitSet) {
	for i, ok := deleted.NextSet(0); ok; i, ok = deleted.NextSet(i + 1) {
		if int(i) >= len(g.order) {
			break
		}
		k := g.order[i]
		if k == InitKey {
			continue
		}
		if k.TS < len(g.tasks[k.Task]) {
			g.tasks[k.Task] = g.tasks[k.Task][:k.TS]
		}
	}
	live := func(k Key) bool { return k.TS < len(g.tasks[k.Task]) }
	g.order = slices.DeleteFunc(g.order, func(k Key) bool { return !live(k) })
	for i, k := range g.order {
		g.Node(k).stamp = i
	}
	for loc, ws := range g.co {
		ws = slices.DeleteFunc(ws, func(k Key) bool { return !live(k) })
		if len(ws) == 0 {
			delete(g.co, loc)
			continue
		}
		g.co[loc] = ws
	}
}

// RestrictTo keeps only the nodes that happen before or equal k, after
// recomputing every clock.
func (g *Graph) RestrictTo(k Key) {
	g.RecomputeClocks()
	keep := g.Porf(k)
	g.Remove(keep.Complement())
}

// RecomputeClocks rebuilds every vector clock from the happens-before
// edges. It reports false when those edges contain a cycle.
func (g *Graph) RecomputeClocks() bool {
	nodes := g.topo(g.hbPreds)
	for _, n := range nodes {
		var vc VC
		for _, p := range g.hbPreds(n) {
			vc = vc.Join(g.Node(p).VC)
		}
		if vc == nil {
			vc = VC{}
		}
		if n.Key == InitKey {
			vc = VC{1}
		}
		n.VC = vc.Set(n.Key.Task, n.Key.TS+1)
	}
	return len(nodes) == len(g.order)
}

func (g *Graph) String() string {
	var b strings.Builder
	for _, k := range g.order {
		n := g.Node(k)
		b.WriteString(n.Event.String())
		if n.hasRF {
			fmt.Fprintf(&b, " rf=%v", n.rf)
		}
		if n.Tagged {
			b.WriteString(" tagged")
		}
		b.WriteByte('\n')
	}
	for _, loc := range g.Locations() {
		fmt.Fprintf(&b, "co[%s]=%v\n", loc, g.co[loc])
	}
	return b.String()
}

// Signature identifies the execution the graph stands for: its events per
// task with their reads-from edges, and its coherence orders. Two graphs
// that differ only in the order their nodes were added share a signature.
func (g *Graph) Signature() string {
	var b strings.Builder
	for t, chain := range g.tasks {
		fmt.Fprintf(&b, "%d:", t)
		for _, n := range chain {
			fmt.Fprintf(&b, " %s", n.Type)
			if n.Loc != (runtime.Location{}) {
				fmt.Fprintf(&b, "@%s", n.Loc)
			}
			if n.hasRF {
				fmt.Fprintf(&b, "<%v", n.rf)
			}
		}
		b.WriteByte('\n')
	}
	for _, loc := range g.Locations() {
		fmt.Fprintf(&b, "%s:%v\n", loc, g.co[loc])
	}
	return b.String()
}
