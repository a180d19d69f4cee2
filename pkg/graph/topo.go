package graph

import (
	"fmt"
	"iter"

	"github.com/amirkhaki/watson/pkg/runtime"
)

// hbPreds returns the program-order, reads-from, creation and join
// predecessors of n.
func (g *Graph) hbPreds(n *Node) []Key {
	if n.Key == InitKey {
		return nil
	}
	preds := make([]Key, 0, 3)
	if n.Key.TS > 0 {
		preds = append(preds, Key{Task: n.Key.Task, TS: n.Key.TS - 1})
	} else {
		preds = append(preds, InitKey)
	}
	if n.hasRF {
		preds = append(preds, n.rf)
	}
	if n.hasFrom {
		preds = append(preds, n.from)
	}
	return preds
}

// Predecessors returns the keys of every node with an edge into n: the
// happens-before predecessors, the coherence predecessor of a write and
// the reads of that predecessor (from-reads).
func (g *Graph) Predecessors(n *Node) []Key {
	preds := g.hbPreds(n)
	if !n.Type.IsWrite() {
		return preds
	}
	if p, ok := g.coPred(n.Loc, n.Key); ok {
		preds = append(preds, p)
		for _, r := range g.Readers(n.Loc, p) {
			if r != n.Key {
				preds = append(preds, r)
			}
		}
	}
	return preds
}

// topo runs Kahn's algorithm over the given predecessor relation. On a
// cycle, the nodes on or after it are missing from the result.
func (g *Graph) topo(preds func(*Node) []Key) []*Node {
	indeg := make(map[Key]int, len(g.order))
	succ := make(map[Key][]Key, len(g.order))
	for _, k := range g.order {
		for _, p := range preds(g.Node(k)) {
			if g.Node(p) == nil {
				continue
			}
			indeg[k]++
			succ[p] = append(succ[p], k)
		}
	}
	queue := make([]Key, 0, len(g.order))
	for _, k := range g.order {
		if indeg[k] == 0 {
			queue = append(queue, k)
		}
	}
	out := make([]*Node, 0, len(g.order))
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		out = append(out, g.Node(k))
		for _, s := range succ[k] {
			indeg[s]--
			if indeg[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	return out
}

// Topological iterates over the nodes so that every node comes after all
// of its predecessors. Nodes on a cycle are never yielded.
func (g *Graph) Topological() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, n := range g.topo(g.Predecessors) {
			if !yield(n) {
				return
			}
		}
	}
}

// IsConsistent reports whether program order, reads-from, coherence,
// from-reads, creation and join edges are acyclic and every release is
// read by at most one acquisition.
func (g *Graph) IsConsistent() bool {
	if len(g.topo(g.Predecessors)) != len(g.order) {
		return false
	}
	type release struct {
		loc runtime.Location
		w   Key
	}
	acquired := make(map[release]bool)
	for _, k := range g.order {
		n := g.Node(k)
		if n.Type != ReadEx {
			continue
		}
		id := release{loc: n.Loc, w: n.rf}
		if acquired[id] {
			return false
		}
		acquired[id] = true
	}
	return true
}

// Validate checks the structural invariants: every read has exactly one
// reads-from source, which is a write to the same location, and every
// coherence order holds writes of its location only.
func (g *Graph) Validate() error {
	for _, k := range g.order {
		n := g.Node(k)
		if n == nil {
			return fmt.Errorf("total order holds missing node %v", k)
		}
		if !n.Type.IsRead() {
			continue
		}
		if !n.hasRF {
			return fmt.Errorf("read %v has no reads-from edge", k)
		}
		w := g.Node(n.rf)
		if w == nil {
			return fmt.Errorf("read %v reads missing node %v", k, n.rf)
		}
		if w.Key != InitKey && (!w.Type.IsWrite() || w.Loc != n.Loc) {
			return fmt.Errorf("read %v reads %v which does not write %s", k, n.rf, n.Loc)
		}
		if g.HappensBefore(k, n.rf) {
			return fmt.Errorf("read %v happens before the write %v it reads", k, n.rf)
		}
	}
	for loc, ws := range g.co {
		seen := make(map[Key]bool, len(ws))
		for _, w := range ws {
			n := g.Node(w)
			if n == nil || !n.Type.IsWrite() || n.Loc != loc {
				return fmt.Errorf("coherence order of %s holds %v", loc, w)
			}
			if seen[w] {
				return fmt.Errorf("coherence order of %s repeats %v", loc, w)
			}
			seen[w] = true
		}
	}
	return nil
}
