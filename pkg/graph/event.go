// Package graph records one execution as a graph of events ordered by
// program order, reads-from, coherence, thread creation and thread join.
package graph

import (
	"fmt"

	"github.com/amirkhaki/watson/pkg/runtime"
)

// Type is the type of a graph event.
type Type uint8

const (
	Init Type = iota
	Read
	Write
	// ReadEx is a lock acquisition: it reads the release it follows.
	ReadEx
	// WriteEx is a lock release.
	WriteEx
	// LockAwait is an acquisition still blocked when the execution ended.
	LockAwait
	Start
	Join
	End
	Error
)

func (t Type) String() string {
	switch t {
	case Init:
		return "init"
	case Read:
		return "read"
	case Write:
		return "write"
	case ReadEx:
		return "read-ex"
	case WriteEx:
		return "write-ex"
	case LockAwait:
		return "lock-await"
	case Start:
		return "start"
	case Join:
		return "join"
	case End:
		return "end"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// IsRead reports whether events of this type take a reads-from edge.
func (t Type) IsRead() bool { return t == Read || t == ReadEx }

// IsWrite reports whether events of this type sit in a coherence order.
func (t Type) IsWrite() bool { return t == Write || t == WriteEx }

// Relation names an edge kind of the graph.
type Relation uint8

const (
	ProgramOrder Relation = iota
	ReadsFrom
	Coherency
	ThreadCreation
	ThreadJoin
)

func (r Relation) String() string {
	switch r {
	case ProgramOrder:
		return "po"
	case ReadsFrom:
		return "rf"
	case Coherency:
		return "co"
	case ThreadCreation:
		return "tc"
	case ThreadJoin:
		return "tj"
	default:
		return "unknown"
	}
}

// Key identifies a node: its task and its 0-based index within the task.
// Task 0 holds only the initial node.
type Key struct {
	Task int `json:"task"`
	TS   int `json:"ts"`
}

// InitKey is the key of the initial node, which writes every location.
var InitKey = Key{}

func (k Key) String() string { return fmt.Sprintf("(%d,%d)", k.Task, k.TS) }

// Event is what a node records.
type Event struct {
	Key  Key
	Type Type
	// Loc is the accessed location; zero for events without one.
	Loc runtime.Location
	// Peer is the creating task of a start and the joined task of a join.
	Peer int
}

func (e Event) String() string {
	switch {
	case e.Type == Start || e.Type == Join:
		return fmt.Sprintf("%v%s[%d]", e.Key, e.Type, e.Peer)
	case e.Loc != (runtime.Location{}):
		return fmt.Sprintf("%v%s[%s]", e.Key, e.Type, e.Loc)
	default:
		return fmt.Sprintf("%v%s", e.Key, e.Type)
	}
}

// Node wraps one event with its vector clock and its incoming edges.
// Other nodes are referenced by key only.
type Node struct {
	Event
	VC VC
	// Tagged marks an acquisition placed by a lock revisit; later revisits
	// must not remove it.
	Tagged bool

	stamp   int
	rf      Key
	hasRF   bool
	from    Key
	hasFrom bool
}

// Stamp is the position of the node in the graph's total order.
func (n *Node) Stamp() int { return n.stamp }

// ReadsFrom returns the write a read node reads.
func (n *Node) ReadsFrom() (Key, bool) { return n.rf, n.hasRF }

// From returns the creating node of a start or the joined node of a join.
func (n *Node) From() (Key, bool) { return n.from, n.hasFrom }

func (n *Node) clone() *Node {
	c := *n
	c.VC = n.VC.Clone()
	return &c
}
