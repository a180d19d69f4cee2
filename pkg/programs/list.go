package programs

import (
	"math"

	"github.com/amirkhaki/watson/pkg/runtime"
)

type listNode struct {
	key  int
	next *runtime.Var[*listNode]
}

// CoarseList is an ordered set of ints kept as a sorted linked list between
// two sentinels. One mutex guards the whole list.
type CoarseList struct {
	rt   *runtime.Runtime
	head *listNode
	mu   *runtime.Mutex
}

func NewCoarseList(rt *runtime.Runtime) *CoarseList {
	tail := &listNode{key: math.MaxInt, next: runtime.NewVar[*listNode](rt, nil)}
	head := &listNode{key: math.MinInt, next: runtime.NewVar(rt, tail)}
	return &CoarseList{rt: rt, head: head, mu: runtime.NewMutex(rt)}
}

// find returns the last node with a key below key and its successor.
// The caller holds the lock.
func (l *CoarseList) find(key int) (pred, curr *listNode) {
	pred = l.head
	curr = pred.next.Load()
	for curr.key < key {
		pred = curr
		curr = curr.next.Load()
	}
	return pred, curr
}

// Add inserts key and reports whether it was missing.
func (l *CoarseList) Add(key int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	pred, curr := l.find(key)
	if curr.key == key {
		return false
	}
	pred.next.Store(&listNode{key: key, next: runtime.NewVar(l.rt, curr)})
	return true
}

// Remove deletes key and reports whether it was present.
func (l *CoarseList) Remove(key int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	pred, curr := l.find(key)
	if curr.key != key {
		return false
	}
	pred.next.Store(curr.next.Load())
	return true
}

// Contains reports whether key is in the set.
func (l *CoarseList) Contains(key int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, curr := l.find(key)
	return curr.key == key
}

// Keys returns the keys in order.
func (l *CoarseList) Keys() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var keys []int
	for n := l.head.next.Load(); n.key != math.MaxInt; n = n.next.Load() {
		keys = append(keys, n.key)
	}
	return keys
}

// CoarseListInsertions has n tasks insert distinct keys. Every execution
// ends with all n keys in order.
func CoarseListInsertions(n int) func(rt *runtime.Runtime) {
	return func(rt *runtime.Runtime) {
		set := NewCoarseList(rt)
		spawnAll(rt, n, func(i int) {
			rt.Assert(set.Add(i+1), "key %d added twice", i+1)
		})
		keys := set.Keys()
		rt.Assert(len(keys) == n, "set holds %v, want %d keys", keys, n)
		for i, k := range keys {
			rt.Assert(k == i+1, "set holds %v out of order", keys)
		}
	}
}

// CoarseListWorkload runs ceil(n/2) insertions racing with floor(n/2)
// removals of the same keys.
func CoarseListWorkload(n int) func(rt *runtime.Runtime) {
	inserts, removes := (n+1)/2, n/2
	return func(rt *runtime.Runtime) {
		set := NewCoarseList(rt)
		spawnAll(rt, n, func(i int) {
			if i < inserts {
				set.Add(i + 1)
				return
			}
			set.Remove(i - inserts + 1)
		})
		keys := set.Keys()
		rt.Assert(len(keys) >= inserts-removes && len(keys) <= inserts, "set holds %v", keys)
		for i := 1; i < len(keys); i++ {
			rt.Assert(keys[i-1] < keys[i], "set holds %v out of order", keys)
		}
	}
}
