// Package programs holds the programs under test that ship with watson.
// Each one is written against the runtime's program API, so every shared
// access is a scheduling point the checker controls.
package programs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/amirkhaki/watson/pkg/runtime"
)

// ErrUnknownProgram is returned by Lookup for a name no program carries.
var ErrUnknownProgram = errors.New("unknown program")

// Program is a program under test parameterized by its number of tasks.
type Program struct {
	Name        string
	Description string
	// Size is the number of tasks the program spawns by default.
	Size int
	// Bug tells whether some schedule makes the program fail.
	Bug bool
	New func(size int) func(rt *runtime.Runtime)
}

// Build returns the program body for size tasks, or the default size when
// size is not positive.
func (p Program) Build(size int) func(rt *runtime.Runtime) {
	if size <= 0 {
		size = p.Size
	}
	return p.New(size)
}

var registry = []Program{
	{
		Name:        "counter",
		Description: "tasks increment a shared counter under a mutex",
		Size:        2,
		New:         LockedCounter,
	},
	{
		Name:        "buggy-counter",
		Description: "tasks increment a shared counter without synchronization",
		Size:        2,
		Bug:         true,
		New:         BuggyCounter,
	},
	{
		Name:        "coarse-list",
		Description: "tasks insert into an ordered set guarded by one lock",
		Size:        4,
		New:         CoarseListInsertions,
	},
	{
		Name:        "coarse-list-mixed",
		Description: "half the tasks insert into and half remove from an ordered set guarded by one lock",
		Size:        4,
		New:         CoarseListWorkload,
	},
	{
		Name:        "philosophers",
		Description: "dining philosophers taking the left fork first",
		Size:        3,
		Bug:         true,
		New:         DiningPhilosophers,
	},
	{
		Name:        "ordered-philosophers",
		Description: "dining philosophers taking the lower numbered fork first",
		Size:        3,
		New:         OrderedPhilosophers,
	},
	{
		Name:        "message-passing",
		Description: "a consumer sees the payload once it sees the flag",
		Size:        2,
		New:         MessagePassing,
	},
	{
		Name:        "store-buffering",
		Description: "each task writes one variable and reads the other",
		Size:        2,
		New:         StoreBuffering,
	},
	{
		Name:        "load-buffering",
		Description: "each task reads one variable and writes the other",
		Size:        2,
		New:         LoadBuffering,
	},
	{
		Name:        "two-plus-two-w",
		Description: "two tasks write two variables in opposite orders",
		Size:        2,
		New:         TwoPlusTwoW,
	},
	{
		Name:        "write-write-read",
		Description: "two tasks write a variable that a third reads",
		Size:        3,
		New:         WriteWriteRead,
	},
	{
		Name:        "park-handoff",
		Description: "a producer hands a value to a parked consumer",
		Size:        2,
		New:         ParkHandoff,
	},
}

// All returns every registered program.
func All() []Program {
	return append([]Program(nil), registry...)
}

// Lookup finds a program by name. A name of the form "name:size" overrides
// the number of tasks.
func Lookup(name string) (Program, int, error) {
	size := 0
	if base, n, ok := strings.Cut(name, ":"); ok {
		v, err := strconv.Atoi(n)
		if err != nil || v <= 0 {
			return Program{}, 0, fmt.Errorf("invalid size in %q", name)
		}
		name, size = base, v
	}
	for _, p := range registry {
		if p.Name == name {
			if size == 0 {
				size = p.Size
			}
			return p, size, nil
		}
	}
	return Program{}, 0, fmt.Errorf("%w: %q", ErrUnknownProgram, name)
}

// spawnAll starts n tasks running body(i) and joins them in order.
func spawnAll(rt *runtime.Runtime, n int, body func(i int)) {
	ids := make([]runtime.TaskID, n)
	for i := range n {
		ids[i] = rt.Go(func() { body(i) })
	}
	for _, id := range ids {
		rt.Join(id)
	}
}
