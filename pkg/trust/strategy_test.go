package trust_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirkhaki/watson/pkg/graph"
	"github.com/amirkhaki/watson/pkg/programs"
	"github.com/amirkhaki/watson/pkg/runtime"
	"github.com/amirkhaki/watson/pkg/trust"
)

type exploration struct {
	results []runtime.Result
	graphs  []string
}

func (e exploration) count(o runtime.Outcome) int {
	n := 0
	for _, res := range e.results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// explore runs program under the Trust strategy until the exploration is
// exhausted or limit iterations have run. Every saved graph must replay.
func explore(t *testing.T, opts trust.Options, limit int, program func(*runtime.Runtime)) exploration {
	t.Helper()
	s := trust.NewStrategy(opts)
	rt := runtime.New(s, runtime.Options{})
	defer rt.Close()
	defer s.Teardown()

	var e exploration
	for i := 0; i < limit; i++ {
		if err := s.InitIteration(i); err != nil {
			h, ok := runtime.AsHalt(err)
			require.True(t, ok, "iteration %d: %v", i, err)
			require.Equal(t, runtime.HaltChecker, h.Kind)
			require.NoError(t, h.Err)
			return e
		}
		res := rt.Run(context.Background(), program)
		require.NotEqual(t, runtime.OutcomeError, res.Outcome, "iteration %d: %v", i, res)
		require.NoError(t, s.Algo().Graph().Validate(), "iteration %d", i)
		e.graphs = append(e.graphs, s.Algo().Graph().Signature())
		s.ResetIteration(i)
		e.results = append(e.results, res)
	}
	t.Fatalf("exploration not exhausted after %d iterations", limit)
	return e
}

func TestLockedCounterOrders(t *testing.T) {
	e := explore(t, trust.Options{}, 100, programs.LockedCounter(2))
	assert.Len(t, e.results, 2)
	assert.Equal(t, 2, e.count(runtime.OutcomeSuccess))
	assert.NotEqual(t, e.graphs[0], e.graphs[1])
}

func TestCoarseListExecutions(t *testing.T) {
	for _, tc := range []struct {
		threads    int
		executions int
	}{
		{threads: 1, executions: 1},
		{threads: 2, executions: 2},
		{threads: 3, executions: 6},
		{threads: 4, executions: 24},
		{threads: 7, executions: 5040},
	} {
		t.Run(fmt.Sprintf("%d-threads", tc.threads), func(t *testing.T) {
			if tc.threads > 4 && testing.Short() {
				t.Skip("long exploration")
			}
			e := explore(t, trust.Options{}, 10*tc.executions+10, programs.CoarseListInsertions(tc.threads))
			assert.Equal(t, tc.executions, e.count(runtime.OutcomeSuccess))
			assert.Equal(t, len(e.results), e.count(runtime.OutcomeSuccess)+e.count(runtime.OutcomeBlocked))

			distinct := make(map[string]bool)
			for i, res := range e.results {
				if res.Outcome == runtime.OutcomeSuccess {
					distinct[e.graphs[i]] = true
				}
			}
			assert.Len(t, distinct, tc.executions, "an execution was visited twice")
		})
	}
}

func TestBuggyCounterFound(t *testing.T) {
	e := explore(t, trust.Options{}, 100, programs.BuggyCounter(2))
	require.Positive(t, e.count(runtime.OutcomeAssertionFailure))
	for _, res := range e.results {
		if res.Outcome == runtime.OutcomeAssertionFailure {
			var failure *runtime.AssertionError
			require.ErrorAs(t, res.Err, &failure)
			assert.Contains(t, failure.Msg, "counter is 1")
		}
	}
}

func TestMessagePassingHolds(t *testing.T) {
	e := explore(t, trust.Options{}, 100, programs.MessagePassing(2))
	// The consumer reads the flag unset, or set and then the payload.
	assert.Len(t, e.results, 2)
	assert.Equal(t, 2, e.count(runtime.OutcomeSuccess))
	assert.NotEqual(t, e.graphs[0], e.graphs[1])
}

func TestLitmusExecutions(t *testing.T) {
	for _, tc := range []struct {
		name       string
		program    func(*runtime.Runtime)
		executions int
	}{
		{"store-buffering", programs.StoreBuffering(2), 3},
		{"load-buffering", programs.LoadBuffering(2), 3},
		{"two-plus-two-w", programs.TwoPlusTwoW(2), 3},
		{"write-write-read", programs.WriteWriteRead(3), 6},
		{"message-passing", programs.MessagePassing(2), 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := explore(t, trust.Options{}, 100, tc.program)
			assert.Len(t, e.results, tc.executions)
			assert.Equal(t, tc.executions, e.count(runtime.OutcomeSuccess))

			distinct := make(map[string]bool)
			for _, g := range e.graphs {
				distinct[g] = true
			}
			assert.Len(t, distinct, tc.executions, "an execution was visited twice")
		})
	}
}

// A read that runs last in its task, then finishes, replays with its new
// source and the task's end joins the graph afterwards.
func TestReplayPastTaskPrefix(t *testing.T) {
	e := explore(t, trust.Options{}, 100, programs.StoreBuffering(2))
	require.Len(t, e.results, 3)
	for i, g := range e.graphs {
		assert.Equal(t, 3, strings.Count(g, graph.End.String()), "iteration %d:\n%s", i, g)
	}
}

// Parking is not part of the graph, so some saved graphs cannot be reached.
// Those iterations are blocked, never failed.
func TestParkHandoffUnreachableGraphsBlock(t *testing.T) {
	e := explore(t, trust.Options{}, 100, programs.ParkHandoff(2))
	assert.Positive(t, e.count(runtime.OutcomeSuccess))
	assert.Zero(t, e.count(runtime.OutcomeAssertionFailure))
	assert.Equal(t, len(e.results), e.count(runtime.OutcomeSuccess)+e.count(runtime.OutcomeBlocked))
}

func TestRandomPolicy(t *testing.T) {
	e := explore(t, trust.Options{Policy: trust.Random, Seed: 3}, 100, programs.LockedCounter(3))
	assert.Equal(t, 6, e.count(runtime.OutcomeSuccess))
}

func TestDebugDump(t *testing.T) {
	dir := t.TempDir()
	explore(t, trust.Options{DebugDir: dir}, 100, programs.LockedCounter(2))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	data, err := os.ReadFile(filepath.Join(dir, "graph-000000.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), graph.ReadEx.String())
}
