package programs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirkhaki/watson/pkg/programs"
	"github.com/amirkhaki/watson/pkg/runtime"
)

func TestLookup(t *testing.T) {
	p, size, err := programs.Lookup("counter")
	require.NoError(t, err)
	assert.Equal(t, "counter", p.Name)
	assert.Equal(t, p.Size, size)

	p, size, err = programs.Lookup("philosophers:5")
	require.NoError(t, err)
	assert.Equal(t, "philosophers", p.Name)
	assert.Equal(t, 5, size)
	assert.True(t, p.Bug)

	_, _, err = programs.Lookup("nope")
	assert.ErrorIs(t, err, programs.ErrUnknownProgram)
	_, _, err = programs.Lookup("counter:0")
	assert.ErrorContains(t, err, "invalid size")
	_, _, err = programs.Lookup("counter:x")
	assert.ErrorContains(t, err, "invalid size")
}

func TestAllIsACopy(t *testing.T) {
	all := programs.All()
	require.NotEmpty(t, all)
	all[0].Name = "changed"
	assert.NotEqual(t, "changed", programs.All()[0].Name)
	for _, p := range programs.All() {
		assert.NotEmpty(t, p.Description, p.Name)
		assert.Positive(t, p.Size, p.Name)
	}
}

// Correct programs succeed whatever the schedule.
func TestProgramsRunUnderRandom(t *testing.T) {
	for _, p := range programs.All() {
		if p.Bug {
			continue
		}
		t.Run(p.Name, func(t *testing.T) {
			s := runtime.NewRandomStrategy(7)
			rt := runtime.New(s, runtime.Options{})
			defer rt.Close()
			for i := range 20 {
				require.NoError(t, s.InitIteration(i))
				res := rt.Run(context.Background(), p.Build(0))
				s.ResetIteration(i)
				require.Equal(t, runtime.OutcomeSuccess, res.Outcome, "iteration %d: %v", i, res)
			}
		})
	}
}

func TestCoarseList(t *testing.T) {
	s := runtime.NewRandomStrategy(1)
	rt := runtime.New(s, runtime.Options{})
	defer rt.Close()
	require.NoError(t, s.InitIteration(0))
	res := rt.Run(context.Background(), func(rt *runtime.Runtime) {
		l := programs.NewCoarseList(rt)
		rt.Assert(l.Add(3), "first add of 3")
		rt.Assert(l.Add(1), "first add of 1")
		rt.Assert(!l.Add(3), "second add of 3")
		rt.Assert(l.Contains(1), "1 missing")
		rt.Assert(l.Remove(1), "remove of 1")
		rt.Assert(!l.Remove(1), "second remove of 1")
		keys := l.Keys()
		rt.Assert(len(keys) == 1 && keys[0] == 3, "keys are %v", keys)
	})
	s.ResetIteration(0)
	assert.Equal(t, runtime.OutcomeSuccess, res.Outcome, res.String())
}
