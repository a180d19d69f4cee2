package runtime

import (
	"fmt"
	"strings"
)

// CoverageStrategy wraps another strategy and counts how many distinct
// schedules the campaign has produced.
type CoverageStrategy struct {
	Strategy
	current []TaskID
	seen    map[string]int
	runs    int
}

func NewCoverageStrategy(inner Strategy) *CoverageStrategy {
	return &CoverageStrategy{Strategy: inner, seen: make(map[string]int)}
}

func (s *CoverageStrategy) NextTask() Choice {
	c := s.Strategy.NextTask()
	if c.Kind == ChoiceTask {
		s.current = append(s.current, c.Task)
	}
	return c
}

func (s *CoverageStrategy) ResetIteration(i int) {
	s.seen[scheduleKey(s.current)]++
	s.runs++
	s.current = nil
	s.Strategy.ResetIteration(i)
}

// Distinct returns the number of distinct schedules seen.
func (s *CoverageStrategy) Distinct() int { return len(s.seen) }

// Iterations returns the number of iterations observed.
func (s *CoverageStrategy) Iterations() int { return s.runs }

// Duplicates returns how many iterations repeated an earlier schedule.
func (s *CoverageStrategy) Duplicates() int { return s.runs - len(s.seen) }

func scheduleKey(schedule []TaskID) string {
	var b strings.Builder
	for i, id := range schedule {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", id)
	}
	return b.String()
}
