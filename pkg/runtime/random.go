package runtime

import (
	"math/rand"
)

// RandomStrategy resumes a uniformly chosen enabled task at every
// scheduling point. The same seed reproduces the same sequence of
// iterations.
type RandomStrategy struct {
	tracker *Tracker
	rng     *rand.Rand
	seed    int64
}

// NewRandomStrategy creates a strategy that randomly orders task execution.
func NewRandomStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{
		tracker: NewTracker(),
		rng:     rand.New(rand.NewSource(seed)),
		seed:    seed,
	}
}

func (s *RandomStrategy) Seed() int64 { return s.seed }

func (s *RandomStrategy) InitIteration(int) error { return nil }

func (s *RandomStrategy) UpdateEvent(e Event) error {
	s.tracker.Update(e)
	return nil
}

// NextTask picks among the enabled tasks, sorted for determinism.
func (s *RandomStrategy) NextTask() Choice {
	active := s.tracker.Active()
	switch len(active) {
	case 0:
		return End()
	case 1:
		return Resume(active[0])
	default:
		return Resume(active[s.rng.Intn(len(active))])
	}
}

func (s *RandomStrategy) ResetIteration(int) {
	s.tracker.Reset()
}

func (s *RandomStrategy) Teardown() {}
