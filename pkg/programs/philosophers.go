package programs

import "github.com/amirkhaki/watson/pkg/runtime"

// DiningPhilosophers seats n philosophers around n forks. Each takes the
// fork on its left, then the one on its right, so a schedule where all of
// them hold their left fork deadlocks.
func DiningPhilosophers(n int) func(rt *runtime.Runtime) {
	return philosophers(n, func(i int) (int, int) {
		return i, (i + 1) % n
	})
}

// OrderedPhilosophers breaks the cycle: every philosopher takes the lower
// numbered of its two forks first.
func OrderedPhilosophers(n int) func(rt *runtime.Runtime) {
	return philosophers(n, func(i int) (int, int) {
		left, right := i, (i+1)%n
		return min(left, right), max(left, right)
	})
}

func philosophers(n int, forksOf func(i int) (first, second int)) func(rt *runtime.Runtime) {
	return func(rt *runtime.Runtime) {
		forks := make([]*runtime.Mutex, n)
		for i := range forks {
			forks[i] = runtime.NewMutex(rt)
		}
		meals := runtime.NewVar(rt, 0)
		spawnAll(rt, n, func(i int) {
			first, second := forksOf(i)
			forks[first].Lock()
			forks[second].Lock()
			meals.Store(meals.Load() + 1)
			forks[second].Unlock()
			forks[first].Unlock()
		})
		got := meals.Load()
		rt.Assert(got == n, "%d meals served, want %d", got, n)
	}
}
