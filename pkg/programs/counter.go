package programs

import "github.com/amirkhaki/watson/pkg/runtime"

// LockedCounter has n tasks increment a counter once each under a mutex.
// Every execution ends with the counter at n.
func LockedCounter(n int) func(rt *runtime.Runtime) {
	return func(rt *runtime.Runtime) {
		count := runtime.NewVar(rt, 0)
		mu := runtime.NewMutex(rt)
		spawnAll(rt, n, func(int) {
			mu.Lock()
			count.Store(count.Load() + 1)
			mu.Unlock()
		})
		got := count.Load()
		rt.Assert(got == n, "counter is %d, want %d", got, n)
	}
}

// BuggyCounter is LockedCounter without the mutex: two tasks may read the
// same value and lose an update.
func BuggyCounter(n int) func(rt *runtime.Runtime) {
	return func(rt *runtime.Runtime) {
		count := runtime.NewVar(rt, 0)
		spawnAll(rt, n, func(int) {
			count.Store(count.Load() + 1)
		})
		got := count.Load()
		rt.Assert(got == n, "counter is %d, want %d", got, n)
	}
}
