package programs

import "github.com/amirkhaki/watson/pkg/runtime"

// MessagePassing publishes a payload behind a flag. A consumer that sees
// the flag must see the payload. Sizes above two add consumers.
func MessagePassing(n int) func(rt *runtime.Runtime) {
	const payload = 42
	return func(rt *runtime.Runtime) {
		data := runtime.NewVar(rt, 0)
		flag := runtime.NewVar(rt, false)
		spawnAll(rt, max(n, 2), func(i int) {
			if i == 0 {
				data.Store(payload)
				flag.Store(true)
				return
			}
			if flag.Load() {
				got := data.Load()
				rt.Assert(got == payload, "consumer %d read %d after the flag", i, got)
			}
		})
	}
}

// ParkHandoff has a consumer park until a producer has stored a value and
// unparked it. The permit makes the handoff work in either order.
func ParkHandoff(int) func(rt *runtime.Runtime) {
	return func(rt *runtime.Runtime) {
		box := runtime.NewVar(rt, 0)
		consumer := rt.Go(func() {
			rt.Park()
			got := box.Load()
			rt.Assert(got == 7, "consumer woke up to %d", got)
		})
		producer := rt.Go(func() {
			box.Store(7)
			rt.Unpark(consumer)
		})
		rt.Join(producer)
		rt.Join(consumer)
	}
}
