package programs

import "github.com/amirkhaki/watson/pkg/runtime"

// StoreBuffering has each task write one variable and read the other. In
// every interleaving at least one task sees the other's write.
func StoreBuffering(int) func(rt *runtime.Runtime) {
	return func(rt *runtime.Runtime) {
		x, y := runtime.NewVar(rt, 0), runtime.NewVar(rt, 0)
		var a, b int
		spawnAll(rt, 2, func(i int) {
			if i == 0 {
				x.Store(1)
				a = y.Load()
				return
			}
			y.Store(1)
			b = x.Load()
		})
		rt.Assert(a == 1 || b == 1, "both tasks missed the other's write")
	}
}

// LoadBuffering has each task read one variable and then write the other.
// No interleaving lets both reads see the writes that follow them.
func LoadBuffering(int) func(rt *runtime.Runtime) {
	return func(rt *runtime.Runtime) {
		x, y := runtime.NewVar(rt, 0), runtime.NewVar(rt, 0)
		var a, b int
		spawnAll(rt, 2, func(i int) {
			if i == 0 {
				a = x.Load()
				y.Store(1)
				return
			}
			b = y.Load()
			x.Store(1)
		})
		rt.Assert(a == 0 || b == 0, "both tasks read a later write")
	}
}

// TwoPlusTwoW has two tasks write both variables in opposite orders. The
// first write of each task cannot win on both variables.
func TwoPlusTwoW(int) func(rt *runtime.Runtime) {
	return func(rt *runtime.Runtime) {
		x, y := runtime.NewVar(rt, 0), runtime.NewVar(rt, 0)
		spawnAll(rt, 2, func(i int) {
			if i == 0 {
				x.Store(1)
				y.Store(2)
				return
			}
			y.Store(1)
			x.Store(2)
		})
		fx, fy := x.Load(), y.Load()
		rt.Assert(fx != 1 || fy != 1, "both first writes won")
	}
}

// WriteWriteRead has two tasks write one variable while a third reads it.
func WriteWriteRead(int) func(rt *runtime.Runtime) {
	return func(rt *runtime.Runtime) {
		x := runtime.NewVar(rt, 0)
		var seen int
		spawnAll(rt, 3, func(i int) {
			switch i {
			case 0:
				x.Store(1)
			case 1:
				x.Store(2)
			default:
				seen = x.Load()
			}
		})
		final := x.Load()
		rt.Assert(final == 1 || final == 2, "final value %d", final)
		rt.Assert(seen >= 0 && seen <= 2, "reader saw %d", seen)
	}
}
