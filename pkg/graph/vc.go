package graph

// VC is a vector clock indexed by task id. VC[t] is the number of events
// of task t that happen before or equal the owning node.
type VC []int

func (v VC) Get(t int) int {
	if t < len(v) {
		return v[t]
	}
	return 0
}

// Set returns v with component t set to n, growing it if needed.
func (v VC) Set(t, n int) VC {
	for len(v) <= t {
		v = append(v, 0)
	}
	v[t] = n
	return v
}

// Join returns the component-wise maximum of v and o. v may be modified.
func (v VC) Join(o VC) VC {
	for t, n := range o {
		if n > v.Get(t) {
			v = v.Set(t, n)
		}
	}
	return v
}

func (v VC) Clone() VC {
	if v == nil {
		return nil
	}
	c := make(VC, len(v))
	copy(c, v)
	return c
}

// Covers reports whether the node with key k happens before or equals the owner of v.
func (v VC) Covers(k Key) bool {
	return v.Get(k.Task) > k.TS
}

// Less reports whether v is strictly smaller than o.
func (v VC) Less(o VC) bool {
	strict := false
	n := max(len(v), len(o))
	for t := 0; t < n; t++ {
		a, b := v.Get(t), o.Get(t)
		if a > b {
			return false
		}
		if a < b {
			strict = true
		}
	}
	return strict
}

// ConcurrentTo reports whether neither clock is smaller than the other.
func (v VC) ConcurrentTo(o VC) bool {
	return !v.Less(o) && !o.Less(v)
}
