package clock

import (
	"fmt"
	"strings"
)

// A vector clock indexed by task id.
//
// Clocks are treated as immutable values. All operations that change a clock return a new clock and leave the receiver untouched,
// which allows the clock of a recorded event to be shared without copying.
type VectorClock []uint32

// Create a new empty vector clock
func New() VectorClock {
	return VectorClock{}
}

// Returns the component of the clock that belongs to task t.
// Components that have never been set are 0.
func (vc VectorClock) Get(t int) uint32 {
	if t < 0 || t >= len(vc) {
		return 0
	}
	return vc[t]
}

// Returns a copy of the clock
func (vc VectorClock) Clone() VectorClock {
	c := make(VectorClock, len(vc))
	copy(c, vc)
	return c
}

// Returns a new clock where the component of task t is incremented by one
func (vc VectorClock) Increment(t int) VectorClock {
	size := len(vc)
	if t >= size {
		size = t + 1
	}
	c := make(VectorClock, size)
	copy(c, vc)
	c[t]++
	return c
}

// Returns the pointwise maximum of the two clocks
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	size := len(vc)
	if len(other) > size {
		size = len(other)
	}
	c := make(VectorClock, size)
	for i := range c {
		a, b := vc.Get(i), other.Get(i)
		if a > b {
			c[i] = a
		} else {
			c[i] = b
		}
	}
	return c
}

// Returns true if every component of vc is smaller than or equal to the same component of other
func (vc VectorClock) LessOrEqual(other VectorClock) bool {
	for i, v := range vc {
		if v > other.Get(i) {
			return false
		}
	}
	return true
}

// Returns true if vc is greater than or equal to other in every component
func (vc VectorClock) Dominates(other VectorClock) bool {
	return other.LessOrEqual(vc)
}

func (vc VectorClock) Equal(other VectorClock) bool {
	return vc.LessOrEqual(other) && other.LessOrEqual(vc)
}

// Returns true if neither clock is less than or equal to the other
func Concurrent(a, b VectorClock) bool {
	return !a.LessOrEqual(b) && !b.LessOrEqual(a)
}

func (vc VectorClock) String() string {
	parts := make([]string, len(vc))
	for i, v := range vc {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
