package line

import (
	"math"
	"math/rand/v2"
)

// Source supplies uniformly distributed values in [0, 1).
type Source interface {
	Float64() float64
}

// NewSource returns a deterministic PCG-backed source for the given seed.
func NewSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// uniform draws a value in [-spread, +spread).
func uniform(src Source, spread float64) float64 {
	if src == nil || spread == 0 || math.IsNaN(spread) {
		return 0
	}
	return src.Float64()*spread*2 - spread
}
