package vitals

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the randomness the sensor draws jitter and waveform noise from.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
	NormFloat64() float64
}

// NewRand returns a Rand seeded with seed, safe for concurrent use. A zero
// seed picks one from the current time.
func NewRand(seed uint64) Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // G115: sign bit irrelevant for a seed
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))} //nolint:gosec // G404: simulation noise, not security
}

// lockedRand serializes access to a generator that is not goroutine safe.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) NormFloat64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.NormFloat64()
}
