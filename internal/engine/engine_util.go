package engine

import (
	"math/rand/v2"
)

func NewIdleState() State {
	return State{
		Status: StatusIdle,
		Rules:  Rules{Ticks: DefaultTicks, Interval: DefaultInterval},
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// RandomSource picks uniformly from [0, n). n is always > 0.
type RandomSource interface {
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int { return rand.IntN(n) }

// DefaultRandom is the process-wide uniform source. Safe for concurrent use.
func DefaultRandom() RandomSource { return globalRandom{} }

// NewSeededRandom returns a reproducible source, for tests and replays.
// Not safe for concurrent use.
func NewSeededRandom(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
