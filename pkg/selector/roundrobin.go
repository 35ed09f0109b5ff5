package selector

import (
	"sync/atomic"
)

type roundRobinSelector[T any] struct {
	current atomic.Uint64
}

// NewRoundRobin returns a Selector cycling through candidates by position.
// The counter is shared by all callers, so concurrent use stays lock-free.
func NewRoundRobin[T any]() Selector[T] {
	return &roundRobinSelector[T]{}
}

func (rr *roundRobinSelector[T]) Select(candidates []T) (T, bool) {
	if len(candidates) == 0 {
		return none[T]()
	}

	n := rr.current.Add(1)
	index := (n - 1) % uint64(len(candidates))

	return candidates[index], true
}
