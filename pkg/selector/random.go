package selector

import (
	"math/rand/v2"
)

type randomSelector[T any] struct{}

func NewRandom[T any]() Selector[T] {
	return randomSelector[T]{}
}

func (randomSelector[T]) Select(candidates []T) (T, bool) {
	if len(candidates) == 0 {
		return none[T]()
	}

	return candidates[rand.IntN(len(candidates))], true
}
