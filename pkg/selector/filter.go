package selector

type filterSelector[T any] struct {
	keep func(T) bool
	next Selector[T]
}

// NewFilter hands next only the candidates keep accepts, preserving their
// order. The caller's slice is copied, never modified.
func NewFilter[T any](keep func(T) bool, next Selector[T]) Selector[T] {
	return &filterSelector[T]{keep: keep, next: next}
}

func (f *filterSelector[T]) Select(candidates []T) (T, bool) {
	if len(candidates) == 0 || f.next == nil {
		return none[T]()
	}

	if f.keep == nil {
		return f.next.Select(candidates)
	}

	kept := make([]T, 0, len(candidates))
	for _, c := range candidates {
		if f.keep(c) {
			kept = append(kept, c)
		}
	}

	return f.next.Select(kept)
}
