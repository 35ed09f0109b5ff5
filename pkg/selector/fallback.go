package selector

type fallbackSelector[T any] struct {
	chain []Selector[T]
}

// NewFallback chains selectors: each one is asked in turn with the same
// candidates and the first selection made is returned. Nil entries are
// skipped.
func NewFallback[T any](selectors ...Selector[T]) Selector[T] {
	chain := make([]Selector[T], 0, len(selectors))
	for _, s := range selectors {
		if s != nil {
			chain = append(chain, s)
		}
	}

	return &fallbackSelector[T]{chain: chain}
}

func (f *fallbackSelector[T]) Select(candidates []T) (T, bool) {
	if len(candidates) == 0 {
		return none[T]()
	}

	for _, s := range f.chain {
		if selected, ok := s.Select(candidates); ok {
			return selected, true
		}
	}

	return none[T]()
}
