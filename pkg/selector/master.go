package selector

// masterSelector implements failover selection: the first candidate the
// predicate marks as primary wins, backups are never chosen.
type masterSelector[T any] struct {
	isPrimary func(T) bool
}

// NewMaster returns a Selector that scans candidates in order and returns the
// first one for which isPrimary reports true. When no candidate is primary it
// selects nothing; callers decide the fallback.
//
// Several primaries are not an error: the earliest one wins and the rest are
// never inspected. The predicate is evaluated on every call without caching,
// and a panic raised by it reaches the caller untouched. A nil predicate
// treats every candidate as a backup.
func NewMaster[T any](isPrimary func(T) bool) Selector[T] {
	return &masterSelector[T]{isPrimary: isPrimary}
}

func (m *masterSelector[T]) Select(candidates []T) (T, bool) {
	if len(candidates) == 0 || m.isPrimary == nil {
		return none[T]()
	}

	for _, candidate := range candidates {
		if m.isPrimary(candidate) {
			return candidate, true
		}
	}

	return none[T]()
}
