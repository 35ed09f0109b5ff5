package selector

// Selector picks one element from candidates. A nil or empty slice is a valid
// input and yields ok == false.
type Selector[T any] interface {
	Select(candidates []T) (selected T, ok bool)
}

// Func adapts an ordinary function to the Selector interface.
type Func[T any] func(candidates []T) (T, bool)

func (f Func[T]) Select(candidates []T) (T, bool) {
	return f(candidates)
}

func none[T any]() (T, bool) {
	var zero T
	return zero, false
}
