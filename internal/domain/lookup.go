package domain

// Lookup is the result of fetching something that may legitimately be
// absent. Absence is a normal outcome, not an error.
type Lookup[T any] struct {
	value T
	ok    bool
}

// Found wraps a located value.
func Found[T any](v T) Lookup[T] { return Lookup[T]{value: v, ok: true} }

// NotFound reports that nothing matched.
func NotFound[T any]() Lookup[T] { return Lookup[T]{} }

// Get returns the value and whether it was found.
func (l Lookup[T]) Get() (T, bool) { return l.value, l.ok }

// OK reports whether a value was found.
func (l Lookup[T]) OK() bool { return l.ok }

// OrElse returns the value, or def when nothing was found.
func (l Lookup[T]) OrElse(def T) T {
	if l.ok {
		return l.value
	}
	return def
}
