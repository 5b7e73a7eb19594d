// Package fn holds the small generic helpers shared by the crawler and its
// collaborators: a Result type used inside retry loops, the retry policy
// itself, and a handful of slice utilities.
package fn

// Result is the outcome of one attempt: a value, or the error that
// prevented it. The zero Result is a successful zero value.
type Result[T any] struct {
	val T
	err error
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Err wraps a failure. A nil err yields a successful zero value.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// FromPair adapts a (value, error) return.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// IsOk reports whether the attempt succeeded.
func (r Result[T]) IsOk() bool { return r.err == nil }

// Err returns the failure, or nil.
func (r Result[T]) Err() error { return r.err }

// Unwrap returns the value and error as a Go pair.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }
