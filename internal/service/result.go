package service

// Result carries a value or the reason it could not be produced, so call
// sites decide whether a degraded outcome is logged, shown, or ignored.
type Result[T any] struct {
	Value T
	Err   error
}

func ok[T any](v T) Result[T] { return Result[T]{Value: v} }

func fail[T any](err error) Result[T] { return Result[T]{Err: err} }

// OK reports whether the value is usable.
func (r Result[T]) OK() bool { return r.Err == nil }
