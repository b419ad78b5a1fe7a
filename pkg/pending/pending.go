// Package pending provides a single-assignment result for work that completes
// off the caller's goroutine.
package pending

import (
	"context"

	"github.com/sourcegraph/conc/panics"
)

// Pending holds the eventual outcome of one call. It completes exactly once,
// with either a value or an error.
type Pending[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn on a new goroutine. A panic inside fn completes the result with
// an error carrying the recovered value and stack.
func Go[T any](fn func() (T, error)) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{})}

	go func() {
		var (
			val T
			err error
			pc  panics.Catcher
		)
		pc.Try(func() {
			val, err = fn()
		})
		if r := pc.Recovered(); r != nil {
			var zero T
			val, err = zero, r.AsError()
		}
		p.complete(val, err)
	}()

	return p
}

// Resolved returns a result that is already complete.
func Resolved[T any](val T, err error) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{})}
	p.complete(val, err)
	return p
}

// Failed returns a result already completed with err.
func Failed[T any](err error) *Pending[T] {
	var zero T
	return Resolved(zero, err)
}

func (p *Pending[T]) complete(val T, err error) {
	if err != nil {
		var zero T
		val = zero
	}
	p.val, p.err = val, err
	close(p.done)
}

// Done is closed once the result is available.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the result is available or ctx ends. Giving up on the
// wait does not cancel the underlying call.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Ready reports whether the result is available without blocking.
func (p *Pending[T]) Ready() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
