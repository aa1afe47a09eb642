// Package adapter wraps calls to external collaborators (model adapters, discovery, embedding)
// in tagged results with bounded timeouts and validated JSON decoding.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind tags the variant of a Result.
type Kind int

// Result variants.
const (
	// Success carries a validated value from the collaborator.
	Success Kind = iota
	// Fallback carries a clearly labelled substitute value (stub or deterministic fallback).
	Fallback
	// Failure carries no usable value.
	Failure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Fallback:
		return "fallback"
	default:
		return "failure"
	}
}

// Result is the outcome of one adapter call.
type Result[T any] struct {
	Kind  Kind
	Value T
	// Reason explains a Fallback or Failure.
	Reason string
	Err    error
}

// Ok returns a Success result.
func Ok[T any](v T) Result[T] {
	return Result[T]{Kind: Success, Value: v}
}

// Substitute returns a Fallback result carrying v.
func Substitute[T any](v T, reason string, cause error) Result[T] {
	return Result[T]{Kind: Fallback, Value: v, Reason: reason, Err: cause}
}

// Fail returns a Failure result.
func Fail[T any](reason string, err error) Result[T] {
	return Result[T]{Kind: Failure, Reason: reason, Err: err}
}

// Usable reports whether the result carries a value.
func (r Result[T]) Usable() bool {
	return r.Kind != Failure
}

// TimeoutError reports that a collaborator did not answer within its deadline.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Timeout)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Call runs fn with a deadline of timeout. When the deadline passes first, Call returns a
// TimeoutError without waiting for fn to finish.
func Call[T any](ctx context.Context, operation string, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(callCtx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, &TimeoutError{Operation: operation, Timeout: timeout}
		}
		return o.v, o.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &TimeoutError{Operation: operation, Timeout: timeout}
	}
}
