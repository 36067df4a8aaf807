package services

import "context"

// outcome is the tagged result of one step of the price chain. A step
// either resolves a value, reports that nothing is available (ok == false),
// or fails with a non-nil error. Only the error form is a fault.
type outcome[T any] struct {
	value T
	ok    bool
}

func resolved[T any](v T) (outcome[T], error) { return outcome[T]{value: v, ok: true}, nil }

func unavailable[T any]() (outcome[T], error) { return outcome[T]{}, nil }

// step is one unit of the chain.
type step[T any] func(ctx context.Context) (outcome[T], error)

// firstOf tries steps in order and stops at the first one that resolves.
// A fault stops the chain immediately.
func firstOf[T any](steps ...step[T]) step[T] {
	return func(ctx context.Context) (outcome[T], error) {
		for _, s := range steps {
			out, err := s(ctx)
			if err != nil || out.ok {
				return out, err
			}
		}
		return unavailable[T]()
	}
}

// then feeds the value resolved by s into next. NotAvailable and faults
// from s short-circuit without calling next.
func then[A, B any](s step[A], next func(ctx context.Context, v A) (outcome[B], error)) step[B] {
	return func(ctx context.Context) (outcome[B], error) {
		out, err := s(ctx)
		if err != nil {
			return outcome[B]{}, err
		}
		if !out.ok {
			return unavailable[B]()
		}
		return next(ctx, out.value)
	}
}
