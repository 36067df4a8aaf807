// Package resilience wraps remote calls in circuit breakers so a failing
// storefront or game catalog stops receiving traffic for a while instead of
// slowing down every resolution and refresh.
//
// Only faults trip a breaker. Callers encode "not found" style outcomes as
// successful results. A call that fails after its caller gave up (canceled
// or past its own deadline) is never counted against the remote side.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracker_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"name"},
	)

	breakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_breaker_requests_total",
			Help: "Calls made through a circuit breaker by result (success, failure, canceled, rejected).",
		},
		[]string{"name", "result"},
	)
)

func init() {
	prometheus.MustRegister(breakerState, breakerRequests)
}

// ErrOpen is returned (wrapped) when a breaker rejects a call without
// attempting it.
var ErrOpen = errors.New("circuit open")

// Settings tunes a Breaker.
type Settings struct {
	// MaxFailures is the number of consecutive faults that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe is let through.
	OpenTimeout time.Duration
	// HalfOpenRequests caps probes while half-open. Values < 1 default to 1.
	HalfOpenRequests uint32
}

// Breaker guards calls to one remote dependency.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

// New returns a closed breaker registered under name in the metrics.
func New(name string, s Settings) *Breaker {
	if s.MaxFailures < 1 {
		s.MaxFailures = 5
	}
	if s.HalfOpenRequests < 1 {
		s.HalfOpenRequests = 1
	}
	breakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			var ab abandoned
			return err == nil || errors.As(err, &ab)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return &Breaker{name: name, cb: cb}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns "closed", "half-open" or "open".
func (b *Breaker) State() string { return b.cb.State().String() }

// abandoned marks an error that followed the caller giving up.
type abandoned struct{ err error }

func (a abandoned) Error() string { return a.err.Error() }
func (a abandoned) Unwrap() error { return a.err }

// Do runs fn through the breaker on behalf of a caller bound to ctx.
// Rejections are reported as ErrOpen. Errors raised once ctx is done, or
// that are context.Canceled, are returned unchanged but neither trip the
// breaker nor count as failures.
func Do[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := b.cb.Execute(func() (any, error) {
		v, err := fn()
		if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)) {
			return v, abandoned{err}
		}
		return v, err
	})
	if err != nil {
		var ab abandoned
		switch {
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			breakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return zero, fmt.Errorf("%s: %w", b.name, ErrOpen)
		case errors.As(err, &ab):
			breakerRequests.WithLabelValues(b.name, "canceled").Inc()
			return zero, ab.err
		}
		breakerRequests.WithLabelValues(b.name, "failure").Inc()
		return zero, err
	}
	breakerRequests.WithLabelValues(b.name, "success").Inc()

	if res == nil {
		return zero, nil
	}
	typed, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result type %T", b.name, res)
	}
	return typed, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
