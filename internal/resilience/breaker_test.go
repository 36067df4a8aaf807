package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDo_PassesThroughResultsAndErrors(t *testing.T) {
	b := New("test-pass", Settings{MaxFailures: 3, OpenTimeout: time.Minute})

	v, err := Do(context.Background(), b, func() (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Fatalf("Do = %d, %v", v, err)
	}

	p, err := Do(context.Background(), b, func() (*string, error) { return nil, nil })
	if err != nil || p != nil {
		t.Fatalf("nil pointer result = %v, %v", p, err)
	}

	boom := errors.New("boom")
	if _, err := Do(context.Background(), b, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if b.State() != "closed" {
		t.Fatalf("single fault should not open, state=%s", b.State())
	}
}

func TestDo_OpensAfterConsecutiveFaults(t *testing.T) {
	b := New("test-open", Settings{MaxFailures: 2, OpenTimeout: time.Hour})
	boom := errors.New("boom")

	baseRejected := testutil.ToFloat64(breakerRequests.WithLabelValues("test-open", "rejected"))

	for i := 0; i < 2; i++ {
		_, _ = Do(context.Background(), b, func() (int, error) { return 0, boom })
	}
	if b.State() != "open" {
		t.Fatalf("expected open, got %s", b.State())
	}
	if got := testutil.ToFloat64(breakerState.WithLabelValues("test-open")); got != 2 {
		t.Fatalf("state gauge = %v, want 2", got)
	}

	called := false
	_, err := Do(context.Background(), b, func() (int, error) { called = true; return 1, nil })
	if !errors.Is(err, ErrOpen) || called {
		t.Fatalf("expected rejection without call, err=%v called=%v", err, called)
	}
	if got := testutil.ToFloat64(breakerRequests.WithLabelValues("test-open", "rejected")); got != baseRejected+1 {
		t.Fatalf("rejected counter = %v, want %v", got, baseRejected+1)
	}
}

func TestDo_CancellationDoesNotTrip(t *testing.T) {
	b := New("test-cancel", Settings{MaxFailures: 1, OpenTimeout: time.Hour})
	for i := 0; i < 3; i++ {
		_, err := Do(context.Background(), b, func() (int, error) { return 0, context.Canceled })
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	}
	if b.State() != "closed" {
		t.Fatalf("cancellation should not open breaker, state=%s", b.State())
	}
	if got := testutil.ToFloat64(breakerRequests.WithLabelValues("test-cancel", "canceled")); got != 3 {
		t.Fatalf("canceled counter = %v", got)
	}
}

func TestDo_CallerDeadlineDoesNotTrip(t *testing.T) {
	b := New("test-deadline", Settings{MaxFailures: 1, OpenTimeout: time.Hour})
	failures := breakerRequests.WithLabelValues("test-deadline", "failure")
	canceled := breakerRequests.WithLabelValues("test-deadline", "canceled")

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	for i := 0; i < 3; i++ {
		_, err := Do(ctx, b, func() (int, error) { return 0, ctx.Err() })
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
	}
	if b.State() != "closed" {
		t.Fatalf("caller deadline should not open breaker, state=%s", b.State())
	}
	if testutil.ToFloat64(failures) != 0 || testutil.ToFloat64(canceled) != 3 {
		t.Fatalf("failure=%v canceled=%v", testutil.ToFloat64(failures), testutil.ToFloat64(canceled))
	}
}

func TestDo_RemoteTimeoutWithLiveCallerTrips(t *testing.T) {
	b := New("test-remote-timeout", Settings{MaxFailures: 1, OpenTimeout: time.Hour})

	_, err := Do(context.Background(), b, func() (int, error) { return 0, context.DeadlineExceeded })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v", err)
	}
	if b.State() != "open" {
		t.Fatalf("a remote timeout is a fault, state=%s", b.State())
	}
	if got := testutil.ToFloat64(breakerRequests.WithLabelValues("test-remote-timeout", "failure")); got != 1 {
		t.Fatalf("failure counter = %v", got)
	}
}
