package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing(context.Context) error { return errBoom }
func succeeding(context.Context) error { return nil }

func newTestBreaker(opts BreakerOpts) (*Breaker, *time.Time) {
	b := NewBreaker(opts)
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_StaysClosedOnSuccess(t *testing.T) {
	b := NewBreaker(DefaultBreakerOpts)
	for i := 0; i < 10; i++ {
		if err := b.Call(context.Background(), succeeding); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := b.Call(context.Background(), failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: got %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	if err := b.Call(context.Background(), succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open breaker should reject, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Minute})

	b.Call(context.Background(), failing)
	b.Call(context.Background(), failing)
	b.Call(context.Background(), succeeding)
	b.Call(context.Background(), failing)
	b.Call(context.Background(), failing)

	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed (streak broken)", b.State())
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, now := newTestBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Minute, HalfOpenMax: 1})

	b.Call(context.Background(), failing)
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	*now = now.Add(2 * time.Minute)
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after timeout", b.State())
	}

	if err := b.Call(context.Background(), succeeding); err != nil {
		t.Fatalf("probe should pass: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed after successful probe", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Minute, HalfOpenMax: 1})

	b.Call(context.Background(), failing)
	*now = now.Add(2 * time.Minute)

	if err := b.Call(context.Background(), failing); !errors.Is(err, errBoom) {
		t.Fatalf("probe error: %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("state = %v, want open after failed probe", b.State())
	}
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	b, now := newTestBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Minute, HalfOpenMax: 1})

	b.Call(context.Background(), failing)
	*now = now.Add(2 * time.Minute)

	done := make(chan struct{})
	blocked := func(context.Context) error {
		<-done
		return nil
	}
	go b.Call(context.Background(), blocked)

	// Give the probe a moment to claim the half-open slot.
	time.Sleep(10 * time.Millisecond)
	if err := b.Call(context.Background(), succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe should be rejected, got %v", err)
	}
	close(done)
}

func TestState_String(t *testing.T) {
	if StateClosed.String() != "closed" || StateOpen.String() != "open" || StateHalfOpen.String() != "half-open" {
		t.Error("state strings wrong")
	}
}
