package notifications

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeNotifier struct {
	calls int
	err   error
	block bool
}

func (f *fakeNotifier) AccountRegistered(ctx context.Context, _ AccountRegisteredInput) error {
	f.calls++
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func TestProtectedNotifier_OpensAfterThresholdAndRecovers(t *testing.T) {
	inner := &fakeNotifier{err: errors.New("broker down")}
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 2, Cooldown: time.Minute})

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return clock }

	ctx := context.Background()
	in := AccountRegisteredInput{UserID: 1}

	_ = n.AccountRegistered(ctx, in)
	_ = n.AccountRegistered(ctx, in)

	if err := n.AccountRegistered(ctx, in); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("open circuit must not call the backend, calls=%d", inner.calls)
	}

	// cooldown elapsed and backend healthy again
	clock = clock.Add(2 * time.Minute)
	inner.err = nil

	if err := n.AccountRegistered(ctx, in); err != nil {
		t.Fatalf("half-open trial should pass, got %v", err)
	}
	if err := n.AccountRegistered(ctx, in); err != nil {
		t.Fatalf("circuit should be closed again, got %v", err)
	}
	if inner.calls != 4 {
		t.Fatalf("expected 4 backend calls, got %d", inner.calls)
	}
}

func TestProtectedNotifier_FailedTrialReopens(t *testing.T) {
	inner := &fakeNotifier{err: errors.New("still down")}
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 1, Cooldown: time.Minute})

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return clock }

	ctx := context.Background()
	_ = n.AccountRegistered(ctx, AccountRegisteredInput{})

	clock = clock.Add(time.Minute)
	if err := n.AccountRegistered(ctx, AccountRegisteredInput{}); errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("trial call expected after cooldown")
	}

	if err := n.AccountRegistered(ctx, AccountRegisteredInput{}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("failed trial must reopen the circuit, got %v", err)
	}
}

func TestProtectedNotifier_EnforcesTimeout(t *testing.T) {
	inner := &fakeNotifier{block: true}
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{Timeout: 20 * time.Millisecond})

	err := n.AccountRegistered(context.Background(), AccountRegisteredInput{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
