package notifications

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeNotifier struct {
	err   error
	calls int
}

func (f *fakeNotifier) SendVerificationOTP(ctx context.Context, in OTPEmailInput) error {
	f.calls++
	return f.err
}

func (f *fakeNotifier) SendPasswordResetOTP(ctx context.Context, in OTPEmailInput) error {
	f.calls++
	return f.err
}

func TestProtectedNotifier_OpensAfterThreshold(t *testing.T) {
	inner := &fakeNotifier{err: errors.New("provider down")}

	p := NewProtectedNotifier(inner, ProtectedNotifierConfig{
		FailureThreshold: 3,
		Cooldown:         time.Hour,
	})

	ctx := context.Background()
	in := OTPEmailInput{Email: "jane@x.com", Code: "123456"}

	for i := 0; i < 3; i++ {
		if err := p.SendVerificationOTP(ctx, in); err == nil {
			t.Fatalf("call %d: expected provider error", i)
		}
	}

	// Circuit is open now: the inner notifier must not be reached.
	before := inner.calls
	if err := p.SendVerificationOTP(ctx, in); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}
	if inner.calls != before {
		t.Fatal("inner notifier called while circuit open")
	}
}

func TestProtectedNotifier_RecoversAfterCooldown(t *testing.T) {
	inner := &fakeNotifier{err: errors.New("provider down")}

	p := NewProtectedNotifier(inner, ProtectedNotifierConfig{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
	})

	ctx := context.Background()
	in := OTPEmailInput{Email: "jane@x.com", Code: "123456"}

	if err := p.SendPasswordResetOTP(ctx, in); err == nil {
		t.Fatal("expected provider error")
	}
	if err := p.SendPasswordResetOTP(ctx, in); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}

	time.Sleep(20 * time.Millisecond)

	// Half-open trial call succeeds and closes the circuit.
	inner.err = nil
	if err := p.SendPasswordResetOTP(ctx, in); err != nil {
		t.Fatalf("half-open trial failed: %v", err)
	}
	if err := p.SendPasswordResetOTP(ctx, in); err != nil {
		t.Fatalf("closed circuit call failed: %v", err)
	}
}
