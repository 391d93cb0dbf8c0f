package notifications

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// LogNotifier writes messages to the process log instead of a provider.
// Used in dev and tests; env knobs simulate a slow or failing provider.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) SendVerificationOTP(ctx context.Context, in OTPEmailInput) error {
	return n.send(ctx, "verification_otp", in)
}

func (n *LogNotifier) SendPasswordResetOTP(ctx context.Context, in OTPEmailInput) error {
	return n.send(ctx, "password_reset_otp", in)
}

func (n *LogNotifier) send(ctx context.Context, kind string, in OTPEmailInput) error {
	// Optional: simulate slow provider
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Optional: simulate provider outage
	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	log.Printf("notification.%s email=%s name=%s code=%s", kind, in.Email, in.FullName, in.Code)
	return nil
}
