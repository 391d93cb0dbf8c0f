package notifications

import "context"

// OTPEmailInput carries everything a mail provider needs for either message.
type OTPEmailInput struct {
	Email    string
	FullName string
	Code     string
}

// Notifier is the outbound-mail boundary. Transport mechanics live behind
// this interface; the core only decides when a message is owed.
type Notifier interface {
	SendVerificationOTP(ctx context.Context, input OTPEmailInput) error
	SendPasswordResetOTP(ctx context.Context, input OTPEmailInput) error
}
