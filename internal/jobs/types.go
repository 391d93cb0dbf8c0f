package jobs

type JobType string

const (
	// Verification code mail sent on registration and resend.
	JobSendVerificationEmail JobType = "email.otp_verification"

	// Recovery code mail sent on forgot-password.
	JobSendPasswordResetEmail JobType = "email.password_reset"
)

// IsValid checks the job type against the known constants.

func (t JobType) IsValid() bool {
	switch t {
	case JobSendVerificationEmail, JobSendPasswordResetEmail:
		return true
	default:
		return false
	}
}
