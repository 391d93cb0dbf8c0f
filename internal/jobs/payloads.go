package jobs

import "time"

// OTPEmailPayload is shared by both mail kinds: which account, where to send,
// and the code itself. The code rides in the payload because the row in the
// accounts table may already hold a newer one by the time the worker runs;
// the newest enqueued job always carries the currently valid code.
type OTPEmailPayload struct {
	AccountID   int64     `json:"accountId"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	Code        string    `json:"code"`
	RequestedAt time.Time `json:"requestedAt"`
	RequestID   string    `json:"requestId,omitempty"` // correlation
}
