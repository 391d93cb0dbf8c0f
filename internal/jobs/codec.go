package jobs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hrstack/authhub/internal/domain/job"
)

// EncodePayload marshals a typed payload for the given job type. Both mail
// kinds share OTPEmailPayload, so the check here is shape, not kind.
func EncodePayload(t JobType, payload any) ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	switch payload.(type) {
	case OTPEmailPayload, *OTPEmailPayload:
	default:
		return nil, ErrPayloadTypeMismatch
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals j.Payload into the typed payload struct.
func DecodePayload(j job.Job) (OTPEmailPayload, error) {
	if !JobType(j.Type).IsValid() {
		return OTPEmailPayload{}, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return OTPEmailPayload{}, ErrInvalidJobPayload
	}

	var p OTPEmailPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return OTPEmailPayload{}, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return p, nil
}

// ValidatePayload performs minimal validation on decoded payloads before the
// worker hands them to a mail provider.
func ValidatePayload(t JobType, p OTPEmailPayload) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	if p.AccountID <= 0 {
		return ErrInvalidJobPayload
	}
	if strings.TrimSpace(p.Email) == "" {
		return ErrInvalidJobPayload
	}
	if len(p.Code) != 6 {
		return ErrInvalidJobPayload
	}

	return nil
}

// BindAccountID stamps a freshly assigned account id into a pending enqueue
// request. Registration builds its request before the insert returns the id,
// so the payload and dedupe key are completed here.
func BindAccountID(req job.CreateRequest, accountID int64) (job.CreateRequest, error) {
	t := JobType(req.Type)

	if !t.IsValid() {
		return job.CreateRequest{}, ErrInvalidJobType
	}

	var p OTPEmailPayload

	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return job.CreateRequest{}, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	p.AccountID = accountID

	raw, err := EncodePayload(t, p)

	if err != nil {
		return job.CreateRequest{}, err
	}

	key := IdempotencyKey(t, accountID)

	req.Payload = raw
	req.IdempotencyKey = &key

	return req, nil
}

// IdempotencyKey dedupes outstanding dispatches: one per account and purpose.
// A resend reuses the key, so a still-pending older job simply gets replaced
// by conflict-update at the repo layer.
func IdempotencyKey(t JobType, accountID int64) string {
	return fmt.Sprintf("%s:%d", t, accountID)
}
