package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/hrstack/authhub/internal/domain/job"
)

func TestEncodeDecode_VerificationEmail(t *testing.T) {
	payload := OTPEmailPayload{
		AccountID:   42,
		Email:       "jane@x.com",
		FullName:    "Jane Doe",
		Code:        "123456",
		RequestedAt: time.Now().UTC(),
	}

	b, err := EncodePayload(JobSendVerificationEmail, payload)
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}

	j := job.New(job.CreateRequest{
		Type:    string(JobSendVerificationEmail),
		Payload: b,
	})

	decoded, err := DecodePayload(j)
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}

	if decoded.AccountID != payload.AccountID {
		t.Errorf("accountId = %d, want %d", decoded.AccountID, payload.AccountID)
	}
	if decoded.Code != payload.Code {
		t.Errorf("code = %q, want %q", decoded.Code, payload.Code)
	}
}

func TestEncodePayload_RejectsWrongShape(t *testing.T) {
	_, err := EncodePayload(JobSendPasswordResetEmail, struct{ X int }{1})
	if !errors.Is(err, ErrPayloadTypeMismatch) {
		t.Fatalf("got %v, want ErrPayloadTypeMismatch", err)
	}
}

func TestEncodePayload_RejectsUnknownType(t *testing.T) {
	_, err := EncodePayload(JobType("email.unknown"), OTPEmailPayload{})
	if !errors.Is(err, ErrInvalidJobType) {
		t.Fatalf("got %v, want ErrInvalidJobType", err)
	}
}

func TestValidatePayload(t *testing.T) {
	good := OTPEmailPayload{AccountID: 1, Email: "jane@x.com", Code: "654321"}

	if err := ValidatePayload(JobSendVerificationEmail, good); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	bad := []OTPEmailPayload{
		{AccountID: 0, Email: "jane@x.com", Code: "654321"},
		{AccountID: 1, Email: "  ", Code: "654321"},
		{AccountID: 1, Email: "jane@x.com", Code: "12345"},
	}

	for i, p := range bad {
		if err := ValidatePayload(JobSendVerificationEmail, p); err == nil {
			t.Errorf("case %d: invalid payload accepted", i)
		}
	}
}

func TestBindAccountID_StampsPayloadAndKey(t *testing.T) {
	b, err := EncodePayload(JobSendVerificationEmail, OTPEmailPayload{
		Email: "jane@x.com",
		Code:  "123456",
	})
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}

	req := job.CreateRequest{
		Type:    string(JobSendVerificationEmail),
		Payload: b,
	}

	bound, err := BindAccountID(req, 42)
	if err != nil {
		t.Fatalf("BindAccountID error: %v", err)
	}

	if bound.IdempotencyKey == nil || *bound.IdempotencyKey != IdempotencyKey(JobSendVerificationEmail, 42) {
		t.Fatalf("idempotency key = %v", bound.IdempotencyKey)
	}

	decoded, err := DecodePayload(job.New(bound))
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}
	if decoded.AccountID != 42 {
		t.Fatalf("accountId = %d, want 42", decoded.AccountID)
	}
	if decoded.Code != "123456" {
		t.Fatalf("code changed during bind: %q", decoded.Code)
	}
}

func TestIdempotencyKey_DistinguishesPurpose(t *testing.T) {
	a := IdempotencyKey(JobSendVerificationEmail, 7)
	b := IdempotencyKey(JobSendPasswordResetEmail, 7)

	if a == b {
		t.Fatalf("keys collide across purposes: %q", a)
	}
}
