// Package otp implements the one-time-passcode state machine that gates
// account activation and password recovery. Codes are six decimal digits,
// single use, and expire lazily: nothing sweeps them in the background, the
// window is checked at verification time.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"time"

	"github.com/hrstack/authhub/internal/domain/account"
)

const (
	// DefaultTTL is the verification window counted from issuance.
	DefaultTTL = 10 * time.Minute

	codeSpace = 1000000 // 000000..999999
)

// Engine issues and checks codes against account snapshots. It never touches
// storage; callers persist the snapshots it returns.
type Engine struct {
	ttl time.Duration
}

func NewEngine(ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Engine{ttl: ttl}
}

// GenerateCode draws a uniformly random six-digit code from crypto/rand.
// Rejection sampling keeps the distribution flat across the full space.
func GenerateCode() (string, error) {
	// Largest multiple of codeSpace below 2^32; draws at or above it would
	// skew the modulo.
	const limit = (1 << 32) / codeSpace * codeSpace

	var buf [4]byte

	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return "", err
		}

		n := binary.BigEndian.Uint32(buf[:])

		if n >= limit {
			continue
		}

		return formatCode(n % codeSpace), nil
	}
}

func formatCode(n uint32) string {
	digits := [6]byte{}
	for i := 5; i >= 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[:])
}

// Issue stamps a fresh pending code onto the account. Issuing over an
// existing code overwrites it, which is exactly how resend invalidates the
// previous one.
func (e *Engine) Issue(a account.Account, now time.Time) (account.Account, string, error) {
	code, err := GenerateCode()

	if err != nil {
		return account.Account{}, "", err
	}

	return a.WithPendingOTP(code, now), code, nil
}

// Check validates a submitted code against the pending one. Order matters:
// a missing code, a mismatch, and an elapsed window are distinct conditions,
// and the mismatch check runs before the expiry check so an attacker cannot
// use expiry responses to probe old codes.
func (e *Engine) Check(a account.Account, submitted string, now time.Time) error {
	if !a.HasPendingOTP() {
		return ErrNotRequested
	}

	if subtle.ConstantTimeCompare([]byte(*a.OTPCode), []byte(submitted)) != 1 {
		return ErrMismatch
	}

	if now.After(a.OTPIssuedAt.Add(e.ttl)) {
		return ErrExpired
	}

	return nil
}

// TTL exposes the configured window, mostly for logging and tests.
func (e *Engine) TTL() time.Duration {
	return e.ttl
}
