package account

import (
	"strings"
	"time"
)

// Account is an immutable snapshot of a stored credential record. Flows never
// mutate a snapshot in place; every state change goes through one of the
// transition helpers below and returns a fresh copy, so the OTP state machine
// stays auditable.
type Account struct {
	ID           int64      `json:"id"`
	FullName     string     `json:"fullName"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // never expose hash in JSON
	Role         Role       `json:"role"`
	OTPCode      *string    `json:"-"` // pending code, nil when none
	OTPIssuedAt  *time.Time `json:"-"`
	Verified     bool       `json:"verified"`
	Enabled      bool       `json:"enabled"`
	Locked       bool       `json:"locked"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// NormalizeEmail is the single place emails are canonicalized. Every lookup
// and every insert goes through it, so JANE@x.com and jane@x.com address the
// same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// New builds an unverified account snapshot ready for insertion. The OTP
// fields start empty; the caller issues the first code separately.
func New(fullName, email, passwordHash string, role Role, now time.Time) Account {
	return Account{
		FullName:     strings.TrimSpace(fullName),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
		Verified:     false,
		Enabled:      true,
		Locked:       false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// WithPendingOTP returns a snapshot carrying a fresh pending code. Any prior
// code is overwritten, which is how resend invalidates the old one.
func (a Account) WithPendingOTP(code string, issuedAt time.Time) Account {
	a.OTPCode = &code
	a.OTPIssuedAt = &issuedAt
	a.UpdatedAt = issuedAt
	return a
}

// ClearOTP drops the pending code and its timestamp together. The two fields
// are never set or cleared independently.
func (a Account) ClearOTP(now time.Time) Account {
	a.OTPCode = nil
	a.OTPIssuedAt = nil
	a.UpdatedAt = now
	return a
}

// MarkVerified flips the verified flag. The flip is one-way: nothing in this
// package ever sets Verified back to false.
func (a Account) MarkVerified(now time.Time) Account {
	a = a.ClearOTP(now)
	a.Verified = true
	return a
}

// WithPasswordHash replaces the stored hash after a completed reset. The
// consumed OTP is cleared in the same transition.
func (a Account) WithPasswordHash(hash string, now time.Time) Account {
	a = a.ClearOTP(now)
	a.PasswordHash = hash
	return a
}

// HasPendingOTP reports whether a code is outstanding.
func (a Account) HasPendingOTP() bool {
	return a.OTPCode != nil && a.OTPIssuedAt != nil
}

// CanLogin checks the account flags that gate authentication, in a fixed
// order so callers always report the same condition for the same state.
func (a Account) CanLogin() error {
	if !a.Verified {
		return ErrUnverified
	}
	if !a.Enabled {
		return ErrDisabled
	}
	if a.Locked {
		return ErrLocked
	}
	return nil
}
