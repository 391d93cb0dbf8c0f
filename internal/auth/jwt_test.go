package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/hrstack/authhub/internal/domain/account"
)

func newTestManager() *Manager {
	return NewManager("test-secret-key", 15*time.Minute, 7*24*time.Hour)
}

func TestIssuePair_ClaimsRoundTrip(t *testing.T) {
	m := newTestManager()

	pair, err := m.IssuePair("jane@x.com", account.RoleEmployee, 42)
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken error: %v", err)
	}

	if claims.Email != "jane@x.com" {
		t.Errorf("email = %q, want jane@x.com", claims.Email)
	}
	if claims.Role != account.RoleEmployee {
		t.Errorf("role = %q, want EMPLOYEE", claims.Role)
	}
	if claims.UserID != 42 {
		t.Errorf("userId = %d, want 42", claims.UserID)
	}
	if claims.Subject != "jane@x.com" {
		t.Errorf("sub = %q, want jane@x.com", claims.Subject)
	}

	refreshClaims, err := m.ValidateRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ValidateRefreshToken error: %v", err)
	}
	if refreshClaims.UserID != 42 {
		t.Errorf("refresh userId = %d, want 42", refreshClaims.UserID)
	}
}

func TestValidate_RejectsWrongKind(t *testing.T) {
	m := newTestManager()

	pair, err := m.IssuePair("jane@x.com", account.RoleManager, 7)
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	if _, err := m.ValidateAccessToken(pair.RefreshToken); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
	if _, err := m.ValidateRefreshToken(pair.AccessToken); err == nil {
		t.Fatal("access token accepted as refresh token")
	}
}

func TestValidate_RejectsExpired(t *testing.T) {
	m := NewManager("test-secret-key", -time.Minute, -time.Minute)

	tok, err := m.IssueAccessToken("jane@x.com", account.RoleEmployee, 1)
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	if _, err := m.Validate(tok); err == nil {
		t.Fatal("expired token validated")
	}
}

func TestValidate_RejectsTamperedSignature(t *testing.T) {
	m := newTestManager()

	tok, err := m.IssueAccessToken("jane@x.com", account.RoleEmployee, 1)
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	// Flip a character in the signature segment.
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}

	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := m.Validate(tampered); err == nil {
		t.Fatal("tampered token validated")
	}
}

func TestValidate_RejectsOtherKey(t *testing.T) {
	issuer := NewManager("issuer-key", time.Minute, time.Hour)
	verifier := NewManager("different-key", time.Minute, time.Hour)

	tok, err := issuer.IssueAccessToken("jane@x.com", account.RoleEmployee, 1)
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	if _, err := verifier.Validate(tok); err == nil {
		t.Fatal("token signed with another key validated")
	}
}

func TestValidate_RejectsGarbage(t *testing.T) {
	m := newTestManager()

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := m.Validate(tok); err == nil {
			t.Fatalf("garbage token %q validated", tok)
		}
	}
}
