// Package auth mints and verifies the signed identity tokens every service
// in the suite trusts. Verification is a pure function of the shared HS256
// key, the token bytes, and the clock; no service ever calls back to the
// issuer to establish who a caller is.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hrstack/authhub/internal/domain/account"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Email     string       `json:"email"`
	Role      account.Role `json:"role"`
	UserID    int64        `json:"userId"`
	TokenType string       `json:"typ"`
	JTI       string       `json:"jti"`
	jwt.RegisteredClaims
}

// TokenPair is what every successful login, OTP verification, and refresh
// hands back: both kinds together, always.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(secret string, accessTTL time.Duration, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (m *Manager) issue(email string, role account.Role, userID int64, kind string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()

	claims := Claims{
		Email:     email,
		Role:      role,
		UserID:    userID,
		TokenType: kind,
		JTI:       uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   email,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) IssueAccessToken(email string, role account.Role, userID int64) (string, error) {
	return m.issue(email, role, userID, TokenAccess, m.accessTTL)
}

func (m *Manager) IssueRefreshToken(email string, role account.Role, userID int64) (string, error) {
	return m.issue(email, role, userID, TokenRefresh, m.refreshTTL)
}

// IssuePair mints the access+refresh pair for a verified identity.
func (m *Manager) IssuePair(email string, role account.Role, userID int64) (TokenPair, error) {
	access, err := m.IssueAccessToken(email, role, userID)

	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := m.IssueRefreshToken(email, role, userID)

	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Validate checks structure, signature, and expiry and extracts the claims.
// Callers must treat every failure the same; the distinct parse errors exist
// only for logs.
func (m *Manager) Validate(tokenStr string) (claims *Claims, err error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256

		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})

	if err != nil {
		return
	}
	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid {
		err = ErrInvalidToken
		return
	}

	if !claims.Role.IsValid() {
		err = ErrInvalidToken
		return
	}

	return
}

func (m *Manager) ValidateAccessToken(tokenStr string) (*Claims, error) {
	claims, err := m.Validate(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) ValidateRefreshToken(tokenStr string) (*Claims, error) {
	claims, err := m.Validate(tokenStr)

	if err != nil {
		return nil, err
	}

	if claims.TokenType != TokenRefresh {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
