package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session lifetimes. Remembered sessions last a month, plain ones a day,
// guest sessions an hour.
const (
	SessionDurationRemember = 30 * 24 * time.Hour
	SessionDurationDefault  = 24 * time.Hour
	SessionDurationGuest    = time.Hour
)

// SessionClaims is the payload carried by the session cookie. Authenticated
// sessions have Email and UserID; guest sessions have only GuestID. A token
// never carries both.
type SessionClaims struct {
	Email   string `json:"email,omitempty"`
	UserID  string `json:"userId,omitempty"`
	GuestID string `json:"data,omitempty"`
	jwt.RegisteredClaims
}

// IsGuest reports whether the session carries no durable identity.
func (c *SessionClaims) IsGuest() bool {
	return c.UserID == ""
}

// TokenService issues and verifies signed session tokens. Tokens are not
// persisted; validity is proven by signature and expiry alone.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a new TokenService.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Issue creates a signed token asserting the given identity. The returned
// duration doubles as the cookie max-age.
func (s *TokenService) Issue(email, userID string, remember bool) (string, time.Duration, error) {
	duration := SessionDurationDefault
	if remember {
		duration = SessionDurationRemember
	}

	token, err := s.sign(&SessionClaims{Email: email, UserID: userID}, duration)
	if err != nil {
		return "", 0, err
	}
	return token, duration, nil
}

// IssueGuest creates a short-lived token carrying only a random opaque
// identifier. No credential-store entry corresponds to it.
func (s *TokenService) IssueGuest() (string, time.Duration, error) {
	token, err := s.sign(&SessionClaims{GuestID: uuid.New().String()}, SessionDurationGuest)
	if err != nil {
		return "", 0, err
	}
	return token, SessionDurationGuest, nil
}

// Verify checks signature and expiry and returns the decoded claims.
func (s *TokenService) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (s *TokenService) sign(claims *SessionClaims, duration time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
