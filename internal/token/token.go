// Package token issues and validates the signed, time-bounded tokens that
// carry an authenticated principal between operations.
package token

import (
	"errors"
	"time"

	"github.com/euem/sshbridge/internal/auth"
	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid is returned when a token fails signature verification or
// has expired.
var ErrTokenInvalid = errors.New("token invalid")

// Claims are the JWT claims encoding a principal.
type Claims struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Service signs and verifies principal-bearing tokens. It is stateless:
// identical inputs at the same instant produce equivalent tokens.
type Service struct {
	secret  []byte
	expiry  time.Duration
	timeNow func() time.Time
}

func NewService(secret string, expiry time.Duration) *Service {
	return &Service{
		secret:  []byte(secret),
		expiry:  expiry,
		timeNow: time.Now,
	}
}

// Issue signs a token for the principal, stamped with the current time and
// the configured expiry.
func (s *Service) Issue(principal *auth.Principal) (string, error) {
	now := s.timeNow()
	claims := Claims{
		Username:    principal.Identifier,
		Role:        principal.Role,
		Permissions: principal.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate verifies the token signature and expiry and reconstructs the
// principal it carries. Reading a token never extends its expiry.
func (s *Service) Validate(tokenString string) (*auth.Principal, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.timeNow))
	if err != nil || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return &auth.Principal{
		Identifier:  claims.Username,
		Role:        claims.Role,
		Permissions: claims.Permissions,
	}, nil
}

// Rotate re-issues a token for an already-authenticated principal without
// consulting the credential store. The caller is responsible for rejecting
// rotation on unauthenticated sessions.
func (s *Service) Rotate(principal *auth.Principal) (string, error) {
	return s.Issue(principal)
}

// Expiry returns the configured token lifetime.
func (s *Service) Expiry() time.Duration {
	return s.expiry
}
