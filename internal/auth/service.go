// Package auth keeps the signed-in user in a session cookie. Sign-in itself
// happens at an external identity provider, which hands the client an HS256
// token; the client exchanges it for a session here.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a bearer token is malformed, expired or
// signed with another key.
var ErrInvalidToken = errors.New("invalid or expired token")

// User is the identity kept in the session.
type User struct {
	ID    string `json:"id"    example:"108234011592743265491"`
	Email string `json:"email" example:"sita@example.com"`
	Name  string `json:"name"  example:"Sita Sharma"`
}

// Service verifies identity-provider tokens.
type Service struct {
	secret []byte
}

// NewService creates a new auth Service for tokens signed with secret.
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// Verify parses an HS256 token and returns the user it names.
func (s *Service) Verify(raw string) (*User, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	u := &User{}
	u.ID, _ = claims["sub"].(string)
	u.Email, _ = claims["email"].(string)
	u.Name, _ = claims["name"].(string)
	if u.ID == "" {
		return nil, ErrInvalidToken
	}
	return u, nil
}

// IssueToken signs a token for u in the identity provider's format. The
// server never hands these out itself; tooling and tests use it.
func (s *Service) IssueToken(u User, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"name":  u.Name,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
