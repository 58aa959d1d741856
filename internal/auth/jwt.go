// Package auth provides session token management and credential hashing
// for the legajos API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type constants for the typ claim.
const (
	// TokenTypePending is issued after a successful password check and is
	// only accepted by the 2FA verification endpoint.
	TokenTypePending = "pending"
	// TokenTypeSession is issued after 2FA verification succeeds.
	TokenTypeSession = "session"
)

// Token expiration durations.
const (
	// PendingTokenExpiry matches the one-time code validity window.
	PendingTokenExpiry = 10 * time.Minute
	SessionTokenExpiry = 8 * time.Hour
)

// DefaultLeeway for token validation.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when the token has expired.
var ErrExpiredToken = errors.New("token has expired")

// ErrEmptyUserID is returned when userID is empty.
var ErrEmptyUserID = errors.New("userID cannot be empty")

// Claims represents the JWT claims carried by legajos tokens.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	Type     string `json:"typ"` // "pending" or "session"
}

// TokenService signs and validates session tokens.
// Supports dual-key rotation: tokens are signed with currentSecret,
// but can be validated with either currentSecret or previousSecret.
type TokenService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
}

// NewTokenService creates a TokenService with a single signing secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		currentSecret: []byte(secret),
		leeway:        DefaultLeeway,
	}
}

// NewTokenServiceWithRotation creates a TokenService with dual-key support for
// zero-downtime secret rotation. Set previousSecret to the empty string when
// no rotation is in progress.
func NewTokenServiceWithRotation(currentSecret, previousSecret string) *TokenService {
	svc := &TokenService{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// GeneratePendingToken creates the short-lived token that carries a login
// attempt between the password check and 2FA verification. It deliberately
// omits the role so it grants no access to protected routes.
func (s *TokenService) GeneratePendingToken(userID, username string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(PendingTokenExpiry)),
		},
		Username: username,
		Type:     TokenTypePending,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// GenerateSessionToken creates a full session token with the user's role.
func (s *TokenService) GenerateSessionToken(userID, username, role string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTokenExpiry)),
		},
		Username: username,
		Role:     role,
		Type:     TokenTypeSession,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// ValidateToken parses and validates a token, returning the claims if valid.
// Tries currentSecret first, then previousSecret if rotation is in progress.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return s.currentSecret, nil
	}, jwt.WithLeeway(s.leeway))

	if err == nil {
		claims, ok := token.Claims.(*Claims)
		if ok && token.Valid {
			return claims, nil
		}
		return nil, ErrInvalidToken
	}

	if s.previousSecret != nil {
		token, err2 := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, ErrInvalidToken
			}
			return s.previousSecret, nil
		}, jwt.WithLeeway(s.leeway))

		if err2 == nil {
			claims, ok := token.Claims.(*Claims)
			if ok && token.Valid {
				return claims, nil
			}
		}
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}
