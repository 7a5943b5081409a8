package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/user/accountd/config"
)

// Claims are the JWT claims carried by an access token.
// Subject holds the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 access tokens.
type TokenManager struct {
	secret      []byte
	ttl         time.Duration
	rememberTTL time.Duration
	issuer      string
	now         func() time.Time
}

// NewTokenManager creates a TokenManager from the auth configuration.
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		secret:      []byte(cfg.JWTSecret),
		ttl:         cfg.AccessTokenDuration,
		rememberTTL: cfg.RememberMeDuration,
		issuer:      cfg.Issuer,
		now:         time.Now,
	}
}

// TTL returns the token lifetime for the given remember-me choice.
func (m *TokenManager) TTL(remember bool) time.Duration {
	if remember {
		return m.rememberTTL
	}
	return m.ttl
}

// Issue mints a signed token for the user and returns it with its expiry.
func (m *TokenManager) Issue(userID, email string, remember bool) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.TTL(remember))

	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm, issuer and expiry, and returns the claims.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
