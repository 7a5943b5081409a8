package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_IssueAndVerify(t *testing.T) {
	t.Parallel()
	m := NewTokenManager(testAuthConfig())

	token, expiresAt, err := m.Issue("user-1", "ada@example.com", false)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "accountd", claims.Issuer)
}

func TestTokenManager_RememberMeLivesLonger(t *testing.T) {
	t.Parallel()
	m := NewTokenManager(testAuthConfig())

	_, short, err := m.Issue("user-1", "ada@example.com", false)
	require.NoError(t, err)
	_, long, err := m.Issue("user-1", "ada@example.com", true)
	require.NoError(t, err)

	assert.Greater(t, long.Sub(short), 24*time.Hour)
	assert.Equal(t, 720*time.Hour, m.TTL(true))
	assert.Equal(t, 15*time.Minute, m.TTL(false))
}

func TestTokenManager_Verify_Expired(t *testing.T) {
	t.Parallel()
	m := NewTokenManager(testAuthConfig())
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := m.Issue("user-1", "ada@example.com", false)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenManager_Verify_WrongSecret(t *testing.T) {
	t.Parallel()
	other := testAuthConfig()
	other.JWTSecret = "another-secret-0123456789"

	token, _, err := NewTokenManager(other).Issue("user-1", "ada@example.com", false)
	require.NoError(t, err)

	_, err = NewTokenManager(testAuthConfig()).Verify(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestTokenManager_Verify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()
	cfg := testAuthConfig()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    cfg.Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)
	_, err = NewTokenManager(cfg).Verify(hs512)
	assert.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewTokenManager(cfg).Verify(none)
	assert.Error(t, err)
}

func TestTokenManager_Verify_RequiresSubjectAndExpiry(t *testing.T) {
	t.Parallel()
	cfg := testAuthConfig()
	m := NewTokenManager(cfg)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)
	_, err = m.Verify(noSubject)
	assert.Error(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:  cfg.Issuer,
		Subject: "user-1",
	}}).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)
	_, err = m.Verify(noExpiry)
	assert.Error(t, err)
}

func TestTokenManager_Verify_Malformed(t *testing.T) {
	t.Parallel()
	_, err := NewTokenManager(testAuthConfig()).Verify("not.a.jwt")
	assert.Error(t, err)
}
