package security

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/username/portfoliotracker/src/config"
)

func testAuthService(t *testing.T) *AuthService {
	t.Helper()
	config.Cfg = &config.AppConfig{AccessTokenExpiry: time.Minute}
	return NewAuthService("test-secret-that-is-long-enough-for-hs256")
}

func TestPasswordHashRoundTrip(t *testing.T) {
	svc := testAuthService(t)

	hash, err := svc.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse battery staple", hash)

	require.NoError(t, svc.CompareHashAndPassword(hash, "correct horse battery staple"))
	require.Error(t, svc.CompareHashAndPassword(hash, "wrong password"))
}

func TestTokenRoundTrip(t *testing.T) {
	svc := testAuthService(t)

	token, err := svc.GenerateToken("42")
	require.NoError(t, err)

	sub, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "42", sub)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := testAuthService(t)
	token, err := svc.GenerateToken("42")
	require.NoError(t, err)

	other := NewAuthService("a-completely-different-secret-value-here")
	_, err = other.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	config.Cfg = &config.AppConfig{AccessTokenExpiry: -time.Minute}
	svc := NewAuthService("test-secret-that-is-long-enough-for-hs256")

	token, err := svc.GenerateToken("42")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}

func TestGenerateAPIKey(t *testing.T) {
	svc := testAuthService(t)

	key, prefix, err := svc.GenerateAPIKey()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "ptk_"))
	require.Equal(t, key[:12], prefix)

	second, _, err := svc.GenerateAPIKey()
	require.NoError(t, err)
	require.NotEqual(t, key, second)
}
