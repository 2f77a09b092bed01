package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galera-cd/internal/pkg/config"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
)

func setConfig(t *testing.T, secret string, accessTTL int) {
	t.Helper()
	prev := config.GlobalConfig
	config.GlobalConfig = &config.Config{Auth: config.AuthConfig{JWT: config.JWTConfig{
		Secret:             secret,
		AccessTokenExpire:  accessTTL,
		RefreshTokenExpire: 3600,
	}}}
	t.Cleanup(func() { config.GlobalConfig = prev })
}

func TestAccessToken_RoundTrip(t *testing.T) {
	setConfig(t, "test-secret", 60)

	token, err := GenerateAccessToken("alice@example.com", "Alice", "super_user")
	require.NoError(t, err)

	claims, err := ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "super_user", claims.Role)
	assert.Equal(t, constants.JWTTypeAccess, claims.Type)
}

func TestValidateAccessToken_RejectsRefresh(t *testing.T) {
	setConfig(t, "test-secret", 60)

	token, err := GenerateRefreshToken("bob@example.com", "Bob", "user")
	require.NoError(t, err)

	_, err = ValidateAccessToken(token)
	assert.True(t, errors.Is(err, pkgErrors.ErrInvalidToken))
}

func TestParseToken_Expired(t *testing.T) {
	setConfig(t, "test-secret", 60)

	token, err := generate("test-secret", "a@b.c", "", "user", constants.JWTTypeAccess, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token)
	var appErr *pkgErrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, pkgErrors.ErrTokenExpired.Message, appErr.Message)
}

func TestParseToken_WrongSecret(t *testing.T) {
	setConfig(t, "secret-a", 60)
	token, err := GenerateAccessToken("a@b.c", "", "user")
	require.NoError(t, err)

	setConfig(t, "secret-b", 60)
	_, err = ParseToken(token)
	assert.Equal(t, pkgErrors.CodeUnauthorized, pkgErrors.CodeOf(err))
}

func TestGenerate_NoSecret(t *testing.T) {
	setConfig(t, "", 60)
	_, err := GenerateAccessToken("a@b.c", "", "user")
	assert.Error(t, err)
}

func TestValidateRefreshToken(t *testing.T) {
	setConfig(t, "test-secret", 60)

	refresh, err := GenerateRefreshToken("bob@example.com", "Bob", "user")
	require.NoError(t, err)
	claims, err := ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", claims.Email)

	access, err := GenerateAccessToken("bob@example.com", "Bob", "user")
	require.NoError(t, err)
	_, err = ValidateRefreshToken(access)
	assert.ErrorIs(t, err, pkgErrors.ErrInvalidToken)
}
