package utils

import (
	"testing"
	"time"

	"storefront_checkout/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	config.GlobalConfig.JWT.Secret = "test-secret-with-at-least-32-characters"

	token, err := GenerateToken("u1", 0, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestParseTokenRejects(t *testing.T) {
	config.GlobalConfig.JWT.Secret = "test-secret-with-at-least-32-characters"

	expired, err := GenerateToken("u1", 0, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	noUser, err := GenerateToken("", 0, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(noUser)
	assert.Error(t, err)

	_, err = ParseToken("not-a-token")
	assert.Error(t, err)
}
