package utils

import (
	"errors"
	"testing"
	"time"

	"autodiag/config"
	"autodiag/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	token, err := GenerateToken("user-1", models.RoleExpert, "device-abc", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleExpert, claims.Role)
	assert.Equal(t, "device-abc", claims.DeviceID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.Expires, 5*time.Second)
}

func TestParseTokenRejectsExpiredAndForeign(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	expired, err := GenerateToken("user-1", models.RoleDriver, "device-abc", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	token, err := GenerateToken("user-1", models.RoleDriver, "device-abc", time.Hour)
	require.NoError(t, err)
	config.AppConfig.JWTSecret = "other-secret"
	_, err = ParseToken(token)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestHashTokenIsStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
