package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("ENV", "test")
	t.Setenv("FREE_LEADS_PER_EXPERT", "7")

	LoadConfig()

	assert.Equal(t, "8080", AppConfig.AppPort)
	assert.Equal(t, 3, AppConfig.FreeDiagnosesPerDriver)
	assert.Equal(t, 7, AppConfig.FreeLeadsPerExpert)
	assert.Equal(t, 3, AppConfig.MaxLeadsPerDiagnosis)
	assert.InDelta(t, 25.0, AppConfig.MatchRadiusKm, 0.0001)
	require.NotEmpty(t, AppConfig.JWTSecret)
	assert.False(t, IsProduction())
}

func TestDurations(t *testing.T) {
	AppConfig = Config{}
	assert.Equal(t, 72*time.Hour, LeadTTL())
	assert.Equal(t, 30*24*time.Hour, TokenTTL())

	AppConfig.LeadTTLHours = 1
	AppConfig.TokenTTLHours = 2
	assert.Equal(t, time.Hour, LeadTTL())
	assert.Equal(t, 2*time.Hour, TokenTTL())
}
