package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	// Nairobi CBD to Jomo Kenyatta airport.
	d := HaversineKm(-1.2864, 36.8172, -1.3192, 36.9278)
	assert.InDelta(t, 12.8, d, 1.0)

	assert.InDelta(t, 0, HaversineKm(10, 10, 10, 10), 1e-9)
	// One degree of latitude is about 111 km.
	assert.InDelta(t, 111.2, HaversineKm(0, 0, 1, 0), 0.5)
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(90, 180))
	assert.True(t, ValidCoordinates(-90, -180))
	assert.False(t, ValidCoordinates(90.1, 0))
	assert.False(t, ValidCoordinates(0, -180.5))
}

func TestVerifyPasswordComplexity(t *testing.T) {
	assert.NoError(t, VerifyPasswordComplexity("Str0ng!pass"))
	assert.Error(t, VerifyPasswordComplexity("short1!"))
	assert.Error(t, VerifyPasswordComplexity("nouppercase1!"))
	assert.Error(t, VerifyPasswordComplexity("NOLOWERCASE1!"))
	assert.Error(t, VerifyPasswordComplexity("NoNumbers!!"))
	assert.Error(t, VerifyPasswordComplexity("NoSymbols123"))
}
