package intelligence

import (
	"testing"

	"autodiag/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResultAcceptsFencedJSON(t *testing.T) {
	reply := "```json\n{\"summary\":\" Worn brake pads \",\"causes\":[\"pads\",\"pads\",\"\"],\"urgency\":\"HIGH\",\"confidence\":85,\"recommendedSpecialization\":\"Brakes\"}\n```"
	res, err := ParseResult(reply)
	require.NoError(t, err)
	assert.Equal(t, "Worn brake pads", res.Summary)
	assert.Equal(t, []string{"pads"}, res.Causes)
	assert.Equal(t, models.UrgencyHigh, res.Urgency)
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
	assert.Equal(t, "brakes", res.RecommendedSpecialization)
}

func TestParseResultNormalizesOutOfRangeValues(t *testing.T) {
	res, err := ParseResult(`{"summary":"x","urgency":"whenever","confidence":-2}`)
	require.NoError(t, err)
	assert.Equal(t, models.UrgencyMedium, res.Urgency)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestParseResultRejectsGarbage(t *testing.T) {
	_, err := ParseResult("I cannot help with that")
	assert.Error(t, err)
	_, err = ParseResult(`{"causes":["a"]}`)
	assert.Error(t, err)
}

func TestBuildPromptMentionsVehicleAndTranscript(t *testing.T) {
	p := buildPrompt(AnalysisInput{
		Symptoms:   "squeal when braking",
		Transcript: "it gets louder downhill",
		Vehicle:    &models.Vehicle{Make: "Toyota", Model: "Axio", Year: 2012, MileageKm: 150000},
		Language:   "sw",
	})
	assert.Contains(t, p, "2012 Toyota Axio")
	assert.Contains(t, p, "squeal when braking")
	assert.Contains(t, p, "louder downhill")
	assert.Contains(t, p, `"sw"`)
}

func TestSpeechLanguage(t *testing.T) {
	assert.Equal(t, "sw-KE", SpeechLanguage("sw"))
	assert.Equal(t, "en-US", SpeechLanguage(""))
}
