package intelligence

import (
	"encoding/json"
	"fmt"
	"strings"

	"autodiag/models"

	"github.com/samber/lo"
)

type rawResult struct {
	Summary                   string   `json:"summary"`
	Causes                    []string `json:"causes"`
	Urgency                   string   `json:"urgency"`
	Confidence                float64  `json:"confidence"`
	RecommendedSpecialization string   `json:"recommendedSpecialization"`
}

// ParseResult extracts the JSON object from a model reply and normalizes it.
// Replies wrapped in markdown fences or surrounded by prose are accepted.
func ParseResult(reply string) (*models.DiagnosisResult, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}
	if strings.TrimSpace(raw.Summary) == "" {
		return nil, fmt.Errorf("model reply has no summary")
	}

	urgency := models.Urgency(strings.ToLower(strings.TrimSpace(raw.Urgency)))
	if !urgency.Valid() {
		urgency = models.UrgencyMedium
	}
	confidence := raw.Confidence
	if confidence > 1 && confidence <= 100 {
		confidence /= 100
	}
	confidence = lo.Clamp(confidence, 0, 1)

	causes := lo.Uniq(lo.FilterMap(raw.Causes, func(c string, _ int) (string, bool) {
		c = strings.TrimSpace(c)
		return c, c != ""
	}))

	return &models.DiagnosisResult{
		Summary:                   strings.TrimSpace(raw.Summary),
		Causes:                    causes,
		Urgency:                   urgency,
		Confidence:                confidence,
		RecommendedSpecialization: strings.ToLower(strings.TrimSpace(raw.RecommendedSpecialization)),
	}, nil
}
