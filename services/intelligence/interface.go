// Package intelligence turns a driver's symptom report into a structured diagnosis.
package intelligence

import (
	"context"

	"autodiag/models"
)

// AnalysisInput is everything the analyzer sees about one report.
type AnalysisInput struct {
	Symptoms   string
	Transcript string
	ImageURLs  []string
	Vehicle    *models.Vehicle
	Language   string
}

// Analyzer produces a diagnosis result for a report.
type Analyzer interface {
	Analyze(ctx context.Context, in AnalysisInput) (*models.DiagnosisResult, error)
}

// Transcriber converts a recorded voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL, languageCode string) (string, error)
}
