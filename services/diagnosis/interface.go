package diagnosis

import (
	"context"

	"autodiag/models"
)

// Submitter is whoever posts a diagnosis: a signed-in driver or a guest device.
type Submitter struct {
	UserID string
	Device models.DeviceInfo
}

func (s Submitter) IsGuest() bool { return s.UserID == "" }

// DiagnosisService covers diagnosis intake, quota accounting and analysis.
type DiagnosisService interface {
	// Create consumes one diagnosis from the submitter's quota, stores the
	// diagnosis and introduces it to matching experts, all in one transaction.
	Create(ctx context.Context, sub Submitter, in models.DiagnosisInput) (*models.CreatedDiagnosis, error)
	Get(ctx context.Context, driverID, id string) (*models.Diagnosis, error)
	GetGuest(ctx context.Context, deviceID, id string) (*models.Diagnosis, error)
	List(ctx context.Context, driverID string, page models.PageRequest) ([]models.Diagnosis, error)
	Delete(ctx context.Context, driverID, id string) error
	Leads(ctx context.Context, driverID, id string) ([]models.Lead, error)
	Quota(ctx context.Context, driverID string) (*models.QuotaSummary, error)
	GuestQuota(ctx context.Context, deviceID string) (*models.QuotaSummary, error)

	// Analyze runs AI analysis for a pending diagnosis. Completed or failed
	// diagnoses are left alone.
	Analyze(ctx context.Context, id string) error
	// FailAnalysis marks a diagnosis failed once retries are exhausted.
	FailAnalysis(ctx context.Context, id, reason string) error
}

// Matcher picks lead recipients; implemented by the expert service.
type Matcher interface {
	Match(ctx context.Context, req MatchRequest) ([]models.ExpertWithDistance, error)
}
