package profileRepo

import (
	"context"

	"autodiag/models"
)

// DriverRepository defines methods for driver profile data access.
type DriverRepository interface {
	Create(ctx context.Context, profile *models.DriverProfile) error
	Get(ctx context.Context, userID string) (*models.DriverProfile, error)
	// ConsumeFree decrements freeDiagnosesRemaining when it is positive.
	// It reports false when no free diagnosis was left.
	ConsumeFree(ctx context.Context, userID string) (bool, error)
	// ConsumePaid is ConsumeFree for paidDiagnosesRemaining.
	ConsumePaid(ctx context.Context, userID string) (bool, error)
	CreditPaid(ctx context.Context, userID string, n int) error
	UpdateRegion(ctx context.Context, userID, region string) error
}

// ExpertSearchCriteria narrows expert listings and geo searches.
type ExpertSearchCriteria struct {
	Specialization string
	Region         string
	// Geo search center; only used when RadiusKm > 0.
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	// Only experts currently accepting leads.
	AvailableOnly bool
	VerifiedOnly  bool
	ExcludeIDs    []string
	Limit         int
	Skip          int64
}

// ExpertRepository defines methods for expert profile data access.
type ExpertRepository interface {
	Create(ctx context.Context, profile *models.ExpertProfile) error
	Get(ctx context.Context, userID string) (*models.ExpertProfile, error)
	GetMany(ctx context.Context, userIDs []string) ([]models.ExpertProfile, error)
	Update(ctx context.Context, profile *models.ExpertProfile) error
	List(ctx context.Context, criteria ExpertSearchCriteria) ([]models.ExpertProfile, error)
	// Nearby returns experts within criteria.RadiusKm ordered by distance.
	Nearby(ctx context.Context, criteria ExpertSearchCriteria) ([]models.ExpertWithDistance, error)
	// ConsumeFreeLead decrements freeLeadsRemaining when positive and counts the lead.
	ConsumeFreeLead(ctx context.Context, userID string) (bool, error)
	// RecordChargeableLead counts a lead that had no free allowance behind it.
	RecordChargeableLead(ctx context.Context, userID string) error
	CreditFreeLeads(ctx context.Context, userID string, n int) error
	SetVerified(ctx context.Context, userID string, verified bool) error
}
