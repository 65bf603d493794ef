package expert

import (
	"context"

	"autodiag/models"
)

const (
	DefaultRadiusKm = 25.0
	MaxRadiusKm     = 200.0
	maxNearbyLimit  = 50
)

// NearbyQuery is parsed from GET /experts/nearby.
type NearbyQuery struct {
	Latitude       *float64 `form:"lat"`
	Longitude      *float64 `form:"lng"`
	RadiusKm       float64  `form:"radiusKm"`
	Specialization string   `form:"specialization"`
	Region         string   `form:"region"`
	Limit          int      `form:"limit"`
}

// ListQuery is parsed from GET /experts.
type ListQuery struct {
	Specialization string `form:"specialization"`
	Region         string `form:"region"`
	VerifiedOnly   bool   `form:"verified"`
	models.PageRequest
}

// ProfileUpdate carries the fields an expert may edit on their own profile.
type ProfileUpdate struct {
	BusinessName    *string  `json:"businessName"`
	Specializations []string `json:"specializations"`
	Region          *string  `json:"region"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	Address         *string  `json:"address"`
	Bio             *string  `json:"bio"`
	Available       *bool    `json:"available"`
}

// MatchRequest describes the diagnosis an expert set is being chosen for.
type MatchRequest struct {
	Specialization string
	Region         string
	Location       *models.GeoPoint
	ExcludeIDs     []string
	Limit          int
}

// ExpertService covers expert discovery, lead matching and profile edits.
type ExpertService interface {
	Nearby(ctx context.Context, q NearbyQuery) ([]models.PublicExpert, error)
	List(ctx context.Context, q ListQuery) ([]models.PublicExpert, error)
	Get(ctx context.Context, id string) (*models.PublicExpert, error)
	// Match picks lead recipients for a new diagnosis.
	Match(ctx context.Context, req MatchRequest) ([]models.ExpertWithDistance, error)
	UpdateMine(ctx context.Context, userID string, update ProfileUpdate) (*models.ExpertProfile, error)
	Verify(ctx context.Context, id string, verified bool) (*models.ExpertProfile, error)
}
