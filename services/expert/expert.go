package expert

import (
	"context"
	"errors"
	"sort"
	"strings"

	profileRepo "autodiag/database/repository/profile"
	userRepo "autodiag/database/repository/user"
	"autodiag/models"
	"autodiag/utils"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

type DefaultExpertService struct {
	Experts profileRepo.ExpertRepository
	Users   userRepo.UserRepository
	// MatchRadiusKm bounds lead matching around a diagnosis location.
	MatchRadiusKm float64
}

var _ ExpertService = (*DefaultExpertService)(nil)

func NewDefaultExpertService(experts profileRepo.ExpertRepository, users userRepo.UserRepository, matchRadiusKm float64) *DefaultExpertService {
	return &DefaultExpertService{Experts: experts, Users: users, MatchRadiusKm: matchRadiusKm}
}

func validateNearby(q NearbyQuery) (lat, lng, radius float64, err error) {
	v := utils.NewValidationError()
	if q.Latitude == nil {
		v.Add("lat", "is required")
	} else if *q.Latitude < -90 || *q.Latitude > 90 {
		v.Add("lat", "must be between -90 and 90")
	}
	if q.Longitude == nil {
		v.Add("lng", "is required")
	} else if *q.Longitude < -180 || *q.Longitude > 180 {
		v.Add("lng", "must be between -180 and 180")
	}
	radius = q.RadiusKm
	switch {
	case radius == 0:
		radius = DefaultRadiusKm
	case radius < 0:
		v.Add("radiusKm", "must be positive")
	case radius > MaxRadiusKm:
		radius = MaxRadiusKm
	}
	if err := v.OrNil(); err != nil {
		return 0, 0, 0, err
	}
	return *q.Latitude, *q.Longitude, radius, nil
}

// withinRadius recomputes every distance, drops hits outside radiusKm and
// orders the rest by distance. The database answer is not trusted alone.
func withinRadius(hits []models.ExpertWithDistance, lat, lng, radiusKm float64) []models.ExpertWithDistance {
	out := lo.FilterMap(hits, func(h models.ExpertWithDistance, _ int) (models.ExpertWithDistance, bool) {
		if !h.LocationGeo.Valid() {
			return h, false
		}
		h.DistanceKm = utils.HaversineKm(lat, lng, h.LocationGeo.Lat(), h.LocationGeo.Lng())
		return h, h.DistanceKm <= radiusKm
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}

func (s *DefaultExpertService) Nearby(ctx context.Context, q NearbyQuery) ([]models.PublicExpert, error) {
	lat, lng, radius, err := validateNearby(q)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 || limit > maxNearbyLimit {
		limit = 20
	}

	hits, err := s.Experts.Nearby(ctx, profileRepo.ExpertSearchCriteria{
		Specialization: strings.TrimSpace(q.Specialization),
		Region:         strings.TrimSpace(q.Region),
		Latitude:       lat,
		Longitude:      lng,
		RadiusKm:       radius,
		AvailableOnly:  true,
		Limit:          limit,
	})
	if err != nil {
		return nil, err
	}
	hits = withinRadius(hits, lat, lng, radius)

	names := s.names(ctx, lo.Map(hits, func(h models.ExpertWithDistance, _ int) string { return h.UserID }))
	return lo.Map(hits, func(h models.ExpertWithDistance, _ int) models.PublicExpert {
		d := h.DistanceKm
		p := toPublic(h.ExpertProfile, names[h.UserID])
		p.DistanceKm = &d
		return p
	}), nil
}

func (s *DefaultExpertService) List(ctx context.Context, q ListQuery) ([]models.PublicExpert, error) {
	page := q.PageRequest.Normalize()
	profiles, err := s.Experts.List(ctx, profileRepo.ExpertSearchCriteria{
		Specialization: strings.TrimSpace(q.Specialization),
		Region:         strings.TrimSpace(q.Region),
		VerifiedOnly:   q.VerifiedOnly,
		Limit:          page.Limit,
		Skip:           page.Skip(),
	})
	if err != nil {
		return nil, err
	}
	names := s.names(ctx, lo.Map(profiles, func(p models.ExpertProfile, _ int) string { return p.UserID }))
	return lo.Map(profiles, func(p models.ExpertProfile, _ int) models.PublicExpert {
		return toPublic(p, names[p.UserID])
	}), nil
}

func (s *DefaultExpertService) Get(ctx context.Context, id string) (*models.PublicExpert, error) {
	p, err := s.Experts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := toPublic(*p, s.names(ctx, []string{id})[id])
	return &out, nil
}

func (s *DefaultExpertService) Match(ctx context.Context, req MatchRequest) ([]models.ExpertWithDistance, error) {
	if req.Limit <= 0 {
		return nil, nil
	}
	candidates, err := s.match(ctx, req)
	if err != nil {
		return nil, err
	}
	// No specialist around: widen to any available expert rather than send no leads.
	if len(candidates) == 0 && req.Specialization != "" {
		req.Specialization = ""
		return s.match(ctx, req)
	}
	return candidates, nil
}

func (s *DefaultExpertService) match(ctx context.Context, req MatchRequest) ([]models.ExpertWithDistance, error) {
	criteria := profileRepo.ExpertSearchCriteria{
		Specialization: req.Specialization,
		Region:         req.Region,
		AvailableOnly:  true,
		ExcludeIDs:     req.ExcludeIDs,
		Limit:          req.Limit,
	}
	if req.Location == nil || !req.Location.Valid() {
		profiles, err := s.Experts.List(ctx, criteria)
		if err != nil {
			return nil, err
		}
		return lo.Map(profiles, func(p models.ExpertProfile, _ int) models.ExpertWithDistance {
			return models.ExpertWithDistance{ExpertProfile: p, DistanceKm: -1}
		}), nil
	}

	radius := s.MatchRadiusKm
	if radius <= 0 {
		radius = DefaultRadiusKm
	}
	lat, lng := req.Location.Lat(), req.Location.Lng()
	criteria.Latitude, criteria.Longitude, criteria.RadiusKm = lat, lng, radius
	// Region narrows list matching only; distance already localizes geo matching.
	criteria.Region = ""
	hits, err := s.Experts.Nearby(ctx, criteria)
	if err != nil {
		return nil, err
	}
	return withinRadius(hits, lat, lng, radius), nil
}

func (s *DefaultExpertService) UpdateMine(ctx context.Context, userID string, u ProfileUpdate) (*models.ExpertProfile, error) {
	p, err := s.Experts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	v := utils.NewValidationError()
	if u.BusinessName != nil {
		if name := strings.TrimSpace(*u.BusinessName); name == "" {
			v.Add("businessName", "cannot be empty")
		} else {
			p.BusinessName = name
		}
	}
	if u.Specializations != nil {
		specs := NormalizeSpecializations(u.Specializations)
		if len(specs) == 0 {
			v.Add("specializations", "at least one specialization is required")
		}
		p.Specializations = specs
	}
	if u.Region != nil {
		p.Region = strings.TrimSpace(*u.Region)
	}
	if (u.Latitude == nil) != (u.Longitude == nil) {
		v.Add("location", "latitude and longitude must be sent together")
	} else if u.Latitude != nil {
		if !utils.ValidCoordinates(*u.Latitude, *u.Longitude) {
			v.Add("location", "coordinates out of range")
		} else {
			p.LocationGeo = models.NewGeoPoint(*u.Latitude, *u.Longitude)
		}
	}
	if u.Address != nil {
		p.Address = strings.TrimSpace(*u.Address)
	}
	if u.Bio != nil {
		bio := strings.TrimSpace(*u.Bio)
		if len(bio) > 1000 {
			v.Add("bio", "must be at most 1000 characters")
		}
		p.Bio = bio
	}
	if u.Available != nil {
		p.Available = *u.Available
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if err := s.Experts.Update(ctx, p); err != nil {
		return nil, err
	}
	return s.Experts.Get(ctx, userID)
}

func (s *DefaultExpertService) Verify(ctx context.Context, id string, verified bool) (*models.ExpertProfile, error) {
	if err := s.Experts.SetVerified(ctx, id, verified); err != nil {
		return nil, err
	}
	utils.GetLogger().Info("expert verification changed", zap.String("expertId", id), zap.Bool("verified", verified))
	return s.Experts.Get(ctx, id)
}

// NormalizeSpecializations lowercases, trims and dedupes specialization tags.
func NormalizeSpecializations(in []string) []string {
	return lo.Uniq(lo.FilterMap(in, func(s string, _ int) (string, bool) {
		s = strings.ToLower(strings.TrimSpace(s))
		return s, s != ""
	}))
}

func (s *DefaultExpertService) names(ctx context.Context, ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	if s.Users == nil {
		return out
	}
	for _, id := range lo.Uniq(ids) {
		u, err := s.Users.GetByID(ctx, id)
		if err != nil {
			if !errors.Is(err, utils.ErrNotFound) {
				utils.GetLogger().Warn("expert name lookup failed", zap.String("expertId", id), zap.Error(err))
			}
			continue
		}
		out[id] = u.Name
	}
	return out
}

func toPublic(p models.ExpertProfile, name string) models.PublicExpert {
	return models.PublicExpert{
		ID:              p.UserID,
		Name:            name,
		BusinessName:    p.BusinessName,
		Specializations: p.Specializations,
		Region:          p.Region,
		LocationGeo:     p.LocationGeo,
		Address:         p.Address,
		Rating:          p.Rating,
		Verified:        p.Verified,
	}
}
