package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	profileRepo "autodiag/database/repository/profile"
	"autodiag/models"
	"autodiag/utils"

	"github.com/samber/lo"
)

type DriverRepo struct {
	mu       sync.Mutex
	profiles map[string]models.DriverProfile
}

func NewDriverRepo() *DriverRepo {
	return &DriverRepo{profiles: make(map[string]models.DriverProfile)}
}

func (r *DriverRepo) Create(_ context.Context, p *models.DriverProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.UserID]; ok {
		return fmt.Errorf("driver profile: %w", utils.ErrConflict)
	}
	r.profiles[p.UserID] = *p
	return nil
}

func (r *DriverRepo) Get(_ context.Context, userID string) (*models.DriverProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("driver profile: %w", utils.ErrNotFound)
	}
	return &p, nil
}

func (r *DriverRepo) consume(userID string, field func(*models.DriverProfile) *int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return false, nil
	}
	counter := field(&p)
	if *counter <= 0 {
		return false, nil
	}
	*counter--
	p.TotalDiagnosesUsed++
	p.UpdatedAt = time.Now()
	r.profiles[userID] = p
	return true, nil
}

func (r *DriverRepo) ConsumeFree(_ context.Context, userID string) (bool, error) {
	return r.consume(userID, func(p *models.DriverProfile) *int { return &p.FreeDiagnosesRemaining })
}

func (r *DriverRepo) ConsumePaid(_ context.Context, userID string) (bool, error) {
	return r.consume(userID, func(p *models.DriverProfile) *int { return &p.PaidDiagnosesRemaining })
}

func (r *DriverRepo) CreditPaid(_ context.Context, userID string, n int) error {
	if n <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return fmt.Errorf("driver %s: %w", userID, utils.ErrNotFound)
	}
	p.PaidDiagnosesRemaining += n
	r.profiles[userID] = p
	return nil
}

func (r *DriverRepo) UpdateRegion(_ context.Context, userID, region string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return fmt.Errorf("driver %s: %w", userID, utils.ErrNotFound)
	}
	p.Region = region
	r.profiles[userID] = p
	return nil
}

type ExpertRepo struct {
	mu       sync.Mutex
	profiles map[string]models.ExpertProfile
}

func NewExpertRepo() *ExpertRepo {
	return &ExpertRepo{profiles: make(map[string]models.ExpertProfile)}
}

func cloneExpert(p models.ExpertProfile) models.ExpertProfile {
	p.Specializations = append([]string(nil), p.Specializations...)
	return p
}

func (r *ExpertRepo) Create(_ context.Context, p *models.ExpertProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.UserID]; ok {
		return fmt.Errorf("expert profile: %w", utils.ErrConflict)
	}
	r.profiles[p.UserID] = cloneExpert(*p)
	return nil
}

func (r *ExpertRepo) Get(_ context.Context, userID string) (*models.ExpertProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("expert profile: %w", utils.ErrNotFound)
	}
	p = cloneExpert(p)
	return &p, nil
}

func (r *ExpertRepo) GetMany(_ context.Context, userIDs []string) ([]models.ExpertProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.ExpertProfile{}
	for _, id := range userIDs {
		if p, ok := r.profiles[id]; ok {
			out = append(out, cloneExpert(p))
		}
	}
	return out, nil
}

func (r *ExpertRepo) Update(_ context.Context, p *models.ExpertProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.profiles[p.UserID]
	if !ok {
		return fmt.Errorf("expert %s: %w", p.UserID, utils.ErrNotFound)
	}
	cur.BusinessName = p.BusinessName
	cur.Specializations = append([]string(nil), p.Specializations...)
	cur.Region = p.Region
	cur.Address = p.Address
	cur.Bio = p.Bio
	cur.Available = p.Available
	if p.LocationGeo.Valid() {
		cur.LocationGeo = p.LocationGeo
	}
	cur.UpdatedAt = time.Now()
	r.profiles[p.UserID] = cur
	return nil
}

func matches(p models.ExpertProfile, c profileRepo.ExpertSearchCriteria) bool {
	if c.Specialization != "" && !lo.ContainsBy(p.Specializations, func(s string) bool { return equalFold(s, c.Specialization) }) {
		return false
	}
	if c.Region != "" && !equalFold(p.Region, c.Region) {
		return false
	}
	if c.AvailableOnly && !p.Available {
		return false
	}
	if c.VerifiedOnly && !p.Verified {
		return false
	}
	return !lo.Contains(c.ExcludeIDs, p.UserID)
}

func (r *ExpertRepo) List(_ context.Context, c profileRepo.ExpertSearchCriteria) ([]models.ExpertProfile, error) {
	r.mu.Lock()
	var out []models.ExpertProfile
	for _, p := range r.profiles {
		if matches(p, c) {
			out = append(out, cloneExpert(p))
		}
	}
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Verified != out[j].Verified {
			return out[i].Verified
		}
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].UserID < out[j].UserID
	})
	limit := c.Limit
	if limit <= 0 {
		limit = 20
	}
	start := int(c.Skip)
	if start > len(out) {
		start = len(out)
	}
	return lo.Subset(out, start, uint(limit)), nil
}

func (r *ExpertRepo) Nearby(_ context.Context, c profileRepo.ExpertSearchCriteria) ([]models.ExpertWithDistance, error) {
	if c.RadiusKm <= 0 {
		return nil, fmt.Errorf("nearby search needs a positive radius")
	}
	r.mu.Lock()
	var out []models.ExpertWithDistance
	for _, p := range r.profiles {
		if !p.LocationGeo.Valid() || !matches(p, c) {
			continue
		}
		d := utils.HaversineKm(c.Latitude, c.Longitude, p.LocationGeo.Lat(), p.LocationGeo.Lng())
		if d <= c.RadiusKm {
			out = append(out, models.ExpertWithDistance{ExpertProfile: cloneExpert(p), DistanceKm: d})
		}
	}
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].UserID < out[j].UserID
	})
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	return out, nil
}

func (r *ExpertRepo) ConsumeFreeLead(_ context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok || p.FreeLeadsRemaining <= 0 {
		return false, nil
	}
	p.FreeLeadsRemaining--
	p.TotalLeadsReceived++
	r.profiles[userID] = p
	return true, nil
}

func (r *ExpertRepo) mutate(userID string, fn func(*models.ExpertProfile)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return fmt.Errorf("expert %s: %w", userID, utils.ErrNotFound)
	}
	fn(&p)
	p.UpdatedAt = time.Now()
	r.profiles[userID] = p
	return nil
}

func (r *ExpertRepo) RecordChargeableLead(_ context.Context, userID string) error {
	return r.mutate(userID, func(p *models.ExpertProfile) {
		p.ChargeableLeads++
		p.TotalLeadsReceived++
	})
}

func (r *ExpertRepo) CreditFreeLeads(_ context.Context, userID string, n int) error {
	if n <= 0 {
		return nil
	}
	return r.mutate(userID, func(p *models.ExpertProfile) { p.FreeLeadsRemaining += n })
}

func (r *ExpertRepo) SetVerified(_ context.Context, userID string, verified bool) error {
	return r.mutate(userID, func(p *models.ExpertProfile) { p.Verified = verified })
}
