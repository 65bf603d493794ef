package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"autodiag/models"
	"autodiag/utils"

	"github.com/samber/lo"
)

type LeadRepo struct {
	mu    sync.RWMutex
	leads map[string]models.Lead
}

func NewLeadRepo() *LeadRepo {
	return &LeadRepo{leads: make(map[string]models.Lead)}
}

func (r *LeadRepo) Create(_ context.Context, l *models.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.leads {
		if existing.ID == l.ID || (existing.DiagnosisID == l.DiagnosisID && existing.ExpertID == l.ExpertID) {
			return fmt.Errorf("lead: %w", utils.ErrConflict)
		}
	}
	r.leads[l.ID] = *l
	return nil
}

func (r *LeadRepo) GetByID(_ context.Context, id string) (*models.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, fmt.Errorf("lead %s: %w", id, utils.ErrNotFound)
	}
	return &l, nil
}

func (r *LeadRepo) List(_ context.Context, f models.LeadFilter, page models.PageRequest) ([]models.Lead, error) {
	r.mu.RLock()
	var out []models.Lead
	for _, l := range r.leads {
		if f.ExpertID != "" && l.ExpertID != f.ExpertID {
			continue
		}
		if f.DiagnosisID != "" && l.DiagnosisID != f.DiagnosisID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		out = append(out, l)
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, page), nil
}

func (r *LeadRepo) Transition(_ context.Context, id string, to models.LeadStatus, at time.Time) (*models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, fmt.Errorf("lead %s: %w", id, utils.ErrNotFound)
	}
	if !models.CanTransition(l.Status, to) {
		return nil, fmt.Errorf("lead %s %s to %s: %w", id, l.Status, to, utils.ErrInvalidTransition)
	}
	l.Status = to
	l.UpdatedAt = at
	stamp := at
	switch to {
	case models.LeadViewed:
		l.ViewedAt = &stamp
	case models.LeadContacted:
		l.ContactedAt = &stamp
	case models.LeadConverted:
		l.ConvertedAt = &stamp
	case models.LeadClosed:
		l.ClosedAt = &stamp
	case models.LeadExpired:
		l.ExpiredAt = &stamp
	}
	r.leads[id] = l
	return &l, nil
}

func (r *LeadRepo) ListStale(_ context.Context, cutoff time.Time, limit int) ([]models.Lead, error) {
	r.mu.RLock()
	var out []models.Lead
	sources := models.LeadSourceStatuses(models.LeadExpired)
	for _, l := range r.leads {
		if lo.Contains(sources, l.Status) && l.CreatedAt.Before(cutoff) {
			out = append(out, l)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *LeadRepo) ExistsForExpert(_ context.Context, diagnosisID, expertID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.leads {
		if l.DiagnosisID == diagnosisID && l.ExpertID == expertID {
			return true, nil
		}
	}
	return false, nil
}

func (r *LeadRepo) SharedLead(_ context.Context, driverID, expertID string) (*models.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *models.Lead
	for _, l := range r.leads {
		if l.DriverID == driverID && l.ExpertID == expertID {
			if found == nil || l.CreatedAt.After(found.CreatedAt) {
				l := l
				found = &l
			}
		}
	}
	if found == nil {
		return nil, fmt.Errorf("shared lead: %w", utils.ErrNotFound)
	}
	return found, nil
}
