package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	diagnosisRepo "autodiag/database/repository/diagnosis"
	"autodiag/models"
	"autodiag/utils"

	"github.com/samber/lo"
)

type DiagnosisRepo struct {
	mu        sync.RWMutex
	diagnoses map[string]models.Diagnosis
}

func NewDiagnosisRepo() *DiagnosisRepo {
	return &DiagnosisRepo{diagnoses: make(map[string]models.Diagnosis)}
}

// Count returns the number of stored diagnoses, deleted ones included.
func (r *DiagnosisRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.diagnoses)
}

func (r *DiagnosisRepo) Create(_ context.Context, d *models.Diagnosis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.diagnoses[d.ID]; ok {
		return fmt.Errorf("diagnosis: %w", utils.ErrConflict)
	}
	r.diagnoses[d.ID] = *d
	return nil
}

func (r *DiagnosisRepo) GetByID(_ context.Context, id string) (*models.Diagnosis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.diagnoses[id]
	if !ok || d.DeletedAt != nil {
		return nil, fmt.Errorf("diagnosis %s: %w", id, utils.ErrNotFound)
	}
	return &d, nil
}

func (r *DiagnosisRepo) ListByDriver(_ context.Context, driverID string, page models.PageRequest) ([]models.Diagnosis, error) {
	r.mu.RLock()
	var out []models.Diagnosis
	for _, d := range r.diagnoses {
		if d.DriverID == driverID && d.DeletedAt == nil {
			out = append(out, d)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), nil
}

func (r *DiagnosisRepo) UpdateStatus(_ context.Context, id string, u diagnosisRepo.StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.diagnoses[id]
	if !ok || d.DeletedAt != nil {
		return false, nil
	}
	if len(u.From) > 0 && !lo.Contains(u.From, d.Status) {
		return false, nil
	}
	d.Status = u.To
	if u.Result != nil {
		d.Result = u.Result
	}
	if u.Transcript != "" {
		d.Transcript = u.Transcript
	}
	if u.FailureReason != "" {
		d.FailureReason = u.FailureReason
	}
	d.UpdatedAt = time.Now()
	r.diagnoses[id] = d
	return true, nil
}

func (r *DiagnosisRepo) SoftDelete(_ context.Context, driverID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.diagnoses[id]
	if !ok || d.DriverID != driverID || d.DeletedAt != nil {
		return fmt.Errorf("diagnosis %s: %w", id, utils.ErrNotFound)
	}
	now := time.Now()
	d.DeletedAt = &now
	r.diagnoses[id] = d
	return nil
}
