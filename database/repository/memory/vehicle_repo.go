package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"autodiag/models"
	"autodiag/utils"
)

type VehicleRepo struct {
	mu       sync.RWMutex
	vehicles map[string]models.Vehicle
}

func NewVehicleRepo() *VehicleRepo {
	return &VehicleRepo{vehicles: make(map[string]models.Vehicle)}
}

func (r *VehicleRepo) Create(_ context.Context, v *models.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.vehicles {
		if existing.ID == v.ID || (v.VIN != "" && existing.VIN == v.VIN) {
			return fmt.Errorf("vehicle: %w", utils.ErrConflict)
		}
	}
	r.vehicles[v.ID] = *v
	return nil
}

func (r *VehicleRepo) Get(_ context.Context, ownerID, id string) (*models.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vehicles[id]
	if !ok || v.OwnerID != ownerID {
		return nil, fmt.Errorf("vehicle %s: %w", id, utils.ErrNotFound)
	}
	return &v, nil
}

func (r *VehicleRepo) List(_ context.Context, ownerID string) ([]models.Vehicle, error) {
	r.mu.RLock()
	out := []models.Vehicle{}
	for _, v := range r.vehicles {
		if v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *VehicleRepo) Update(_ context.Context, v *models.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.vehicles[v.ID]
	if !ok || cur.OwnerID != v.OwnerID {
		return fmt.Errorf("vehicle %s: %w", v.ID, utils.ErrNotFound)
	}
	v.CreatedAt = cur.CreatedAt
	r.vehicles[v.ID] = *v
	return nil
}

func (r *VehicleRepo) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok || v.OwnerID != ownerID {
		return fmt.Errorf("vehicle %s: %w", id, utils.ErrNotFound)
	}
	delete(r.vehicles, id)
	return nil
}
