package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"autodiag/models"
	"autodiag/utils"
)

type PackageRepo struct {
	mu       sync.RWMutex
	packages map[string]models.Package
}

func NewPackageRepo() *PackageRepo {
	return &PackageRepo{packages: make(map[string]models.Package)}
}

func (r *PackageRepo) Upsert(_ context.Context, p *models.Package) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packages[p.ID] = *p
	return nil
}

func (r *PackageRepo) GetByID(_ context.Context, id string) (*models.Package, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packages[id]
	if !ok {
		return nil, fmt.Errorf("package %s: %w", id, utils.ErrNotFound)
	}
	return &p, nil
}

func (r *PackageRepo) ListActive(_ context.Context, audience models.PackageAudience) ([]models.Package, error) {
	r.mu.RLock()
	out := []models.Package{}
	for _, p := range r.packages {
		if p.Active && (audience == "" || p.Audience == audience) {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out, nil
}

type PaymentRepo struct {
	mu       sync.Mutex
	payments map[string]models.Payment
}

func NewPaymentRepo() *PaymentRepo {
	return &PaymentRepo{payments: make(map[string]models.Payment)}
}

func (r *PaymentRepo) Create(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments {
		if existing.ID == p.ID || existing.ProviderRef == p.ProviderRef {
			return fmt.Errorf("payment: %w", utils.ErrConflict)
		}
	}
	r.payments[p.ID] = *p
	return nil
}

func (r *PaymentRepo) GetByProviderRef(_ context.Context, ref string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ProviderRef == ref {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("payment %s: %w", ref, utils.ErrNotFound)
}

func (r *PaymentRepo) Settle(_ context.Context, ref string, status models.PaymentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.payments {
		if p.ProviderRef != ref {
			continue
		}
		if p.Status != models.PaymentPending {
			return false, nil
		}
		p.Status = status
		p.UpdatedAt = time.Now()
		r.payments[id] = p
		return true, nil
	}
	return false, nil
}

func (r *PaymentRepo) ListByOwner(_ context.Context, userID, deviceID string, page models.PageRequest) ([]models.Payment, error) {
	r.mu.Lock()
	var out []models.Payment
	for _, p := range r.payments {
		if (userID != "" && p.UserID == userID) || (userID == "" && deviceID != "" && p.DeviceID == deviceID) {
			out = append(out, p)
		}
	}
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), nil
}

type SubscriptionRepo struct {
	mu   sync.Mutex
	subs []models.Subscription
}

func NewSubscriptionRepo() *SubscriptionRepo {
	return &SubscriptionRepo{}
}

func (r *SubscriptionRepo) Create(_ context.Context, s *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.subs {
		if existing.PaymentID == s.PaymentID {
			return fmt.Errorf("subscription: %w", utils.ErrConflict)
		}
	}
	r.subs = append(r.subs, *s)
	return nil
}

func (r *SubscriptionRepo) ListByUser(_ context.Context, userID string) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Subscription{}
	now := time.Now()
	for _, s := range r.subs {
		if s.UserID != userID {
			continue
		}
		if s.Status == models.SubscriptionActive && s.EndsAt.Before(now) {
			s.Status = models.SubscriptionExpired
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndsAt.After(out[j].EndsAt) })
	return out, nil
}
