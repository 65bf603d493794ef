package paymentRepo

import (
	"context"

	"autodiag/models"
)

// PackageRepository defines methods for purchasable package data access.
type PackageRepository interface {
	Upsert(ctx context.Context, pkg *models.Package) error
	GetByID(ctx context.Context, id string) (*models.Package, error)
	ListActive(ctx context.Context, audience models.PackageAudience) ([]models.Package, error)
}

// PaymentRepository defines methods for payment data access.
type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByProviderRef(ctx context.Context, ref string) (*models.Payment, error)
	// Settle moves a pending payment to status. It reports false when the
	// payment was already settled, which makes webhook replays harmless.
	Settle(ctx context.Context, ref string, status models.PaymentStatus) (bool, error)
	ListByOwner(ctx context.Context, userID, deviceID string, page models.PageRequest) ([]models.Payment, error)
}

// SubscriptionRepository defines methods for subscription data access.
type SubscriptionRepository interface {
	Create(ctx context.Context, s *models.Subscription) error
	ListByUser(ctx context.Context, userID string) ([]models.Subscription, error)
}
