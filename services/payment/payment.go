package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"autodiag/database"
	deviceRepo "autodiag/database/repository/device"
	paymentRepo "autodiag/database/repository/payment"
	profileRepo "autodiag/database/repository/profile"
	"autodiag/models"
	"autodiag/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Buyer identifies who pays: an account holder or a guest device.
type Buyer struct {
	UserID   string
	Role     models.Role
	DeviceID string
}

func (b Buyer) IsGuest() bool { return b.UserID == "" }

// PaymentService covers packages, checkout and the payment webhook.
type PaymentService interface {
	ListPackages(ctx context.Context, audience models.PackageAudience) ([]models.Package, error)
	UpsertPackage(ctx context.Context, pkg models.Package) (*models.Package, error)
	Checkout(ctx context.Context, buyer Buyer, packageID string) (*models.Checkout, error)
	// HandleWebhook settles a payment and credits its package at most once,
	// however often the provider redelivers the event.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	ListPayments(ctx context.Context, buyer Buyer, page models.PageRequest) ([]models.Payment, error)
	ListSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error)
}

type DefaultPaymentService struct {
	Packages      paymentRepo.PackageRepository
	Payments      paymentRepo.PaymentRepository
	Subscriptions paymentRepo.SubscriptionRepository
	Drivers       profileRepo.DriverRepository
	Experts       profileRepo.ExpertRepository
	Devices       deviceRepo.DeviceRepository
	Gateway       Gateway
	Tx            database.Transactor
	Now           func() time.Time
}

var _ PaymentService = (*DefaultPaymentService)(nil)

func (s *DefaultPaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *DefaultPaymentService) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithTransaction(ctx, fn)
}

func audienceOf(b Buyer) (models.PackageAudience, bool) {
	if b.IsGuest() {
		return models.AudienceGuest, b.DeviceID != ""
	}
	switch b.Role {
	case models.RoleDriver:
		return models.AudienceDriver, true
	case models.RoleExpert:
		return models.AudienceExpert, true
	}
	return "", false
}

func (s *DefaultPaymentService) ListPackages(ctx context.Context, audience models.PackageAudience) ([]models.Package, error) {
	switch audience {
	case "", models.AudienceDriver, models.AudienceExpert, models.AudienceGuest:
	default:
		return nil, utils.FieldError("audience", "must be driver, expert or guest")
	}
	return s.Packages.ListActive(ctx, audience)
}

// ValidatePackage checks a package definition before it is stored.
func ValidatePackage(p models.Package) error {
	v := utils.NewValidationError()
	if strings.TrimSpace(p.ID) == "" {
		v.Add("id", "is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		v.Add("name", "is required")
	}
	switch p.Audience {
	case models.AudienceDriver, models.AudienceGuest:
		if p.Kind != models.PackageDiagnoses {
			v.Add("kind", "driver and guest packages sell diagnoses")
		}
	case models.AudienceExpert:
		if p.Kind != models.PackageLeads {
			v.Add("kind", "expert packages sell leads")
		}
	default:
		v.Add("audience", "must be driver, expert or guest")
	}
	if p.Quantity <= 0 {
		v.Add("quantity", "must be positive")
	}
	if p.PriceCents <= 0 {
		v.Add("priceCents", "must be positive")
	}
	if len(p.Currency) != 3 {
		v.Add("currency", "must be a 3 letter ISO code")
	}
	if p.DurationDays < 0 {
		v.Add("durationDays", "cannot be negative")
	}
	if p.Audience == models.AudienceGuest && p.DurationDays > 0 {
		v.Add("durationDays", "guests cannot subscribe")
	}
	return v.OrNil()
}

func (s *DefaultPaymentService) UpsertPackage(ctx context.Context, pkg models.Package) (*models.Package, error) {
	pkg.ID = strings.TrimSpace(pkg.ID)
	pkg.Currency = strings.ToLower(strings.TrimSpace(pkg.Currency))
	if err := ValidatePackage(pkg); err != nil {
		return nil, err
	}
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = s.now()
	}
	if err := s.Packages.Upsert(ctx, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (s *DefaultPaymentService) Checkout(ctx context.Context, buyer Buyer, packageID string) (*models.Checkout, error) {
	audience, ok := audienceOf(buyer)
	if !ok {
		return nil, fmt.Errorf("role %q cannot buy packages: %w", buyer.Role, utils.ErrForbidden)
	}
	pkg, err := s.Packages.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return nil, fmt.Errorf("package %s: %w", packageID, utils.ErrNotFound)
	}
	if pkg.Audience != audience {
		return nil, utils.FieldError("packageId", "package is not sold to "+string(audience)+"s")
	}

	// The webhook credits the fingerprint, so it must exist before payment.
	if buyer.IsGuest() {
		if _, err := s.Devices.Touch(ctx, models.DeviceInfo{DeviceID: buyer.DeviceID}); err != nil {
			return nil, fmt.Errorf("register device: %w", err)
		}
	}

	metadata := map[string]string{"packageId": pkg.ID}
	if buyer.IsGuest() {
		metadata["deviceId"] = buyer.DeviceID
	} else {
		metadata["userId"] = buyer.UserID
	}
	intent, err := s.Gateway.CreateIntent(ctx, IntentRequest{
		AmountCents: pkg.PriceCents,
		Currency:    pkg.Currency,
		Description: pkg.Name,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.Payment{
		ID:          uuid.New().String(),
		PackageID:   pkg.ID,
		AmountCents: pkg.PriceCents,
		Currency:    pkg.Currency,
		Status:      models.PaymentPending,
		Provider:    ProviderStripe,
		ProviderRef: intent.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if buyer.IsGuest() {
		p.DeviceID = buyer.DeviceID
	} else {
		p.UserID = buyer.UserID
	}
	if err := s.Payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("store payment: %w", err)
	}
	utils.GetLogger().Info("checkout started",
		zap.String("paymentId", p.ID),
		zap.String("packageId", pkg.ID),
		zap.String("providerRef", intent.ID))
	return &models.Checkout{Payment: p, ClientSecret: intent.ClientSecret}, nil
}

func (s *DefaultPaymentService) ListPayments(ctx context.Context, buyer Buyer, page models.PageRequest) ([]models.Payment, error) {
	return s.Payments.ListByOwner(ctx, buyer.UserID, buyer.DeviceID, page)
}

func (s *DefaultPaymentService) ListSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error) {
	return s.Subscriptions.ListByUser(ctx, userID)
}

var errUnknownBuyer = errors.New("payment has neither user nor device")
