package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autodiag/models"
	"autodiag/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *DefaultPaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.Gateway.ParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			return fmt.Errorf("%v: %w", err, utils.ErrUnauthorized)
		}
		return err
	}
	logger := utils.GetLogger().With(zap.String("eventId", event.ID), zap.String("type", event.Type))

	var status models.PaymentStatus
	switch event.Type {
	case EventIntentSucceeded:
		status = models.PaymentSucceeded
	case EventIntentFailed:
		status = models.PaymentFailed
	default:
		logger.Debug("ignoring webhook event")
		return nil
	}

	payment, err := s.Payments.GetByProviderRef(ctx, event.IntentID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			// Intents created outside this backend.
			logger.Warn("webhook for unknown payment intent", zap.String("intentId", event.IntentID))
			return nil
		}
		return err
	}

	applied := false
	err = s.withTx(ctx, func(ctx context.Context) error {
		// Settle only moves pending payments, so a replayed event matches nothing.
		ok, err := s.Payments.Settle(ctx, event.IntentID, status)
		if err != nil || !ok {
			return err
		}
		applied = true
		if status != models.PaymentSucceeded {
			return nil
		}
		return s.credit(ctx, payment)
	})
	if err != nil {
		return err
	}
	if !applied {
		logger.Info("webhook replay ignored", zap.String("paymentId", payment.ID))
		return nil
	}
	logger.Info("payment settled", zap.String("paymentId", payment.ID), zap.String("status", string(status)))
	return nil
}

// credit grants the purchased package to whoever paid for it.
func (s *DefaultPaymentService) credit(ctx context.Context, p *models.Payment) error {
	pkg, err := s.Packages.GetByID(ctx, p.PackageID)
	if err != nil {
		return fmt.Errorf("load package for payment %s: %w", p.ID, err)
	}

	switch {
	case p.DeviceID != "":
		err = s.Devices.AddPaidCredits(ctx, p.DeviceID, pkg.Quantity)
	case p.UserID == "":
		err = errUnknownBuyer
	case pkg.Kind == models.PackageLeads:
		err = s.Experts.CreditFreeLeads(ctx, p.UserID, pkg.Quantity)
	default:
		err = s.Drivers.CreditPaid(ctx, p.UserID, pkg.Quantity)
	}
	if err != nil {
		return fmt.Errorf("credit payment %s: %w", p.ID, err)
	}

	if !pkg.IsSubscription() || p.UserID == "" {
		return nil
	}
	start := s.now()
	return s.Subscriptions.Create(ctx, &models.Subscription{
		ID:        uuid.New().String(),
		UserID:    p.UserID,
		PackageID: pkg.ID,
		PaymentID: p.ID,
		Status:    models.SubscriptionActive,
		StartsAt:  start,
		EndsAt:    start.Add(time.Duration(pkg.DurationDays) * 24 * time.Hour),
	})
}
