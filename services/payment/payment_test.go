package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"autodiag/database/repository/memory"
	"autodiag/models"
	"autodiag/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	utils.Logger = zap.NewNop()
	m.Run()
}

// fakeGateway treats the payload as "<type>:<intentID>" and the signature
// "ok" as valid.
type fakeGateway struct {
	mu      sync.Mutex
	next    int
	created []IntentRequest
}

func (g *fakeGateway) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	g.created = append(g.created, req)
	id := fmt.Sprintf("pi_%d", g.next)
	return &Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *fakeGateway) ParseEvent(payload []byte, signature string) (*GatewayEvent, error) {
	if signature != "ok" {
		return nil, ErrInvalidSignature
	}
	var typ, intent string
	for i := len(payload) - 1; i >= 0; i-- {
		if payload[i] == ':' {
			typ, intent = string(payload[:i]), string(payload[i+1:])
			break
		}
	}
	return &GatewayEvent{ID: "evt_" + intent, Type: typ, IntentID: intent}, nil
}

type fixture struct {
	svc      *DefaultPaymentService
	drivers  *memory.DriverRepo
	experts  *memory.ExpertRepo
	devices  *memory.DeviceRepo
	subs     *memory.SubscriptionRepo
	payments *memory.PaymentRepo
	gateway  *fakeGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		drivers:  memory.NewDriverRepo(),
		experts:  memory.NewExpertRepo(),
		devices:  memory.NewDeviceRepo(),
		subs:     memory.NewSubscriptionRepo(),
		payments: memory.NewPaymentRepo(),
		gateway:  &fakeGateway{},
	}
	f.svc = &DefaultPaymentService{
		Packages:      memory.NewPackageRepo(),
		Payments:      f.payments,
		Subscriptions: f.subs,
		Drivers:       f.drivers,
		Experts:       f.experts,
		Devices:       f.devices,
		Gateway:       f.gateway,
		Tx:            memory.Tx{},
		Now:           func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	}

	ctx := context.Background()
	for _, p := range []models.Package{
		{ID: "driver-5", Name: "5 diagnoses", Audience: models.AudienceDriver, Kind: models.PackageDiagnoses, Quantity: 5, PriceCents: 500, Currency: "usd", Active: true},
		{ID: "driver-monthly", Name: "Monthly", Audience: models.AudienceDriver, Kind: models.PackageDiagnoses, Quantity: 30, PriceCents: 1500, Currency: "usd", DurationDays: 30, Active: true},
		{ID: "expert-10", Name: "10 leads", Audience: models.AudienceExpert, Kind: models.PackageLeads, Quantity: 10, PriceCents: 2000, Currency: "usd", Active: true},
		{ID: "guest-3", Name: "3 diagnoses", Audience: models.AudienceGuest, Kind: models.PackageDiagnoses, Quantity: 3, PriceCents: 300, Currency: "usd", Active: true},
	} {
		_, err := f.svc.UpsertPackage(ctx, p)
		require.NoError(t, err)
	}
	require.NoError(t, f.drivers.Create(ctx, &models.DriverProfile{UserID: "driver-1"}))
	require.NoError(t, f.experts.Create(ctx, &models.ExpertProfile{UserID: "expert-1"}))
	return f
}

func TestWebhookReplayCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	checkout, err := f.svc.Checkout(ctx, Buyer{UserID: "driver-1", Role: models.RoleDriver}, "driver-5")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, checkout.Payment.Status)
	assert.Equal(t, "pi_1_secret", checkout.ClientSecret)
	assert.Equal(t, "driver-1", f.gateway.created[0].Metadata["userId"])

	payload := []byte(EventIntentSucceeded + ":" + checkout.Payment.ProviderRef)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.HandleWebhook(ctx, payload, "ok"))
	}

	profile, err := f.drivers.Get(ctx, "driver-1")
	require.NoError(t, err)
	assert.Equal(t, 5, profile.PaidDiagnosesRemaining)

	payments, err := f.svc.ListPayments(ctx, Buyer{UserID: "driver-1"}, models.PageRequest{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentSucceeded, payments[0].Status)
}

func TestWebhookFailedPaymentCreditsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	checkout, err := f.svc.Checkout(ctx, Buyer{UserID: "expert-1", Role: models.RoleExpert}, "expert-10")
	require.NoError(t, err)
	ref := checkout.Payment.ProviderRef

	require.NoError(t, f.svc.HandleWebhook(ctx, []byte(EventIntentFailed+":"+ref), "ok"))
	// A late success after a failure is not applied.
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte(EventIntentSucceeded+":"+ref), "ok"))

	profile, err := f.experts.Get(ctx, "expert-1")
	require.NoError(t, err)
	assert.Equal(t, 0, profile.FreeLeadsRemaining)
}

func TestWebhookExpertAndSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	leads, err := f.svc.Checkout(ctx, Buyer{UserID: "expert-1", Role: models.RoleExpert}, "expert-10")
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte(EventIntentSucceeded+":"+leads.Payment.ProviderRef), "ok"))

	expertProfile, err := f.experts.Get(ctx, "expert-1")
	require.NoError(t, err)
	assert.Equal(t, 10, expertProfile.FreeLeadsRemaining)

	monthly, err := f.svc.Checkout(ctx, Buyer{UserID: "driver-1", Role: models.RoleDriver}, "driver-monthly")
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte(EventIntentSucceeded+":"+monthly.Payment.ProviderRef), "ok"))

	subs, err := f.svc.ListSubscriptions(ctx, "driver-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "driver-monthly", subs[0].PackageID)
	assert.Equal(t, 30*24*time.Hour, subs[0].EndsAt.Sub(subs[0].StartsAt))
}

func TestGuestCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The device buys before it ever submits a diagnosis.
	guest := Buyer{DeviceID: "device-abcdef12"}
	_, err := f.svc.Checkout(ctx, guest, "driver-5")
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)

	checkout, err := f.svc.Checkout(ctx, guest, "guest-3")
	require.NoError(t, err)
	assert.Equal(t, "device-abcdef12", checkout.Payment.DeviceID)
	assert.Empty(t, checkout.Payment.UserID)
	_, err = f.devices.Get(ctx, "device-abcdef12")
	require.NoError(t, err, "checkout registers the device")

	require.NoError(t, f.svc.HandleWebhook(ctx, []byte(EventIntentSucceeded+":"+checkout.Payment.ProviderRef), "ok"))
	device, err := f.devices.Get(ctx, "device-abcdef12")
	require.NoError(t, err)
	assert.Equal(t, 3, device.PaidCredits)

	settled, err := f.payments.GetByProviderRef(ctx, checkout.Payment.ProviderRef)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded, settled.Status)

	payments, err := f.svc.ListPayments(ctx, guest, models.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestCheckoutRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, Buyer{UserID: "u", Role: models.RoleAdmin}, "driver-5")
	assert.ErrorIs(t, err, utils.ErrForbidden)

	_, err = f.svc.Checkout(ctx, Buyer{UserID: "driver-1", Role: models.RoleDriver}, "missing")
	assert.ErrorIs(t, err, utils.ErrNotFound)

	_, err = f.svc.Checkout(ctx, Buyer{UserID: "driver-1", Role: models.RoleDriver}, "expert-10")
	var verr *utils.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestWebhookSignatureAndIgnoredEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.HandleWebhook(ctx, []byte(EventIntentSucceeded+":pi_1"), "bad")
	assert.True(t, errors.Is(err, utils.ErrUnauthorized))

	assert.NoError(t, f.svc.HandleWebhook(ctx, []byte("charge.refunded:pi_1"), "ok"))
	assert.NoError(t, f.svc.HandleWebhook(ctx, []byte(EventIntentSucceeded+":pi_unknown"), "ok"))
}

func TestValidatePackage(t *testing.T) {
	tests := []struct {
		name  string
		pkg   models.Package
		field string
	}{
		{"expert selling diagnoses", models.Package{ID: "x", Name: "x", Audience: models.AudienceExpert, Kind: models.PackageDiagnoses, Quantity: 1, PriceCents: 1, Currency: "usd"}, "kind"},
		{"zero quantity", models.Package{ID: "x", Name: "x", Audience: models.AudienceDriver, Kind: models.PackageDiagnoses, PriceCents: 1, Currency: "usd"}, "quantity"},
		{"guest subscription", models.Package{ID: "x", Name: "x", Audience: models.AudienceGuest, Kind: models.PackageDiagnoses, Quantity: 1, PriceCents: 1, Currency: "usd", DurationDays: 7}, "durationDays"},
		{"bad currency", models.Package{ID: "x", Name: "x", Audience: models.AudienceDriver, Kind: models.PackageDiagnoses, Quantity: 1, PriceCents: 1, Currency: "dollars"}, "currency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr *utils.ValidationError
			require.ErrorAs(t, ValidatePackage(tt.pkg), &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestParseCatalog(t *testing.T) {
	data := []byte(`
packages:
  - id: driver-5
    name: Five diagnoses
    audience: driver
    kind: diagnoses
    quantity: 5
    priceCents: 500
    currency: usd
  - id: retired
    name: Old bundle
    audience: expert
    kind: leads
    quantity: 1
    priceCents: 100
    currency: usd
    active: false
`)
	pkgs, err := ParseCatalog(data)
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.True(t, pkgs[0].Active)
	assert.Equal(t, int64(500), pkgs[0].PriceCents)
	assert.False(t, pkgs[1].Active)
}
