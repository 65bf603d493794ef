package models

import "time"

type PackageAudience string

const (
	AudienceDriver PackageAudience = "driver"
	AudienceExpert PackageAudience = "expert"
	AudienceGuest  PackageAudience = "guest"
)

type PackageKind string

const (
	PackageDiagnoses PackageKind = "diagnoses"
	PackageLeads     PackageKind = "leads"
)

// Package is a purchasable bundle of diagnoses or leads.
type Package struct {
	ID           string          `bson:"id" json:"id"`
	Name         string          `bson:"name" json:"name"`
	Description  string          `bson:"description" json:"description,omitempty"`
	Audience     PackageAudience `bson:"audience" json:"audience"`
	Kind         PackageKind     `bson:"kind" json:"kind"`
	Quantity     int             `bson:"quantity" json:"quantity"`
	PriceCents   int64           `bson:"priceCents" json:"priceCents"`
	Currency     string          `bson:"currency" json:"currency"`
	DurationDays int             `bson:"durationDays" json:"durationDays"`
	Active       bool            `bson:"active" json:"active"`
	CreatedAt    time.Time       `bson:"createdAt" json:"createdAt"`
}

// IsSubscription reports whether buying the package starts a subscription.
func (p Package) IsSubscription() bool {
	return p.DurationDays > 0
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

type Payment struct {
	ID          string        `bson:"id" json:"id"`
	UserID      string        `bson:"userId,omitempty" json:"userId,omitempty"`
	DeviceID    string        `bson:"deviceId,omitempty" json:"deviceId,omitempty"`
	PackageID   string        `bson:"packageId" json:"packageId"`
	AmountCents int64         `bson:"amountCents" json:"amountCents"`
	Currency    string        `bson:"currency" json:"currency"`
	Status      PaymentStatus `bson:"status" json:"status"`
	Provider    string        `bson:"provider" json:"provider"`
	ProviderRef string        `bson:"providerRef" json:"providerRef"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt" json:"updatedAt"`
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type Subscription struct {
	ID        string             `bson:"id" json:"id"`
	UserID    string             `bson:"userId" json:"userId"`
	PackageID string             `bson:"packageId" json:"packageId"`
	PaymentID string             `bson:"paymentId" json:"paymentId"`
	Status    SubscriptionStatus `bson:"status" json:"status"`
	StartsAt  time.Time          `bson:"startsAt" json:"startsAt"`
	EndsAt    time.Time          `bson:"endsAt" json:"endsAt"`
}

// Checkout is returned to the client to complete payment with the gateway SDK.
type Checkout struct {
	Payment      *Payment `json:"payment"`
	ClientSecret string   `json:"clientSecret"`
}
