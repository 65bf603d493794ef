package models

import "time"

// DeviceFingerprint tracks guest usage for one client generated device identifier.
type DeviceFingerprint struct {
	DeviceID      string    `bson:"deviceId" json:"deviceId"`
	Platform      string    `bson:"platform" json:"platform,omitempty"`
	Model         string    `bson:"model" json:"model,omitempty"`
	IP            string    `bson:"ip" json:"-"`
	DiagnosesUsed int       `bson:"diagnosesUsed" json:"diagnosesUsed"`
	PaidCredits   int       `bson:"paidCredits" json:"paidCredits"`
	FirstSeenAt   time.Time `bson:"firstSeenAt" json:"firstSeenAt"`
	LastSeenAt    time.Time `bson:"lastSeenAt" json:"lastSeenAt"`
}

// Remaining returns how many guest diagnoses the device can still submit.
func (d DeviceFingerprint) Remaining(freeQuota int) int {
	left := freeQuota + d.PaidCredits - d.DiagnosesUsed
	if left < 0 {
		return 0
	}
	return left
}

// DeviceInfo is what the device middleware extracts from request headers.
type DeviceInfo struct {
	DeviceID string
	Name     string
	Platform string
	Model    string
	IP       string
}
