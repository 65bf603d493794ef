package models

import (
	"sort"
	"strings"
	"time"
)

type DiagnosisStatus string

const (
	DiagnosisPending    DiagnosisStatus = "pending"
	DiagnosisProcessing DiagnosisStatus = "processing"
	DiagnosisCompleted  DiagnosisStatus = "completed"
	DiagnosisFailed     DiagnosisStatus = "failed"
)

type QuotaSource string

const (
	QuotaFree      QuotaSource = "free"
	QuotaPaid      QuotaSource = "paid"
	QuotaGuestFree QuotaSource = "guest_free"
	QuotaGuestPaid QuotaSource = "guest_paid"
)

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// Input kinds that combine into a diagnosis input type, e.g. "text+image".
const (
	InputText  = "text"
	InputVoice = "voice"
	InputImage = "image"
)

// DiagnosisResult is the outcome of AI analysis.
type DiagnosisResult struct {
	Summary                   string   `bson:"summary" json:"summary"`
	Causes                    []string `bson:"causes" json:"causes"`
	Urgency                   Urgency  `bson:"urgency" json:"urgency"`
	Confidence                float64  `bson:"confidence" json:"confidence"`
	RecommendedSpecialization string   `bson:"recommendedSpecialization" json:"recommendedSpecialization,omitempty"`
}

type Diagnosis struct {
	ID             string           `bson:"id" json:"id"`
	DriverID       string           `bson:"driverId,omitempty" json:"driverId,omitempty"`
	DeviceID       string           `bson:"deviceId,omitempty" json:"-"`
	VehicleID      string           `bson:"vehicleId,omitempty" json:"vehicleId,omitempty"`
	InputType      string           `bson:"inputType" json:"inputType"`
	Symptoms       string           `bson:"symptoms" json:"symptoms"`
	VoiceURL       string           `bson:"voiceUrl,omitempty" json:"voiceUrl,omitempty"`
	ImageURLs      []string         `bson:"imageUrls,omitempty" json:"imageUrls,omitempty"`
	Transcript     string           `bson:"transcript,omitempty" json:"transcript,omitempty"`
	Region         string           `bson:"region,omitempty" json:"region,omitempty"`
	Specialization string           `bson:"specialization,omitempty" json:"specialization,omitempty"`
	LocationGeo    *GeoPoint        `bson:"locationGeo,omitempty" json:"locationGeo,omitempty"`
	QuotaSource    QuotaSource      `bson:"quotaSource" json:"quotaSource"`
	Status         DiagnosisStatus  `bson:"status" json:"status"`
	Result         *DiagnosisResult `bson:"result,omitempty" json:"result,omitempty"`
	FailureReason  string           `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	CreatedAt      time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time        `bson:"updatedAt" json:"updatedAt"`
	DeletedAt      *time.Time       `bson:"deletedAt,omitempty" json:"-"`
}

// IsGuest reports whether the diagnosis was submitted without an account.
func (d Diagnosis) IsGuest() bool {
	return d.DriverID == ""
}

// DiagnosisInput is the submission payload after media has been uploaded.
type DiagnosisInput struct {
	VehicleID      string   `json:"vehicleId"`
	Symptoms       string   `json:"symptoms"`
	VoiceURL       string   `json:"voiceUrl"`
	ImageURLs      []string `json:"imageUrls"`
	Region         string   `json:"region"`
	Specialization string   `json:"specialization"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
}

// InputType derives the combined input type from the populated fields.
func (in DiagnosisInput) InputType() string {
	var kinds []string
	if strings.TrimSpace(in.Symptoms) != "" {
		kinds = append(kinds, InputText)
	}
	if in.VoiceURL != "" {
		kinds = append(kinds, InputVoice)
	}
	if len(in.ImageURLs) > 0 {
		kinds = append(kinds, InputImage)
	}
	sort.Strings(kinds)
	return strings.Join(kinds, "+")
}

// CreatedDiagnosis is returned from a successful submission.
type CreatedDiagnosis struct {
	Diagnosis *Diagnosis `json:"diagnosis"`
	Leads     []Lead     `json:"leads"`
}

// QuotaSummary reports remaining diagnosis quota for a driver or guest device.
type QuotaSummary struct {
	FreeRemaining int `json:"freeRemaining"`
	PaidRemaining int `json:"paidRemaining"`
	TotalUsed     int `json:"totalUsed"`
}
