package models

import "time"

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadViewed    LeadStatus = "viewed"
	LeadContacted LeadStatus = "contacted"
	LeadConverted LeadStatus = "converted"
	LeadClosed    LeadStatus = "closed"
	LeadExpired   LeadStatus = "expired"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadNew, LeadViewed, LeadContacted, LeadConverted, LeadClosed, LeadExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s LeadStatus) Terminal() bool {
	return s == LeadConverted || s == LeadClosed || s == LeadExpired
}

// leadTransitions lists, per target status, the statuses a lead may move from.
var leadTransitions = map[LeadStatus][]LeadStatus{
	LeadViewed:    {LeadNew},
	LeadContacted: {LeadNew, LeadViewed},
	LeadConverted: {LeadContacted},
	LeadClosed:    {LeadNew, LeadViewed, LeadContacted},
	LeadExpired:   {LeadNew, LeadViewed},
}

// LeadSourceStatuses returns the statuses from which a lead may move to target.
func LeadSourceStatuses(target LeadStatus) []LeadStatus {
	return leadTransitions[target]
}

// CanTransition reports whether from → to is an allowed lead transition.
func CanTransition(from, to LeadStatus) bool {
	for _, s := range leadTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Lead is the introduction of one diagnosis to one expert.
type Lead struct {
	ID          string     `bson:"id" json:"id"`
	DiagnosisID string     `bson:"diagnosisId" json:"diagnosisId"`
	ExpertID    string     `bson:"expertId" json:"expertId"`
	DriverID    string     `bson:"driverId,omitempty" json:"driverId,omitempty"`
	Status      LeadStatus `bson:"status" json:"status"`
	IsFree      bool       `bson:"isFree" json:"isFree"`
	DistanceKm  *float64   `bson:"distanceKm,omitempty" json:"distanceKm,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
	ViewedAt    *time.Time `bson:"viewedAt,omitempty" json:"viewedAt,omitempty"`
	ContactedAt *time.Time `bson:"contactedAt,omitempty" json:"contactedAt,omitempty"`
	ConvertedAt *time.Time `bson:"convertedAt,omitempty" json:"convertedAt,omitempty"`
	ClosedAt    *time.Time `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
	ExpiredAt   *time.Time `bson:"expiredAt,omitempty" json:"expiredAt,omitempty"`
}

// LeadTimestampField returns the document field stamped when a lead enters status.
func LeadTimestampField(status LeadStatus) string {
	switch status {
	case LeadViewed:
		return "viewedAt"
	case LeadContacted:
		return "contactedAt"
	case LeadConverted:
		return "convertedAt"
	case LeadClosed:
		return "closedAt"
	case LeadExpired:
		return "expiredAt"
	}
	return ""
}

// LeadDetail is a lead joined with the diagnosis it introduces.
type LeadDetail struct {
	Lead      Lead       `json:"lead"`
	Diagnosis *Diagnosis `json:"diagnosis,omitempty"`
}

// LeadFilter narrows lead listings.
type LeadFilter struct {
	ExpertID    string
	DiagnosisID string
	Status      LeadStatus
}
