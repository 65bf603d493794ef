package models

import "time"

type Role string

const (
	RoleDriver Role = "driver"
	RoleExpert Role = "expert"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDriver, RoleExpert, RoleAdmin:
		return true
	}
	return false
}

// User is the single account record shared by every role. Role specific data lives in
// the matching profile collection, joined by user ID.
type User struct {
	ID           string    `bson:"id" json:"id"`
	Role         Role      `bson:"role" json:"role"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PhoneNumber  string    `bson:"phoneNumber" json:"phoneNumber"`
	Password     string    `bson:"-" json:"password,omitempty"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Devices      []Device  `bson:"devices" json:"devices,omitempty"`
	Settings     Settings  `bson:"settings" json:"settings"`
	FCMToken     string    `bson:"fcmToken,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Device is a signed-in client of a user. Each device carries its own token hash.
type Device struct {
	DeviceID   string    `bson:"deviceId" json:"deviceId"`
	DeviceName string    `bson:"deviceName" json:"deviceName"`
	Platform   string    `bson:"platform" json:"platform"`
	IP         string    `bson:"ip" json:"ip"`
	LastLogin  time.Time `bson:"lastLogin" json:"lastLogin"`
	TokenHash  string    `bson:"tokenHash" json:"-"`
}

// Settings holds user preferences.
type Settings struct {
	Language       string `bson:"language" json:"language"`
	Units          string `bson:"units" json:"units"`
	PushEnabled    bool   `bson:"pushEnabled" json:"pushEnabled"`
	EmailUpdates   bool   `bson:"emailUpdates" json:"emailUpdates"`
	MarketingOptIn bool   `bson:"marketingOptIn" json:"marketingOptIn"`
}

func DefaultSettings() Settings {
	return Settings{Language: "en", Units: "metric", PushEnabled: true}
}

// RoleProfile is implemented by the role specific profiles. The concrete type of an
// Account's profile always matches the user's role.
type RoleProfile interface {
	ProfileRole() Role
}

// DriverProfile holds the diagnosis quota of a driver.
type DriverProfile struct {
	UserID                 string    `bson:"userId" json:"userId"`
	Region                 string    `bson:"region" json:"region,omitempty"`
	FreeDiagnosesRemaining int       `bson:"freeDiagnosesRemaining" json:"freeDiagnosesRemaining"`
	PaidDiagnosesRemaining int       `bson:"paidDiagnosesRemaining" json:"paidDiagnosesRemaining"`
	TotalDiagnosesUsed     int       `bson:"totalDiagnosesUsed" json:"totalDiagnosesUsed"`
	CreatedAt              time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt              time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (*DriverProfile) ProfileRole() Role { return RoleDriver }

// ExpertProfile describes a mechanic or workshop and its lead quota.
type ExpertProfile struct {
	UserID             string    `bson:"userId" json:"userId"`
	BusinessName       string    `bson:"businessName" json:"businessName"`
	Specializations    []string  `bson:"specializations" json:"specializations"`
	Region             string    `bson:"region" json:"region"`
	LocationGeo        GeoPoint  `bson:"locationGeo" json:"locationGeo"`
	Address            string    `bson:"address" json:"address,omitempty"`
	Bio                string    `bson:"bio" json:"bio,omitempty"`
	Rating             float64   `bson:"rating" json:"rating"`
	Verified           bool      `bson:"verified" json:"verified"`
	Available          bool      `bson:"available" json:"available"`
	FreeLeadsRemaining int       `bson:"freeLeadsRemaining" json:"freeLeadsRemaining"`
	TotalLeadsReceived int       `bson:"totalLeadsReceived" json:"totalLeadsReceived"`
	ChargeableLeads    int       `bson:"chargeableLeads" json:"chargeableLeads"`
	CreatedAt          time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (*ExpertProfile) ProfileRole() Role { return RoleExpert }

// AdminProfile carries no data; it exists so admins fit the account union.
type AdminProfile struct {
	UserID string `json:"userId"`
}

func (*AdminProfile) ProfileRole() Role { return RoleAdmin }

// Account is a user joined with its role profile.
type Account struct {
	User    *User       `json:"user"`
	Profile RoleProfile `json:"profile"`
}

// Driver returns the driver profile, or nil when the account is not a driver.
func (a Account) Driver() *DriverProfile {
	p, _ := a.Profile.(*DriverProfile)
	return p
}

// Expert returns the expert profile, or nil when the account is not an expert.
func (a Account) Expert() *ExpertProfile {
	p, _ := a.Profile.(*ExpertProfile)
	return p
}

// PublicExpert is the view of an expert returned to drivers.
type PublicExpert struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	BusinessName    string   `json:"businessName"`
	Specializations []string `json:"specializations"`
	Region          string   `json:"region"`
	LocationGeo     GeoPoint `json:"locationGeo"`
	Address         string   `json:"address,omitempty"`
	Rating          float64  `json:"rating"`
	Verified        bool     `json:"verified"`
	DistanceKm      *float64 `json:"distanceKm,omitempty"`
}

// ExpertWithDistance is a search hit carrying its distance from the query point.
type ExpertWithDistance struct {
	ExpertProfile `bson:",inline"`
	DistanceKm    float64 `bson:"distanceKm" json:"distanceKm"`
}
