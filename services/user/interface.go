package user

import (
	"context"

	"autodiag/models"
)

// RegisterRequest is the sign-up payload for drivers and experts.
type RegisterRequest struct {
	Role        models.Role `json:"role" binding:"required"`
	Name        string      `json:"name" binding:"required"`
	Email       string      `json:"email" binding:"required,email"`
	PhoneNumber string      `json:"phoneNumber" binding:"required,min=7"`
	Password    string      `json:"password" binding:"required"`

	// Driver fields.
	Region string `json:"region"`

	// Expert fields.
	BusinessName    string   `json:"businessName" binding:"required_if=Role expert"`
	Specializations []string `json:"specializations"`
	Latitude        *float64 `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude       *float64 `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
	Address         string   `json:"address"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type OTPRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}

type OTPVerifyRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	OTP         string `json:"otp" binding:"required,len=6"`
}

// AuthResponse is returned by every successful sign-in path.
type AuthResponse struct {
	Token   string         `json:"token"`
	Account models.Account `json:"account"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   string
	Role     models.Role
	DeviceID string
}

// UserService covers registration, sign-in, sessions and user settings.
type UserService interface {
	Register(ctx context.Context, req RegisterRequest, device models.Device) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest, device models.Device) (*AuthResponse, error)
	RequestOTP(ctx context.Context, req OTPRequest, deviceID string) error
	VerifyOTP(ctx context.Context, req OTPVerifyRequest, device models.Device) (*AuthResponse, error)
	Logout(ctx context.Context, userID, deviceID string) error
	// Authenticate checks that token is the current token of deviceID.
	Authenticate(ctx context.Context, token, deviceID string) (*Principal, error)

	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateFCMToken(ctx context.Context, userID, token string) error
	GetSettings(ctx context.Context, userID string) (*models.Settings, error)
	UpdateSettings(ctx context.Context, userID string, settings models.Settings) (*models.Settings, error)
	ListUsers(ctx context.Context, role models.Role, page models.PageRequest) ([]models.User, error)
}

// OTPStore issues and verifies one-time passwords.
type OTPStore interface {
	Issue(ctx context.Context, subject, deviceID, phoneNumber string) error
	Verify(ctx context.Context, subject, deviceID, otp string) error
}
