package userRepo

import (
	"context"

	"autodiag/models"
)

// UserRepository defines methods for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	// UpsertDevice replaces the device entry with the same deviceId or appends it.
	UpsertDevice(ctx context.Context, userID string, device models.Device) error
	RemoveDevice(ctx context.Context, userID, deviceID string) error
	UpdateSettings(ctx context.Context, userID string, settings models.Settings) error
	UpdateFCMToken(ctx context.Context, userID, token string) error
	UpdateName(ctx context.Context, userID, name string) error
	List(ctx context.Context, role models.Role, page models.PageRequest) ([]models.User, error)
}
