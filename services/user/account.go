package user

import (
	"context"
	"fmt"
	"strings"

	"autodiag/models"
	"autodiag/utils"
)

func (s *DefaultUserService) loadAccount(ctx context.Context, u *models.User) (*models.Account, error) {
	account := &models.Account{User: u}
	switch u.Role {
	case models.RoleDriver:
		p, err := s.Drivers.Get(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("load driver profile: %w", err)
		}
		account.Profile = p
	case models.RoleExpert:
		p, err := s.Experts.Get(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("load expert profile: %w", err)
		}
		account.Profile = p
	case models.RoleAdmin:
		account.Profile = &models.AdminProfile{UserID: u.ID}
	default:
		return nil, fmt.Errorf("user %s has unknown role %q", u.ID, u.Role)
	}
	return account, nil
}

func (s *DefaultUserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.Users.GetByID(ctx, userID)
}

func (s *DefaultUserService) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.loadAccount(ctx, u)
}

func (s *DefaultUserService) UpdateFCMToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return utils.FieldError("fcmToken", "is required")
	}
	return s.Users.UpdateFCMToken(ctx, userID, token)
}

func (s *DefaultUserService) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &u.Settings, nil
}

var supportedLanguages = map[string]bool{"en": true, "sw": true, "fr": true, "ar": true, "es": true}

func (s *DefaultUserService) UpdateSettings(ctx context.Context, userID string, settings models.Settings) (*models.Settings, error) {
	verr := utils.NewValidationError()
	settings.Language = strings.ToLower(strings.TrimSpace(settings.Language))
	if !supportedLanguages[settings.Language] {
		verr.Add("language", "unsupported language")
	}
	if settings.Units != "metric" && settings.Units != "imperial" {
		verr.Add("units", "must be metric or imperial")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if err := s.Users.UpdateSettings(ctx, userID, settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *DefaultUserService) ListUsers(ctx context.Context, role models.Role, page models.PageRequest) ([]models.User, error) {
	if role != "" && !role.Valid() {
		return nil, utils.FieldError("role", "unknown role")
	}
	return s.Users.List(ctx, role, page)
}
