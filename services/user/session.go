package user

import (
	"context"
	"errors"
	"fmt"

	"autodiag/utils"

	"go.uber.org/zap"
)

func (s *DefaultUserService) Authenticate(ctx context.Context, token, deviceID string) (*Principal, error) {
	claims, err := utils.ParseToken(token)
	if err != nil {
		return nil, err
	}
	if deviceID == "" || claims.DeviceID != deviceID {
		return nil, fmt.Errorf("device mismatch: %w", utils.ErrUnauthorized)
	}
	principal := &Principal{UserID: claims.UserID, Role: claims.Role, DeviceID: claims.DeviceID}
	computed := utils.HashToken(token)

	if s.Tokens != nil {
		cached, err := s.Tokens.Get(ctx, claims.UserID, claims.DeviceID)
		switch {
		case err == nil:
			if cached != computed {
				return nil, fmt.Errorf("token mismatch: %w", utils.ErrUnauthorized)
			}
			return principal, nil
		case !errors.Is(err, utils.ErrCacheMiss):
			s.logger().Warn("auth cache unavailable, falling back to database", zap.Error(err))
		}
	}

	u, err := s.Users.GetByID(ctx, claims.UserID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, fmt.Errorf("unknown user: %w", utils.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	var stored string
	for _, d := range u.Devices {
		if d.DeviceID == claims.DeviceID {
			stored = d.TokenHash
			break
		}
	}
	if stored == "" || stored != computed {
		return nil, fmt.Errorf("token mismatch: %w", utils.ErrUnauthorized)
	}
	if s.Tokens != nil {
		_ = s.Tokens.Set(ctx, claims.UserID, claims.DeviceID, computed)
	}
	return principal, nil
}

// Logout revokes the token of one device.
func (s *DefaultUserService) Logout(ctx context.Context, userID, deviceID string) error {
	if err := s.Users.RemoveDevice(ctx, userID, deviceID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if s.Tokens != nil {
		if err := s.Tokens.Delete(ctx, userID, deviceID); err != nil {
			s.logger().Warn("logout: auth cache delete failed", zap.Error(err))
		}
	}
	return nil
}
