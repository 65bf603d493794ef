package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"autodiag/models"
	"autodiag/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// signIn issues a device-bound token and records the device's token hash.
func (s *DefaultUserService) signIn(ctx context.Context, u *models.User, device models.Device) (string, error) {
	if device.DeviceID == "" {
		return "", utils.FieldError("device", "X-Device-ID header is required")
	}
	token, err := utils.GenerateToken(u.ID, u.Role, device.DeviceID, s.tokenTTL())
	if err != nil {
		s.logger().Error("signIn: failed to generate auth token", zap.Error(err))
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	device.TokenHash = utils.HashToken(token)
	device.LastLogin = time.Now()

	if err := s.Users.UpsertDevice(ctx, u.ID, device); err != nil {
		return "", fmt.Errorf("failed to record device: %w", err)
	}
	if s.Tokens != nil {
		if err := s.Tokens.Set(ctx, u.ID, device.DeviceID, device.TokenHash); err != nil {
			s.logger().Warn("signIn: auth cache write failed", zap.Error(err))
		}
	}
	return token, nil
}

func (s *DefaultUserService) Login(ctx context.Context, req LoginRequest, device models.Device) (*AuthResponse, error) {
	u, err := s.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, utils.ErrNotFound) {
		return nil, fmt.Errorf("invalid email or password: %w", utils.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, fmt.Errorf("invalid email or password: %w", utils.ErrUnauthorized)
	}
	return s.completeSignIn(ctx, u, device)
}

func (s *DefaultUserService) completeSignIn(ctx context.Context, u *models.User, device models.Device) (*AuthResponse, error) {
	token, err := s.signIn(ctx, u, device)
	if err != nil {
		return nil, err
	}
	account, err := s.loadAccount(ctx, u)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, Account: *account}, nil
}

// RequestOTP sends a one-time password to a registered phone number. Unknown
// numbers succeed silently so the endpoint cannot be used to enumerate accounts.
func (s *DefaultUserService) RequestOTP(ctx context.Context, req OTPRequest, deviceID string) error {
	phone := strings.TrimSpace(req.PhoneNumber)
	if deviceID == "" {
		return utils.FieldError("device", "X-Device-ID header is required")
	}
	u, err := s.Users.GetByPhone(ctx, phone)
	if errors.Is(err, utils.ErrNotFound) {
		s.logger().Info("OTP requested for unknown phone number")
		return nil
	}
	if err != nil {
		return fmt.Errorf("request otp: %w", err)
	}
	return s.OTP.Issue(ctx, u.ID, deviceID, u.PhoneNumber)
}

func (s *DefaultUserService) VerifyOTP(ctx context.Context, req OTPVerifyRequest, device models.Device) (*AuthResponse, error) {
	u, err := s.Users.GetByPhone(ctx, strings.TrimSpace(req.PhoneNumber))
	if errors.Is(err, utils.ErrNotFound) {
		return nil, fmt.Errorf("invalid code: %w", utils.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("verify otp: %w", err)
	}
	if err := s.OTP.Verify(ctx, u.ID, device.DeviceID, strings.ToUpper(strings.TrimSpace(req.OTP))); err != nil {
		return nil, err
	}
	return s.completeSignIn(ctx, u, device)
}
