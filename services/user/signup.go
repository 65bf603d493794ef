package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autodiag/models"
	"autodiag/utils"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// validateRegistration checks the rules binding tags cannot express: who may
// self-register, password strength and a complete expert location.
func validateRegistration(req RegisterRequest) error {
	verr := utils.NewValidationError()
	if req.Role != models.RoleDriver && req.Role != models.RoleExpert {
		verr.Add("role", "must be driver or expert")
	}
	if err := utils.VerifyPasswordComplexity(req.Password); err != nil {
		verr.Add("password", err.Error())
	}
	if req.Role == models.RoleExpert && (req.Latitude == nil) != (req.Longitude == nil) {
		verr.Add("location", "latitude and longitude must be given together")
	}
	return verr.OrNil()
}

// Register creates the user and its role profile in one transaction and signs
// the registering device in.
func (s *DefaultUserService) Register(ctx context.Context, req RegisterRequest, device models.Device) (*AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger().Error("Register: failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	now := time.Now()
	u := &models.User{
		ID:           uuid.New().String(),
		Role:         req.Role,
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: string(hashed),
		Devices:      []models.Device{},
		Settings:     models.DefaultSettings(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var profile models.RoleProfile
	switch req.Role {
	case models.RoleDriver:
		profile = &models.DriverProfile{
			UserID:                 u.ID,
			Region:                 strings.TrimSpace(req.Region),
			FreeDiagnosesRemaining: s.Config.FreeDiagnosesPerDriver,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
	case models.RoleExpert:
		ep := &models.ExpertProfile{
			UserID:       u.ID,
			BusinessName: strings.TrimSpace(req.BusinessName),
			Specializations: lo.Uniq(lo.FilterMap(req.Specializations, func(s string, _ int) (string, bool) {
				s = strings.ToLower(strings.TrimSpace(s))
				return s, s != ""
			})),
			Region:             strings.TrimSpace(req.Region),
			Address:            strings.TrimSpace(req.Address),
			Available:          true,
			FreeLeadsRemaining: s.Config.FreeLeadsPerExpert,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if req.Latitude != nil {
			ep.LocationGeo = models.NewGeoPoint(*req.Latitude, *req.Longitude)
		}
		profile = ep
	}

	err = s.withTx(ctx, func(ctx context.Context) error {
		if err := s.Users.Create(ctx, u); err != nil {
			return err
		}
		switch p := profile.(type) {
		case *models.DriverProfile:
			return s.Drivers.Create(ctx, p)
		case *models.ExpertProfile:
			return s.Experts.Create(ctx, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	token, err := s.signIn(ctx, u, device)
	if err != nil {
		return nil, err
	}
	s.logger().Info("user registered", zap.String("userID", u.ID), zap.String("role", string(u.Role)))
	return &AuthResponse{Token: token, Account: models.Account{User: u, Profile: profile}}, nil
}
