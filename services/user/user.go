package user

import (
	"context"
	"time"

	"autodiag/database"
	profileRepo "autodiag/database/repository/profile"
	userRepo "autodiag/database/repository/user"
	"autodiag/utils"

	"go.uber.org/zap"
)

// Config carries the account defaults applied at registration.
type Config struct {
	FreeDiagnosesPerDriver int
	FreeLeadsPerExpert     int
	TokenTTL               time.Duration
}

// DefaultUserService is the production implementation of UserService.
type DefaultUserService struct {
	Users   userRepo.UserRepository
	Drivers profileRepo.DriverRepository
	Experts profileRepo.ExpertRepository
	Tx      database.Transactor
	OTP     OTPStore
	Tokens  utils.TokenCache
	Config  Config
	Logger  *zap.Logger
}

var _ UserService = (*DefaultUserService)(nil)

func (s *DefaultUserService) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return utils.GetLogger()
}

func (s *DefaultUserService) tokenTTL() time.Duration {
	if s.Config.TokenTTL <= 0 {
		return 30 * 24 * time.Hour
	}
	return s.Config.TokenTTL
}

func (s *DefaultUserService) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithTransaction(ctx, fn)
}
