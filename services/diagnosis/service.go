package diagnosis

import (
	"context"
	"time"

	"autodiag/database"
	deviceRepo "autodiag/database/repository/device"
	diagnosisRepo "autodiag/database/repository/diagnosis"
	leadRepo "autodiag/database/repository/lead"
	profileRepo "autodiag/database/repository/profile"
	userRepo "autodiag/database/repository/user"
	vehicleRepo "autodiag/database/repository/vehicle"
	"autodiag/services/broadcast"
	"autodiag/services/expert"
	"autodiag/services/intelligence"
	"autodiag/services/tasks"
	"autodiag/utils"

	"go.uber.org/zap"
)

// MatchRequest is re-exported so callers need not import the expert package.
type MatchRequest = expert.MatchRequest

type Config struct {
	GuestFreeDiagnoses   int
	MaxLeadsPerDiagnosis int
}

type DefaultDiagnosisService struct {
	Diagnoses diagnosisRepo.DiagnosisRepository
	LeadRepo  leadRepo.LeadRepository
	Drivers   profileRepo.DriverRepository
	Experts   profileRepo.ExpertRepository
	Devices   deviceRepo.DeviceRepository
	Vehicles  vehicleRepo.VehicleRepository
	Users     userRepo.UserRepository
	Matcher   Matcher
	Tx        database.Transactor
	Tasks     tasks.Dispatcher
	Events    broadcast.Publisher

	Analyzer    intelligence.Analyzer
	Transcriber intelligence.Transcriber

	Config Config
	Now    func() time.Time
	Logger *zap.Logger
}

var _ DiagnosisService = (*DefaultDiagnosisService)(nil)

func (s *DefaultDiagnosisService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *DefaultDiagnosisService) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return utils.GetLogger()
}

func (s *DefaultDiagnosisService) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithTransaction(ctx, fn)
}

func (s *DefaultDiagnosisService) maxLeads() int {
	if s.Config.MaxLeadsPerDiagnosis <= 0 {
		return 3
	}
	return s.Config.MaxLeadsPerDiagnosis
}

func (s *DefaultDiagnosisService) guestFree() int {
	if s.Config.GuestFreeDiagnoses < 0 {
		return 0
	}
	return s.Config.GuestFreeDiagnoses
}
