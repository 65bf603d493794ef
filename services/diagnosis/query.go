package diagnosis

import (
	"context"
	"errors"
	"fmt"

	"autodiag/models"
	"autodiag/utils"
)

func (s *DefaultDiagnosisService) Get(ctx context.Context, driverID, id string) (*models.Diagnosis, error) {
	d, err := s.Diagnoses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.DriverID != driverID {
		return nil, fmt.Errorf("diagnosis %s: %w", id, utils.ErrNotFound)
	}
	return d, nil
}

func (s *DefaultDiagnosisService) GetGuest(ctx context.Context, deviceID, id string) (*models.Diagnosis, error) {
	d, err := s.Diagnoses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.IsGuest() || d.DeviceID != deviceID {
		return nil, fmt.Errorf("diagnosis %s: %w", id, utils.ErrNotFound)
	}
	return d, nil
}

func (s *DefaultDiagnosisService) List(ctx context.Context, driverID string, page models.PageRequest) ([]models.Diagnosis, error) {
	return s.Diagnoses.ListByDriver(ctx, driverID, page)
}

// Delete soft deletes a diagnosis. Its leads stay intact.
func (s *DefaultDiagnosisService) Delete(ctx context.Context, driverID, id string) error {
	return s.Diagnoses.SoftDelete(ctx, driverID, id)
}

func (s *DefaultDiagnosisService) Leads(ctx context.Context, driverID, id string) ([]models.Lead, error) {
	if _, err := s.Get(ctx, driverID, id); err != nil {
		return nil, err
	}
	return s.LeadRepo.List(ctx, models.LeadFilter{DiagnosisID: id}, models.PageRequest{Limit: 100})
}

func (s *DefaultDiagnosisService) Quota(ctx context.Context, driverID string) (*models.QuotaSummary, error) {
	p, err := s.Drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return &models.QuotaSummary{
		FreeRemaining: p.FreeDiagnosesRemaining,
		PaidRemaining: p.PaidDiagnosesRemaining,
		TotalUsed:     p.TotalDiagnosesUsed,
	}, nil
}

// GuestQuota reports a device's allowance. Unknown devices have the whole
// free allowance left.
func (s *DefaultDiagnosisService) GuestQuota(ctx context.Context, deviceID string) (*models.QuotaSummary, error) {
	free := s.guestFree()
	fp, err := s.Devices.Get(ctx, deviceID)
	if errors.Is(err, utils.ErrNotFound) {
		return &models.QuotaSummary{FreeRemaining: free}, nil
	}
	if err != nil {
		return nil, err
	}
	freeLeft := free - fp.DiagnosesUsed
	if freeLeft < 0 {
		freeLeft = 0
	}
	return &models.QuotaSummary{
		FreeRemaining: freeLeft,
		PaidRemaining: fp.Remaining(free) - freeLeft,
		TotalUsed:     fp.DiagnosesUsed,
	}, nil
}
