package vehicle

import (
	"context"
	"regexp"
	"strings"
	"time"

	vehicleRepo "autodiag/database/repository/vehicle"
	"autodiag/models"
	"autodiag/utils"

	"github.com/google/uuid"
)

const minVehicleYear = 1950

// VIN characters exclude I, O and Q.
var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

var fuelTypes = map[string]bool{
	"petrol": true, "diesel": true, "hybrid": true, "electric": true, "lpg": true, "cng": true,
}

// VehicleService manages a driver's own vehicles.
type VehicleService interface {
	Create(ctx context.Context, ownerID string, in models.VehicleInput) (*models.Vehicle, error)
	Get(ctx context.Context, ownerID, id string) (*models.Vehicle, error)
	List(ctx context.Context, ownerID string) ([]models.Vehicle, error)
	Update(ctx context.Context, ownerID, id string, in models.VehicleInput) (*models.Vehicle, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type DefaultVehicleService struct {
	Repo vehicleRepo.VehicleRepository
	Now  func() time.Time
}

func NewDefaultVehicleService(repo vehicleRepo.VehicleRepository) *DefaultVehicleService {
	return &DefaultVehicleService{Repo: repo, Now: time.Now}
}

func (s *DefaultVehicleService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func normalize(in models.VehicleInput) models.VehicleInput {
	in.Make = strings.TrimSpace(in.Make)
	in.Model = strings.TrimSpace(in.Model)
	in.VIN = strings.ToUpper(strings.TrimSpace(in.VIN))
	in.Plate = strings.ToUpper(strings.Join(strings.Fields(in.Plate), " "))
	in.FuelType = strings.ToLower(strings.TrimSpace(in.FuelType))
	return in
}

// Validate checks a normalized vehicle payload against the current year.
func Validate(in models.VehicleInput, now time.Time) error {
	v := utils.NewValidationError()
	if in.Year < minVehicleYear || in.Year > now.Year()+1 {
		v.Add("year", "must be between 1950 and next year")
	}
	if in.VIN != "" && !vinPattern.MatchString(in.VIN) {
		v.Add("vin", "must be 17 characters without I, O or Q")
	}
	if in.FuelType != "" && !fuelTypes[in.FuelType] {
		v.Add("fuelType", "is not a known fuel type")
	}
	return v.OrNil()
}

func apply(v *models.Vehicle, in models.VehicleInput) {
	v.Make = in.Make
	v.Model = in.Model
	v.Year = in.Year
	v.VIN = in.VIN
	v.Plate = in.Plate
	v.FuelType = in.FuelType
	v.MileageKm = in.MileageKm
}

func (s *DefaultVehicleService) Create(ctx context.Context, ownerID string, in models.VehicleInput) (*models.Vehicle, error) {
	in = normalize(in)
	now := s.now()
	if err := Validate(in, now); err != nil {
		return nil, err
	}
	v := &models.Vehicle{ID: uuid.New().String(), OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}
	apply(v, in)
	if err := s.Repo.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *DefaultVehicleService) Get(ctx context.Context, ownerID, id string) (*models.Vehicle, error) {
	return s.Repo.Get(ctx, ownerID, id)
}

func (s *DefaultVehicleService) List(ctx context.Context, ownerID string) ([]models.Vehicle, error) {
	return s.Repo.List(ctx, ownerID)
}

func (s *DefaultVehicleService) Update(ctx context.Context, ownerID, id string, in models.VehicleInput) (*models.Vehicle, error) {
	in = normalize(in)
	now := s.now()
	if err := Validate(in, now); err != nil {
		return nil, err
	}
	v, err := s.Repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	apply(v, in)
	v.UpdatedAt = now
	if err := s.Repo.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *DefaultVehicleService) Delete(ctx context.Context, ownerID, id string) error {
	return s.Repo.Delete(ctx, ownerID, id)
}
