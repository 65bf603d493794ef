package vehicle

import (
	"context"
	"testing"
	"time"

	"autodiag/database/repository/memory"
	"autodiag/models"
	"autodiag/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() *DefaultVehicleService {
	s := NewDefaultVehicleService(memory.NewVehicleRepo())
	s.Now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestValidateYearAndVIN(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	ok := models.VehicleInput{Make: "Toyota", Model: "Hilux", Year: 2027, VIN: "JTFST22P400012345"}
	assert.NoError(t, Validate(ok, now))

	bad := models.VehicleInput{Make: "Toyota", Model: "Hilux", Year: 2028, VIN: "JTFST22P40001234O"}
	var verr *utils.ValidationError
	require.ErrorAs(t, Validate(bad, now), &verr)
	assert.Contains(t, verr.Fields, "year")
	assert.Contains(t, verr.Fields, "vin")

	old := models.VehicleInput{Make: "Ford", Model: "T", Year: 1949}
	require.ErrorAs(t, Validate(old, now), &verr)
	assert.Contains(t, verr.Fields, "year")
}

func TestCreateNormalizesInput(t *testing.T) {
	s := newService()
	v, err := s.Create(context.Background(), "driver-1", models.VehicleInput{
		Make: " Subaru ", Model: "Forester", Year: 2015, VIN: "jf1shjlc5fg012345", Plate: "kda  123a", FuelType: "Petrol",
	})
	require.NoError(t, err)
	assert.Equal(t, "Subaru", v.Make)
	assert.Equal(t, "JF1SHJLC5FG012345", v.VIN)
	assert.Equal(t, "KDA 123A", v.Plate)
	assert.Equal(t, "petrol", v.FuelType)
}

func TestNonOwnerGetsNotFound(t *testing.T) {
	s := newService()
	ctx := context.Background()
	v, err := s.Create(ctx, "driver-1", models.VehicleInput{Make: "Mazda", Model: "Demio", Year: 2010})
	require.NoError(t, err)

	_, err = s.Get(ctx, "driver-2", v.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)
	_, err = s.Update(ctx, "driver-2", v.ID, models.VehicleInput{Make: "Mazda", Model: "Demio", Year: 2011})
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "driver-2", v.ID), utils.ErrNotFound)

	updated, err := s.Update(ctx, "driver-1", v.ID, models.VehicleInput{Make: "Mazda", Model: "Demio", Year: 2011, MileageKm: 90000})
	require.NoError(t, err)
	assert.Equal(t, 90000, updated.MileageKm)
	require.NoError(t, s.Delete(ctx, "driver-1", v.ID))
}
