package expert

import (
	"context"
	"testing"

	"autodiag/database/repository/memory"
	profileRepo "autodiag/database/repository/profile"
	"autodiag/models"
	"autodiag/utils"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	utils.Logger = zap.NewNop()
}

func ptr[T any](v T) *T { return &v }

// Nairobi CBD.
const cbdLat, cbdLng = -1.2864, 36.8172

func seedExpert(t *testing.T, repo *memory.ExpertRepo, users *memory.UserRepo, id string, lat, lng float64, specs ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, &models.User{ID: id, Role: models.RoleExpert, Name: "Mech " + id, Email: id + "@x.io", PhoneNumber: id}))
	require.NoError(t, repo.Create(ctx, &models.ExpertProfile{
		UserID:          id,
		BusinessName:    id + " Garage",
		Specializations: specs,
		Region:          "nairobi",
		LocationGeo:     models.NewGeoPoint(lat, lng),
		Available:       true,
	}))
}

func newService(t *testing.T) (*DefaultExpertService, *memory.ExpertRepo) {
	repo := memory.NewExpertRepo()
	users := memory.NewUserRepo()
	seedExpert(t, repo, users, "near", -1.2921, 36.8219, "engine") // under 1 km
	seedExpert(t, repo, users, "mid", -1.3192, 36.9278, "brakes")  // JKIA, about 12.8 km
	seedExpert(t, repo, users, "far", -0.3031, 36.0800, "engine")  // Nakuru, about 135 km
	return NewDefaultExpertService(repo, users, 25), repo
}

func TestNearbyValidatesCoordinates(t *testing.T) {
	s, _ := newService(t)
	_, err := s.Nearby(context.Background(), NearbyQuery{Latitude: ptr(91.0), Longitude: ptr(0.0)})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "lat")

	_, err = s.Nearby(context.Background(), NearbyQuery{Latitude: ptr(0.0), Longitude: ptr(0.0), RadiusKm: -1})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "radiusKm")

	_, err = s.Nearby(context.Background(), NearbyQuery{})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "lng")
}

func TestNearbyReturnsOnlyExpertsInRadiusOrdered(t *testing.T) {
	s, _ := newService(t)
	got, err := s.Nearby(context.Background(), NearbyQuery{Latitude: ptr(cbdLat), Longitude: ptr(cbdLng)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.LessOrEqual(t, *got[0].DistanceKm, *got[1].DistanceKm)
	assert.Equal(t, "Mech near", got[0].Name)

	got, err = s.Nearby(context.Background(), NearbyQuery{Latitude: ptr(cbdLat), Longitude: ptr(cbdLng), RadiusKm: 500})
	require.NoError(t, err)
	assert.Len(t, got, 3, "radius above the maximum is clamped to 200 km")
}

// lyingRepo returns every expert regardless of distance, as a misconfigured
// index might.
type lyingRepo struct {
	profileRepo.ExpertRepository
	hits []models.ExpertWithDistance
}

func (l lyingRepo) Nearby(context.Context, profileRepo.ExpertSearchCriteria) ([]models.ExpertWithDistance, error) {
	return l.hits, nil
}

func TestNearbyRechecksDistance(t *testing.T) {
	hits := []models.ExpertWithDistance{
		{ExpertProfile: models.ExpertProfile{UserID: "far", LocationGeo: models.NewGeoPoint(-0.3031, 36.08)}, DistanceKm: 1},
		{ExpertProfile: models.ExpertProfile{UserID: "mid", LocationGeo: models.NewGeoPoint(-1.3192, 36.9278)}, DistanceKm: 2},
		{ExpertProfile: models.ExpertProfile{UserID: "near", LocationGeo: models.NewGeoPoint(-1.2921, 36.8219)}, DistanceKm: 3},
		{ExpertProfile: models.ExpertProfile{UserID: "nowhere"}},
	}
	s := &DefaultExpertService{Experts: lyingRepo{hits: hits}}
	got, err := s.Nearby(context.Background(), NearbyQuery{Latitude: ptr(cbdLat), Longitude: ptr(cbdLng)})
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "mid"}, lo.Map(got, func(p models.PublicExpert, _ int) string { return p.ID }))
}

func TestMatchFallsBackWhenNoSpecialistNearby(t *testing.T) {
	s, _ := newService(t)
	loc := models.NewGeoPoint(cbdLat, cbdLng)

	got, err := s.Match(context.Background(), MatchRequest{Specialization: "brakes", Location: &loc, Limit: 3})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mid", got[0].UserID)

	got, err = s.Match(context.Background(), MatchRequest{Specialization: "aircon", Location: &loc, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMatchWithoutLocationUsesRegion(t *testing.T) {
	s, _ := newService(t)
	got, err := s.Match(context.Background(), MatchRequest{Region: "Nairobi", Specialization: "engine", Limit: 3})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"near", "far"}, lo.Map(got, func(e models.ExpertWithDistance, _ int) string { return e.UserID }))
}

func TestUpdateMine(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()

	_, err := s.UpdateMine(ctx, "near", ProfileUpdate{Latitude: ptr(1.0)})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)

	p, err := s.UpdateMine(ctx, "near", ProfileUpdate{
		Specializations: []string{" Engine", "engine", "Electrical"},
		Available:       ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"engine", "electrical"}, p.Specializations)
	assert.False(t, p.Available)

	stored, err := repo.Get(ctx, "near")
	require.NoError(t, err)
	assert.False(t, stored.Available)
}

func TestVerify(t *testing.T) {
	s, _ := newService(t)
	p, err := s.Verify(context.Background(), "mid", true)
	require.NoError(t, err)
	assert.True(t, p.Verified)

	_, err = s.Verify(context.Background(), "ghost", true)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
