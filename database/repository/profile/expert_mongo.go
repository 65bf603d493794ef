package profileRepo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"autodiag/database"
	"autodiag/models"
	"autodiag/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoExpertRepo implements ExpertRepository using MongoDB.
type MongoExpertRepo struct {
	coll *mongo.Collection
}

func NewMongoExpertRepo() ExpertRepository {
	repo := &MongoExpertRepo{coll: database.Collection("expert_profiles")}
	if err := repo.ensureIndexes(); err != nil {
		utils.GetLogger().Error("expert repo: index creation failed", zap.Error(err))
	}
	return repo
}

func (r *MongoExpertRepo) ensureIndexes() error {
	return database.EnsureIndexes(r.coll, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "locationGeo", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "region", Value: 1}, {Key: "specializations", Value: 1}}},
		{Keys: bson.D{{Key: "available", Value: 1}, {Key: "verified", Value: -1}}},
	})
}

func (r *MongoExpertRepo) Create(ctx context.Context, profile *models.ExpertProfile) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	if _, err := r.coll.InsertOne(ctx, profile); err != nil {
		return database.MapError(err, "failed to create expert profile")
	}
	return nil
}

func (r *MongoExpertRepo) Get(ctx context.Context, userID string) (*models.ExpertProfile, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	var p models.ExpertProfile
	if err := r.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&p); err != nil {
		return nil, database.MapError(err, "failed to fetch expert profile")
	}
	return &p, nil
}

func (r *MongoExpertRepo) GetMany(ctx context.Context, userIDs []string) ([]models.ExpertProfile, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()
	cursor, err := r.coll.Find(ctx, bson.M{"userId": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, database.MapError(err, "failed to fetch experts")
	}
	defer cursor.Close(ctx)
	out := []models.ExpertProfile{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode experts: %w", err)
	}
	return out, nil
}

// Update replaces the editable fields of an expert profile. Lead counters are
// only touched through the conditional quota methods.
func (r *MongoExpertRepo) Update(ctx context.Context, profile *models.ExpertProfile) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	set := bson.M{
		"businessName":    profile.BusinessName,
		"specializations": profile.Specializations,
		"region":          profile.Region,
		"address":         profile.Address,
		"bio":             profile.Bio,
		"available":       profile.Available,
		"updatedAt":       time.Now(),
	}
	if profile.LocationGeo.Valid() {
		set["locationGeo"] = profile.LocationGeo
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"userId": profile.UserID}, bson.M{"$set": set})
	if err != nil {
		return database.MapError(err, "failed to update expert profile")
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("expert %s: %w", profile.UserID, utils.ErrNotFound)
	}
	return nil
}

func matchFilter(criteria ExpertSearchCriteria) bson.M {
	filter := bson.M{}
	if criteria.Specialization != "" {
		filter["specializations"] = bson.M{"$regex": "^" + regexp.QuoteMeta(criteria.Specialization) + "$", "$options": "i"}
	}
	if criteria.Region != "" {
		filter["region"] = bson.M{"$regex": "^" + regexp.QuoteMeta(criteria.Region) + "$", "$options": "i"}
	}
	if criteria.AvailableOnly {
		filter["available"] = true
	}
	if criteria.VerifiedOnly {
		filter["verified"] = true
	}
	if len(criteria.ExcludeIDs) > 0 {
		filter["userId"] = bson.M{"$nin": criteria.ExcludeIDs}
	}
	return filter
}

func (r *MongoExpertRepo) List(ctx context.Context, criteria ExpertSearchCriteria) ([]models.ExpertProfile, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()

	limit := criteria.Limit
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "verified", Value: -1}, {Key: "rating", Value: -1}, {Key: "userId", Value: 1}}).
		SetSkip(criteria.Skip).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, matchFilter(criteria), opts)
	if err != nil {
		return nil, database.MapError(err, "expert listing failed")
	}
	defer cursor.Close(ctx)

	out := []models.ExpertProfile{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode experts: %w", err)
	}
	return out, nil
}

func (r *MongoExpertRepo) Nearby(ctx context.Context, criteria ExpertSearchCriteria) ([]models.ExpertWithDistance, error) {
	if criteria.RadiusKm <= 0 {
		return nil, fmt.Errorf("nearby search needs a positive radius")
	}
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()

	limit := criteria.Limit
	if limit <= 0 {
		limit = 20
	}

	// $geoNear must come first; it sorts by distance and applies the match filter.
	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{
				{Key: "type", Value: "Point"},
				{Key: "coordinates", Value: []float64{criteria.Longitude, criteria.Latitude}},
			}},
			{Key: "distanceField", Value: "distanceMeters"},
			{Key: "spherical", Value: true},
			{Key: "maxDistance", Value: criteria.RadiusKm * 1000},
			{Key: "query", Value: matchFilter(criteria)},
		}}},
		{{Key: "$addFields", Value: bson.M{"distanceKm": bson.M{"$divide": bson.A{"$distanceMeters", 1000}}}}},
		{{Key: "$limit", Value: int64(limit)}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, database.MapError(err, "geo search failed")
	}
	defer cursor.Close(ctx)

	out := []models.ExpertWithDistance{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode experts: %w", err)
	}
	return out, nil
}

func (r *MongoExpertRepo) ConsumeFreeLead(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID, "freeLeadsRemaining": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"freeLeadsRemaining": -1, "totalLeadsReceived": 1},
			"$set": bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return false, database.MapError(err, "failed to consume free lead")
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoExpertRepo) RecordChargeableLead(ctx context.Context, userID string) error {
	return r.inc(ctx, userID, bson.M{"chargeableLeads": 1, "totalLeadsReceived": 1})
}

func (r *MongoExpertRepo) CreditFreeLeads(ctx context.Context, userID string, n int) error {
	if n <= 0 {
		return nil
	}
	return r.inc(ctx, userID, bson.M{"freeLeadsRemaining": n})
}

func (r *MongoExpertRepo) inc(ctx context.Context, userID string, inc bson.M) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$inc": inc, "$set": bson.M{"updatedAt": time.Now()}},
	)
	if err != nil {
		return database.MapError(err, "failed to update expert counters")
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("expert %s: %w", userID, utils.ErrNotFound)
	}
	return nil
}

func (r *MongoExpertRepo) SetVerified(ctx context.Context, userID string, verified bool) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$set": bson.M{"verified": verified, "updatedAt": time.Now()}},
	)
	if err != nil {
		return database.MapError(err, "failed to verify expert")
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("expert %s: %w", userID, utils.ErrNotFound)
	}
	return nil
}
