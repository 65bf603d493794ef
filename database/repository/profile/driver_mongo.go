package profileRepo

import (
	"context"
	"fmt"
	"time"

	"autodiag/database"
	"autodiag/models"
	"autodiag/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoDriverRepo implements DriverRepository using MongoDB.
type MongoDriverRepo struct {
	coll *mongo.Collection
}

func NewMongoDriverRepo() DriverRepository {
	repo := &MongoDriverRepo{coll: database.Collection("driver_profiles")}
	if err := database.EnsureIndexes(repo.coll, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		utils.GetLogger().Error("driver repo: index creation failed", zap.Error(err))
	}
	return repo
}

func (r *MongoDriverRepo) Create(ctx context.Context, profile *models.DriverProfile) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	if _, err := r.coll.InsertOne(ctx, profile); err != nil {
		return database.MapError(err, "failed to create driver profile")
	}
	return nil
}

func (r *MongoDriverRepo) Get(ctx context.Context, userID string) (*models.DriverProfile, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	var p models.DriverProfile
	if err := r.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&p); err != nil {
		return nil, database.MapError(err, "failed to fetch driver profile")
	}
	return &p, nil
}

// consume decrements field only where it is still positive, so the counter
// cannot go below zero under concurrent requests.
func (r *MongoDriverRepo) consume(ctx context.Context, userID, field string) (bool, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID, field: bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{field: -1, "totalDiagnosesUsed": 1},
			"$set": bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return false, database.MapError(err, "failed to consume diagnosis quota")
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoDriverRepo) ConsumeFree(ctx context.Context, userID string) (bool, error) {
	return r.consume(ctx, userID, "freeDiagnosesRemaining")
}

func (r *MongoDriverRepo) ConsumePaid(ctx context.Context, userID string) (bool, error) {
	return r.consume(ctx, userID, "paidDiagnosesRemaining")
}

func (r *MongoDriverRepo) CreditPaid(ctx context.Context, userID string, n int) error {
	if n <= 0 {
		return nil
	}
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$inc": bson.M{"paidDiagnosesRemaining": n}, "$set": bson.M{"updatedAt": time.Now()}},
	)
	if err != nil {
		return database.MapError(err, "failed to credit diagnoses")
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("driver %s: %w", userID, utils.ErrNotFound)
	}
	return nil
}

func (r *MongoDriverRepo) UpdateRegion(ctx context.Context, userID, region string) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$set": bson.M{"region": region, "updatedAt": time.Now()}},
	)
	return database.MapError(err, "failed to update driver region")
}
