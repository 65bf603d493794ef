package paymentRepo

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

type MongoPackageRepo struct {
	coll *mongo.Collection
}

func NewMongoPackageRepo() PackageRepository {
	repo := &MongoPackageRepo{coll: database.Collection("packages")}
	if err := database.EnsureIndexes(repo.coll, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "audience", Value: 1}, {Key: "active", Value: 1}}},
	}); err != nil {
		utils.GetLogger().Error("package repo: index creation failed", zap.Error(err))
	}
	return repo
}

func (r *MongoPackageRepo) Upsert(ctx context.Context, pkg *models.Package) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	_, err := r.coll.ReplaceOne(ctx, bson.M{"id": pkg.ID}, pkg, options.Replace().SetUpsert(true))
	return database.MapError(err, "failed to save package")
}

func (r *MongoPackageRepo) GetByID(ctx context.Context, id string) (*models.Package, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	var pkg models.Package
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&pkg); err != nil {
		return nil, database.MapError(err, "failed to fetch package")
	}
	return &pkg, nil
}

func (r *MongoPackageRepo) ListActive(ctx context.Context, audience models.PackageAudience) ([]models.Package, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()
	filter := bson.M{"active": true}
	if audience != "" {
		filter["audience"] = audience
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "priceCents", Value: 1}}))
	if err != nil {
		return nil, database.MapError(err, "failed to list packages")
	}
	defer cursor.Close(ctx)
	out := []models.Package{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode packages: %w", err)
	}
	return out, nil
}

type MongoPaymentRepo struct {
	coll *mongo.Collection
}

func NewMongoPaymentRepo() PaymentRepository {
	repo := &MongoPaymentRepo{coll: database.Collection("payments")}
	if err := database.EnsureIndexes(repo.coll, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "providerRef", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "deviceId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		utils.GetLogger().Error("payment repo: index creation failed", zap.Error(err))
	}
	return repo
}

func (r *MongoPaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, p)
	return database.MapError(err, "failed to create payment")
}

func (r *MongoPaymentRepo) GetByProviderRef(ctx context.Context, ref string) (*models.Payment, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	var p models.Payment
	if err := r.coll.FindOne(ctx, bson.M{"providerRef": ref}).Decode(&p); err != nil {
		return nil, database.MapError(err, "failed to fetch payment")
	}
	return &p, nil
}

func (r *MongoPaymentRepo) Settle(ctx context.Context, ref string, status models.PaymentStatus) (bool, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"providerRef": ref, "status": models.PaymentPending},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, database.MapError(err, "failed to settle payment")
	}
	return res.ModifiedCount == 1, nil
}

func (r *MongoPaymentRepo) ListByOwner(ctx context.Context, userID, deviceID string, page models.PageRequest) ([]models.Payment, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()
	filter := bson.M{}
	switch {
	case userID != "":
		filter["userId"] = userID
	case deviceID != "":
		filter["deviceId"] = deviceID
	default:
		return []models.Payment{}, nil
	}
	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, database.MapError(err, "failed to list payments")
	}
	defer cursor.Close(ctx)
	out := []models.Payment{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return out, nil
}

type MongoSubscriptionRepo struct {
	coll *mongo.Collection
}

func NewMongoSubscriptionRepo() SubscriptionRepository {
	repo := &MongoSubscriptionRepo{coll: database.Collection("subscriptions")}
	if err := database.EnsureIndexes(repo.coll, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "paymentId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "endsAt", Value: -1}}},
	}); err != nil {
		utils.GetLogger().Error("subscription repo: index creation failed", zap.Error(err))
	}
	return repo
}

func (r *MongoSubscriptionRepo) Create(ctx context.Context, s *models.Subscription) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, s)
	return database.MapError(err, "failed to create subscription")
}

// ListByUser returns subscriptions newest first; active ones past their end
// date are reported as expired.
func (r *MongoSubscriptionRepo) ListByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "endsAt", Value: -1}}))
	if err != nil {
		return nil, database.MapError(err, "failed to list subscriptions")
	}
	defer cursor.Close(ctx)
	out := []models.Subscription{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode subscriptions: %w", err)
	}
	now := time.Now()
	for i := range out {
		if out[i].Status == models.SubscriptionActive && out[i].EndsAt.Before(now) {
			out[i].Status = models.SubscriptionExpired
		}
	}
	return out, nil
}
