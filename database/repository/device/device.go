package deviceRepo

import (
	"context"
	"errors"
	"time"

	"autodiag/database"
	"autodiag/models"
	"autodiag/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// DeviceRepository defines methods for guest device fingerprint data access.
type DeviceRepository interface {
	// Touch upserts the fingerprint for info.DeviceID and refreshes lastSeenAt.
	Touch(ctx context.Context, info models.DeviceInfo) (*models.DeviceFingerprint, error)
	Get(ctx context.Context, deviceID string) (*models.DeviceFingerprint, error)
	// ConsumeDiagnosis increments diagnosesUsed only while it is below
	// freeQuota + paidCredits. Returns the quota source used, or false when exhausted.
	ConsumeDiagnosis(ctx context.Context, deviceID string, freeQuota int) (models.QuotaSource, bool, error)
	// AddPaidCredits creates the fingerprint when the device has never been seen.
	AddPaidCredits(ctx context.Context, deviceID string, n int) error
}

type MongoDeviceRepo struct {
	coll *mongo.Collection
}

func NewMongoDeviceRepo() DeviceRepository {
	repo := &MongoDeviceRepo{coll: database.Collection("device_fingerprints")}
	if err := database.EnsureIndexes(repo.coll, []mongo.IndexModel{
		{Keys: bson.D{{Key: "deviceId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "lastSeenAt", Value: -1}}},
	}); err != nil {
		utils.GetLogger().Error("device repo: index creation failed", zap.Error(err))
	}
	return repo
}

func (r *MongoDeviceRepo) Touch(ctx context.Context, info models.DeviceInfo) (*models.DeviceFingerprint, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	now := time.Now()
	set := bson.M{"lastSeenAt": now}
	if info.IP != "" {
		set["ip"] = info.IP
	}
	if info.Platform != "" {
		set["platform"] = info.Platform
	}
	if info.Model != "" {
		set["model"] = info.Model
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"diagnosesUsed": 0,
			"paidCredits":   0,
			"firstSeenAt":   now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var fp models.DeviceFingerprint
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"deviceId": info.DeviceID}, update, opts).Decode(&fp); err != nil {
		return nil, database.MapError(err, "failed to record device")
	}
	return &fp, nil
}

func (r *MongoDeviceRepo) Get(ctx context.Context, deviceID string) (*models.DeviceFingerprint, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	var fp models.DeviceFingerprint
	if err := r.coll.FindOne(ctx, bson.M{"deviceId": deviceID}).Decode(&fp); err != nil {
		return nil, database.MapError(err, "failed to fetch device")
	}
	return &fp, nil
}

func (r *MongoDeviceRepo) ConsumeDiagnosis(ctx context.Context, deviceID string, freeQuota int) (models.QuotaSource, bool, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"deviceId": deviceID,
		"$expr": bson.M{"$lt": bson.A{
			"$diagnosesUsed",
			bson.M{"$add": bson.A{freeQuota, "$paidCredits"}},
		}},
	}
	update := bson.M{
		"$inc": bson.M{"diagnosesUsed": 1},
		"$set": bson.M{"lastSeenAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var fp models.DeviceFingerprint
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&fp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, database.MapError(err, "failed to consume guest quota")
	}
	if fp.DiagnosesUsed <= freeQuota {
		return models.QuotaGuestFree, true, nil
	}
	return models.QuotaGuestPaid, true, nil
}

func (r *MongoDeviceRepo) AddPaidCredits(ctx context.Context, deviceID string, n int) error {
	if n <= 0 {
		return nil
	}
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	now := time.Now()
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"deviceId": deviceID},
		bson.M{
			"$inc":         bson.M{"paidCredits": n},
			"$set":         bson.M{"lastSeenAt": now},
			"$setOnInsert": bson.M{"diagnosesUsed": 0, "firstSeenAt": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return database.MapError(err, "failed to credit device")
	}
	return nil
}
