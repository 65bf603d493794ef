package diagnosisRepo

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

// StatusUpdate describes a diagnosis status change.
type StatusUpdate struct {
	From          []models.DiagnosisStatus
	To            models.DiagnosisStatus
	Result        *models.DiagnosisResult
	Transcript    string
	FailureReason string
}

// DiagnosisRepository defines methods for diagnosis data access. Soft deleted
// diagnoses are invisible to every read.
type DiagnosisRepository interface {
	Create(ctx context.Context, d *models.Diagnosis) error
	GetByID(ctx context.Context, id string) (*models.Diagnosis, error)
	ListByDriver(ctx context.Context, driverID string, page models.PageRequest) ([]models.Diagnosis, error)
	// UpdateStatus applies the update only while the current status is one of
	// update.From. It reports whether the update matched.
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) (bool, error)
	SoftDelete(ctx context.Context, driverID, id string) error
}

type MongoDiagnosisRepo struct {
	coll *mongo.Collection
}

func NewMongoDiagnosisRepo() DiagnosisRepository {
	repo := &MongoDiagnosisRepo{coll: database.Collection("diagnoses")}
	if err := database.EnsureIndexes(repo.coll, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "driverId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "deviceId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}); err != nil {
		utils.GetLogger().Error("diagnosis repo: index creation failed", zap.Error(err))
	}
	return repo
}

var notDeleted = bson.M{"$exists": false}

func (r *MongoDiagnosisRepo) Create(ctx context.Context, d *models.Diagnosis) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		return database.MapError(err, "failed to create diagnosis")
	}
	return nil
}

func (r *MongoDiagnosisRepo) GetByID(ctx context.Context, id string) (*models.Diagnosis, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	var d models.Diagnosis
	if err := r.coll.FindOne(ctx, bson.M{"id": id, "deletedAt": notDeleted}).Decode(&d); err != nil {
		return nil, database.MapError(err, "failed to fetch diagnosis")
	}
	return &d, nil
}

func (r *MongoDiagnosisRepo) ListByDriver(ctx context.Context, driverID string, page models.PageRequest) ([]models.Diagnosis, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()
	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))
	cursor, err := r.coll.Find(ctx, bson.M{"driverId": driverID, "deletedAt": notDeleted}, opts)
	if err != nil {
		return nil, database.MapError(err, "failed to list diagnoses")
	}
	defer cursor.Close(ctx)
	out := []models.Diagnosis{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode diagnoses: %w", err)
	}
	return out, nil
}

func (r *MongoDiagnosisRepo) UpdateStatus(ctx context.Context, id string, update StatusUpdate) (bool, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{"status": update.To, "updatedAt": time.Now()}
	if update.Result != nil {
		set["result"] = update.Result
	}
	if update.Transcript != "" {
		set["transcript"] = update.Transcript
	}
	if update.FailureReason != "" {
		set["failureReason"] = update.FailureReason
	}
	filter := bson.M{"id": id, "deletedAt": notDeleted}
	if len(update.From) > 0 {
		filter["status"] = bson.M{"$in": update.From}
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, database.MapError(err, "failed to update diagnosis status")
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoDiagnosisRepo) SoftDelete(ctx context.Context, driverID, id string) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	now := time.Now()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"id": id, "driverId": driverID, "deletedAt": notDeleted},
		bson.M{"$set": bson.M{"deletedAt": now, "updatedAt": now}},
	)
	if err != nil {
		return database.MapError(err, "failed to delete diagnosis")
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("diagnosis %s: %w", id, utils.ErrNotFound)
	}
	return nil
}
