package leadRepo

import (
	"context"
	"errors"
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

// LeadRepository defines methods for lead data access. Leads are never deleted.
type LeadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	GetByID(ctx context.Context, id string) (*models.Lead, error)
	List(ctx context.Context, filter models.LeadFilter, page models.PageRequest) ([]models.Lead, error)
	// Transition moves the lead to status `to` only when its current status is an
	// allowed source; it returns the updated lead or ErrInvalidTransition.
	Transition(ctx context.Context, id string, to models.LeadStatus, at time.Time) (*models.Lead, error)
	// ListStale returns open leads created before cutoff that may still expire.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Lead, error)
	ExistsForExpert(ctx context.Context, diagnosisID, expertID string) (bool, error)
	// SharedLead returns a lead linking driverID and expertID, if any.
	SharedLead(ctx context.Context, driverID, expertID string) (*models.Lead, error)
}

type MongoLeadRepo struct {
	coll *mongo.Collection
}

func NewMongoLeadRepo() LeadRepository {
	repo := &MongoLeadRepo{coll: database.Collection("leads")}
	if err := database.EnsureIndexes(repo.coll, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "diagnosisId", Value: 1}, {Key: "expertId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expertId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "driverId", Value: 1}, {Key: "expertId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
	}); err != nil {
		utils.GetLogger().Error("lead repo: index creation failed", zap.Error(err))
	}
	return repo
}

func (r *MongoLeadRepo) Create(ctx context.Context, lead *models.Lead) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	if _, err := r.coll.InsertOne(ctx, lead); err != nil {
		return database.MapError(err, "failed to create lead")
	}
	return nil
}

func (r *MongoLeadRepo) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	var lead models.Lead
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&lead); err != nil {
		return nil, database.MapError(err, "failed to fetch lead")
	}
	return &lead, nil
}

func (r *MongoLeadRepo) List(ctx context.Context, f models.LeadFilter, page models.PageRequest) ([]models.Lead, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if f.ExpertID != "" {
		filter["expertId"] = f.ExpertID
	}
	if f.DiagnosisID != "" {
		filter["diagnosisId"] = f.DiagnosisID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "id", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, database.MapError(err, "failed to list leads")
	}
	defer cursor.Close(ctx)
	out := []models.Lead{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode leads: %w", err)
	}
	return out, nil
}

func (r *MongoLeadRepo) Transition(ctx context.Context, id string, to models.LeadStatus, at time.Time) (*models.Lead, error) {
	sources := models.LeadSourceStatuses(to)
	if len(sources) == 0 {
		return nil, fmt.Errorf("lead status %q: %w", to, utils.ErrInvalidTransition)
	}
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{"status": to, "updatedAt": at}
	if field := models.LeadTimestampField(to); field != "" {
		set[field] = at
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var lead models.Lead
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"id": id, "status": bson.M{"$in": sources}},
		bson.M{"$set": set},
		opts,
	).Decode(&lead)
	if err == nil {
		return &lead, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, database.MapError(err, "failed to transition lead")
	}

	// Nothing matched: either the lead is missing or its status forbids the move.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("lead %s to %s: %w", id, to, utils.ErrInvalidTransition)
}

func (r *MongoLeadRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Lead, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()
	if limit <= 0 {
		limit = 500
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.M{
		"status":    bson.M{"$in": models.LeadSourceStatuses(models.LeadExpired)},
		"createdAt": bson.M{"$lt": cutoff},
	}, opts)
	if err != nil {
		return nil, database.MapError(err, "failed to list stale leads")
	}
	defer cursor.Close(ctx)
	out := []models.Lead{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode leads: %w", err)
	}
	return out, nil
}

func (r *MongoLeadRepo) ExistsForExpert(ctx context.Context, diagnosisID, expertID string) (bool, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	n, err := r.coll.CountDocuments(ctx, bson.M{"diagnosisId": diagnosisID, "expertId": expertID}, options.Count().SetLimit(1))
	if err != nil {
		return false, database.MapError(err, "failed to check lead")
	}
	return n > 0, nil
}

func (r *MongoLeadRepo) SharedLead(ctx context.Context, driverID, expertID string) (*models.Lead, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	var lead models.Lead
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := r.coll.FindOne(ctx, bson.M{"driverId": driverID, "expertId": expertID}, opts).Decode(&lead); err != nil {
		return nil, database.MapError(err, "failed to find shared lead")
	}
	return &lead, nil
}
