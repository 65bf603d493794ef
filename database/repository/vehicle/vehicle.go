package vehicleRepo

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

// VehicleRepository defines methods for vehicle data access. Every lookup is
// scoped by owner so foreign vehicles read as missing.
type VehicleRepository interface {
	Create(ctx context.Context, v *models.Vehicle) error
	Get(ctx context.Context, ownerID, id string) (*models.Vehicle, error)
	List(ctx context.Context, ownerID string) ([]models.Vehicle, error)
	Update(ctx context.Context, v *models.Vehicle) error
	Delete(ctx context.Context, ownerID, id string) error
}

type MongoVehicleRepo struct {
	coll *mongo.Collection
}

func NewMongoVehicleRepo() VehicleRepository {
	repo := &MongoVehicleRepo{coll: database.Collection("vehicles")}
	if err := database.EnsureIndexes(repo.coll, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{
			Keys:    bson.D{{Key: "vin", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"vin": bson.M{"$type": "string"}}),
		},
	}); err != nil {
		utils.GetLogger().Error("vehicle repo: index creation failed", zap.Error(err))
	}
	return repo
}

func (r *MongoVehicleRepo) Create(ctx context.Context, v *models.Vehicle) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	if _, err := r.coll.InsertOne(ctx, v); err != nil {
		return database.MapError(err, "failed to create vehicle")
	}
	return nil
}

func (r *MongoVehicleRepo) Get(ctx context.Context, ownerID, id string) (*models.Vehicle, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	var v models.Vehicle
	if err := r.coll.FindOne(ctx, bson.M{"id": id, "ownerId": ownerID}).Decode(&v); err != nil {
		return nil, database.MapError(err, "failed to fetch vehicle")
	}
	return &v, nil
}

func (r *MongoVehicleRepo) List(ctx context.Context, ownerID string) ([]models.Vehicle, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()
	cursor, err := r.coll.Find(ctx, bson.M{"ownerId": ownerID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, database.MapError(err, "failed to list vehicles")
	}
	defer cursor.Close(ctx)
	out := []models.Vehicle{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode vehicles: %w", err)
	}
	return out, nil
}

func (r *MongoVehicleRepo) Update(ctx context.Context, v *models.Vehicle) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	set := bson.M{
		"make":      v.Make,
		"model":     v.Model,
		"year":      v.Year,
		"vin":       v.VIN,
		"plate":     v.Plate,
		"fuelType":  v.FuelType,
		"mileageKm": v.MileageKm,
		"updatedAt": v.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if v.VIN == "" {
		delete(set, "vin")
		update["$unset"] = bson.M{"vin": ""}
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": v.ID, "ownerId": v.OwnerID}, update)
	if err != nil {
		return database.MapError(err, "failed to update vehicle")
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("vehicle %s: %w", v.ID, utils.ErrNotFound)
	}
	return nil
}

func (r *MongoVehicleRepo) Delete(ctx context.Context, ownerID, id string) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	res, err := r.coll.DeleteOne(ctx, bson.M{"id": id, "ownerId": ownerID})
	if err != nil {
		return database.MapError(err, "failed to delete vehicle")
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("vehicle %s: %w", id, utils.ErrNotFound)
	}
	return nil
}
