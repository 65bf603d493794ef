package userRepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autodiag/database"
	"autodiag/models"
	"autodiag/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoUserRepo implements UserRepository using MongoDB.
type MongoUserRepo struct {
	coll *mongo.Collection
}

// NewMongoUserRepo creates a new instance of UserRepository using MongoDB.
func NewMongoUserRepo() UserRepository {
	repo := &MongoUserRepo{coll: database.Collection("users")}
	if err := database.EnsureIndexes(repo.coll, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "phoneNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		utils.GetLogger().Error("user repo: index creation failed", zap.Error(err))
	}
	return repo
}

func (r *MongoUserRepo) Create(ctx context.Context, user *models.User) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return database.MapError(err, "failed to create user")
	}
	return nil
}

func (r *MongoUserRepo) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, database.MapError(err, "failed to fetch user")
	}
	return &user, nil
}

func (r *MongoUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

func (r *MongoUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *MongoUserRepo) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"phoneNumber": phone})
}

func (r *MongoUserRepo) UpsertDevice(ctx context.Context, userID string, device models.Device) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()

	// Drop any stale entry for the device, then push the fresh one.
	if _, err := r.coll.UpdateOne(ctx,
		bson.M{"id": userID},
		bson.M{"$pull": bson.M{"devices": bson.M{"deviceId": device.DeviceID}}},
	); err != nil {
		return database.MapError(err, "failed to update device")
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"id": userID},
		bson.M{
			"$push": bson.M{"devices": device},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return database.MapError(err, "failed to update device")
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, utils.ErrNotFound)
	}
	return nil
}

func (r *MongoUserRepo) RemoveDevice(ctx context.Context, userID, deviceID string) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"id": userID},
		bson.M{"$pull": bson.M{"devices": bson.M{"deviceId": deviceID}}},
	)
	if err != nil {
		return database.MapError(err, "failed to remove device")
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, utils.ErrNotFound)
	}
	return nil
}

func (r *MongoUserRepo) setFields(ctx context.Context, userID string, fields bson.M) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	fields["updatedAt"] = time.Now()
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": userID}, bson.M{"$set": fields})
	if err != nil {
		return database.MapError(err, "failed to update user")
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, utils.ErrNotFound)
	}
	return nil
}

func (r *MongoUserRepo) UpdateSettings(ctx context.Context, userID string, settings models.Settings) error {
	return r.setFields(ctx, userID, bson.M{"settings": settings})
}

func (r *MongoUserRepo) UpdateFCMToken(ctx context.Context, userID, token string) error {
	return r.setFields(ctx, userID, bson.M{"fcmToken": token})
}

func (r *MongoUserRepo) UpdateName(ctx context.Context, userID, name string) error {
	return r.setFields(ctx, userID, bson.M{"name": name})
}

func (r *MongoUserRepo) List(ctx context.Context, role models.Role, page models.PageRequest) ([]models.User, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit)).
		SetProjection(bson.M{"passwordHash": 0, "devices.tokenHash": 0})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, database.MapError(err, "failed to list users")
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}
