package messagingRepo

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

// ConversationRepository defines methods for conversation data access.
type ConversationRepository interface {
	// FindOrCreate returns the conversation for (driver, expert, lead), creating
	// conv when none exists yet.
	FindOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID string, page models.PageRequest) ([]models.Conversation, error)
	Touch(ctx context.Context, id, preview string, at time.Time) error
}

// MessageRepository defines methods for message data access.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	// List returns messages newest first, older than before when it is set.
	List(ctx context.Context, conversationID string, before time.Time, limit int) ([]models.Message, error)
	// MarkRead stamps readAt on unread messages not sent by readerID.
	MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error)
}

type MongoConversationRepo struct {
	coll *mongo.Collection
}

func NewMongoConversationRepo() ConversationRepository {
	repo := &MongoConversationRepo{coll: database.Collection("conversations")}
	if err := database.EnsureIndexes(repo.coll, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys:    bson.D{{Key: "driverId", Value: 1}, {Key: "expertId", Value: 1}, {Key: "leadId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "expertId", Value: 1}, {Key: "lastMessageAt", Value: -1}}},
	}); err != nil {
		utils.GetLogger().Error("conversation repo: index creation failed", zap.Error(err))
	}
	return repo
}

func (r *MongoConversationRepo) FindOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"driverId": conv.DriverID, "expertId": conv.ExpertID, "leadId": conv.LeadID}
	update := bson.M{"$setOnInsert": bson.M{
		"id":                 conv.ID,
		"lastMessageAt":      conv.LastMessageAt,
		"lastMessagePreview": "",
		"createdAt":          conv.CreatedAt,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out models.Conversation
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out); err != nil {
		return nil, database.MapError(err, "failed to open conversation")
	}
	return &out, nil
}

func (r *MongoConversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	var conv models.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&conv); err != nil {
		return nil, database.MapError(err, "failed to fetch conversation")
	}
	return &conv, nil
}

func (r *MongoConversationRepo) ListByUser(ctx context.Context, userID string, page models.PageRequest) ([]models.Conversation, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()
	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "lastMessageAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))
	cursor, err := r.coll.Find(ctx, bson.M{"$or": bson.A{
		bson.M{"driverId": userID},
		bson.M{"expertId": userID},
	}}, opts)
	if err != nil {
		return nil, database.MapError(err, "failed to list conversations")
	}
	defer cursor.Close(ctx)
	out := []models.Conversation{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return out, nil
}

func (r *MongoConversationRepo) Touch(ctx context.Context, id, preview string, at time.Time) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{
		"lastMessageAt":      at,
		"lastMessagePreview": preview,
	}})
	return database.MapError(err, "failed to update conversation")
}

type MongoMessageRepo struct {
	coll *mongo.Collection
}

func NewMongoMessageRepo() MessageRepository {
	repo := &MongoMessageRepo{coll: database.Collection("messages")}
	if err := database.EnsureIndexes(repo.coll, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		utils.GetLogger().Error("message repo: index creation failed", zap.Error(err))
	}
	return repo
}

func (r *MongoMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, msg)
	return database.MapError(err, "failed to store message")
}

func (r *MongoMessageRepo) List(ctx context.Context, conversationID string, before time.Time, limit int) ([]models.Message, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	filter := bson.M{"conversationId": conversationID}
	if !before.IsZero() {
		filter["createdAt"] = bson.M{"$lt": before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, database.MapError(err, "failed to list messages")
	}
	defer cursor.Close(ctx)
	out := []models.Message{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return out, nil
}

func (r *MongoMessageRepo) MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	res, err := r.coll.UpdateMany(ctx,
		bson.M{
			"conversationId": conversationID,
			"senderId":       bson.M{"$ne": readerID},
			"readAt":         bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{"readAt": at}},
	)
	if err != nil {
		return 0, database.MapError(err, "failed to mark messages read")
	}
	return res.ModifiedCount, nil
}
