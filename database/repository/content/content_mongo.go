package contentRepo

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

// MongoContentRepo implements ContentRepository over one collection per content type.
type MongoContentRepo struct {
	articles  *mongo.Collection
	roadSigns *mongo.Collection
	videos    *mongo.Collection
	questions *mongo.Collection
	attempts  *mongo.Collection
}

func NewMongoContentRepo() ContentRepository {
	repo := &MongoContentRepo{
		articles:  database.Collection("articles"),
		roadSigns: database.Collection("road_signs"),
		videos:    database.Collection("videos"),
		questions: database.Collection("quiz_questions"),
		attempts:  database.Collection("quiz_attempts"),
	}
	if err := repo.ensureIndexes(); err != nil {
		utils.GetLogger().Error("content repo: index creation failed", zap.Error(err))
	}
	return repo
}

func (r *MongoContentRepo) ensureIndexes() error {
	unique := func(key string) mongo.IndexModel {
		return mongo.IndexModel{Keys: bson.D{{Key: key, Value: 1}}, Options: options.Index().SetUnique(true)}
	}
	byCategory := mongo.IndexModel{Keys: bson.D{{Key: "category", Value: 1}}}

	sets := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{r.articles, []mongo.IndexModel{unique("slug"), {Keys: bson.D{{Key: "category", Value: 1}, {Key: "publishedAt", Value: -1}}}}},
		{r.roadSigns, []mongo.IndexModel{unique("code"), byCategory}},
		{r.videos, []mongo.IndexModel{unique("id"), byCategory}},
		{r.questions, []mongo.IndexModel{unique("id"), byCategory}},
		{r.attempts, []mongo.IndexModel{unique("id"), {Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}}}},
	}
	for _, s := range sets {
		if err := database.EnsureIndexes(s.coll, s.models); err != nil {
			return err
		}
	}
	return nil
}

func upsert(ctx context.Context, coll *mongo.Collection, filter bson.M, doc interface{}) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	_, err := coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return database.MapError(err, "failed to save "+coll.Name())
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]T, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, database.MapError(err, "failed to query "+coll.Name())
	}
	defer cursor.Close(ctx)
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", coll.Name(), err)
	}
	return out, nil
}

func categoryFilter(category string) bson.M {
	if category == "" {
		return bson.M{}
	}
	return bson.M{"category": category}
}

func paged(page models.PageRequest, sort bson.D) *options.FindOptions {
	page = page.Normalize()
	return options.Find().SetSort(sort).SetSkip(page.Skip()).SetLimit(int64(page.Limit))
}

func (r *MongoContentRepo) UpsertArticle(ctx context.Context, a *models.Article) error {
	return upsert(ctx, r.articles, bson.M{"slug": a.Slug}, a)
}

func (r *MongoContentRepo) GetArticle(ctx context.Context, slug string) (*models.Article, error) {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	var a models.Article
	if err := r.articles.FindOne(ctx, bson.M{"slug": slug}).Decode(&a); err != nil {
		return nil, database.MapError(err, "failed to fetch article")
	}
	return &a, nil
}

func (r *MongoContentRepo) ListArticles(ctx context.Context, category string, page models.PageRequest) ([]models.Article, error) {
	opts := paged(page, bson.D{{Key: "publishedAt", Value: -1}}).SetProjection(bson.M{"body": 0})
	return findAll[models.Article](ctx, r.articles, categoryFilter(category), opts)
}

func (r *MongoContentRepo) UpsertRoadSign(ctx context.Context, s *models.RoadSign) error {
	return upsert(ctx, r.roadSigns, bson.M{"code": s.Code}, s)
}

func (r *MongoContentRepo) ListRoadSigns(ctx context.Context, category string) ([]models.RoadSign, error) {
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "code", Value: 1}})
	return findAll[models.RoadSign](ctx, r.roadSigns, categoryFilter(category), opts)
}

func (r *MongoContentRepo) UpsertVideo(ctx context.Context, v *models.Video) error {
	return upsert(ctx, r.videos, bson.M{"id": v.ID}, v)
}

func (r *MongoContentRepo) ListVideos(ctx context.Context, category string, page models.PageRequest) ([]models.Video, error) {
	return findAll[models.Video](ctx, r.videos, categoryFilter(category), paged(page, bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *MongoContentRepo) UpsertQuestion(ctx context.Context, q *models.QuizQuestion) error {
	return upsert(ctx, r.questions, bson.M{"id": q.ID}, q)
}

func (r *MongoContentRepo) SampleQuestions(ctx context.Context, category string, n int) ([]models.QuizQuestion, error) {
	ctx, cancel := database.NewContext(ctx, 10*time.Second)
	defer cancel()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: categoryFilter(category)}},
		{{Key: "$sample", Value: bson.M{"size": n}}},
	}
	cursor, err := r.questions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, database.MapError(err, "failed to sample questions")
	}
	defer cursor.Close(ctx)
	out := []models.QuizQuestion{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}
	return out, nil
}

func (r *MongoContentRepo) GetQuestions(ctx context.Context, ids []string) ([]models.QuizQuestion, error) {
	return findAll[models.QuizQuestion](ctx, r.questions, bson.M{"id": bson.M{"$in": ids}}, options.Find())
}

func (r *MongoContentRepo) CreateAttempt(ctx context.Context, a *models.QuizAttempt) error {
	ctx, cancel := database.NewContext(ctx, 5*time.Second)
	defer cancel()
	_, err := r.attempts.InsertOne(ctx, a)
	return database.MapError(err, "failed to store quiz attempt")
}

func (r *MongoContentRepo) ListAttempts(ctx context.Context, userID string, page models.PageRequest) ([]models.QuizAttempt, error) {
	return findAll[models.QuizAttempt](ctx, r.attempts, bson.M{"userId": userID}, paged(page, bson.D{{Key: "createdAt", Value: -1}}))
}
