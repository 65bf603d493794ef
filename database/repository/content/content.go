package contentRepo

import (
	"context"

	"autodiag/models"
)

// ContentRepository defines methods for learning content data access.
type ContentRepository interface {
	UpsertArticle(ctx context.Context, a *models.Article) error
	GetArticle(ctx context.Context, slug string) (*models.Article, error)
	ListArticles(ctx context.Context, category string, page models.PageRequest) ([]models.Article, error)

	UpsertRoadSign(ctx context.Context, s *models.RoadSign) error
	ListRoadSigns(ctx context.Context, category string) ([]models.RoadSign, error)

	UpsertVideo(ctx context.Context, v *models.Video) error
	ListVideos(ctx context.Context, category string, page models.PageRequest) ([]models.Video, error)

	UpsertQuestion(ctx context.Context, q *models.QuizQuestion) error
	// SampleQuestions draws up to n random questions.
	SampleQuestions(ctx context.Context, category string, n int) ([]models.QuizQuestion, error)
	GetQuestions(ctx context.Context, ids []string) ([]models.QuizQuestion, error)

	CreateAttempt(ctx context.Context, a *models.QuizAttempt) error
	ListAttempts(ctx context.Context, userID string, page models.PageRequest) ([]models.QuizAttempt, error)
}
