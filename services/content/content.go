package content

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	contentRepo "autodiag/database/repository/content"
	"autodiag/models"
	"autodiag/utils"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	DefaultQuizSize = 10
	MaxQuizSize     = 50
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// SubmitAttempt is a quiz submission; the server does the scoring.
type SubmitAttempt struct {
	Category string              `json:"category"`
	Answers  []models.QuizAnswer `json:"answers" binding:"required,min=1,max=50,dive"`
}

// ContentService serves the learning section: articles, road signs, videos
// and the quiz.
type ContentService interface {
	ListArticles(ctx context.Context, category string, page models.PageRequest) ([]models.Article, error)
	GetArticle(ctx context.Context, slug string) (*models.Article, error)
	ListRoadSigns(ctx context.Context, category string) ([]models.RoadSign, error)
	ListVideos(ctx context.Context, category string, page models.PageRequest) ([]models.Video, error)
	DrawQuiz(ctx context.Context, category string, n int) ([]models.PublicQuestion, error)
	SubmitAttempt(ctx context.Context, userID string, req SubmitAttempt) (*models.QuizAttempt, error)
	ListAttempts(ctx context.Context, userID string, page models.PageRequest) ([]models.QuizAttempt, error)

	UpsertArticle(ctx context.Context, a models.Article) (*models.Article, error)
	UpsertRoadSign(ctx context.Context, s models.RoadSign) (*models.RoadSign, error)
	UpsertVideo(ctx context.Context, v models.Video) (*models.Video, error)
	UpsertQuestion(ctx context.Context, q models.QuizQuestion) (*models.QuizQuestion, error)
}

type DefaultContentService struct {
	Repo contentRepo.ContentRepository
	Now  func() time.Time
}

var _ ContentService = (*DefaultContentService)(nil)

func (s *DefaultContentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

func (s *DefaultContentService) ListArticles(ctx context.Context, category string, page models.PageRequest) ([]models.Article, error) {
	return s.Repo.ListArticles(ctx, normalizeCategory(category), page)
}

func (s *DefaultContentService) GetArticle(ctx context.Context, slug string) (*models.Article, error) {
	return s.Repo.GetArticle(ctx, strings.ToLower(strings.TrimSpace(slug)))
}

func (s *DefaultContentService) ListRoadSigns(ctx context.Context, category string) ([]models.RoadSign, error) {
	return s.Repo.ListRoadSigns(ctx, normalizeCategory(category))
}

func (s *DefaultContentService) ListVideos(ctx context.Context, category string, page models.PageRequest) ([]models.Video, error) {
	return s.Repo.ListVideos(ctx, normalizeCategory(category), page)
}

func (s *DefaultContentService) DrawQuiz(ctx context.Context, category string, n int) ([]models.PublicQuestion, error) {
	if n <= 0 {
		n = DefaultQuizSize
	}
	n = lo.Clamp(n, 1, MaxQuizSize)
	questions, err := s.Repo.SampleQuestions(ctx, normalizeCategory(category), n)
	if err != nil {
		return nil, err
	}
	return lo.Map(questions, func(q models.QuizQuestion, _ int) models.PublicQuestion {
		return models.PublicQuestion{
			ID:       q.ID,
			Category: q.Category,
			Prompt:   q.Prompt,
			ImageURL: q.ImageURL,
			Options:  q.Options,
		}
	}), nil
}

func (s *DefaultContentService) SubmitAttempt(ctx context.Context, userID string, req SubmitAttempt) (*models.QuizAttempt, error) {
	if len(req.Answers) == 0 {
		return nil, utils.FieldError("answers", "at least one answer is required")
	}
	answers := lo.UniqBy(req.Answers, func(a models.QuizAnswer) string { return a.QuestionID })
	if len(answers) != len(req.Answers) {
		return nil, utils.FieldError("answers", "each question may be answered once")
	}

	ids := lo.Map(answers, func(a models.QuizAnswer, _ int) string { return a.QuestionID })
	questions, err := s.Repo.GetQuestions(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(questions, func(q models.QuizQuestion) string { return q.ID })

	attempt := &models.QuizAttempt{
		ID:        uuid.New().String(),
		UserID:    userID,
		Category:  normalizeCategory(req.Category),
		Total:     len(answers),
		CreatedAt: s.now(),
	}
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return nil, utils.FieldError("answers", "unknown question "+a.QuestionID)
		}
		if a.ChosenIndex < 0 || a.ChosenIndex >= len(q.Options) {
			return nil, utils.FieldError("answers", "choice out of range for question "+a.QuestionID)
		}
		a.Correct = a.ChosenIndex == q.CorrectIndex
		if a.Correct {
			attempt.Score++
		}
		attempt.Answers = append(attempt.Answers, a)
	}

	if err := s.Repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("store quiz attempt: %w", err)
	}
	return attempt, nil
}

func (s *DefaultContentService) ListAttempts(ctx context.Context, userID string, page models.PageRequest) ([]models.QuizAttempt, error) {
	return s.Repo.ListAttempts(ctx, userID, page)
}

func validURL(field, raw string, required bool, v *utils.ValidationError) {
	if raw == "" {
		if required {
			v.Add(field, "is required")
		}
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		v.Add(field, "must be an http(s) URL")
	}
}

func (s *DefaultContentService) UpsertArticle(ctx context.Context, a models.Article) (*models.Article, error) {
	a.Slug = strings.ToLower(strings.TrimSpace(a.Slug))
	a.Category = normalizeCategory(a.Category)
	v := utils.NewValidationError()
	if !slugPattern.MatchString(a.Slug) {
		v.Add("slug", "must be lowercase words separated by hyphens")
	}
	if strings.TrimSpace(a.Title) == "" {
		v.Add("title", "is required")
	}
	if strings.TrimSpace(a.Body) == "" {
		v.Add("body", "is required")
	}
	if a.Category == "" {
		v.Add("category", "is required")
	}
	validURL("coverUrl", a.CoverURL, false, v)
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = s.now()
	}
	if err := s.Repo.UpsertArticle(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *DefaultContentService) UpsertRoadSign(ctx context.Context, sign models.RoadSign) (*models.RoadSign, error) {
	sign.Code = strings.ToUpper(strings.TrimSpace(sign.Code))
	sign.Category = normalizeCategory(sign.Category)
	v := utils.NewValidationError()
	if sign.Code == "" {
		v.Add("code", "is required")
	}
	if strings.TrimSpace(sign.Name) == "" {
		v.Add("name", "is required")
	}
	if sign.Category == "" {
		v.Add("category", "is required")
	}
	validURL("imageUrl", sign.ImageURL, true, v)
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	if err := s.Repo.UpsertRoadSign(ctx, &sign); err != nil {
		return nil, err
	}
	return &sign, nil
}

func (s *DefaultContentService) UpsertVideo(ctx context.Context, video models.Video) (*models.Video, error) {
	video.Category = normalizeCategory(video.Category)
	v := utils.NewValidationError()
	if strings.TrimSpace(video.Title) == "" {
		v.Add("title", "is required")
	}
	if video.Category == "" {
		v.Add("category", "is required")
	}
	if video.DurationSeconds < 0 {
		v.Add("durationSeconds", "cannot be negative")
	}
	validURL("url", video.URL, true, v)
	validURL("thumbnailUrl", video.ThumbnailURL, false, v)
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	if video.ID == "" {
		video.ID = uuid.New().String()
	}
	if video.CreatedAt.IsZero() {
		video.CreatedAt = s.now()
	}
	if err := s.Repo.UpsertVideo(ctx, &video); err != nil {
		return nil, err
	}
	return &video, nil
}

func (s *DefaultContentService) UpsertQuestion(ctx context.Context, q models.QuizQuestion) (*models.QuizQuestion, error) {
	q.Category = normalizeCategory(q.Category)
	q.Options = lo.Map(q.Options, func(o string, _ int) string { return strings.TrimSpace(o) })
	v := utils.NewValidationError()
	if strings.TrimSpace(q.Prompt) == "" {
		v.Add("prompt", "is required")
	}
	if q.Category == "" {
		v.Add("category", "is required")
	}
	switch {
	case len(q.Options) < 2:
		v.Add("options", "at least two options are required")
	case len(lo.Compact(q.Options)) != len(q.Options):
		v.Add("options", "options cannot be blank")
	case len(lo.Uniq(q.Options)) != len(q.Options):
		v.Add("options", "options must be distinct")
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		v.Add("correctIndex", "must point at one of the options")
	}
	validURL("imageUrl", q.ImageURL, false, v)
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if err := s.Repo.UpsertQuestion(ctx, &q); err != nil {
		return nil, err
	}
	return &q, nil
}
