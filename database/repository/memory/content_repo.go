package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"autodiag/models"
	"autodiag/utils"

	"github.com/samber/lo"
)

type ContentRepo struct {
	mu        sync.RWMutex
	articles  map[string]models.Article
	roadSigns map[string]models.RoadSign
	videos    map[string]models.Video
	questions map[string]models.QuizQuestion
	attempts  []models.QuizAttempt
}

func NewContentRepo() *ContentRepo {
	return &ContentRepo{
		articles:  make(map[string]models.Article),
		roadSigns: make(map[string]models.RoadSign),
		videos:    make(map[string]models.Video),
		questions: make(map[string]models.QuizQuestion),
	}
}

func inCategory(category, c string) bool {
	return category == "" || category == c
}

func (r *ContentRepo) UpsertArticle(_ context.Context, a *models.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.articles[a.Slug] = *a
	return nil
}

func (r *ContentRepo) GetArticle(_ context.Context, slug string) (*models.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.articles[slug]
	if !ok {
		return nil, fmt.Errorf("article %s: %w", slug, utils.ErrNotFound)
	}
	return &a, nil
}

func (r *ContentRepo) ListArticles(_ context.Context, category string, page models.PageRequest) ([]models.Article, error) {
	r.mu.RLock()
	var out []models.Article
	for _, a := range r.articles {
		if inCategory(category, a.Category) {
			a.Body = ""
			out = append(out, a)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return paginate(out, page), nil
}

func (r *ContentRepo) UpsertRoadSign(_ context.Context, s *models.RoadSign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roadSigns[s.Code] = *s
	return nil
}

func (r *ContentRepo) ListRoadSigns(_ context.Context, category string) ([]models.RoadSign, error) {
	r.mu.RLock()
	out := []models.RoadSign{}
	for _, s := range r.roadSigns {
		if inCategory(category, s.Category) {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (r *ContentRepo) UpsertVideo(_ context.Context, v *models.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[v.ID] = *v
	return nil
}

func (r *ContentRepo) ListVideos(_ context.Context, category string, page models.PageRequest) ([]models.Video, error) {
	r.mu.RLock()
	var out []models.Video
	for _, v := range r.videos {
		if inCategory(category, v.Category) {
			out = append(out, v)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), nil
}

func (r *ContentRepo) UpsertQuestion(_ context.Context, q *models.QuizQuestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions[q.ID] = *q
	return nil
}

func (r *ContentRepo) SampleQuestions(_ context.Context, category string, n int) ([]models.QuizQuestion, error) {
	r.mu.RLock()
	var pool []models.QuizQuestion
	for _, q := range r.questions {
		if inCategory(category, q.Category) {
			pool = append(pool, q)
		}
	}
	r.mu.RUnlock()
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool, nil
}

func (r *ContentRepo) GetQuestions(_ context.Context, ids []string) ([]models.QuizQuestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.QuizQuestion{}
	for _, id := range lo.Uniq(ids) {
		if q, ok := r.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *ContentRepo) CreateAttempt(_ context.Context, a *models.QuizAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, *a)
	return nil
}

func (r *ContentRepo) ListAttempts(_ context.Context, userID string, page models.PageRequest) ([]models.QuizAttempt, error) {
	r.mu.RLock()
	out := lo.Filter(r.attempts, func(a models.QuizAttempt, _ int) bool { return a.UserID == userID })
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), nil
}
