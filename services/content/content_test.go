package content

import (
	"context"
	"fmt"
	"testing"

	"autodiag/database/repository/memory"
	"autodiag/models"
	"autodiag/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededService(t *testing.T) *DefaultContentService {
	t.Helper()
	svc := &DefaultContentService{Repo: memory.NewContentRepo()}
	for i := 0; i < 15; i++ {
		category := "signs"
		if i%3 == 0 {
			category = "rules"
		}
		_, err := svc.UpsertQuestion(context.Background(), models.QuizQuestion{
			ID:           fmt.Sprintf("q%d", i),
			Category:     category,
			Prompt:       fmt.Sprintf("Question %d?", i),
			Options:      []string{"a", "b", "c"},
			CorrectIndex: i % 3,
		})
		require.NoError(t, err)
	}
	return svc
}

func TestDrawQuizHidesAnswers(t *testing.T) {
	svc := seededService(t)

	qs, err := svc.DrawQuiz(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, qs, DefaultQuizSize)

	ids := map[string]bool{}
	for _, q := range qs {
		assert.False(t, ids[q.ID], "duplicate question %s", q.ID)
		ids[q.ID] = true
		assert.Len(t, q.Options, 3)
	}

	rules, err := svc.DrawQuiz(context.Background(), "Rules", 10)
	require.NoError(t, err)
	assert.Len(t, rules, 5)
	for _, q := range rules {
		assert.Equal(t, "rules", q.Category)
	}
}

func TestSubmitAttemptScoresServerSide(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()

	attempt, err := svc.SubmitAttempt(ctx, "driver-1", SubmitAttempt{Answers: []models.QuizAnswer{
		{QuestionID: "q0", ChosenIndex: 0},
		{QuestionID: "q1", ChosenIndex: 1},
		{QuestionID: "q2", ChosenIndex: 0, Correct: true},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, attempt.Score)
	assert.Equal(t, 3, attempt.Total)
	assert.False(t, attempt.Answers[2].Correct)

	attempts, err := svc.ListAttempts(ctx, "driver-1", models.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	others, err := svc.ListAttempts(ctx, "driver-2", models.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestSubmitAttemptRejectsBadAnswers(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		answers []models.QuizAnswer
	}{
		{"empty", nil},
		{"duplicate question", []models.QuizAnswer{{QuestionID: "q0"}, {QuestionID: "q0", ChosenIndex: 1}}},
		{"unknown question", []models.QuizAnswer{{QuestionID: "nope"}}},
		{"choice out of range", []models.QuizAnswer{{QuestionID: "q0", ChosenIndex: 7}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitAttempt(ctx, "driver-1", SubmitAttempt{Answers: tt.answers})
			var verr *utils.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestUpsertQuestionValidation(t *testing.T) {
	svc := &DefaultContentService{Repo: memory.NewContentRepo()}
	_, err := svc.UpsertQuestion(context.Background(), models.QuizQuestion{
		Prompt: "Stop sign shape?", Category: "signs", Options: []string{"octagon", "octagon"}, CorrectIndex: 3,
	})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "options")
	assert.Contains(t, verr.Fields, "correctIndex")
}

func TestArticles(t *testing.T) {
	svc := &DefaultContentService{Repo: memory.NewContentRepo()}
	ctx := context.Background()

	_, err := svc.UpsertArticle(ctx, models.Article{Slug: "Not A Slug", Title: "x", Body: "y", Category: "care"})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.UpsertArticle(ctx, models.Article{Slug: "check-tyre-pressure", Title: "Tyres", Body: "Weekly.", Category: "Care"})
	require.NoError(t, err)

	list, err := svc.ListArticles(ctx, "care", models.PageRequest{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Body)

	a, err := svc.GetArticle(ctx, "check-tyre-pressure")
	require.NoError(t, err)
	assert.Equal(t, "Weekly.", a.Body)

	_, err = svc.GetArticle(ctx, "missing")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
