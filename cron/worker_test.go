package cron

import (
	"context"
	"errors"
	"testing"

	"autodiag/models"
	"autodiag/services/tasks"
	"autodiag/utils"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	utils.Logger = zap.NewNop()
}

type fakeAnalysis struct {
	err    error
	failed []string
}

func (f *fakeAnalysis) Analyze(context.Context, string) error { return f.err }

func (f *fakeAnalysis) FailAnalysis(_ context.Context, id, _ string) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakePusher struct{ sent []models.PushPayload }

func (f *fakePusher) Send(_ context.Context, p models.PushPayload) error {
	f.sent = append(f.sent, p)
	return nil
}

type fakeExpirer struct{ calls int }

func (f *fakeExpirer) ExpireStale(context.Context) (int, error) {
	f.calls++
	return 2, nil
}

func TestHandleAnalyze(t *testing.T) {
	task, _, err := tasks.NewAnalyzeTask("diag-1")
	require.NoError(t, err)

	ok := &fakeAnalysis{}
	require.NoError(t, (&Handlers{Diagnoses: ok}).HandleAnalyze(context.Background(), task))

	// Outside a worker there is no retry information, so the error is retried.
	flaky := &fakeAnalysis{err: errors.New("model unavailable")}
	err = (&Handlers{Diagnoses: flaky}).HandleAnalyze(context.Background(), task)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, flaky.failed)

	gone := &fakeAnalysis{err: utils.ErrNotFound}
	err = (&Handlers{Diagnoses: gone}).HandleAnalyze(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleAnalyzeBadPayload(t *testing.T) {
	err := (&Handlers{Diagnoses: &fakeAnalysis{}}).HandleAnalyze(context.Background(), asynq.NewTask(tasks.TypeAnalyzeDiagnosis, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlePushAndExpire(t *testing.T) {
	pusher := &fakePusher{}
	expirer := &fakeExpirer{}
	h := &Handlers{Push: pusher, Leads: expirer}

	task, _, err := tasks.NewPushTask(models.PushPayload{UserID: "expert-1", Title: "New lead"})
	require.NoError(t, err)
	require.NoError(t, h.HandlePush(context.Background(), task))
	require.Len(t, pusher.sent, 1)
	assert.Equal(t, "expert-1", pusher.sent[0].UserID)

	require.NoError(t, h.HandleExpireLeads(context.Background(), tasks.NewExpireLeadsTask()))
	assert.Equal(t, 1, expirer.calls)
}
