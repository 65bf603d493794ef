package tasks

import (
	"context"
	"errors"
	"testing"

	"autodiag/models"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestDispatcherQueuesTypedTasks(t *testing.T) {
	rec := &recordingEnqueuer{}
	d := NewAsynqDispatcher(rec)

	require.NoError(t, d.AnalyzeDiagnosis(context.Background(), "diag-1"))
	require.NoError(t, d.SendPush(context.Background(), models.PushPayload{UserID: "u1", Title: "New lead"}))
	require.Len(t, rec.tasks, 2)

	assert.Equal(t, TypeAnalyzeDiagnosis, rec.tasks[0].Type())
	p, err := ParseAnalyzePayload(rec.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, "diag-1", p.DiagnosisID)

	assert.Equal(t, TypeSendPush, rec.tasks[1].Type())
	push, err := ParsePushPayload(rec.tasks[1])
	require.NoError(t, err)
	assert.Equal(t, "u1", push.UserID)
}

func TestDispatcherWrapsEnqueueErrors(t *testing.T) {
	boom := errors.New("redis down")
	d := NewAsynqDispatcher(&recordingEnqueuer{err: boom})
	err := d.AnalyzeDiagnosis(context.Background(), "diag-1")
	assert.ErrorIs(t, err, boom)
}

func TestParseAnalyzeRejectsEmptyID(t *testing.T) {
	_, err := ParseAnalyzePayload(asynq.NewTask(TypeAnalyzeDiagnosis, []byte(`{}`)))
	assert.Error(t, err)
}
