package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"autodiag/models"

	"github.com/hibiken/asynq"
)

const (
	TypeAnalyzeDiagnosis = "diagnosis:analyze"
	TypeSendPush         = "push:send"
	TypeExpireLeads      = "lead:expire"
)

// AnalyzePayload identifies the diagnosis to run through the analyzer.
type AnalyzePayload struct {
	DiagnosisID string `json:"diagnosisId"`
}

func NewAnalyzeTask(diagnosisID string) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(AnalyzePayload{DiagnosisID: diagnosisID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeAnalyzeDiagnosis, b)
	opts := []asynq.Option{asynq.MaxRetry(3), asynq.Timeout(2 * time.Minute)}
	return task, opts, nil
}

func NewPushTask(payload models.PushPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendPush, b)
	opts := []asynq.Option{asynq.MaxRetry(3)}
	return task, opts, nil
}

// NewExpireLeadsTask is registered with the scheduler; it carries no payload.
func NewExpireLeadsTask() *asynq.Task {
	return asynq.NewTask(TypeExpireLeads, nil)
}

func ParseAnalyzePayload(t *asynq.Task) (AnalyzePayload, error) {
	var p AnalyzePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("analyze payload: %w", err)
	}
	if p.DiagnosisID == "" {
		return p, fmt.Errorf("analyze payload: missing diagnosisId")
	}
	return p, nil
}

func ParsePushPayload(t *asynq.Task) (models.PushPayload, error) {
	var p models.PushPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("push payload: %w", err)
	}
	return p, nil
}

// Enqueuer is the subset of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher turns domain events into queued background tasks.
type Dispatcher interface {
	AnalyzeDiagnosis(ctx context.Context, diagnosisID string) error
	SendPush(ctx context.Context, payload models.PushPayload) error
}

type AsynqDispatcher struct {
	Client Enqueuer
}

func NewAsynqDispatcher(client Enqueuer) *AsynqDispatcher {
	return &AsynqDispatcher{Client: client}
}

func (d *AsynqDispatcher) AnalyzeDiagnosis(ctx context.Context, diagnosisID string) error {
	task, opts, err := NewAnalyzeTask(diagnosisID)
	if err != nil {
		return err
	}
	if _, err := d.Client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeAnalyzeDiagnosis, err)
	}
	return nil
}

func (d *AsynqDispatcher) SendPush(ctx context.Context, payload models.PushPayload) error {
	task, opts, err := NewPushTask(payload)
	if err != nil {
		return err
	}
	if _, err := d.Client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeSendPush, err)
	}
	return nil
}
