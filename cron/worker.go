package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autodiag/models"
	"autodiag/services/tasks"
	"autodiag/utils"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// LeadExpirySchedule is the schedule of the stale lead sweep.
const LeadExpirySchedule = "@every 15m"

type Analysis interface {
	Analyze(ctx context.Context, id string) error
	FailAnalysis(ctx context.Context, id, reason string) error
}

type Pusher interface {
	Send(ctx context.Context, payload models.PushPayload) error
}

type LeadExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Handlers process the background task types.
type Handlers struct {
	Diagnoses Analysis
	Push      Pusher
	Leads     LeadExpirer
}

func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeAnalyzeDiagnosis, h.HandleAnalyze)
	mux.HandleFunc(tasks.TypeSendPush, h.HandlePush)
	mux.HandleFunc(tasks.TypeExpireLeads, h.HandleExpireLeads)
}

// finalAttempt reports whether the running task has no retries left.
func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return ok && retried >= maxRetry
}

func (h *Handlers) HandleAnalyze(ctx context.Context, t *asynq.Task) error {
	logger := utils.GetLogger()
	p, err := tasks.ParseAnalyzePayload(t)
	if err != nil {
		logger.Error("dropping analyze task", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	err = h.Diagnoses.Analyze(ctx, p.DiagnosisID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, utils.ErrNotFound):
		logger.Warn("diagnosis gone before analysis", zap.String("diagnosisId", p.DiagnosisID))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case finalAttempt(ctx):
		logger.Error("analysis failed after retries", zap.String("diagnosisId", p.DiagnosisID), zap.Error(err))
		if ferr := h.Diagnoses.FailAnalysis(ctx, p.DiagnosisID, err.Error()); ferr != nil {
			return ferr
		}
		return nil
	}
	logger.Warn("analysis attempt failed", zap.String("diagnosisId", p.DiagnosisID), zap.Error(err))
	return err
}

func (h *Handlers) HandlePush(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.ParsePushPayload(t)
	if err != nil {
		utils.GetLogger().Error("dropping push task", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := h.Push.Send(ctx, p); err != nil {
		utils.GetLogger().Warn("push failed", zap.String("userId", p.UserID), zap.Error(err))
		return err
	}
	return nil
}

func (h *Handlers) HandleExpireLeads(ctx context.Context, _ *asynq.Task) error {
	n, err := h.Leads.ExpireStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		utils.GetLogger().Info("expired stale leads", zap.Int("count", n))
	}
	return nil
}

// Worker runs the task server, the periodic scheduler and a Redis health check.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	redis     asynq.RedisClientOpt
	stop      chan struct{}
}

func NewWorker(opt asynq.RedisClientOpt, h *Handlers) (*Worker, error) {
	logger := utils.GetLogger()
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"default": 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			logger.Warn("task failed", zap.String("type", task.Type()), zap.Int("retried", retried), zap.Error(err))
		}),
	})

	mux := asynq.NewServeMux()
	h.Register(mux)

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := scheduler.Register(LeadExpirySchedule, tasks.NewExpireLeadsTask()); err != nil {
		return nil, fmt.Errorf("register lead expiry: %w", err)
	}

	return &Worker{server: srv, scheduler: scheduler, mux: mux, redis: opt, stop: make(chan struct{})}, nil
}

// Start runs the worker in the background, retrying startup with backoff.
func (w *Worker) Start() {
	logger := utils.GetLogger()
	go w.monitorRedis()

	go func() {
		logger.Info("starting task worker")
		const maxAttempts = 5
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			err := w.server.Start(w.mux)
			if err == nil {
				return
			}
			logger.Error("task worker failed to start", zap.Int("attempt", attempt), zap.Error(err))
			if attempt == maxAttempts {
				logger.Fatal("task worker: giving up")
			}
			time.Sleep(time.Duration(attempt*2) * time.Second)
		}
	}()

	go func() {
		if err := w.scheduler.Run(); err != nil {
			logger.Error("scheduler stopped", zap.Error(err))
		}
	}()
}

func (w *Worker) Shutdown() {
	close(w.stop)
	w.scheduler.Shutdown()
	w.server.Shutdown()
}

// monitorRedis pings the queue database periodically to surface outages.
func (w *Worker) monitorRedis() {
	client := redis.NewClient(&redis.Options{
		Addr:     w.redis.Addr,
		Password: w.redis.Password,
		DB:       w.redis.DB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := client.Ping(ctx).Err(); err != nil {
				utils.GetLogger().Warn("queue redis unreachable", zap.Error(err))
			}
			cancel()
		}
	}
}
