package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/traceline-scm/traceline/internal/jobs"
	"github.com/traceline-scm/traceline/internal/notify"
)

// Drainer is the dispatcher surface the job needs.
type Drainer interface {
	Drain(ctx context.Context) (notify.DrainResult, error)
}

// PendingCounter reports stale undelivered outbox records.
type PendingCounter interface {
	PendingOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Enqueuer submits dispatch tasks; the sweep uses it to catch up.
type Enqueuer interface {
	EnqueueDispatch(ctx context.Context, reason string) error
}

// DispatchJob drains the notification outbox.
type DispatchJob struct {
	dispatcher Drainer
	logger     *slog.Logger
	metrics    *jobmetrics.Metrics
}

// NewDispatchJob constructs the dispatch handler.
func NewDispatchJob(dispatcher Drainer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DispatchJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchJob{dispatcher: dispatcher, logger: logger, metrics: metrics}
}

// Handle processes TaskNotifyDispatch tasks.
func (j *DispatchJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DispatchPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics.Track("notify_dispatch")
	result, err := j.dispatcher.Drain(ctx)
	if err != nil {
		j.logger.Error("outbox drain failed",
			slog.String("reason", payload.Reason),
			slog.Any("error", err))
		return tracker.End(err)
	}
	if result.Skipped {
		j.logger.Debug("outbox drain skipped, lease held elsewhere")
		return tracker.End(nil)
	}
	j.logger.Info("outbox drained",
		slog.String("reason", payload.Reason),
		slog.Int("delivered", result.Delivered),
		slog.Int("failed", result.Failed))
	return tracker.End(nil)
}

// SweepJob re-enqueues dispatch when undelivered records outlive the age
// threshold, covering enqueues lost after commit.
type SweepJob struct {
	repo    PendingCounter
	queue   Enqueuer
	age     time.Duration
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSweepJob constructs the sweep handler. age <= 0 falls back to 30s.
func NewSweepJob(repo PendingCounter, queue Enqueuer, age time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	if age <= 0 {
		age = 30 * time.Second
	}
	return &SweepJob{repo: repo, queue: queue, age: age, logger: logger, metrics: metrics}
}

// Handle processes TaskNotifySweep tasks.
func (j *SweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("notify_sweep")
	pending, err := j.repo.PendingOlderThan(ctx, j.age)
	if err != nil {
		return tracker.End(err)
	}
	if pending == 0 {
		return tracker.End(nil)
	}
	j.logger.Info("stale notifications found, re-enqueueing dispatch", slog.Int64("pending", pending))
	return tracker.End(j.queue.EnqueueDispatch(ctx, "sweep"))
}
