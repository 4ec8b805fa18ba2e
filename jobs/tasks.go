// Package jobs wires traceline's background processing: the asynq worker
// that drains the notification outbox and the cron sweep that re-enqueues
// dispatches lost between commit and queueing.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifyDispatch drains one batch of undelivered notifications.
	TaskNotifyDispatch = "notify:dispatch"
	// TaskNotifySweep re-enqueues dispatch when stale records linger.
	TaskNotifySweep = "notify:sweep"
)

// DispatchPayload names the mutation that triggered the dispatch. Reason is
// informational only; every drain processes the whole pending batch.
type DispatchPayload struct {
	Reason     string    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewDispatchTask constructs an asynq task for one outbox drain.
func NewDispatchTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(DispatchPayload{Reason: reason, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyDispatch, data), nil
}

// NewSweepTask constructs the cron sweep task.
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TaskNotifySweep, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueDispatch enqueues a notification dispatch.
func (c *Client) EnqueueDispatch(ctx context.Context, reason string) error {
	task, err := NewDispatchTask(reason)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
