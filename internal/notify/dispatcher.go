package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/traceline-scm/traceline/internal/observability"
)

// drainLease guards against overlapping drains across worker instances.
const (
	drainLeaseKey = "notify:drain:lease"
	drainLeaseTTL = 30 * time.Second
)

// maxSubjectGroups bounds concurrent per-subject delivery goroutines.
const maxSubjectGroups = 8

// RepositoryPort is the storage contract the dispatcher needs.
type RepositoryPort interface {
	Undelivered(ctx context.Context, limit int) ([]Record, error)
	MarkDelivered(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

// DrainResult summarises one dispatcher pass.
type DrainResult struct {
	Delivered int
	Failed    int
	Skipped   bool
}

// Dispatcher delivers undelivered records. Records sharing a subject go out
// strictly in commit order; distinct subjects fan out concurrently. A failed
// delivery stops its subject for the pass so order survives retries.
type Dispatcher struct {
	logger  *slog.Logger
	repo    RepositoryPort
	sink    Sink
	rdb     *redis.Client
	metrics *observability.Metrics
	batch   int
}

// NewDispatcher constructs a dispatcher. rdb may be nil, which disables the
// cross-instance drain lease. batch <= 0 falls back to 100.
func NewDispatcher(logger *slog.Logger, repo RepositoryPort, sink Sink, rdb *redis.Client, metrics *observability.Metrics, batch int) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if batch <= 0 {
		batch = 100
	}
	return &Dispatcher{
		logger:  logger,
		repo:    repo,
		sink:    sink,
		rdb:     rdb,
		metrics: metrics,
		batch:   batch,
	}
}

// Drain delivers one batch of pending records. Skipped is set when another
// instance holds the drain lease.
func (d *Dispatcher) Drain(ctx context.Context) (DrainResult, error) {
	var result DrainResult

	if d.rdb != nil {
		ok, err := d.rdb.SetNX(ctx, drainLeaseKey, "1", drainLeaseTTL).Result()
		if err != nil {
			return result, fmt.Errorf("notify: acquire drain lease: %w", err)
		}
		if !ok {
			result.Skipped = true
			return result, nil
		}
		defer func() {
			_ = d.rdb.Del(context.WithoutCancel(ctx), drainLeaseKey).Err()
		}()
	}

	records, err := d.repo.Undelivered(ctx, d.batch)
	if err != nil {
		return result, err
	}
	if len(records) == 0 {
		return result, nil
	}

	// Undelivered returns records id-ordered, so each group stays id-ordered.
	groups := make(map[string][]Record)
	var subjects []string
	for _, rec := range records {
		if _, ok := groups[rec.Subject]; !ok {
			subjects = append(subjects, rec.Subject)
		}
		groups[rec.Subject] = append(groups[rec.Subject], rec)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSubjectGroups)
	for _, subject := range subjects {
		recs := groups[subject]
		g.Go(func() error {
			for _, rec := range recs {
				if err := d.sink.Deliver(gctx, rec); err != nil {
					d.logger.Warn("notification delivery failed",
						slog.String("subject", rec.Subject),
						slog.String("topic", rec.Topic),
						slog.Int64("record_id", rec.ID),
						slog.Any("error", err))
					if markErr := d.repo.MarkFailed(gctx, rec.ID); markErr != nil {
						return markErr
					}
					mu.Lock()
					result.Failed++
					mu.Unlock()
					d.metrics.ObserveDelivery("failed")
					// Later records of this subject must wait for the retry.
					return nil
				}
				if err := d.repo.MarkDelivered(gctx, rec.ID); err != nil {
					return err
				}
				mu.Lock()
				result.Delivered++
				mu.Unlock()
				d.metrics.ObserveDelivery("delivered")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}
