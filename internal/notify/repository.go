package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads and settles outbox records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Undelivered returns pending records in commit order, oldest first.
func (r *Repository) Undelivered(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, topic, subject, payload, created_at, attempts
		FROM notifications
		WHERE delivered_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: load undelivered: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Subject, &rec.Payload, &rec.CreatedAt, &rec.Attempts); err != nil {
			return nil, fmt.Errorf("notify: scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkDelivered stamps a record as delivered.
func (r *Repository) MarkDelivered(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET delivered_at = NOW(), attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("notify: mark delivered: %w", err)
	}
	return nil
}

// MarkFailed counts a failed delivery attempt without settling the record.
func (r *Repository) MarkFailed(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("notify: mark failed: %w", err)
	}
	return nil
}

// PendingOlderThan counts undelivered records older than age. The sweep uses
// it to re-enqueue dispatches lost between commit and queueing.
func (r *Repository) PendingOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE delivered_at IS NULL AND created_at < NOW() - make_interval(secs => $1)`,
		age.Seconds()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("notify: count pending: %w", err)
	}
	return count, nil
}
