package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traceline-scm/traceline/internal/notify"
	"github.com/traceline-scm/traceline/internal/platform/db"
	"github.com/traceline-scm/traceline/internal/shared"
)

// Repository persists the product ledger in PostgreSQL. The buyer column
// stores the empty string while the slot is unclaimed.
type Repository struct {
	pool   *pgxpool.Pool
	outbox *notify.Outbox
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, outbox *notify.Outbox) *Repository {
	return &Repository{pool: pool, outbox: outbox}
}

type txRepo struct {
	tx     pgx.Tx
	outbox *notify.Outbox
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const productColumns = "id, name, producer, buyer, current_status, created_at, updated_at"

// WithTx executes fn inside one repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, outbox: r.outbox})
	})
}

// Get loads a product without history.
func (r *Repository) Get(ctx context.Context, id uint64) (Product, error) {
	return getProduct(ctx, r.pool, id, false)
}

// History returns the ordered status events of a product.
func (r *Repository) History(ctx context.Context, id uint64) ([]StatusEvent, error) {
	return loadHistory(ctx, r.pool, id)
}

// List retrieves products with filters, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("current_status = $%d", argPos))
		args = append(args, int(*filter.Status))
		argPos++
	}
	if !filter.Producer.IsZero() {
		conditions = append(conditions, fmt.Sprintf("producer = $%d", argPos))
		args = append(args, filter.Producer)
		argPos++
	}
	if !filter.Buyer.IsZero() {
		conditions = append(conditions, fmt.Sprintf("buyer = $%d", argPos))
		args = append(args, filter.Buyer)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("product: count: %w", err)
	}

	page := filter.Page.Normalize()
	listQuery := fmt.Sprintf(`
		SELECT %s FROM products %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, productColumns, where, argPos, argPos+1)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("product: list: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *txRepo) Insert(ctx context.Context, p Product, ev StatusEvent) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO products (id, name, producer, buyer, current_status, created_at, updated_at)
		VALUES ($1, $2, $3, '', $4, $5, $5)`,
		p.ID, p.Name, p.Producer, int(p.CurrentStatus), p.CreatedAt)
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("product %d already registered: %w", p.ID, shared.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("product: insert: %w", err)
	}
	_, err = r.tx.Exec(ctx, `
		INSERT INTO status_events (product_id, seq, status, remark, updater, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, ev.Seq, int(ev.Status), ev.Remark, ev.Updater, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("product: insert creation event: %w", err)
	}
	return nil
}

func (r *txRepo) Get(ctx context.Context, id uint64) (Product, error) {
	return getProduct(ctx, r.tx, id, false)
}

func (r *txRepo) GetForUpdate(ctx context.Context, id uint64) (Product, error) {
	return getProduct(ctx, r.tx, id, true)
}

func (r *txRepo) History(ctx context.Context, id uint64) ([]StatusEvent, error) {
	return loadHistory(ctx, r.tx, id)
}

// AppendEvent inserts the next history entry, deriving seq from the current
// maximum. The caller holds the product row lock, so the derivation is
// race-free and the (product_id, seq) key stays gap-free.
func (r *txRepo) AppendEvent(ctx context.Context, id uint64, ev StatusEvent) (int, error) {
	var seq int
	err := r.tx.QueryRow(ctx, `
		INSERT INTO status_events (product_id, seq, status, remark, updater, occurred_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5
		FROM status_events WHERE product_id = $1
		RETURNING seq`,
		id, int(ev.Status), ev.Remark, ev.Updater, ev.OccurredAt).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("product: append event: %w", err)
	}
	return seq, nil
}

func (r *txRepo) SetStatus(ctx context.Context, id uint64, status Status) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE products SET current_status = $2, updated_at = NOW() WHERE id = $1`,
		id, int(status))
	if err != nil {
		return fmt.Errorf("product: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *txRepo) SetBuyer(ctx context.Context, id uint64, buyer shared.Account) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE products SET buyer = $2, updated_at = NOW() WHERE id = $1`,
		id, buyer)
	if err != nil {
		return fmt.Errorf("product: set buyer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *txRepo) AppendNotification(ctx context.Context, topic, subject string, payload any) error {
	return r.outbox.Append(ctx, r.tx, topic, subject, payload)
}

func getProduct(ctx context.Context, q rowQuerier, id uint64, forUpdate bool) (Product, error) {
	query := fmt.Sprintf("SELECT %s FROM products WHERE id = $1", productColumns)
	if forUpdate {
		query += " FOR UPDATE"
	}
	p, err := scanProduct(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Product{}, fmt.Errorf("product: load: %w", err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var status int
	err := row.Scan(&p.ID, &p.Name, &p.Producer, &p.Buyer, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	p.CurrentStatus = Status(status)
	return p, nil
}

func loadHistory(ctx context.Context, q rowQuerier, id uint64) ([]StatusEvent, error) {
	rows, err := q.Query(ctx, `
		SELECT seq, status, remark, updater, occurred_at
		FROM status_events
		WHERE product_id = $1
		ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("product: load history: %w", err)
	}
	defer rows.Close()

	var events []StatusEvent
	for rows.Next() {
		var ev StatusEvent
		var status int
		if err := rows.Scan(&ev.Seq, &status, &ev.Remark, &ev.Updater, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("product: scan event: %w", err)
		}
		ev.Status = Status(status)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Every product carries at least its creation event.
	if len(events) == 0 {
		return nil, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return events, nil
}
