// Package ownership holds the single administrator handle: the one account
// allowed to assign roles, pre-assign buyers and hand its own privilege on.
package ownership

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traceline-scm/traceline/internal/notify"
	"github.com/traceline-scm/traceline/internal/platform/db"
	"github.com/traceline-scm/traceline/internal/shared"
)

// The handle lives in a one-row table; the constant id pins the row.
const handleRowID = 1

// Repository persists the administrator handle in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	outbox *notify.Outbox
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, outbox *notify.Outbox) *Repository {
	return &Repository{pool: pool, outbox: outbox}
}

// TxRepository exposes transactional handle operations.
type TxRepository interface {
	CurrentForUpdate(ctx context.Context) (shared.Account, error)
	Install(ctx context.Context, account shared.Account) error
	Replace(ctx context.Context, next shared.Account) error
	AppendNotification(ctx context.Context, topic, subject string, payload any) error
}

type txRepo struct {
	tx     pgx.Tx
	outbox *notify.Outbox
}

// WithTx executes fn inside one repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, outbox: r.outbox})
	})
}

// Current returns the administrator account. ErrNotFound means bootstrap
// has never run.
func (r *Repository) Current(ctx context.Context) (shared.Account, error) {
	var holder shared.Account
	err := r.pool.QueryRow(ctx,
		`SELECT holder FROM administrator_handle WHERE id = $1`, handleRowID).Scan(&holder)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("ownership: administrator handle: %w", shared.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("ownership: load handle: %w", err)
	}
	return holder, nil
}

func (r *txRepo) CurrentForUpdate(ctx context.Context) (shared.Account, error) {
	var holder shared.Account
	err := r.tx.QueryRow(ctx,
		`SELECT holder FROM administrator_handle WHERE id = $1 FOR UPDATE`, handleRowID).Scan(&holder)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("ownership: administrator handle: %w", shared.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("ownership: load handle: %w", err)
	}
	return holder, nil
}

func (r *txRepo) Install(ctx context.Context, account shared.Account) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO administrator_handle (id, holder, updated_at) VALUES ($1, $2, NOW())`,
		handleRowID, account)
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("ownership: handle already installed: %w", shared.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("ownership: install handle: %w", err)
	}
	return nil
}

func (r *txRepo) Replace(ctx context.Context, next shared.Account) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE administrator_handle SET holder = $2, updated_at = NOW() WHERE id = $1`,
		handleRowID, next)
	if err != nil {
		return fmt.Errorf("ownership: replace handle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ownership: administrator handle: %w", shared.ErrNotFound)
	}
	return nil
}

func (r *txRepo) AppendNotification(ctx context.Context, topic, subject string, payload any) error {
	return r.outbox.Append(ctx, r.tx, topic, subject, payload)
}
