package registry

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

// Repository persists role assignments in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	outbox *notify.Outbox
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, outbox *notify.Outbox) *Repository {
	return &Repository{pool: pool, outbox: outbox}
}

// TxRepository exposes the transactional operations the service composes
// into one atomic role mutation.
type TxRepository interface {
	GetForUpdate(ctx context.Context, account shared.Account) (RoleAssignment, error)
	Upsert(ctx context.Context, ra RoleAssignment) error
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

// GetAssignment loads the explicit assignment for an account.
func (r *Repository) GetAssignment(ctx context.Context, account shared.Account) (RoleAssignment, error) {
	return scanAssignment(r.pool.QueryRow(ctx, `
		SELECT account, role, display_name, updated_at
		FROM role_assignments
		WHERE account = $1`, account))
}

// ListAssignments returns explicit assignments with an optional role filter.
func (r *Repository) ListAssignments(ctx context.Context, filter ListFilter) ([]RoleAssignment, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argPos))
		args = append(args, string(*filter.Role))
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM role_assignments %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("registry: count assignments: %w", err)
	}

	page := filter.Page.Normalize()
	listQuery := fmt.Sprintf(`
		SELECT account, role, display_name, updated_at
		FROM role_assignments %s
		ORDER BY account
		LIMIT $%d OFFSET $%d`, where, argPos, argPos+1)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("registry: list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []RoleAssignment
	for rows.Next() {
		var ra RoleAssignment
		if err := rows.Scan(&ra.Account, &ra.Role, &ra.DisplayName, &ra.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("registry: scan assignment: %w", err)
		}
		assignments = append(assignments, ra)
	}
	return assignments, total, rows.Err()
}

func (r *txRepo) GetForUpdate(ctx context.Context, account shared.Account) (RoleAssignment, error) {
	return scanAssignment(r.tx.QueryRow(ctx, `
		SELECT account, role, display_name, updated_at
		FROM role_assignments
		WHERE account = $1
		FOR UPDATE`, account))
}

func (r *txRepo) Upsert(ctx context.Context, ra RoleAssignment) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO role_assignments (account, role, display_name, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account) DO UPDATE
		SET role = EXCLUDED.role, display_name = EXCLUDED.display_name, updated_at = NOW()`,
		ra.Account, string(ra.Role), ra.DisplayName)
	if err != nil {
		return fmt.Errorf("registry: upsert assignment: %w", err)
	}
	return nil
}

func (r *txRepo) AppendNotification(ctx context.Context, topic, subject string, payload any) error {
	return r.outbox.Append(ctx, r.tx, topic, subject, payload)
}

func scanAssignment(row pgx.Row) (RoleAssignment, error) {
	var ra RoleAssignment
	err := row.Scan(&ra.Account, &ra.Role, &ra.DisplayName, &ra.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoleAssignment{}, fmt.Errorf("registry: assignment: %w", shared.ErrNotFound)
	}
	if err != nil {
		return RoleAssignment{}, fmt.Errorf("registry: load assignment: %w", err)
	}
	return ra, nil
}
