package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traceline-scm/traceline/internal/shared"
)

// Repository defines persistence operations for credentials.
type Repository interface {
	Insert(ctx context.Context, account shared.Account, tokenHash string) error
	FindByAccount(ctx context.Context, account shared.Account) (Credential, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert stores a credential. A second enrollment for the same account
// fails with ErrAlreadyExists.
func (r *PGRepository) Insert(ctx context.Context, account shared.Account, tokenHash string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO credentials (account, token_hash, created_at) VALUES ($1, $2, NOW())`,
		account, tokenHash)
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("auth: account %s already enrolled: %w", account, shared.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("auth: insert credential: %w", err)
	}
	return nil
}

// FindByAccount fetches a credential by account.
func (r *PGRepository) FindByAccount(ctx context.Context, account shared.Account) (Credential, error) {
	var cred Credential
	err := r.pool.QueryRow(ctx,
		`SELECT account, token_hash, created_at FROM credentials WHERE account = $1`, account).
		Scan(&cred.Account, &cred.TokenHash, &cred.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, fmt.Errorf("auth: credential: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Credential{}, fmt.Errorf("auth: load credential: %w", err)
	}
	return cred, nil
}

var _ Repository = (*PGRepository)(nil)
