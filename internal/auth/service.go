package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/traceline-scm/traceline/internal/shared"
)

// Service wraps credential business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Enroll registers a credential for an account. Enrollment is one-time; the
// token is stored only as a bcrypt hash.
func (s *Service) Enroll(ctx context.Context, account shared.Account, token string) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if len(token) < MinTokenLength {
		return fmt.Errorf("auth: token must be at least %d characters: %w", MinTokenLength, shared.ErrInvalidArgument)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash token: %w", err)
	}
	return s.repo.Insert(ctx, account, string(hash))
}

// Verify validates an account/token pair. Unknown accounts and wrong tokens
// fail the same way so callers cannot probe for enrolled accounts.
func (s *Service) Verify(ctx context.Context, account shared.Account, token string) error {
	if account.IsZero() || token == "" {
		return shared.ErrInvalidCredentials
	}
	cred, err := s.repo.FindByAccount(ctx, account)
	if err != nil {
		return shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.TokenHash), []byte(token)); err != nil {
		return shared.ErrInvalidCredentials
	}
	return nil
}
