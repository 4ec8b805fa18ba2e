package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/traceline-scm/traceline/internal/notify"
	"github.com/traceline-scm/traceline/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAssignment(ctx context.Context, account shared.Account) (RoleAssignment, error)
	ListAssignments(ctx context.Context, filter ListFilter) ([]RoleAssignment, int, error)
}

// OwnershipPort answers administrator checks.
type OwnershipPort interface {
	IsAdministrator(ctx context.Context, account shared.Account) (bool, error)
}

// DispatchQueue enqueues a post-commit notification dispatch. Best effort:
// the cron sweep picks up anything a lost enqueue leaves behind.
type DispatchQueue interface {
	EnqueueDispatch(ctx context.Context, reason string) error
}

// Service coordinates role reads and writes.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	cache  *Cache
	guard  OwnershipPort
	queue  DispatchQueue
}

// NewService builds Service. cache and queue may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, cache *Cache, guard OwnershipPort, queue DispatchQueue) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, cache: cache, guard: guard, queue: queue}
}

// GetRole resolves an account's assignment. Unknown accounts are not an
// error: they hold RoleNone with an empty display name.
func (s *Service) GetRole(ctx context.Context, account shared.Account) (RoleAssignment, error) {
	if account.IsZero() {
		return RoleAssignment{Role: RoleNone}, nil
	}
	return s.cache.FetchAssignment(ctx, account.String(), func(ctx context.Context) (RoleAssignment, error) {
		ra, err := s.repo.GetAssignment(ctx, account)
		if errors.Is(err, shared.ErrNotFound) {
			return RoleAssignment{Account: account, Role: RoleNone}, nil
		}
		return ra, err
	})
}

// AssignRole lets the administrator hand out Producer, Transporter or None.
// Reassignment overwrites the previous role and display name.
func (s *Service) AssignRole(ctx context.Context, caller, account shared.Account, role Role, displayName string) error {
	isAdmin, err := s.guard.IsAdministrator(ctx, caller)
	if err != nil {
		return err
	}
	if !isAdmin {
		return fmt.Errorf("registry: only the administrator assigns roles: %w", shared.ErrUnauthorized)
	}
	if err := account.Validate(); err != nil {
		return err
	}
	if !role.IsValid() {
		return fmt.Errorf("registry: unknown role %q: %w", role, shared.ErrInvalidArgument)
	}
	if !role.Assignable() {
		return fmt.Errorf("registry: role %s is claimed by self-registration: %w", role, shared.ErrInvalidArgument)
	}
	name := shared.NormalizeName(displayName)
	if name == "" {
		return fmt.Errorf("registry: display name required: %w", shared.ErrInvalidArgument)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Upsert(ctx, RoleAssignment{Account: account, Role: role, DisplayName: name}); err != nil {
			return err
		}
		return tx.AppendNotification(ctx, notify.TopicRoleAssigned, notify.AccountSubject(account),
			RoleAssignedEvent{Account: account, Role: role, DisplayName: name})
	})
	if err != nil {
		return err
	}
	s.afterWrite(ctx, "role assigned")
	return nil
}

// RegisterAsBuyer claims the Buyer role for the caller. The claim is
// one-time: any existing role, Buyer included, rejects the registration.
func (s *Service) RegisterAsBuyer(ctx context.Context, caller shared.Account, displayName string) error {
	if err := caller.Validate(); err != nil {
		return err
	}
	name := shared.NormalizeName(displayName)
	if name == "" {
		return fmt.Errorf("registry: display name required: %w", shared.ErrInvalidArgument)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, caller)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if err == nil && current.Role != RoleNone {
			return fmt.Errorf("registry: account already holds role %s: %w", current.Role, shared.ErrAlreadyAssigned)
		}
		if err := tx.Upsert(ctx, RoleAssignment{Account: caller, Role: RoleBuyer, DisplayName: name}); err != nil {
			return err
		}
		return tx.AppendNotification(ctx, notify.TopicRoleAssigned, notify.AccountSubject(caller),
			RoleAssignedEvent{Account: caller, Role: RoleBuyer, DisplayName: name})
	})
	if err != nil {
		return err
	}
	s.afterWrite(ctx, "buyer registered")
	return nil
}

// ListAssignments returns explicit assignments for administrative review.
func (s *Service) ListAssignments(ctx context.Context, caller shared.Account, filter ListFilter) ([]RoleAssignment, int, error) {
	isAdmin, err := s.guard.IsAdministrator(ctx, caller)
	if err != nil {
		return nil, 0, err
	}
	if !isAdmin {
		return nil, 0, fmt.Errorf("registry: only the administrator lists assignments: %w", shared.ErrUnauthorized)
	}
	return s.repo.ListAssignments(ctx, filter)
}

// afterWrite invalidates the role cache and nudges the dispatcher. Neither
// failure rolls back the committed mutation.
func (s *Service) afterWrite(ctx context.Context, reason string) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("role cache bump failed", slog.Any("error", err))
	}
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueDispatch(ctx, reason); err != nil {
		s.logger.Warn("notification dispatch enqueue failed", slog.Any("error", err))
	}
}
