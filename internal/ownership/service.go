package ownership

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
	Current(ctx context.Context) (shared.Account, error)
}

// DispatchQueue enqueues a post-commit notification dispatch.
type DispatchQueue interface {
	EnqueueDispatch(ctx context.Context, reason string) error
}

// AdministratorTransferredEvent records a committed handle change. Bootstrap
// emits it with an empty Previous.
type AdministratorTransferredEvent struct {
	Previous shared.Account `json:"previous"`
	Current  shared.Account `json:"current"`
}

// Service guards the administrator handle.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	queue  DispatchQueue
}

// NewService builds Service. queue may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, queue DispatchQueue) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, queue: queue}
}

// CurrentAdministrator returns the privileged account.
func (s *Service) CurrentAdministrator(ctx context.Context) (shared.Account, error) {
	return s.repo.Current(ctx)
}

// IsAdministrator reports whether the account holds the handle. A missing
// handle means nobody does.
func (s *Service) IsAdministrator(ctx context.Context, account shared.Account) (bool, error) {
	if account.IsZero() {
		return false, nil
	}
	current, err := s.repo.Current(ctx)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return current == account, nil
}

// Bootstrap installs the initial administrator. It runs once per deployment;
// a second call fails with ErrAlreadyExists.
func (s *Service) Bootstrap(ctx context.Context, account shared.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Install(ctx, account); err != nil {
			return err
		}
		return tx.AppendNotification(ctx, notify.TopicAdminTransferred, notify.OwnershipSubject,
			AdministratorTransferredEvent{Current: account})
	})
	if err != nil {
		return err
	}
	s.enqueueDispatch(ctx, "administrator bootstrapped")
	return nil
}

// TransferAdministrator hands the privilege to newAdmin. The transfer is
// atomic: the previous holder loses all rights the instant it commits.
func (s *Service) TransferAdministrator(ctx context.Context, caller, newAdmin shared.Account) error {
	if err := newAdmin.Validate(); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.CurrentForUpdate(ctx)
		if err != nil {
			return err
		}
		if current != caller {
			return fmt.Errorf("ownership: only the administrator transfers the handle: %w", shared.ErrUnauthorized)
		}
		if err := tx.Replace(ctx, newAdmin); err != nil {
			return err
		}
		return tx.AppendNotification(ctx, notify.TopicAdminTransferred, notify.OwnershipSubject,
			AdministratorTransferredEvent{Previous: current, Current: newAdmin})
	})
	if err != nil {
		return err
	}
	s.enqueueDispatch(ctx, "administrator transferred")
	return nil
}

func (s *Service) enqueueDispatch(ctx context.Context, reason string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueDispatch(ctx, reason); err != nil {
		s.logger.Warn("notification dispatch enqueue failed", slog.Any("error", err))
	}
}
