package product

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/traceline-scm/traceline/internal/notify"
	"github.com/traceline-scm/traceline/internal/observability"
	"github.com/traceline-scm/traceline/internal/registry"
	"github.com/traceline-scm/traceline/internal/shared"
)

// creationRemark annotates the history entry every product starts with.
const creationRemark = "created"

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uint64) (Product, error)
	History(ctx context.Context, id uint64) ([]StatusEvent, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
}

// TxRepository exposes the transactional operations one mutation composes.
// GetForUpdate takes the per-product row lock that serialises concurrent
// mutations of the same id.
type TxRepository interface {
	Insert(ctx context.Context, p Product, ev StatusEvent) error
	Get(ctx context.Context, id uint64) (Product, error)
	GetForUpdate(ctx context.Context, id uint64) (Product, error)
	History(ctx context.Context, id uint64) ([]StatusEvent, error)
	AppendEvent(ctx context.Context, id uint64, ev StatusEvent) (int, error)
	SetStatus(ctx context.Context, id uint64, status Status) error
	SetBuyer(ctx context.Context, id uint64, buyer shared.Account) error
	AppendNotification(ctx context.Context, topic, subject string, payload any) error
}

// RegistryPort resolves caller roles.
type RegistryPort interface {
	GetRole(ctx context.Context, account shared.Account) (registry.RoleAssignment, error)
}

// OwnershipPort answers administrator checks.
type OwnershipPort interface {
	IsAdministrator(ctx context.Context, account shared.Account) (bool, error)
}

// DispatchQueue enqueues a post-commit notification dispatch.
type DispatchQueue interface {
	EnqueueDispatch(ctx context.Context, reason string) error
}

// Service coordinates the product ledger.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	registry RegistryPort
	guard    OwnershipPort
	engine   *Engine
	metrics  *observability.Metrics
	queue    DispatchQueue
	now      func() time.Time
}

// NewService builds Service. metrics and queue may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, reg RegistryPort, guard OwnershipPort, engine *Engine, metrics *observability.Metrics, queue DispatchQueue) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = NewEngine(PolicySelfService)
	}
	return &Service{
		logger:   logger,
		repo:     repo,
		registry: reg,
		guard:    guard,
		engine:   engine,
		metrics:  metrics,
		queue:    queue,
		now:      time.Now,
	}
}

// CreateProduct registers a product for a Producer caller. The product
// starts Produced with a single creation history entry.
func (s *Service) CreateProduct(ctx context.Context, caller shared.Account, id uint64, name string) (Product, error) {
	if err := caller.Validate(); err != nil {
		return Product{}, err
	}
	if id == 0 {
		return Product{}, fmt.Errorf("product: id required: %w", shared.ErrInvalidArgument)
	}
	name = shared.NormalizeName(name)
	if name == "" {
		return Product{}, fmt.Errorf("product: name required: %w", shared.ErrInvalidArgument)
	}
	if len(name) > MaxNameLength {
		return Product{}, fmt.Errorf("product: name exceeds %d characters: %w", MaxNameLength, shared.ErrInvalidArgument)
	}

	ra, err := s.registry.GetRole(ctx, caller)
	if err != nil {
		return Product{}, err
	}
	if ra.Role != registry.RoleProducer {
		return Product{}, fmt.Errorf("product: creating products requires the Producer role, caller holds %s: %w",
			ra.Role, shared.ErrUnauthorized)
	}

	now := s.now().UTC()
	p := Product{
		ID:            id,
		Name:          name,
		Producer:      caller,
		CurrentStatus: StatusProduced,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ev := StatusEvent{Seq: 1, Status: StatusProduced, OccurredAt: now, Remark: creationRemark, Updater: caller}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Insert(ctx, p, ev); err != nil {
			return err
		}
		return tx.AppendNotification(ctx, notify.TopicProductAdded, notify.ProductSubject(id),
			ProductAddedEvent{ID: id, Name: name, Producer: caller})
	})
	if err != nil {
		return Product{}, err
	}
	p.History = []StatusEvent{ev}
	s.enqueueDispatch(ctx, "product created")
	return p, nil
}

// GetProduct loads a product with its full history. The read is audited:
// each call appends one ProductQueried notification naming the caller.
func (s *Service) GetProduct(ctx context.Context, caller shared.Account, id uint64) (Product, error) {
	if err := caller.Validate(); err != nil {
		return Product{}, err
	}
	var p Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		p, err = tx.Get(ctx, id)
		if err != nil {
			return err
		}
		p.History, err = tx.History(ctx, id)
		if err != nil {
			return err
		}
		return tx.AppendNotification(ctx, notify.TopicProductQueried, notify.ProductSubject(id),
			ProductQueriedEvent{ID: id, Querier: caller})
	})
	if err != nil {
		return Product{}, err
	}
	s.enqueueDispatch(ctx, "product queried")
	return p, nil
}

// History returns the ordered status events of a product.
func (s *Service) History(ctx context.Context, id uint64) ([]StatusEvent, error) {
	return s.repo.History(ctx, id)
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	return s.repo.List(ctx, filter)
}

// RequestTransition advances a product exactly one stage. The row lock,
// validation, history append, status update and notification form one
// transaction, so concurrent requests for the same id serialise and the
// loser fails the strict-successor check.
func (s *Service) RequestTransition(ctx context.Context, caller shared.Account, id uint64, target Status, remark string) (Product, error) {
	if err := caller.Validate(); err != nil {
		return Product{}, err
	}
	if !target.IsValid() {
		return Product{}, fmt.Errorf("product: unknown target status: %w", shared.ErrInvalidArgument)
	}
	remark = strings.TrimSpace(remark)
	if len(remark) > MaxRemarkLength {
		return Product{}, fmt.Errorf("product: remark exceeds %d characters: %w", MaxRemarkLength, shared.ErrInvalidArgument)
	}

	ra, err := s.registry.GetRole(ctx, caller)
	if err != nil {
		return Product{}, err
	}

	var p Product
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		p, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		claimBuyer, err := s.engine.Authorize(p, caller, ra.Role, target)
		if err != nil {
			return err
		}

		ev := StatusEvent{Status: target, OccurredAt: s.now().UTC(), Remark: remark, Updater: caller}
		seq, err := tx.AppendEvent(ctx, id, ev)
		if err != nil {
			return err
		}
		ev.Seq = seq
		if err := tx.SetStatus(ctx, id, target); err != nil {
			return err
		}
		if claimBuyer {
			if err := tx.SetBuyer(ctx, id, caller); err != nil {
				return err
			}
			p.Buyer = caller
		}
		p.CurrentStatus = target
		p.UpdatedAt = ev.OccurredAt

		subject := notify.ProductSubject(id)
		if err := tx.AppendNotification(ctx, notify.TopicStatusUpdated, subject,
			StatusUpdatedEvent{ID: id, Status: target, Remark: remark, Updater: caller}); err != nil {
			return err
		}
		switch target {
		case StatusOrdered:
			return tx.AppendNotification(ctx, notify.TopicProductBought, subject,
				ProductBoughtEvent{ID: id, Buyer: p.Buyer})
		case StatusDelivered:
			return tx.AppendNotification(ctx, notify.TopicProductReceived, subject,
				ProductReceivedEvent{ID: id, Buyer: p.Buyer})
		default:
			return nil
		}
	})
	if err != nil {
		return Product{}, err
	}
	s.metrics.ObserveTransition(target.String())
	s.enqueueDispatch(ctx, "status updated")
	return p, nil
}

// AssignBuyer pre-assigns the buyer slot under the administered policy. The
// slot is write-once and only open while the product is still Produced.
func (s *Service) AssignBuyer(ctx context.Context, caller shared.Account, id uint64, buyer shared.Account) error {
	if s.engine.Policy() != PolicyAdministered {
		return fmt.Errorf("product: buyer pre-assignment is off under the %s policy: %w",
			s.engine.Policy(), shared.ErrPolicyDisabled)
	}
	isAdmin, err := s.guard.IsAdministrator(ctx, caller)
	if err != nil {
		return err
	}
	if !isAdmin {
		return fmt.Errorf("product: only the administrator assigns buyers: %w", shared.ErrUnauthorized)
	}
	if err := buyer.Validate(); err != nil {
		return err
	}

	ra, err := s.registry.GetRole(ctx, buyer)
	if err != nil {
		return err
	}
	if ra.Role != registry.RoleBuyer {
		return fmt.Errorf("product: account %s holds role %s, not Buyer: %w", buyer, ra.Role, shared.ErrInvalidRole)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.CurrentStatus != StatusProduced {
			return fmt.Errorf("product %d is already %s, the buyer slot closed at Ordered: %w",
				id, p.CurrentStatus, shared.ErrInvalidTransition)
		}
		if !p.Buyer.IsZero() {
			return fmt.Errorf("product %d already has buyer %s: %w", id, p.Buyer, shared.ErrAlreadyAssigned)
		}
		if err := tx.SetBuyer(ctx, id, buyer); err != nil {
			return err
		}
		return tx.AppendNotification(ctx, notify.TopicBuyerAssigned, notify.ProductSubject(id),
			BuyerAssignedEvent{ID: id, Buyer: buyer})
	})
	if err != nil {
		return err
	}
	s.enqueueDispatch(ctx, "buyer assigned")
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
