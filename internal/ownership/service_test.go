package ownership

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/traceline-scm/traceline/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	holder shared.Account
	set    bool
	notes  int
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prevHolder, prevSet, prevNotes := m.holder, m.set, m.notes
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.holder, m.set, m.notes = prevHolder, prevSet, prevNotes
		return err
	}
	return nil
}

func (m *memoryRepo) Current(ctx context.Context) (shared.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return "", fmt.Errorf("ownership: handle: %w", shared.ErrNotFound)
	}
	return m.holder, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) CurrentForUpdate(ctx context.Context) (shared.Account, error) {
	if !t.repo.set {
		return "", fmt.Errorf("ownership: handle: %w", shared.ErrNotFound)
	}
	return t.repo.holder, nil
}

func (t *memoryTx) Install(ctx context.Context, account shared.Account) error {
	if t.repo.set {
		return fmt.Errorf("ownership: handle: %w", shared.ErrAlreadyExists)
	}
	t.repo.holder, t.repo.set = account, true
	return nil
}

func (t *memoryTx) Replace(ctx context.Context, account shared.Account) error {
	if !t.repo.set {
		return fmt.Errorf("ownership: handle: %w", shared.ErrNotFound)
	}
	t.repo.holder = account
	return nil
}

func (t *memoryTx) AppendNotification(ctx context.Context, topic, subject string, payload any) error {
	t.repo.notes++
	return nil
}

func TestBootstrap(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(nil, repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.Bootstrap(ctx, "admin"))

	current, err := svc.CurrentAdministrator(ctx)
	require.NoError(t, err)
	require.Equal(t, shared.Account("admin"), current)
	require.Equal(t, 1, repo.notes)

	// Bootstrap runs once.
	err = svc.Bootstrap(ctx, "usurper")
	require.ErrorIs(t, err, shared.ErrAlreadyExists)
	require.Equal(t, 1, repo.notes)
}

func TestIsAdministrator(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(nil, repo, nil)
	ctx := context.Background()

	// Nobody holds the handle before bootstrap.
	ok, err := svc.IsAdministrator(ctx, "admin")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, svc.Bootstrap(ctx, "admin"))

	ok, err = svc.IsAdministrator(ctx, "admin")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.IsAdministrator(ctx, "acme-plant")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.IsAdministrator(ctx, "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTransferAdministrator(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(nil, repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.Bootstrap(ctx, "admin"))

	// Only the current holder transfers.
	err := svc.TransferAdministrator(ctx, "acme-plant", "acme-plant")
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	require.NoError(t, svc.TransferAdministrator(ctx, "admin", "successor"))

	// The privilege switches atomically: the old holder is locked out.
	ok, err := svc.IsAdministrator(ctx, "admin")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = svc.IsAdministrator(ctx, "successor")
	require.NoError(t, err)
	require.True(t, ok)

	err = svc.TransferAdministrator(ctx, "admin", "admin")
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestTransferValidatesNewAdmin(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(nil, repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.Bootstrap(ctx, "admin"))

	err := svc.TransferAdministrator(ctx, "admin", "")
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	require.Equal(t, 1, repo.notes)
}
