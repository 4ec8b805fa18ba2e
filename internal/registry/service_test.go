package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/traceline-scm/traceline/internal/notify"
	"github.com/traceline-scm/traceline/internal/shared"
)

type memoryRepo struct {
	mu          sync.Mutex
	assignments map[shared.Account]RoleAssignment
	notes       []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{assignments: make(map[shared.Account]RoleAssignment)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := make(map[shared.Account]RoleAssignment, len(m.assignments))
	for k, v := range m.assignments {
		prev[k] = v
	}
	prevNotes := len(m.notes)

	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.assignments = prev
		m.notes = m.notes[:prevNotes]
		return err
	}
	return nil
}

func (m *memoryRepo) GetAssignment(ctx context.Context, account shared.Account) (RoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ra, ok := m.assignments[account]
	if !ok {
		return RoleAssignment{}, fmt.Errorf("registry: account %s: %w", account, shared.ErrNotFound)
	}
	return ra, nil
}

func (m *memoryRepo) ListAssignments(ctx context.Context, filter ListFilter) ([]RoleAssignment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RoleAssignment
	for _, ra := range m.assignments {
		if filter.Role != nil && ra.Role != *filter.Role {
			continue
		}
		out = append(out, ra)
	}
	return out, len(out), nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetForUpdate(ctx context.Context, account shared.Account) (RoleAssignment, error) {
	ra, ok := t.repo.assignments[account]
	if !ok {
		return RoleAssignment{}, fmt.Errorf("registry: account %s: %w", account, shared.ErrNotFound)
	}
	return ra, nil
}

func (t *memoryTx) Upsert(ctx context.Context, ra RoleAssignment) error {
	t.repo.assignments[ra.Account] = ra
	return nil
}

func (t *memoryTx) AppendNotification(ctx context.Context, topic, subject string, payload any) error {
	t.repo.notes = append(t.repo.notes, topic)
	return nil
}

type stubGuard struct {
	admin shared.Account
}

func (s *stubGuard) IsAdministrator(ctx context.Context, account shared.Account) (bool, error) {
	return account == s.admin, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(nil, repo, nil, &stubGuard{admin: "admin"}, nil)
}

func TestGetRoleUnknownAccount(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	ra, err := svc.GetRole(context.Background(), "stranger")
	require.NoError(t, err)
	require.Equal(t, RoleNone, ra.Role)
	require.Empty(t, ra.DisplayName)
}

func TestAssignRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	err := svc.AssignRole(ctx, "admin", "acme-plant", RoleProducer, "Acme Plant")
	require.NoError(t, err)

	ra, err := svc.GetRole(ctx, "acme-plant")
	require.NoError(t, err)
	require.Equal(t, RoleProducer, ra.Role)
	require.Equal(t, "Acme Plant", ra.DisplayName)
	require.Equal(t, []string{notify.TopicRoleAssigned}, repo.notes)

	// Reassignment overwrites.
	err = svc.AssignRole(ctx, "admin", "acme-plant", RoleTransporter, "Acme Logistics")
	require.NoError(t, err)
	ra, err = svc.GetRole(ctx, "acme-plant")
	require.NoError(t, err)
	require.Equal(t, RoleTransporter, ra.Role)
}

func TestAssignRoleRequiresAdministrator(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	err := svc.AssignRole(context.Background(), "acme-plant", "swift-haul", RoleTransporter, "Swift")
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestAssignRoleRejectsBuyer(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	// Buyer is claimed through self-registration, never handed out.
	err := svc.AssignRole(context.Background(), "admin", "bob-retail", RoleBuyer, "Bob")
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	err = svc.AssignRole(context.Background(), "admin", "bob-retail", Role("OPERATOR"), "Bob")
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestAssignRoleValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	err := svc.AssignRole(ctx, "admin", "", RoleProducer, "Acme")
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	err = svc.AssignRole(ctx, "admin", "acme-plant", RoleProducer, "   ")
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestRegisterAsBuyer(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	err := svc.RegisterAsBuyer(ctx, "bob-retail", "Bob Retail")
	require.NoError(t, err)

	ra, err := svc.GetRole(ctx, "bob-retail")
	require.NoError(t, err)
	require.Equal(t, RoleBuyer, ra.Role)

	// One-time: a second registration is rejected.
	err = svc.RegisterAsBuyer(ctx, "bob-retail", "Bob Again")
	require.ErrorIs(t, err, shared.ErrAlreadyAssigned)

	// Accounts with any explicit role cannot re-register either.
	err = svc.AssignRole(ctx, "admin", "acme-plant", RoleProducer, "Acme")
	require.NoError(t, err)
	err = svc.RegisterAsBuyer(ctx, "acme-plant", "Acme Buys")
	require.ErrorIs(t, err, shared.ErrAlreadyAssigned)
}

func TestListAssignments(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	require.NoError(t, svc.AssignRole(ctx, "admin", "acme-plant", RoleProducer, "Acme"))
	require.NoError(t, svc.AssignRole(ctx, "admin", "swift-haul", RoleTransporter, "Swift"))

	_, _, err := svc.ListAssignments(ctx, "acme-plant", ListFilter{})
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	all, total, err := svc.ListAssignments(ctx, "admin", ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, all, 2)

	role := RoleProducer
	producers, total, err := svc.ListAssignments(ctx, "admin", ListFilter{Role: &role})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, shared.Account("acme-plant"), producers[0].Account)
}
