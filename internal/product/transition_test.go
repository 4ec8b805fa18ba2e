package product

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/traceline-scm/traceline/internal/registry"
	"github.com/traceline-scm/traceline/internal/shared"
)

func TestStatusSuccessorChain(t *testing.T) {
	next, ok := StatusProduced.Next()
	require.True(t, ok)
	require.Equal(t, StatusOrdered, next)

	next, ok = StatusOrdered.Next()
	require.True(t, ok)
	require.Equal(t, StatusShipped, next)

	next, ok = StatusShipped.Next()
	require.True(t, ok)
	require.Equal(t, StatusDelivered, next)

	_, ok = StatusDelivered.Next()
	require.False(t, ok)
}

func TestParseStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusProduced, StatusOrdered, StatusShipped, StatusDelivered} {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}
	_, err := ParseStatus("IN_TRANSIT")
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestAuthorizeStrictSuccessor(t *testing.T) {
	engine := NewEngine(PolicySelfService)
	p := Product{ID: 1, CurrentStatus: StatusProduced}

	// Skipping a stage is structurally illegal regardless of role.
	_, err := engine.Authorize(p, "trans-1", registry.RoleTransporter, StatusShipped)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = engine.Authorize(p, "buyer-1", registry.RoleBuyer, StatusDelivered)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	// Regression is equally illegal.
	p.CurrentStatus = StatusShipped
	_, err = engine.Authorize(p, "buyer-1", registry.RoleBuyer, StatusOrdered)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestAuthorizeTerminalStatus(t *testing.T) {
	engine := NewEngine(PolicySelfService)
	p := Product{ID: 1, CurrentStatus: StatusDelivered, Buyer: "buyer-1"}

	for _, target := range []Status{StatusProduced, StatusOrdered, StatusShipped, StatusDelivered} {
		_, err := engine.Authorize(p, "buyer-1", registry.RoleBuyer, target)
		require.ErrorIs(t, err, shared.ErrInvalidTransition)
	}
}

func TestAuthorizeRoleGating(t *testing.T) {
	engine := NewEngine(PolicySelfService)

	// Ordering requires Buyer.
	p := Product{ID: 1, CurrentStatus: StatusProduced}
	for _, role := range []registry.Role{registry.RoleNone, registry.RoleProducer, registry.RoleTransporter} {
		_, err := engine.Authorize(p, "acct", role, StatusOrdered)
		require.ErrorIs(t, err, shared.ErrUnauthorized, "role %s", role)
	}

	// Shipping requires Transporter.
	p = Product{ID: 1, CurrentStatus: StatusOrdered, Buyer: "buyer-1"}
	for _, role := range []registry.Role{registry.RoleNone, registry.RoleProducer, registry.RoleBuyer} {
		_, err := engine.Authorize(p, "acct", role, StatusShipped)
		require.ErrorIs(t, err, shared.ErrUnauthorized, "role %s", role)
	}
	_, err := engine.Authorize(p, "trans-1", registry.RoleTransporter, StatusShipped)
	require.NoError(t, err)

	// Delivery requires the product's own buyer, not any Buyer.
	p = Product{ID: 1, CurrentStatus: StatusShipped, Buyer: "buyer-1"}
	_, err = engine.Authorize(p, "buyer-2", registry.RoleBuyer, StatusDelivered)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
	_, err = engine.Authorize(p, "buyer-1", registry.RoleBuyer, StatusDelivered)
	require.NoError(t, err)
}

func TestAuthorizeSelfServiceBuyerClaim(t *testing.T) {
	engine := NewEngine(PolicySelfService)

	p := Product{ID: 1, CurrentStatus: StatusProduced}
	claim, err := engine.Authorize(p, "buyer-1", registry.RoleBuyer, StatusOrdered)
	require.NoError(t, err)
	require.True(t, claim)

	// The slot is write-once: a claimed product rejects other buyers.
	p.Buyer = "buyer-1"
	p.CurrentStatus = StatusProduced
	_, err = engine.Authorize(p, "buyer-2", registry.RoleBuyer, StatusOrdered)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestAuthorizeAdministeredPolicy(t *testing.T) {
	engine := NewEngine(PolicyAdministered)

	// Without a pre-assigned buyer nobody can order.
	p := Product{ID: 1, CurrentStatus: StatusProduced}
	_, err := engine.Authorize(p, "buyer-1", registry.RoleBuyer, StatusOrdered)
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	// Only the assigned buyer may, and the claim does not rebind the slot.
	p.Buyer = "buyer-1"
	claim, err := engine.Authorize(p, "buyer-1", registry.RoleBuyer, StatusOrdered)
	require.NoError(t, err)
	require.False(t, claim)

	_, err = engine.Authorize(p, "buyer-2", registry.RoleBuyer, StatusOrdered)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}
