package product

import (
	"fmt"

	"github.com/traceline-scm/traceline/internal/registry"
	"github.com/traceline-scm/traceline/internal/shared"
)

// BuyerPolicy decides how a product's buyer slot gets bound.
type BuyerPolicy string

const (
	// PolicySelfService lets any Buyer account claim an open product by
	// ordering it. The claim is write-once.
	PolicySelfService BuyerPolicy = "self_service"
	// PolicyAdministered reserves the slot for administrator pre-assignment;
	// only the assigned buyer may order.
	PolicyAdministered BuyerPolicy = "administered"
)

// IsValid checks if the policy is a known value.
func (p BuyerPolicy) IsValid() bool {
	return p == PolicySelfService || p == PolicyAdministered
}

// Engine validates transitions against the fixed status graph. Structural
// legality (strict successor) is checked first and fails ErrInvalidTransition;
// role and buyer guards run after and fail ErrUnauthorized, so callers can
// tell "wrong state" from "wrong caller".
type Engine struct {
	policy BuyerPolicy
}

// NewEngine builds an Engine for the configured buyer policy.
func NewEngine(policy BuyerPolicy) *Engine {
	if !policy.IsValid() {
		policy = PolicySelfService
	}
	return &Engine{policy: policy}
}

// Policy returns the active buyer policy.
func (e *Engine) Policy() BuyerPolicy {
	return e.policy
}

// Authorize decides whether caller may move p to target. claimBuyer reports
// that the commit must also bind the buyer slot to the caller (self-service
// ordering). The product itself is not mutated here.
func (e *Engine) Authorize(p Product, caller shared.Account, role registry.Role, target Status) (claimBuyer bool, err error) {
	next, ok := p.CurrentStatus.Next()
	if !ok {
		return false, fmt.Errorf("product %d is %s, a terminal status: %w",
			p.ID, p.CurrentStatus, shared.ErrInvalidTransition)
	}
	if target != next {
		return false, fmt.Errorf("product %d is %s, sole successor is %s, got %s: %w",
			p.ID, p.CurrentStatus, next, target, shared.ErrInvalidTransition)
	}

	switch target {
	case StatusOrdered:
		if role != registry.RoleBuyer {
			return false, fmt.Errorf("ordering requires the Buyer role, caller holds %s: %w", role, shared.ErrUnauthorized)
		}
		if e.policy == PolicyAdministered {
			if p.Buyer.IsZero() || p.Buyer != caller {
				return false, fmt.Errorf("product %d is reserved for its assigned buyer: %w", p.ID, shared.ErrUnauthorized)
			}
			return false, nil
		}
		if !p.Buyer.IsZero() {
			return false, fmt.Errorf("product %d already has a buyer: %w", p.ID, shared.ErrUnauthorized)
		}
		return true, nil
	case StatusShipped:
		if role != registry.RoleTransporter {
			return false, fmt.Errorf("shipping requires the Transporter role, caller holds %s: %w", role, shared.ErrUnauthorized)
		}
		return false, nil
	case StatusDelivered:
		if role != registry.RoleBuyer || caller != p.Buyer {
			return false, fmt.Errorf("only the product's buyer confirms delivery: %w", shared.ErrUnauthorized)
		}
		return false, nil
	default:
		return false, fmt.Errorf("no transition reaches %s: %w", target, shared.ErrInvalidTransition)
	}
}
