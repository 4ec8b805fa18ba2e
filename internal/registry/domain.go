// Package registry stores the role each account holds. Roles gate every
// mutation in traceline: the administrator hands out Producer and
// Transporter, while Buyer is claimed once by the account itself.
package registry

import (
	"time"

	"github.com/traceline-scm/traceline/internal/shared"
)

// Role is a caller's capability class.
type Role string

const (
	RoleNone        Role = "NONE"
	RoleProducer    Role = "PRODUCER"
	RoleTransporter Role = "TRANSPORTER"
	RoleBuyer       Role = "BUYER"
)

// IsValid checks if the role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleNone, RoleProducer, RoleTransporter, RoleBuyer:
		return true
	default:
		return false
	}
}

// Assignable reports whether the administrator may hand out this role.
// Buyer is excluded: accounts claim it themselves via RegisterAsBuyer.
func (r Role) Assignable() bool {
	switch r {
	case RoleNone, RoleProducer, RoleTransporter:
		return true
	default:
		return false
	}
}

// RoleAssignment binds an account to its role and display name. Accounts the
// registry has never seen resolve to {RoleNone, ""}.
type RoleAssignment struct {
	Account     shared.Account `json:"account"`
	Role        Role           `json:"role"`
	DisplayName string         `json:"display_name"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
}

// AssignRoleRequest is the administrator's role-assignment payload.
type AssignRoleRequest struct {
	Role        string `json:"role" validate:"required"`
	DisplayName string `json:"display_name" validate:"required,max=200"`
}

// RegisterBuyerRequest is the self-service buyer registration payload.
type RegisterBuyerRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=200"`
}

// ListFilter narrows ListAssignments.
type ListFilter struct {
	Role *Role
	Page shared.ListPage
}
