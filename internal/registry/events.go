package registry

import "github.com/traceline-scm/traceline/internal/shared"

// RoleAssignedEvent records a committed role change on the notification
// stream. Emitted for both administrator assignments and buyer
// self-registrations.
type RoleAssignedEvent struct {
	Account     shared.Account `json:"account"`
	Role        Role           `json:"role"`
	DisplayName string         `json:"display_name"`
}
