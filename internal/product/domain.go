// Package product owns the product ledger: per-product identity, the
// current lifecycle status, the append-only status history and the
// buyer/producer linkage, plus the state machine that advances it.
package product

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/traceline-scm/traceline/internal/shared"
)

// MaxNameLength bounds product names.
const MaxNameLength = 200

// MaxRemarkLength bounds status event remarks.
const MaxRemarkLength = 500

// Status is a product's lifecycle stage. The ordinal order is the state
// machine: a product only ever advances by exactly one step.
type Status int

const (
	StatusProduced Status = iota
	StatusOrdered
	StatusShipped
	StatusDelivered
)

var statusNames = [...]string{
	StatusProduced:  "PRODUCED",
	StatusOrdered:   "ORDERED",
	StatusShipped:   "SHIPPED",
	StatusDelivered: "DELIVERED",
}

// IsValid checks if the status is a known stage.
func (s Status) IsValid() bool {
	return s >= StatusProduced && s <= StatusDelivered
}

// Terminal reports whether the status has no successor.
func (s Status) Terminal() bool {
	return s == StatusDelivered
}

// Next returns the sole legal successor. ok is false on the terminal stage.
func (s Status) Next() (Status, bool) {
	if !s.IsValid() || s.Terminal() {
		return s, false
	}
	return s + 1, true
}

func (s Status) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus maps the wire name back to a Status.
func ParseStatus(raw string) (Status, error) {
	for st, name := range statusNames {
		if name == raw {
			return Status(st), nil
		}
	}
	return 0, fmt.Errorf("product: unknown status %q: %w", raw, shared.ErrInvalidArgument)
}

// MarshalJSON renders the status as its wire name.
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("product: cannot marshal status %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the wire name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// StatusEvent is one immutable audit-trail entry. Seq starts at 1 with the
// creation event and grows by one per committed transition.
type StatusEvent struct {
	Seq        int            `json:"seq"`
	Status     Status         `json:"status"`
	OccurredAt time.Time      `json:"occurred_at"`
	Remark     string         `json:"remark"`
	Updater    shared.Account `json:"updater"`
}

// Product is one ledger entry. CurrentStatus always equals the status of the
// last history entry; both only change together inside one transaction.
type Product struct {
	ID            uint64         `json:"id"`
	Name          string         `json:"name"`
	Producer      shared.Account `json:"producer"`
	Buyer         shared.Account `json:"buyer,omitempty"`
	CurrentStatus Status         `json:"current_status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	History       []StatusEvent  `json:"history,omitempty"`
}

// CreateProductRequest registers a new product.
type CreateProductRequest struct {
	ID   uint64 `json:"id" validate:"required,gt=0"`
	Name string `json:"name" validate:"required,max=200"`
}

// TransitionRequest advances a product one stage.
type TransitionRequest struct {
	TargetStatus string `json:"target_status" validate:"required"`
	Remark       string `json:"remark" validate:"max=500"`
}

// AssignBuyerRequest pre-assigns the buyer slot (administered policy).
type AssignBuyerRequest struct {
	Buyer string `json:"buyer" validate:"required,max=128"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	Status   *Status
	Producer shared.Account
	Buyer    shared.Account
	Page     shared.ListPage
}
