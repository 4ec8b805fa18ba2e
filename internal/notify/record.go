// Package notify implements the durable notification stream: an outbox table
// appended inside the same transaction as the mutation it records, plus a
// dispatcher that delivers committed records to a sink in commit order per
// subject.
package notify

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/traceline-scm/traceline/internal/shared"
)

// Topics carried on the notification stream.
const (
	TopicProductAdded     = "product.added"
	TopicStatusUpdated    = "product.status_updated"
	TopicProductQueried   = "product.queried"
	TopicProductBought    = "product.bought"
	TopicProductReceived  = "product.received"
	TopicBuyerAssigned    = "product.buyer_assigned"
	TopicRoleAssigned     = "registry.role_assigned"
	TopicAdminTransferred = "ownership.admin_transferred"
)

// OwnershipSubject orders administrator handle notifications.
const OwnershipSubject = "ownership"

// Record is one durable notification awaiting delivery. The bigserial ID
// fixes commit order; the dispatcher never reorders records that share a
// subject.
type Record struct {
	ID          int64
	EventID     uuid.UUID
	Topic       string
	Subject     string
	Payload     json.RawMessage
	CreatedAt   time.Time
	DeliveredAt *time.Time
	Attempts    int
}

// ProductSubject keys per-product delivery ordering.
func ProductSubject(id uint64) string {
	return "product:" + strconv.FormatUint(id, 10)
}

// AccountSubject keys per-account delivery ordering.
func AccountSubject(account shared.Account) string {
	return "account:" + account.String()
}
