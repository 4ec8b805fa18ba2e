package product

import "github.com/traceline-scm/traceline/internal/shared"

// Notification payloads appended to the outbox alongside product mutations.

// ProductAddedEvent records a newly registered product.
type ProductAddedEvent struct {
	ID       uint64         `json:"id"`
	Name     string         `json:"name"`
	Producer shared.Account `json:"producer"`
}

// StatusUpdatedEvent records one committed status transition.
type StatusUpdatedEvent struct {
	ID      uint64         `json:"id"`
	Status  Status         `json:"status"`
	Remark  string         `json:"remark"`
	Updater shared.Account `json:"updater"`
}

// ProductQueriedEvent records a read of product state. Reads are auditable
// so producer and buyer can see who inspects a product.
type ProductQueriedEvent struct {
	ID      uint64         `json:"id"`
	Querier shared.Account `json:"querier"`
}

// ProductBoughtEvent accompanies the Produced→Ordered transition.
type ProductBoughtEvent struct {
	ID    uint64         `json:"id"`
	Buyer shared.Account `json:"buyer"`
}

// ProductReceivedEvent accompanies the Shipped→Delivered transition.
type ProductReceivedEvent struct {
	ID    uint64         `json:"id"`
	Buyer shared.Account `json:"buyer"`
}

// BuyerAssignedEvent records an administrator buyer pre-assignment.
type BuyerAssignedEvent struct {
	ID    uint64         `json:"id"`
	Buyer shared.Account `json:"buyer"`
}
