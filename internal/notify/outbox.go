package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/traceline-scm/traceline/internal/platform/db"
)

// Outbox appends notification records. Mutating services call Append with
// the transaction committing the mutation, so a record exists exactly when
// the change it describes is durable.
type Outbox struct{}

// NewOutbox returns a new Outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Append inserts one record. exec is either the mutation's transaction or a
// pool for standalone writes such as query audits.
func (o *Outbox) Append(ctx context.Context, exec db.Execer, topic, subject string, payload any) error {
	if o == nil {
		return errors.New("outbox not initialised")
	}
	if topic == "" || subject == "" {
		return errors.New("outbox record requires topic and subject")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	_, err = exec.Exec(ctx,
		`INSERT INTO notifications (event_id, topic, subject, payload, created_at) VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), topic, subject, body)
	if err != nil {
		return fmt.Errorf("notify: append record: %w", err)
	}
	return nil
}
