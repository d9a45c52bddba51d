package shared

import (
	"time"

	"github.com/google/uuid"
)

// RecordEvent defines a Kafka message describing a change to a record
type RecordEvent struct {
	EventID       uuid.UUID  `json:"event_id"`
	Type          EventType  `json:"event_type"`
	RecordID      string     `json:"record_id"`
	OwnerID       string     `json:"owner_id"`
	CardID        string     `json:"card_id"`
	RecordType    RecordType `json:"record_type"`
	Amount        int64      `json:"amount"` // Stored in cents/minor units
	Status        string     `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// PartitionKey groups events of the same card on one partition
func (e RecordEvent) PartitionKey() string {
	return CardKey(e.OwnerID, e.CardID)
}

// CardKey identifies the (owner, card) pair that allocation is scoped to
func CardKey(ownerID, cardID string) string {
	return ownerID + ":" + cardID
}
