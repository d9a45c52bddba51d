package shared

// RecordType defines the direction of money on a card
type RecordType string

const (
	RecordTypePayment   RecordType = "PAYMENT"
	RecordTypeRepayment RecordType = "REPAYMENT"
)

// Valid reports whether t is a known record type
func (t RecordType) Valid() bool {
	return t == RecordTypePayment || t == RecordTypeRepayment
}

// Counterpart returns the record type that settles against t
func (t RecordType) Counterpart() RecordType {
	if t == RecordTypePayment {
		return RecordTypeRepayment
	}
	return RecordTypePayment
}

// EventType defines record lifecycle events published to Kafka
type EventType string

const (
	EventTypeRecordCreated     EventType = "record.created"
	EventTypeRecordUpdated     EventType = "record.updated"
	EventTypeRecordDeactivated EventType = "record.deactivated"
	EventTypeAllocationFailed  EventType = "allocation.failed"
)

// NeedsReconciliation reports whether consumers should re-check the card after this event
func (e EventType) NeedsReconciliation() bool {
	switch e {
	case EventTypeAllocationFailed, EventTypeRecordUpdated, EventTypeRecordDeactivated:
		return true
	}
	return false
}
