// Package record holds the card transaction record, its allocation audit trail
// and the store contract the allocation engine and dashboard depend on.
package record

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/card-repayment-ledger/internal/domain/settlement"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

// Common errors
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidRecordType = errors.New("record type must be PAYMENT or REPAYMENT")
	ErrEmptyOwner        = errors.New("owner id cannot be empty")
	ErrEmptyCard         = errors.New("card id cannot be empty")
)

// Allocation links a record to one counterpart for a specific amount.
// On a PAYMENT it names the repayment applied to it; on a REPAYMENT it names the
// payment it paid toward.
type Allocation struct {
	CounterpartID string    `json:"counterpart_id" bson:"counterpart_id"`
	Amount        int64     `json:"amount" bson:"amount"` // Stored in cents/minor units
	AllocatedAt   time.Time `json:"allocated_at" bson:"allocated_at"`
}

// Record is a single payment or repayment on a card
type Record struct {
	ID      string `json:"id" bson:"_id"`
	OwnerID string `json:"owner_id" bson:"owner_id"`
	CardID  string `json:"card_id" bson:"card_id"`

	// Display snapshot taken at creation, never re-synced
	CardName            string `json:"card_name,omitempty" bson:"card_name,omitempty"`
	CardBank            string `json:"card_bank,omitempty" bson:"card_bank,omitempty"`
	CardNumber          string `json:"card_number,omitempty" bson:"card_number,omitempty"`
	SwipeTypeID         string `json:"swipe_type_id,omitempty" bson:"swipe_type_id,omitempty"`
	SwipeTypeName       string `json:"swipe_type_name,omitempty" bson:"swipe_type_name,omitempty"`
	ConsumptionTypeID   string `json:"consumption_type_id,omitempty" bson:"consumption_type_id,omitempty"`
	ConsumptionTypeName string `json:"consumption_type_name,omitempty" bson:"consumption_type_name,omitempty"`

	Type        shared.RecordType `json:"record_type" bson:"record_type"`
	Amount      int64             `json:"amount" bson:"amount"` // Stored in cents/minor units
	Description string            `json:"description,omitempty" bson:"description,omitempty"`
	TradeDate   time.Time         `json:"trade_date" bson:"trade_date"`
	Status      settlement.Status `json:"status" bson:"status"`
	Allocations []Allocation      `json:"allocations" bson:"allocations"`
	IsActive    bool              `json:"is_active" bson:"is_active"`
	CreatedAt   time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" bson:"updated_at"`
}

// NewRecord creates an active, unsettled record with no allocations
func NewRecord(ownerID, cardID string, recordType shared.RecordType, amount int64, tradeDate time.Time) (*Record, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrEmptyOwner
	}
	if strings.TrimSpace(cardID) == "" {
		return nil, ErrEmptyCard
	}
	if !recordType.Valid() {
		return nil, ErrInvalidRecordType
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	if tradeDate.IsZero() {
		tradeDate = now
	}

	return &Record{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		CardID:      cardID,
		Type:        recordType,
		Amount:      amount,
		TradeDate:   tradeDate,
		Status:      settlement.StatusUnpaid,
		Allocations: []Allocation{},
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AllocatedSum returns the total of the record's own allocation entries
func (r *Record) AllocatedSum() int64 {
	var sum int64
	for _, a := range r.Allocations {
		sum += a.Amount
	}
	return sum
}

// AllocatedTo returns how much of this record is allocated to one counterpart
func (r *Record) AllocatedTo(counterpartID string) int64 {
	var sum int64
	for _, a := range r.Allocations {
		if a.CounterpartID == counterpartID {
			sum += a.Amount
		}
	}
	return sum
}

// Remaining returns the unallocated part of the amount, never negative
func (r *Record) Remaining() int64 {
	remaining := r.Amount - r.AllocatedSum()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// DerivedStatus is the status the record should hold given its own allocations
func (r *Record) DerivedStatus() settlement.Status {
	return settlement.Derive(r.Amount, r.AllocatedSum())
}

// HasAllocations reports whether any money has been linked to the record
func (r *Record) HasAllocations() bool {
	return len(r.Allocations) > 0
}

// CardKey returns the (owner, card) scope the record allocates within
func (r *Record) CardKey() string {
	return shared.CardKey(r.OwnerID, r.CardID)
}
