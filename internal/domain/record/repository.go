package record

import (
	"context"
	"fmt"
	"time"

	"github.com/card-repayment-ledger/internal/domain/settlement"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

// Repository manages record persistence. Every write touches a single document.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, ownerID, id string) (*Record, error)
	// List returns active records matching the filter, newest trade date first
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Record, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	// FindOpen returns active, not fully settled records of one type for a card
	// ordered oldest first: trade_date, then created_at, then id
	FindOpen(ctx context.Context, ownerID, cardID string, recordType shared.RecordType) ([]*Record, error)
	// ListByCard returns every record of a card, inactive ones included
	ListByCard(ctx context.Context, ownerID, cardID string) ([]*Record, error)
	// AppendAllocation pushes one entry onto an active record's allocations and
	// returns the updated record. It fails with ErrOverAllocation instead of
	// letting the allocated sum exceed the amount.
	AppendAllocation(ctx context.Context, ownerID, recordID string, alloc Allocation) (*Record, error)
	// SumAllocatedTo sums every active record's allocation entries that reference recordID
	SumAllocatedTo(ctx context.Context, ownerID, recordID string) (int64, error)
	SetStatus(ctx context.Context, ownerID, recordID string, status settlement.Status) error
	Update(ctx context.Context, ownerID, id string, changes Changes) (*Record, error)
	Deactivate(ctx context.Context, ownerID, id string) error
	Aggregate(ctx context.Context, query Query) ([]Group, error)
	// ListCardKeys returns every (owner, card) pair that holds active records
	ListCardKeys(ctx context.Context) ([]CardKey, error)
}

// Transactor is implemented by stores that can commit several single-document
// writes atomically. Writes issued with the ctx passed to fn join the transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CardKey identifies the scope allocation runs in
type CardKey struct {
	OwnerID string `bson:"owner_id"`
	CardID  string `bson:"card_id"`
}

// Ref is an id with the display name snapshotted next to it
type Ref struct {
	ID   string
	Name string
}

// CardSnapshot carries the card display fields copied onto a record
type CardSnapshot struct {
	ID     string
	Name   string
	Bank   string
	Number string
}

// Changes lists the management edits applied by Update. Nil fields are left untouched.
type Changes struct {
	Amount          *int64
	Status          *settlement.Status
	Description     *string
	TradeDate       *time.Time
	Card            *CardSnapshot
	SwipeType       *Ref
	ConsumptionType *Ref
}

// IsEmpty reports whether there is nothing to update
func (c Changes) IsEmpty() bool {
	return c.Amount == nil && c.Status == nil && c.Description == nil && c.TradeDate == nil &&
		c.Card == nil && c.SwipeType == nil && c.ConsumptionType == nil
}

// Apply writes the changes onto an in-memory record
func (c Changes) Apply(r *Record) {
	if c.Amount != nil {
		r.Amount = *c.Amount
	}
	if c.Status != nil {
		r.Status = *c.Status
	}
	if c.Description != nil {
		r.Description = *c.Description
	}
	if c.TradeDate != nil {
		r.TradeDate = *c.TradeDate
	}
	if c.Card != nil {
		r.CardID = c.Card.ID
		r.CardName = c.Card.Name
		r.CardBank = c.Card.Bank
		r.CardNumber = c.Card.Number
	}
	if c.SwipeType != nil {
		r.SwipeTypeID = c.SwipeType.ID
		r.SwipeTypeName = c.SwipeType.Name
	}
	if c.ConsumptionType != nil {
		r.ConsumptionTypeID = c.ConsumptionType.ID
		r.ConsumptionTypeName = c.ConsumptionType.Name
	}
}

// ErrRecordNotFound indicates a missing or foreign record
type ErrRecordNotFound struct {
	RecordID string
}

func (e ErrRecordNotFound) Error() string {
	return "record not found: " + e.RecordID
}

// Is implements the errors.Is interface for ErrRecordNotFound
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	// An empty target RecordID matches any ErrRecordNotFound
	if t.RecordID == "" {
		return true
	}
	return e.RecordID == t.RecordID
}

// ErrOverAllocation indicates a write that would push allocations past the amount
type ErrOverAllocation struct {
	RecordID  string
	Requested int64
}

func (e ErrOverAllocation) Error() string {
	return fmt.Sprintf("allocating %d to record %s would exceed its amount", e.Requested, e.RecordID)
}

// Is implements the errors.Is interface for ErrOverAllocation
func (e ErrOverAllocation) Is(target error) bool {
	t, ok := target.(ErrOverAllocation)
	if !ok {
		return false
	}
	if t.RecordID == "" {
		return true
	}
	return e.RecordID == t.RecordID
}

// ErrRecordHasAllocations indicates an edit that would orphan allocation entries
type ErrRecordHasAllocations struct {
	RecordID string
}

func (e ErrRecordHasAllocations) Error() string {
	return "record already has allocations: " + e.RecordID
}

// Is implements the errors.Is interface for ErrRecordHasAllocations
func (e ErrRecordHasAllocations) Is(target error) bool {
	t, ok := target.(ErrRecordHasAllocations)
	if !ok {
		return false
	}
	if t.RecordID == "" {
		return true
	}
	return e.RecordID == t.RecordID
}
