package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/card-repayment-ledger/internal/dashboard"
	"github.com/card-repayment-ledger/internal/domain/catalog"
	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

// RecordService defines the interface for payment and repayment record operations
type RecordService interface {
	// CreateRecord validates and stores a record, then allocates it against the
	// open records of the opposite type on its card. Validation failures return
	// ErrInvalidInput before anything is written; allocation failures return
	// ErrOperationFailed.
	CreateRecord(ctx context.Context, in CreateRecordInput) (*record.Record, error)

	// GetRecord returns ErrRecordNotFound for missing or foreign records
	GetRecord(ctx context.Context, ownerID, id string) (*record.Record, error)

	// ListRecords returns one page of active records, newest trade date first, and the total count
	ListRecords(ctx context.Context, ownerID string, in ListRecordsInput, page, perPage int) ([]*record.Record, int64, error)

	// RecordStats sums active records per consumption type
	RecordStats(ctx context.Context, ownerID string, in ListRecordsInput) (*RecordStats, error)

	// UpdateRecord applies management edits without re-running allocation
	UpdateRecord(ctx context.Context, ownerID, id string, in UpdateRecordInput) (*record.Record, error)

	// DeleteRecord soft-deletes a record; ErrRecordHasAllocations when money is linked to it
	DeleteRecord(ctx context.Context, ownerID, id string) error
}

// CardService defines the interface for card catalog operations
type CardService interface {
	CreateCard(ctx context.Context, ownerID string, in CardInput) (*catalog.Card, error)
	GetCard(ctx context.Context, ownerID string, id uuid.UUID) (*catalog.Card, error)
	ListCards(ctx context.Context, ownerID string, includeInactive bool) ([]*catalog.Card, error)
	UpdateCard(ctx context.Context, ownerID string, id uuid.UUID, in CardPatch) (*catalog.Card, error)
	DeleteCard(ctx context.Context, ownerID string, id uuid.UUID) error
}

// CategoryService defines the interface for swipe and consumption type operations
type CategoryService interface {
	CreateCategory(ctx context.Context, ownerID string, kind catalog.Kind, in CategoryInput) (*catalog.Category, error)
	ListCategories(ctx context.Context, ownerID string, kind catalog.Kind, includeInactive bool) ([]*catalog.Category, error)
	UpdateCategory(ctx context.Context, ownerID string, kind catalog.Kind, id uuid.UUID, in CategoryPatch) (*catalog.Category, error)
	DeleteCategory(ctx context.Context, ownerID string, kind catalog.Kind, id uuid.UUID) error
}

// DashboardService defines the interface for the dashboard summary
type DashboardService interface {
	GetSummary(ctx context.Context, ownerID, cardID string) (*dashboard.Summary, error)
}

// Allocator runs allocation for a stored record
type Allocator interface {
	Allocate(ctx context.Context, rec *record.Record) (*record.Record, error)
}

// CreateRecordInput carries a validated-shape create request
type CreateRecordInput struct {
	OwnerID           string
	CardID            string
	Type              shared.RecordType
	Amount            int64 // Stored in cents/minor units
	TradeDate         *time.Time
	SwipeTypeID       string
	ConsumptionTypeID string
	Description       string
}

// ListRecordsInput filters record listings. EndDate is an inclusive calendar day.
type ListRecordsInput struct {
	CardID            string
	ConsumptionTypeID string
	Type              shared.RecordType
	StartDate         *time.Time
	EndDate           *time.Time
}

// UpdateRecordInput lists the editable record fields. Nil fields stay unchanged.
type UpdateRecordInput struct {
	CardID            *string
	SwipeTypeID       *string
	ConsumptionTypeID *string
	Amount            *int64
	Description       *string
	TradeDate         *time.Time
}

// RecordStats is the per consumption type breakdown of record amounts
type RecordStats struct {
	Stats       []ConsumptionStat `json:"stats"`
	TotalAmount int64             `json:"total_amount"`
}

// ConsumptionStat is one consumption type's total and record count
type ConsumptionStat struct {
	ConsumptionTypeID string `json:"consumption_type_id"`
	Name              string `json:"consumption_type_name"`
	Color             string `json:"consumption_type_color"`
	TotalAmount       int64  `json:"total_amount"`
	Count             int64  `json:"count"`
}

// CardInput carries the fields of a new card
type CardInput struct {
	Name           string
	Bank           string
	CardNumber     string
	CreditLimit    int64
	BillDay        int
	PaymentDay     int
	LastPaymentDay int
	Color          string
	Description    string
}

// CardPatch lists editable card fields. Nil fields stay unchanged.
type CardPatch struct {
	Name           *string
	Bank           *string
	CardNumber     *string
	CreditLimit    *int64
	BillDay        *int
	PaymentDay     *int
	LastPaymentDay *int
	Color          *string
	Description    *string
}

// CategoryInput carries the fields of a new swipe or consumption type
type CategoryInput struct {
	Name        string
	Icon        string
	Color       string
	Description string
	SortOrder   int
}

// CategoryPatch lists editable category fields. Nil fields stay unchanged.
type CategoryPatch struct {
	Name        *string
	Icon        *string
	Color       *string
	Description *string
	SortOrder   *int
}
