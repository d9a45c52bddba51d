package record

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/card-repayment-ledger/internal/domain/settlement"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

func TestNewRecord(t *testing.T) {
	t.Run("SuccessfulCreation", func(t *testing.T) {
		tradeDate := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
		before := time.Now()

		rec, err := NewRecord("owner-1", "card-1", shared.RecordTypePayment, 12000, tradeDate)

		require.NoError(t, err)
		_, parseErr := uuid.Parse(rec.ID)
		assert.NoError(t, parseErr, "record id should be a UUID")
		assert.Equal(t, "owner-1", rec.OwnerID)
		assert.Equal(t, "card-1", rec.CardID)
		assert.Equal(t, shared.RecordTypePayment, rec.Type)
		assert.Equal(t, int64(12000), rec.Amount)
		assert.Equal(t, tradeDate, rec.TradeDate)
		assert.Equal(t, settlement.StatusUnpaid, rec.Status)
		assert.NotNil(t, rec.Allocations)
		assert.Empty(t, rec.Allocations)
		assert.True(t, rec.IsActive)
		assert.False(t, rec.CreatedAt.Before(before))
	})

	t.Run("DefaultsTradeDateToNow", func(t *testing.T) {
		rec, err := NewRecord("owner-1", "card-1", shared.RecordTypeRepayment, 1, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, rec.CreatedAt, rec.TradeDate)
		assert.Equal(t, time.UTC, rec.TradeDate.Location())
		assert.Equal(t, time.UTC, rec.UpdatedAt.Location())
	})

	tests := []struct {
		name       string
		ownerID    string
		cardID     string
		recordType shared.RecordType
		amount     int64
		expected   error
	}{
		{name: "missing owner", ownerID: " ", cardID: "c", recordType: shared.RecordTypePayment, amount: 1, expected: ErrEmptyOwner},
		{name: "missing card", ownerID: "o", cardID: "", recordType: shared.RecordTypePayment, amount: 1, expected: ErrEmptyCard},
		{name: "unknown type", ownerID: "o", cardID: "c", recordType: "REFUND", amount: 1, expected: ErrInvalidRecordType},
		{name: "zero amount", ownerID: "o", cardID: "c", recordType: shared.RecordTypePayment, amount: 0, expected: ErrInvalidAmount},
		{name: "negative amount", ownerID: "o", cardID: "c", recordType: shared.RecordTypeRepayment, amount: -5, expected: ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewRecord(tt.ownerID, tt.cardID, tt.recordType, tt.amount, time.Now())
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestRecord_AllocationArithmetic(t *testing.T) {
	rec := &Record{
		Amount: 10000,
		Allocations: []Allocation{
			{CounterpartID: "r1", Amount: 2500},
			{CounterpartID: "r2", Amount: 1500},
			{CounterpartID: "r1", Amount: 1000},
		},
	}

	assert.Equal(t, int64(5000), rec.AllocatedSum())
	assert.Equal(t, int64(3500), rec.AllocatedTo("r1"))
	assert.Equal(t, int64(0), rec.AllocatedTo("missing"))
	assert.Equal(t, int64(5000), rec.Remaining())
	assert.Equal(t, settlement.StatusPartiallyPaid, rec.DerivedStatus())
	assert.True(t, rec.HasAllocations())

	rec.Allocations = append(rec.Allocations, Allocation{CounterpartID: "r3", Amount: 6000})
	assert.Equal(t, int64(0), rec.Remaining(), "remaining never goes negative")
	assert.Equal(t, settlement.StatusPaid, rec.DerivedStatus())
}

func TestRecord_CardKey(t *testing.T) {
	rec := &Record{OwnerID: "o", CardID: "c"}
	assert.Equal(t, "o:c", rec.CardKey())
}

func TestChanges(t *testing.T) {
	assert.True(t, Changes{}.IsEmpty())

	amount := int64(500)
	status := settlement.StatusPaid
	desc := "groceries"
	when := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	changes := Changes{
		Amount:          &amount,
		Status:          &status,
		Description:     &desc,
		TradeDate:       &when,
		Card:            &CardSnapshot{ID: "c2", Name: "Gold", Bank: "ACME", Number: "4242"},
		SwipeType:       &Ref{ID: "s1", Name: "Online"},
		ConsumptionType: &Ref{ID: "k1", Name: "Food"},
	}
	assert.False(t, changes.IsEmpty())

	rec := &Record{}
	changes.Apply(rec)

	assert.Equal(t, amount, rec.Amount)
	assert.Equal(t, status, rec.Status)
	assert.Equal(t, desc, rec.Description)
	assert.Equal(t, when, rec.TradeDate)
	assert.Equal(t, "c2", rec.CardID)
	assert.Equal(t, "Gold", rec.CardName)
	assert.Equal(t, "ACME", rec.CardBank)
	assert.Equal(t, "4242", rec.CardNumber)
	assert.Equal(t, "Online", rec.SwipeTypeName)
	assert.Equal(t, "k1", rec.ConsumptionTypeID)
}

func TestFilter_Matches(t *testing.T) {
	start := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	base := &Record{
		OwnerID:           "o",
		CardID:            "c",
		ConsumptionTypeID: "food",
		Type:              shared.RecordTypePayment,
		Status:            settlement.StatusUnpaid,
		TradeDate:         start,
		IsActive:          true,
	}
	filter := Filter{
		OwnerID:           "o",
		CardID:            "c",
		ConsumptionTypeID: "food",
		Type:              shared.RecordTypePayment,
		Statuses:          settlement.OpenStatuses(),
		TradeFrom:         &start,
		TradeTo:           &end,
	}

	assert.True(t, filter.Matches(base), "month start is inside the window")

	beforeStart := *base
	beforeStart.TradeDate = start.Add(-time.Nanosecond)
	assert.False(t, filter.Matches(&beforeStart), "one instant before month start is outside")

	atEnd := *base
	atEnd.TradeDate = end
	assert.False(t, filter.Matches(&atEnd), "next month start is outside")

	inactive := *base
	inactive.IsActive = false
	assert.False(t, filter.Matches(&inactive))

	paid := *base
	paid.Status = settlement.StatusPaid
	assert.False(t, filter.Matches(&paid))

	otherOwner := *base
	otherOwner.OwnerID = "x"
	assert.False(t, filter.Matches(&otherOwner))

	assert.True(t, Filter{}.Matches(base), "empty filter keeps active records")
}

func TestMeasureAndKeyOf(t *testing.T) {
	rec := &Record{
		CardID:              "c",
		CardName:            "Gold",
		SwipeTypeID:         "s",
		SwipeTypeName:       "Online",
		ConsumptionTypeID:   "k",
		ConsumptionTypeName: "Food",
		Type:                shared.RecordTypePayment,
		Amount:              10000,
		Allocations:         []Allocation{{CounterpartID: "r", Amount: 4000}},
	}

	assert.Equal(t, int64(10000), MeasureOf(MeasureAmount, rec))
	assert.Equal(t, int64(6000), MeasureOf(MeasureOutstanding, rec))

	id, label := KeyOf(GroupBySwipeType, rec)
	assert.Equal(t, "s", id)
	assert.Equal(t, "Online", label)
	id, _ = KeyOf(GroupByCard, rec)
	assert.Equal(t, "c", id)
	_, label = KeyOf(GroupByConsumptionType, rec)
	assert.Equal(t, "Food", label)
	id, _ = KeyOf(GroupByRecordType, rec)
	assert.Equal(t, "PAYMENT", id)
}

func TestErrors(t *testing.T) {
	t.Run("ErrRecordNotFound", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", ErrRecordNotFound{RecordID: "r1"})
		assert.True(t, errors.Is(err, ErrRecordNotFound{}))
		assert.True(t, errors.Is(err, ErrRecordNotFound{RecordID: "r1"}))
		assert.False(t, errors.Is(err, ErrRecordNotFound{RecordID: "r2"}))
		assert.Equal(t, "record not found: r1", ErrRecordNotFound{RecordID: "r1"}.Error())
	})

	t.Run("ErrOverAllocation", func(t *testing.T) {
		err := fmt.Errorf("append: %w", ErrOverAllocation{RecordID: "p1", Requested: 700})
		assert.True(t, errors.Is(err, ErrOverAllocation{}))
		assert.False(t, errors.Is(err, ErrOverAllocation{RecordID: "p2"}))
		assert.Contains(t, err.Error(), "allocating 700 to record p1")
	})

	t.Run("ErrRecordHasAllocations", func(t *testing.T) {
		err := ErrRecordHasAllocations{RecordID: "p1"}
		assert.True(t, errors.Is(err, ErrRecordHasAllocations{}))
		assert.False(t, errors.Is(err, ErrRecordNotFound{}))
	})
}
