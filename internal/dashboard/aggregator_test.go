package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/card-repayment-ledger/internal/data/memory"
	"github.com/card-repayment-ledger/internal/domain/catalog"
	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/settlement"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

type MockCardLister struct {
	mock.Mock
}

func (m *MockCardLister) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*catalog.Card, error) {
	args := m.Called(ctx, ownerID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Card), args.Error(1)
}

type failingAggregator struct{}

func (failingAggregator) Aggregate(context.Context, record.Query) ([]record.Group, error) {
	return nil, errors.New("pipeline failed")
}

const owner = "owner-1"

var now = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedCard(id uuid.UUID, bank, number string, limit int64, paymentDay int) *catalog.Card {
	return &catalog.Card{
		ID:          id,
		OwnerID:     owner,
		Bank:        bank,
		CardNumber:  number,
		CreditLimit: limit,
		BillDay:     5,
		PaymentDay:  paymentDay,
		Color:       catalog.DefaultColor,
		IsActive:    true,
	}
}

func seedRecord(t *testing.T, repo *memory.RecordRepository, id, cardID string, recordType shared.RecordType, amount, allocated int64, tradeDate time.Time, swipeID, swipeName string) {
	t.Helper()
	rec, err := record.NewRecord(owner, cardID, recordType, amount, tradeDate)
	require.NoError(t, err)
	rec.ID = id
	rec.SwipeTypeID, rec.SwipeTypeName = swipeID, swipeName
	if allocated > 0 {
		rec.Allocations = []record.Allocation{{CounterpartID: "x", Amount: allocated}}
	}
	rec.Status = settlement.Derive(amount, allocated)
	repo.Put(rec)
}

func TestAggregator_Build(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRecordRepository()
	cardA, cardB := uuid.New(), uuid.New()
	a, b := cardA.String(), cardB.String()

	monthStart := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	lastMonth := monthStart.Add(-time.Nanosecond)

	seedRecord(t, repo, "a1", a, shared.RecordTypePayment, 10000, 2500, now, "s1", "Online")
	seedRecord(t, repo, "a2", a, shared.RecordTypePayment, 4000, 0, monthStart, "s2", "POS")
	seedRecord(t, repo, "a3", a, shared.RecordTypePayment, 3000, 0, lastMonth, "s1", "Online")
	seedRecord(t, repo, "a4", a, shared.RecordTypePayment, 2000, 2000, now, "s1", "Online")
	seedRecord(t, repo, "b1", b, shared.RecordTypePayment, 1500, 0, now, "", "")
	seedRecord(t, repo, "r1", a, shared.RecordTypeRepayment, 4500, 4500, now, "", "")

	cards := new(MockCardLister)
	cards.On("ListByOwner", mock.Anything, owner, true).Return([]*catalog.Card{
		seedCard(cardA, "ACME", "6222000011112222", 50000, 25),
		seedCard(cardB, "Globex", "4111", 20000, 0),
	}, nil)

	agg := NewAggregator(repo, cards, time.UTC, testLogger())
	agg.now = func() time.Time { return now }

	summary, err := agg.Build(ctx, owner, Options{})
	require.NoError(t, err)

	require.Len(t, summary.Cards, 2)
	first := summary.Cards[0]
	assert.Equal(t, a, first.ID)
	assert.Equal(t, "ACME", first.Name)
	assert.Equal(t, "2222", first.LastFour)
	assert.Equal(t, int64(7500+4000+3000), first.Used, "outstanding ignores the month window")
	assert.Equal(t, int64(10000+4000+2000), first.MonthlyBill, "month start included, the instant before excluded")
	assert.Equal(t, int64(7500+4000), first.MonthlyOutstanding)
	require.NotNil(t, first.DaysToPayment)
	assert.Equal(t, 15, *first.DaysToPayment)
	assert.Equal(t, []NamedAmount{{Name: "Online", Amount: 10500}, {Name: "POS", Amount: 4000}}, first.UsedBySwipeTypes)

	second := summary.Cards[1]
	assert.Nil(t, second.DaysToPayment)
	assert.Equal(t, int64(1500), second.Used)
	assert.Equal(t, []NamedAmount{{Name: UnknownLabel, Amount: 1500}}, second.UsedBySwipeTypes)

	assert.Equal(t, Totals{Limit: 70000, Used: 16000, Available: 54000}, summary.Totals)
	assert.Equal(t, []NamedAmount{
		{Name: "Online", Amount: 15000},
		{Name: "POS", Amount: 4000},
		{Name: UnknownLabel, Amount: 1500},
	}, summary.Consumption)
	assert.Equal(t, int64(20500), summary.TypeStats[shared.RecordTypePayment])
	assert.Equal(t, int64(4500), summary.TypeStats[shared.RecordTypeRepayment])
	assert.Equal(t, monthStart, summary.TimeRange.Start)
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), summary.TimeRange.End)

	cards.AssertExpectations(t)
}

func TestAggregator_BuildForOneCard(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRecordRepository()
	cardA, cardB := uuid.New(), uuid.New()

	seedRecord(t, repo, "a1", cardA.String(), shared.RecordTypePayment, 1000, 0, now, "s1", "Online")
	seedRecord(t, repo, "b1", cardB.String(), shared.RecordTypePayment, 9000, 0, now, "s1", "Online")

	cards := new(MockCardLister)
	cards.On("ListByOwner", mock.Anything, owner, true).Return([]*catalog.Card{
		seedCard(cardA, "ACME", "1234", 5000, 1),
		seedCard(cardB, "Globex", "5678", 8000, 1),
	}, nil)

	agg := NewAggregator(repo, cards, time.UTC, testLogger())
	agg.now = func() time.Time { return now }

	summary, err := agg.Build(ctx, owner, Options{CardID: cardB.String()})
	require.NoError(t, err)
	require.Len(t, summary.Cards, 1)
	assert.Equal(t, cardB.String(), summary.Cards[0].ID)
	assert.Equal(t, Totals{Limit: 8000, Used: 9000, Available: -1000}, summary.Totals)
	assert.Equal(t, []NamedAmount{{Name: "Online", Amount: 9000}}, summary.Consumption)
	assert.Equal(t, int64(0), summary.TypeStats[shared.RecordTypeRepayment], "both type keys are present")
}

func TestAggregator_BuildEmpty(t *testing.T) {
	cards := new(MockCardLister)
	cards.On("ListByOwner", mock.Anything, owner, true).Return([]*catalog.Card{}, nil)

	summary, err := NewAggregator(memory.NewRecordRepository(), cards, nil, testLogger()).Build(context.Background(), owner, Options{})
	require.NoError(t, err)
	assert.Empty(t, summary.Cards)
	assert.NotNil(t, summary.Cards)
	assert.Empty(t, summary.Consumption)
	assert.Len(t, summary.TypeStats, 2)
	assert.Equal(t, Totals{}, summary.Totals)
}

func TestAggregator_BuildErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("InvalidCardID", func(t *testing.T) {
		agg := NewAggregator(memory.NewRecordRepository(), new(MockCardLister), time.UTC, testLogger())
		_, err := agg.Build(ctx, owner, Options{CardID: "not-a-uuid"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput{Field: "card_id"})
	})

	t.Run("AggregationFails", func(t *testing.T) {
		cards := new(MockCardLister)
		cards.On("ListByOwner", mock.Anything, owner, true).Return([]*catalog.Card{}, nil)
		agg := NewAggregator(failingAggregator{}, cards, time.UTC, testLogger())
		_, err := agg.Build(ctx, owner, Options{})
		assert.ErrorContains(t, err, "pipeline failed")
	})

	t.Run("CardListingFails", func(t *testing.T) {
		cards := new(MockCardLister)
		cards.On("ListByOwner", mock.Anything, owner, true).Return(nil, errors.New("db down"))
		agg := NewAggregator(memory.NewRecordRepository(), cards, time.UTC, testLogger())
		_, err := agg.Build(ctx, owner, Options{})
		assert.ErrorContains(t, err, "db down")
	})
}
