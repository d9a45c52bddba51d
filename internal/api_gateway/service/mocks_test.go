package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/card-repayment-ledger/internal/dashboard"
	"github.com/card-repayment-ledger/internal/domain/catalog"
	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockCardRepository struct {
	mock.Mock
}

func (m *MockCardRepository) Create(ctx context.Context, card *catalog.Card) error {
	args := m.Called(ctx, card)
	return args.Error(0)
}

func (m *MockCardRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*catalog.Card, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Card), args.Error(1)
}

func (m *MockCardRepository) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*catalog.Card, error) {
	args := m.Called(ctx, ownerID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Card), args.Error(1)
}

func (m *MockCardRepository) Update(ctx context.Context, card *catalog.Card) error {
	args := m.Called(ctx, card)
	return args.Error(0)
}

func (m *MockCardRepository) Deactivate(ctx context.Context, ownerID string, id uuid.UUID) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) Create(ctx context.Context, category *catalog.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockCategoryRepository) GetByID(ctx context.Context, ownerID string, kind catalog.Kind, id uuid.UUID) (*catalog.Category, error) {
	args := m.Called(ctx, ownerID, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) ListByOwner(ctx context.Context, ownerID string, kind catalog.Kind, activeOnly bool) ([]*catalog.Category, error) {
	args := m.Called(ctx, ownerID, kind, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) Update(ctx context.Context, category *catalog.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockCategoryRepository) Deactivate(ctx context.Context, ownerID string, kind catalog.Kind, id uuid.UUID) error {
	args := m.Called(ctx, ownerID, kind, id)
	return args.Error(0)
}

type MockAllocator struct {
	mock.Mock
}

func (m *MockAllocator) Allocate(ctx context.Context, rec *record.Record) (*record.Record, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.Record), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishEvent(ctx context.Context, event shared.RecordEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockSummaryBuilder struct {
	mock.Mock
}

func (m *MockSummaryBuilder) Build(ctx context.Context, ownerID string, opts dashboard.Options) (*dashboard.Summary, error) {
	args := m.Called(ctx, ownerID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboard.Summary), args.Error(1)
}

// eventOfType matches a published event by its type
func eventOfType(eventType shared.EventType) interface{} {
	return mock.MatchedBy(func(e shared.RecordEvent) bool { return e.Type == eventType })
}
