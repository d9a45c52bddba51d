package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/card-repayment-ledger/internal/api_gateway/middleware"
	"github.com/card-repayment-ledger/internal/api_gateway/service"
	"github.com/card-repayment-ledger/internal/dashboard"
	"github.com/card-repayment-ledger/internal/domain/catalog"
	"github.com/card-repayment-ledger/internal/domain/record"
)

const testOwner = "owner-1"

// envelope is the decoded response with the data left raw
type envelope struct {
	Data          json.RawMessage `json:"data"`
	Error         *ErrorInfo      `json:"error,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Meta          *MetaInfo       `json:"meta,omitempty"`
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter mounts routes behind the same identity middleware as the server
func newTestRouter(register func(r gin.IRouter)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.CorrelationID())
	group := router.Group("", middleware.OwnerIdentity())
	register(group)
	return router
}

// serve sends a request as testOwner and decodes the envelope when there is a body
func serve(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.OwnerIDHeader, testOwner)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

type MockRecordService struct {
	mock.Mock
}

func (m *MockRecordService) CreateRecord(ctx context.Context, in service.CreateRecordInput) (*record.Record, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.Record), args.Error(1)
}

func (m *MockRecordService) GetRecord(ctx context.Context, ownerID, id string) (*record.Record, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.Record), args.Error(1)
}

func (m *MockRecordService) ListRecords(ctx context.Context, ownerID string, in service.ListRecordsInput, page, perPage int) ([]*record.Record, int64, error) {
	args := m.Called(ctx, ownerID, in, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*record.Record), args.Get(1).(int64), args.Error(2)
}

func (m *MockRecordService) RecordStats(ctx context.Context, ownerID string, in service.ListRecordsInput) (*service.RecordStats, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RecordStats), args.Error(1)
}

func (m *MockRecordService) UpdateRecord(ctx context.Context, ownerID, id string, in service.UpdateRecordInput) (*record.Record, error) {
	args := m.Called(ctx, ownerID, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.Record), args.Error(1)
}

func (m *MockRecordService) DeleteRecord(ctx context.Context, ownerID, id string) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

type MockCardService struct {
	mock.Mock
}

func (m *MockCardService) CreateCard(ctx context.Context, ownerID string, in service.CardInput) (*catalog.Card, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Card), args.Error(1)
}

func (m *MockCardService) GetCard(ctx context.Context, ownerID string, id uuid.UUID) (*catalog.Card, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Card), args.Error(1)
}

func (m *MockCardService) ListCards(ctx context.Context, ownerID string, includeInactive bool) ([]*catalog.Card, error) {
	args := m.Called(ctx, ownerID, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Card), args.Error(1)
}

func (m *MockCardService) UpdateCard(ctx context.Context, ownerID string, id uuid.UUID, in service.CardPatch) (*catalog.Card, error) {
	args := m.Called(ctx, ownerID, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Card), args.Error(1)
}

func (m *MockCardService) DeleteCard(ctx context.Context, ownerID string, id uuid.UUID) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

type MockCategoryService struct {
	mock.Mock
}

func (m *MockCategoryService) CreateCategory(ctx context.Context, ownerID string, kind catalog.Kind, in service.CategoryInput) (*catalog.Category, error) {
	args := m.Called(ctx, ownerID, kind, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCategoryService) ListCategories(ctx context.Context, ownerID string, kind catalog.Kind, includeInactive bool) ([]*catalog.Category, error) {
	args := m.Called(ctx, ownerID, kind, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Category), args.Error(1)
}

func (m *MockCategoryService) UpdateCategory(ctx context.Context, ownerID string, kind catalog.Kind, id uuid.UUID, in service.CategoryPatch) (*catalog.Category, error) {
	args := m.Called(ctx, ownerID, kind, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCategoryService) DeleteCategory(ctx context.Context, ownerID string, kind catalog.Kind, id uuid.UUID) error {
	args := m.Called(ctx, ownerID, kind, id)
	return args.Error(0)
}

type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) GetSummary(ctx context.Context, ownerID, cardID string) (*dashboard.Summary, error) {
	args := m.Called(ctx, ownerID, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboard.Summary), args.Error(1)
}
