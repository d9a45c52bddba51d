package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/card-repayment-ledger/internal/domain/shared"
	"github.com/card-repayment-ledger/internal/reconciler/service"
)

// MockReconcileService for testing
type MockReconcileService struct {
	mock.Mock
}

func (m *MockReconcileService) ReconcileCard(ctx context.Context, ownerID, cardID, trigger string) (*service.Report, error) {
	args := m.Called(ctx, ownerID, cardID, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Report), args.Error(1)
}

// MockDeadLetterPublisher for testing
type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, value []byte, reason string) error {
	args := m.Called(ctx, key, value, reason)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func encode(t *testing.T, eventType shared.EventType, owner, card string) []byte {
	t.Helper()
	value, err := json.Marshal(shared.RecordEvent{
		EventID:       uuid.New(),
		Type:          eventType,
		RecordID:      "r1",
		OwnerID:       owner,
		CardID:        card,
		RecordType:    shared.RecordTypeRepayment,
		Amount:        500,
		CorrelationID: "corr1",
		OccurredAt:    time.Now(),
	})
	require.NoError(t, err)
	return value
}

func TestHandleMessage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	key := []byte("owner-1:card-1")

	tests := []struct {
		name        string
		value       func(t *testing.T) []byte
		setupMocks  func(svc *MockReconcileService, dlq *MockDeadLetterPublisher)
		nilDLQ      bool
		expectedErr string
	}{
		{
			name:  "allocation failure triggers reconciliation",
			value: func(t *testing.T) []byte { return encode(t, shared.EventTypeAllocationFailed, "owner-1", "card-1") },
			setupMocks: func(svc *MockReconcileService, _ *MockDeadLetterPublisher) {
				svc.On("ReconcileCard", mock.Anything, "owner-1", "card-1", service.TriggerEvent).
					Return(&service.Report{MissingEdges: 1}, nil).Once()
			},
		},
		{
			name:  "deactivation triggers reconciliation",
			value: func(t *testing.T) []byte { return encode(t, shared.EventTypeRecordDeactivated, "owner-1", "card-1") },
			setupMocks: func(svc *MockReconcileService, _ *MockDeadLetterPublisher) {
				svc.On("ReconcileCard", mock.Anything, "owner-1", "card-1", service.TriggerEvent).
					Return(&service.Report{}, nil).Once()
			},
		},
		{
			name:       "created event is skipped",
			value:      func(t *testing.T) []byte { return encode(t, shared.EventTypeRecordCreated, "owner-1", "card-1") },
			setupMocks: func(*MockReconcileService, *MockDeadLetterPublisher) {},
		},
		{
			name:  "reconcile error is returned for retry",
			value: func(t *testing.T) []byte { return encode(t, shared.EventTypeRecordUpdated, "owner-1", "card-1") },
			setupMocks: func(svc *MockReconcileService, _ *MockDeadLetterPublisher) {
				svc.On("ReconcileCard", mock.Anything, "owner-1", "card-1", service.TriggerEvent).
					Return(nil, errors.New("lock timeout")).Once()
			},
			expectedErr: "lock timeout",
		},
		{
			name:  "malformed message goes to DLQ",
			value: func(*testing.T) []byte { return []byte("not json") },
			setupMocks: func(_ *MockReconcileService, dlq *MockDeadLetterPublisher) {
				dlq.On("PublishToDLQ", mock.Anything, "owner-1:card-1", []byte("not json"), mock.AnythingOfType("string")).Return(nil).Once()
			},
		},
		{
			name:  "event without card goes to DLQ",
			value: func(t *testing.T) []byte { return encode(t, shared.EventTypeRecordUpdated, "owner-1", "") },
			setupMocks: func(_ *MockReconcileService, dlq *MockDeadLetterPublisher) {
				dlq.On("PublishToDLQ", mock.Anything, "owner-1:card-1", mock.Anything, mock.MatchedBy(func(reason string) bool {
					return strings.HasPrefix(reason, "Record event has no card scope")
				})).Return(nil).Once()
			},
		},
		{
			name:  "DLQ failure is returned",
			value: func(*testing.T) []byte { return []byte("{") },
			setupMocks: func(_ *MockReconcileService, dlq *MockDeadLetterPublisher) {
				dlq.On("PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("kafka down")).Once()
			},
			expectedErr: "unprocessable record event",
		},
		{
			name:        "no DLQ configured",
			value:       func(*testing.T) []byte { return []byte("{") },
			setupMocks:  func(*MockReconcileService, *MockDeadLetterPublisher) {},
			nilDLQ:      true,
			expectedErr: "unprocessable record event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockReconcileService{}
			dlq := &MockDeadLetterPublisher{}
			tt.setupMocks(svc, dlq)

			handler := NewRecordEventHandler(logger, svc, dlq)
			if tt.nilDLQ {
				handler = NewRecordEventHandler(logger, svc, nil)
			}

			err := handler.HandleMessage(context.Background(), key, tt.value(t))
			if tt.expectedErr != "" {
				assert.ErrorContains(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			svc.AssertExpectations(t)
			dlq.AssertExpectations(t)
		})
	}
}
