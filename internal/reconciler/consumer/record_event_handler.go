package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/card-repayment-ledger/internal/domain/shared"
	"github.com/card-repayment-ledger/internal/platform/messaging/producers"
	"github.com/card-repayment-ledger/internal/reconciler/service"
)

// RecordEventHandler reconciles the card behind record events that may have
// left it inconsistent
type RecordEventHandler struct {
	reconcileService service.ReconcileService
	producer         producers.DeadLetterPublisher
	logger           *slog.Logger
}

// NewRecordEventHandler creates a new handler
func NewRecordEventHandler(
	logger *slog.Logger,
	reconcileService service.ReconcileService,
	producer producers.DeadLetterPublisher,
) *RecordEventHandler {
	return &RecordEventHandler{
		reconcileService: reconcileService,
		producer:         producer,
		logger:           logger,
	}
}

// HandleMessage processes Kafka messages
func (h *RecordEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.RecordEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return h.deadLetter(ctx, key, value, "Failed to unmarshal record event from Kafka message", err)
	}
	if event.OwnerID == "" || event.CardID == "" {
		return h.deadLetter(ctx, key, value, "Record event has no card scope", fmt.Errorf("owner %q card %q", event.OwnerID, event.CardID))
	}

	logger := h.logger.With("event_id", event.EventID.String(), "event_type", event.Type)
	if event.CorrelationID != "" {
		logger = logger.With("correlation_id", event.CorrelationID)
	}

	if !event.Type.NeedsReconciliation() {
		logger.Debug("Skipping record event", "record_id", event.RecordID)
		return nil
	}

	logger.Info("Received record event for reconciliation",
		"record_id", event.RecordID,
		"owner_id", event.OwnerID,
		"card_id", event.CardID,
		"reason", event.Reason,
	)

	report, err := h.reconcileService.ReconcileCard(ctx, event.OwnerID, event.CardID, service.TriggerEvent)
	if err != nil {
		logger.Error("Failed to reconcile card", "card_id", event.CardID, "error", err)
		return fmt.Errorf("reconciling card %s failed: %w", event.PartitionKey(), err)
	}

	logger.Info("Reconciled card after record event",
		"card_id", event.CardID,
		"missing_edges", report.MissingEdges,
		"status_fixes", report.StatusFixes,
	)
	return nil // Success, commit offset
}

// deadLetter parks an undecodable message. The offset is committed only when
// the DLQ write succeeds.
func (h *RecordEventHandler) deadLetter(ctx context.Context, key, value []byte, msg string, cause error) error {
	h.logger.Error(msg, "error", cause, "message_key", string(key))

	if h.producer != nil {
		dlqReason := fmt.Sprintf("%s: %s", msg, cause.Error())
		if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
			return nil
		}
	}
	// Allow Kafka retries
	return fmt.Errorf("unprocessable record event: %w", cause)
}
