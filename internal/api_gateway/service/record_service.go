package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/card-repayment-ledger/internal/domain/catalog"
	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/settlement"
	"github.com/card-repayment-ledger/internal/domain/shared"
	"github.com/card-repayment-ledger/internal/logger"
	"github.com/card-repayment-ledger/internal/platform/lock"
	"github.com/card-repayment-ledger/internal/platform/messaging/producers"
)

// errCardMoved is returned when a record changed cards between the unlocked
// read and the locked re-read
var errCardMoved = errors.New("record moved to another card concurrently")

// RecordServiceImpl implements the RecordService interface
type RecordServiceImpl struct {
	records    record.Repository
	cards      catalog.CardRepository
	categories catalog.CategoryRepository
	allocator  Allocator
	locker     lock.Locker
	publisher  producers.EventPublisher // nil disables events
	logger     *slog.Logger
	loc        *time.Location // zone trade dates are stored in
	now        func() time.Time
}

// NewRecordService creates a new record service
func NewRecordService(
	logger *slog.Logger,
	records record.Repository,
	cards catalog.CardRepository,
	categories catalog.CategoryRepository,
	allocator Allocator,
	locker lock.Locker,
	publisher producers.EventPublisher,
	loc *time.Location,
) *RecordServiceImpl {
	if loc == nil {
		loc = time.UTC
	}
	return &RecordServiceImpl{
		records:    records,
		cards:      cards,
		categories: categories,
		allocator:  allocator,
		locker:     locker,
		publisher:  publisher,
		logger:     logger,
		loc:        loc,
		now:        time.Now,
	}
}

// CreateRecord stores a new record and runs allocation for it before returning
func (s *RecordServiceImpl) CreateRecord(ctx context.Context, in CreateRecordInput) (*record.Record, error) {
	if !in.Type.Valid() {
		return nil, shared.ErrInvalidInput{Field: "record_type", Reason: "must be PAYMENT or REPAYMENT"}
	}
	if in.Amount <= 0 {
		return nil, shared.ErrInvalidInput{Field: "amount", Reason: "must be greater than 0"}
	}
	if in.Type == shared.RecordTypePayment {
		if strings.TrimSpace(in.SwipeTypeID) == "" {
			return nil, shared.ErrInvalidInput{Field: "swipe_type_id", Reason: "is required for a PAYMENT"}
		}
		if strings.TrimSpace(in.ConsumptionTypeID) == "" {
			return nil, shared.ErrInvalidInput{Field: "consumption_type_id", Reason: "is required for a PAYMENT"}
		}
	}

	card, err := s.resolveCard(ctx, in.OwnerID, in.CardID)
	if err != nil {
		return nil, err
	}
	var swipe, consumption *record.Ref
	if in.SwipeTypeID != "" {
		if swipe, err = s.resolveCategory(ctx, in.OwnerID, catalog.KindSwipe, in.SwipeTypeID); err != nil {
			return nil, err
		}
	}
	if in.ConsumptionTypeID != "" {
		if consumption, err = s.resolveCategory(ctx, in.OwnerID, catalog.KindConsumption, in.ConsumptionTypeID); err != nil {
			return nil, err
		}
	}

	tradeDate := s.now().In(s.loc)
	if in.TradeDate != nil {
		tradeDate = in.TradeDate.In(s.loc)
	}
	rec, err := record.NewRecord(in.OwnerID, card.ID.String(), in.Type, in.Amount, tradeDate)
	if err != nil {
		return nil, shared.ErrInvalidInput{Reason: err.Error()}
	}
	rec.CardName, rec.CardBank, rec.CardNumber = card.Name, card.Bank, card.CardNumber
	if swipe != nil {
		rec.SwipeTypeID, rec.SwipeTypeName = swipe.ID, swipe.Name
	}
	if consumption != nil {
		rec.ConsumptionTypeID, rec.ConsumptionTypeName = consumption.ID, consumption.Name
	}
	rec.Description = strings.TrimSpace(in.Description)

	if err := s.records.Create(ctx, rec); err != nil {
		s.logger.Error("Failed to store record", "owner_id", in.OwnerID, "card_id", rec.CardID, "error", err)
		return nil, fmt.Errorf("failed to store record: %w", err)
	}

	stored, err := s.allocator.Allocate(ctx, rec)
	if err != nil {
		s.logger.Error("Allocation failed after record was stored",
			"record_id", rec.ID,
			"owner_id", rec.OwnerID,
			"card_id", rec.CardID,
			"record_type", string(rec.Type),
			"amount", rec.Amount,
			"correlation_id", logger.CorrelationID(ctx),
			"error", err,
		)
		s.publish(ctx, s.event(ctx, rec, shared.EventTypeAllocationFailed, err.Error()))
		return nil, shared.ErrOperationFailed
	}

	s.logger.Info("Record created",
		"record_id", stored.ID,
		"record_type", string(stored.Type),
		"amount", stored.Amount,
		"status", string(stored.Status),
	)
	s.publish(ctx, s.event(ctx, stored, shared.EventTypeRecordCreated, ""))
	return stored, nil
}

// GetRecord returns an owner's active record
func (s *RecordServiceImpl) GetRecord(ctx context.Context, ownerID, id string) (*record.Record, error) {
	rec, err := s.records.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, record.ErrRecordNotFound{RecordID: id}
	}
	return rec, nil
}

// ListRecords returns one page of matching records and the total match count
func (s *RecordServiceImpl) ListRecords(ctx context.Context, ownerID string, in ListRecordsInput, page, perPage int) ([]*record.Record, int64, error) {
	filter, err := listFilter(ownerID, in)
	if err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * perPage

	records, err := s.records.List(ctx, filter, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.records.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// RecordStats sums record amounts per consumption type, largest first
func (s *RecordServiceImpl) RecordStats(ctx context.Context, ownerID string, in ListRecordsInput) (*RecordStats, error) {
	filter, err := listFilter(ownerID, in)
	if err != nil {
		return nil, err
	}

	groups, err := s.records.Aggregate(ctx, record.Query{
		Filter:  filter,
		GroupBy: []record.GroupField{record.GroupByConsumptionType},
		Measure: record.MeasureAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate record stats: %w", err)
	}

	types, err := s.categories.ListByOwner(ctx, ownerID, catalog.KindConsumption, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load consumption types: %w", err)
	}
	byID := make(map[string]*catalog.Category, len(types))
	for _, t := range types {
		byID[t.ID.String()] = t
	}

	stats := &RecordStats{Stats: make([]ConsumptionStat, 0, len(groups))}
	for _, g := range groups {
		id := g.Key(record.GroupByConsumptionType)
		stat := ConsumptionStat{
			ConsumptionTypeID: id,
			Name:              g.Label(record.GroupByConsumptionType),
			Color:             catalog.DefaultColor,
			TotalAmount:       g.Total,
			Count:             g.Count,
		}
		if t, ok := byID[id]; ok {
			if stat.Name == "" {
				stat.Name = t.Name
			}
			stat.Color = t.Color
		}
		if stat.Name == "" {
			stat.Name = "Unknown"
		}
		stats.Stats = append(stats.Stats, stat)
		stats.TotalAmount += g.Total
	}
	sort.SliceStable(stats.Stats, func(i, j int) bool {
		return stats.Stats[i].TotalAmount > stats.Stats[j].TotalAmount
	})

	return stats, nil
}

// UpdateRecord applies management edits under the card lock. Amount changes
// re-derive the status from the existing allocations; allocation is not re-run.
func (s *RecordServiceImpl) UpdateRecord(ctx context.Context, ownerID, id string, in UpdateRecordInput) (*record.Record, error) {
	changes, err := s.resolveChanges(ctx, ownerID, in)
	if err != nil {
		return nil, err
	}

	current, err := s.GetRecord(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if changes.IsEmpty() {
		return current, nil
	}

	keys := []string{current.CardKey()}
	if changes.Card != nil {
		keys = append(keys, shared.CardKey(ownerID, changes.Card.ID))
	}

	var updated *record.Record
	err = lock.DoAll(ctx, s.locker, keys, func(ctx context.Context) error {
		fresh, err := s.GetRecord(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if fresh.CardID != current.CardID {
			return errCardMoved
		}
		if changes.Card != nil && changes.Card.ID != fresh.CardID && fresh.HasAllocations() {
			return record.ErrRecordHasAllocations{RecordID: id}
		}
		if changes.Amount != nil {
			allocated := fresh.AllocatedSum()
			if *changes.Amount < allocated {
				return shared.ErrInvalidInput{Field: "amount", Reason: "cannot be less than the allocated amount"}
			}
			status := settlement.Derive(*changes.Amount, allocated)
			changes.Status = &status
		}

		updated, err = s.records.Update(ctx, ownerID, id, changes)
		return err
	})
	if err != nil {
		if errors.Is(err, errCardMoved) || errors.Is(err, lock.ErrLockTimeout) {
			s.logger.Warn("Record update lost a race", "record_id", id, "error", err)
			return nil, shared.ErrOperationFailed
		}
		return nil, err
	}

	s.logger.Info("Record updated", "record_id", id, "status", string(updated.Status))
	s.publish(ctx, s.event(ctx, updated, shared.EventTypeRecordUpdated, ""))
	return updated, nil
}

// DeleteRecord soft-deletes a record that has no allocations
func (s *RecordServiceImpl) DeleteRecord(ctx context.Context, ownerID, id string) error {
	current, err := s.GetRecord(ctx, ownerID, id)
	if err != nil {
		return err
	}

	err = lock.Do(ctx, s.locker, current.CardKey(), func(ctx context.Context) error {
		return s.records.Deactivate(ctx, ownerID, id)
	})
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return shared.ErrOperationFailed
		}
		return err
	}

	s.logger.Info("Record deactivated", "record_id", id)
	current.IsActive = false
	s.publish(ctx, s.event(ctx, current, shared.EventTypeRecordDeactivated, ""))
	return nil
}

func (s *RecordServiceImpl) resolveChanges(ctx context.Context, ownerID string, in UpdateRecordInput) (record.Changes, error) {
	var changes record.Changes

	if in.Amount != nil {
		if *in.Amount <= 0 {
			return changes, shared.ErrInvalidInput{Field: "amount", Reason: "must be greater than 0"}
		}
		changes.Amount = in.Amount
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		changes.Description = &description
	}
	if in.TradeDate != nil {
		tradeDate := in.TradeDate.In(s.loc)
		changes.TradeDate = &tradeDate
	}
	if in.CardID != nil {
		card, err := s.resolveCard(ctx, ownerID, *in.CardID)
		if err != nil {
			return changes, err
		}
		changes.Card = &record.CardSnapshot{
			ID:     card.ID.String(),
			Name:   card.Name,
			Bank:   card.Bank,
			Number: card.CardNumber,
		}
	}
	// An empty id clears the type
	if in.SwipeTypeID != nil {
		changes.SwipeType = &record.Ref{}
		if *in.SwipeTypeID != "" {
			ref, err := s.resolveCategory(ctx, ownerID, catalog.KindSwipe, *in.SwipeTypeID)
			if err != nil {
				return changes, err
			}
			changes.SwipeType = ref
		}
	}
	if in.ConsumptionTypeID != nil {
		changes.ConsumptionType = &record.Ref{}
		if *in.ConsumptionTypeID != "" {
			ref, err := s.resolveCategory(ctx, ownerID, catalog.KindConsumption, *in.ConsumptionTypeID)
			if err != nil {
				return changes, err
			}
			changes.ConsumptionType = ref
		}
	}

	return changes, nil
}

// resolveCard loads an active card of the owner, reporting anything else as invalid input
func (s *RecordServiceImpl) resolveCard(ctx context.Context, ownerID, cardID string) (*catalog.Card, error) {
	id, err := uuid.Parse(cardID)
	if err != nil {
		return nil, shared.ErrInvalidInput{Field: "card_id", Reason: "must be a valid id"}
	}

	card, err := s.cards.GetByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, catalog.ErrCardNotFound{}) {
			return nil, shared.ErrInvalidInput{Field: "card_id", Reason: "card not found or inactive"}
		}
		return nil, fmt.Errorf("failed to load card: %w", err)
	}
	if !card.IsActive {
		return nil, shared.ErrInvalidInput{Field: "card_id", Reason: "card not found or inactive"}
	}
	return card, nil
}

func (s *RecordServiceImpl) resolveCategory(ctx context.Context, ownerID string, kind catalog.Kind, rawID string) (*record.Ref, error) {
	field := "swipe_type_id"
	if kind == catalog.KindConsumption {
		field = "consumption_type_id"
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, shared.ErrInvalidInput{Field: field, Reason: "must be a valid id"}
	}

	category, err := s.categories.GetByID(ctx, ownerID, kind, id)
	if err != nil {
		if errors.Is(err, catalog.ErrCategoryNotFound{}) {
			return nil, shared.ErrInvalidInput{Field: field, Reason: "type not found or inactive"}
		}
		return nil, fmt.Errorf("failed to load %s: %w", strings.ToLower(string(kind)), err)
	}
	if !category.IsActive {
		return nil, shared.ErrInvalidInput{Field: field, Reason: "type not found or inactive"}
	}
	return &record.Ref{ID: category.ID.String(), Name: category.Name}, nil
}

func (s *RecordServiceImpl) event(ctx context.Context, rec *record.Record, eventType shared.EventType, reason string) shared.RecordEvent {
	return shared.RecordEvent{
		EventID:       uuid.New(),
		Type:          eventType,
		RecordID:      rec.ID,
		OwnerID:       rec.OwnerID,
		CardID:        rec.CardID,
		RecordType:    rec.Type,
		Amount:        rec.Amount,
		Status:        string(rec.Status),
		Reason:        reason,
		CorrelationID: logger.CorrelationID(ctx),
		OccurredAt:    s.now().UTC(),
	}
}

// publish never fails the request; the reconciler sweep covers lost events
func (s *RecordServiceImpl) publish(ctx context.Context, event shared.RecordEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish record event",
			"event_type", string(event.Type),
			"record_id", event.RecordID,
			"error", err,
		)
	}
}

// listFilter translates list parameters into a store filter. The end date is
// inclusive, so the window closes at the start of the following day.
func listFilter(ownerID string, in ListRecordsInput) (record.Filter, error) {
	filter := record.Filter{
		OwnerID:           ownerID,
		CardID:            in.CardID,
		ConsumptionTypeID: in.ConsumptionTypeID,
		Type:              in.Type,
		TradeFrom:         in.StartDate,
	}
	if in.Type != "" && !in.Type.Valid() {
		return filter, shared.ErrInvalidInput{Field: "record_type", Reason: "must be PAYMENT or REPAYMENT"}
	}
	if in.EndDate != nil {
		end := in.EndDate.AddDate(0, 0, 1)
		filter.TradeTo = &end
	}
	if filter.TradeFrom != nil && filter.TradeTo != nil && !filter.TradeFrom.Before(*filter.TradeTo) {
		return filter, shared.ErrInvalidInput{Field: "end_date", Reason: "must not be before start_date"}
	}
	return filter, nil
}
