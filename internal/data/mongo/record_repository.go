package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/settlement"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

const (
	// RecordCollectionName is the name of the records collection in MongoDB
	RecordCollectionName = "records"
)

// fifoSort is the allocation order: oldest trade first, then creation, then id
var fifoSort = bson.D{
	{Key: "trade_date", Value: 1},
	{Key: "created_at", Value: 1},
	{Key: "_id", Value: 1},
}

// RecordRepository implements record.Repository and record.Transactor for MongoDB
type RecordRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

var (
	_ record.Repository = (*RecordRepository)(nil)
	_ record.Transactor = (*RecordRepository)(nil)
)

// NewRecordRepository creates a new MongoDB record repository
func NewRecordRepository(logger *slog.Logger, db *mongo.Database) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

func (r *RecordRepository) collection() *mongo.Collection {
	return r.db.Collection(RecordCollectionName)
}

// Create inserts a new record document
func (r *RecordRepository) Create(ctx context.Context, rec *record.Record) error {
	if rec.Allocations == nil {
		rec.Allocations = []record.Allocation{}
	}
	if _, err := r.collection().InsertOne(ctx, rec); err != nil {
		r.logger.Error("Failed to create record",
			"record_id", rec.ID,
			"owner_id", rec.OwnerID,
			"error", err)
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

// GetByID retrieves one of the owner's records, active or not
func (r *RecordRepository) GetByID(ctx context.Context, ownerID, id string) (*record.Record, error) {
	var rec record.Record
	err := r.collection().FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, record.ErrRecordNotFound{RecordID: id}
		}
		r.logger.Error("Failed to get record",
			"record_id", id,
			"error", err)
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &rec, nil
}

// List returns a page of active records, newest trade date first
func (r *RecordRepository) List(ctx context.Context, filter record.Filter, limit, offset int) ([]*record.Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "trade_date", Value: -1}, {Key: "created_at", Value: -1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, FilterDocument(filter), opts, "list")
}

// Count counts active records matching the filter
func (r *RecordRepository) Count(ctx context.Context, filter record.Filter) (int64, error) {
	count, err := r.collection().CountDocuments(ctx, FilterDocument(filter))
	if err != nil {
		r.logger.Error("Failed to count records",
			"owner_id", filter.OwnerID,
			"error", err)
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// FindOpen returns the card's unsettled records of one type in FIFO order
func (r *RecordRepository) FindOpen(ctx context.Context, ownerID, cardID string, recordType shared.RecordType) ([]*record.Record, error) {
	filter := FilterDocument(record.Filter{
		OwnerID:  ownerID,
		CardID:   cardID,
		Type:     recordType,
		Statuses: settlement.OpenStatuses(),
	})
	return r.find(ctx, filter, options.Find().SetSort(fifoSort), "find open")
}

// ListByCard returns every record of a card in FIFO order, inactive ones included
func (r *RecordRepository) ListByCard(ctx context.Context, ownerID, cardID string) ([]*record.Record, error) {
	filter := bson.D{{Key: "owner_id", Value: ownerID}, {Key: "card_id", Value: cardID}}
	return r.find(ctx, filter, options.Find().SetSort(fifoSort), "list by card")
}

func (r *RecordRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions, op string) ([]*record.Record, error) {
	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to query records", "op", op, "error", err)
		return nil, fmt.Errorf("failed to %s records: %w", op, err)
	}
	defer cursor.Close(ctx)

	records := []*record.Record{}
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode records", "op", op, "error", err)
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}

// AppendAllocation pushes one allocation entry in a single guarded update.
// The filter only matches while the new entry keeps the allocated sum within
// the amount, so concurrent writers cannot over-allocate the document.
func (r *RecordRepository) AppendAllocation(ctx context.Context, ownerID, recordID string, alloc record.Allocation) (*record.Record, error) {
	filter := bson.D{
		{Key: "_id", Value: recordID},
		{Key: "owner_id", Value: ownerID},
		{Key: "is_active", Value: true},
		{Key: "$expr", Value: bson.M{
			"$lte": bson.A{
				bson.M{"$add": bson.A{bson.M{"$sum": "$allocations.amount"}, alloc.Amount}},
				"$amount",
			},
		}},
	}
	update := bson.D{
		{Key: "$push", Value: bson.M{"allocations": alloc}},
		{Key: "$set", Value: bson.M{"updated_at": time.Now()}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated record.Record
	err := r.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		r.logger.Error("Failed to append allocation",
			"record_id", recordID,
			"counterpart_id", alloc.CounterpartID,
			"amount", alloc.Amount,
			"error", err)
		return nil, fmt.Errorf("failed to append allocation: %w", err)
	}

	// nothing matched: tell a missing record from a full one
	current, getErr := r.GetByID(ctx, ownerID, recordID)
	if getErr != nil {
		return nil, getErr
	}
	if !current.IsActive {
		return nil, record.ErrRecordNotFound{RecordID: recordID}
	}
	return nil, record.ErrOverAllocation{RecordID: recordID, Requested: alloc.Amount}
}

// SumAllocatedTo sums the allocation entries on active records that point at recordID
func (r *RecordRepository) SumAllocatedTo(ctx context.Context, ownerID, recordID string) (int64, error) {
	cursor, err := r.collection().Aggregate(ctx, SumAllocatedToPipeline(ownerID, recordID))
	if err != nil {
		r.logger.Error("Failed to sum allocations",
			"record_id", recordID,
			"error", err)
		return 0, fmt.Errorf("failed to sum allocations: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []bson.M
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode allocation sum: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toInt64(rows[0]["total"]), nil
}

// SetStatus stores a derived settlement status
func (r *RecordRepository) SetStatus(ctx context.Context, ownerID, recordID string, status settlement.Status) error {
	result, err := r.collection().UpdateOne(ctx,
		bson.M{"_id": recordID, "owner_id": ownerID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	)
	if err != nil {
		r.logger.Error("Failed to update record status",
			"record_id", recordID,
			"status", string(status),
			"error", err)
		return fmt.Errorf("failed to update record status: %w", err)
	}
	if result.MatchedCount == 0 {
		return record.ErrRecordNotFound{RecordID: recordID}
	}
	return nil
}

// Update applies management edits. An amount below the allocated sum and a
// card move on a record with allocations are rejected by the update filter.
func (r *RecordRepository) Update(ctx context.Context, ownerID, id string, changes record.Changes) (*record.Record, error) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "owner_id", Value: ownerID},
		{Key: "is_active", Value: true},
	}
	if changes.Amount != nil {
		filter = append(filter, bson.E{Key: "$expr", Value: bson.M{
			"$lte": bson.A{bson.M{"$sum": "$allocations.amount"}, *changes.Amount},
		}})
	}
	if changes.Card != nil {
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.M{"card_id": changes.Card.ID},
			bson.M{"allocations.0": bson.M{"$exists": false}},
		}})
	}

	set := UpdateDocument(changes)
	set = append(set, bson.E{Key: "updated_at", Value: time.Now()})
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated record.Record
	err := r.collection().FindOneAndUpdate(ctx, filter, bson.D{{Key: "$set", Value: set}}, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		r.logger.Error("Failed to update record",
			"record_id", id,
			"error", err)
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	current, getErr := r.GetByID(ctx, ownerID, id)
	if getErr != nil {
		return nil, getErr
	}
	switch {
	case !current.IsActive:
		return nil, record.ErrRecordNotFound{RecordID: id}
	case changes.Amount != nil && current.AllocatedSum() > *changes.Amount:
		return nil, record.ErrOverAllocation{RecordID: id, Requested: current.AllocatedSum() - *changes.Amount}
	default:
		return nil, record.ErrRecordHasAllocations{RecordID: id}
	}
}

// Deactivate soft-deletes a record that holds no allocations
func (r *RecordRepository) Deactivate(ctx context.Context, ownerID, id string) error {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "owner_id", Value: ownerID},
		{Key: "is_active", Value: true},
		{Key: "allocations.0", Value: bson.M{"$exists": false}},
	}
	result, err := r.collection().UpdateOne(ctx, filter,
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now()}})
	if err != nil {
		r.logger.Error("Failed to deactivate record",
			"record_id", id,
			"error", err)
		return fmt.Errorf("failed to deactivate record: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	current, getErr := r.GetByID(ctx, ownerID, id)
	if getErr != nil {
		return getErr
	}
	if !current.IsActive {
		return record.ErrRecordNotFound{RecordID: id}
	}
	return record.ErrRecordHasAllocations{RecordID: id}
}

// Aggregate runs a grouped aggregation pipeline, largest total first
func (r *RecordRepository) Aggregate(ctx context.Context, query record.Query) ([]record.Group, error) {
	cursor, err := r.collection().Aggregate(ctx, AggregatePipeline(query))
	if err != nil {
		r.logger.Error("Failed to aggregate records",
			"owner_id", query.Filter.OwnerID,
			"measure", string(query.Measure),
			"error", err)
		return nil, fmt.Errorf("failed to aggregate records: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []bson.M
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation: %w", err)
	}
	return decodeGroups(rows, query.GroupBy), nil
}

// ListCardKeys returns the (owner, card) pairs that hold active records
func (r *RecordRepository) ListCardKeys(ctx context.Context) ([]record.CardKey, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"is_active": true}}},
		{{Key: "$group", Value: bson.M{"_id": bson.M{"owner_id": "$owner_id", "card_id": "$card_id"}}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$_id"}}},
		{{Key: "$sort", Value: bson.D{{Key: "owner_id", Value: 1}, {Key: "card_id", Value: 1}}}},
	}
	cursor, err := r.collection().Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to list card keys", "error", err)
		return nil, fmt.Errorf("failed to list card keys: %w", err)
	}
	defer cursor.Close(ctx)

	keys := []record.CardKey{}
	if err := cursor.All(ctx, &keys); err != nil {
		return nil, fmt.Errorf("failed to decode card keys: %w", err)
	}
	return keys, nil
}

// WithinTransaction runs fn inside a MongoDB transaction. Writes issued with
// the context passed to fn join it. Requires a replica set or sharded cluster.
func (r *RecordRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

// EnsureIndexes creates the indexes the allocation and dashboard queries rely on
func (r *RecordRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "card_id", Value: 1},
				{Key: "record_type", Value: 1},
				{Key: "status", Value: 1},
				{Key: "trade_date", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("fifo_open_records"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "trade_date", Value: -1}},
			Options: options.Index().SetName("owner_trade_date"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "allocations.counterpart_id", Value: 1}},
			Options: options.Index().SetName("allocation_counterparts"),
		},
	}
	names, err := r.collection().Indexes().CreateMany(ctx, models)
	if err != nil {
		r.logger.Error("Failed to create record indexes", "error", err)
		return fmt.Errorf("failed to create record indexes: %w", err)
	}
	r.logger.Info("Record indexes ensured", "indexes", names)
	return nil
}
