// Package memory provides an in-process record store with the same semantics
// as the MongoDB store. It backs tests and single-node development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/settlement"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

// RecordRepository implements record.Repository on a guarded map
type RecordRepository struct {
	mu      sync.RWMutex
	records map[string]*record.Record

	// FailAppend, when set, is consulted before every AppendAllocation and may
	// return an error to simulate a store failure on that record.
	FailAppend func(recordID string) error
}

// NewRecordRepository creates an empty store
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{records: make(map[string]*record.Record)}
}

var _ record.Repository = (*RecordRepository)(nil)

func (r *RecordRepository) Create(_ context.Context, rec *record.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = clone(rec)
	return nil
}

func (r *RecordRepository) GetByID(_ context.Context, ownerID, id string) (*record.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok || rec.OwnerID != ownerID {
		return nil, record.ErrRecordNotFound{RecordID: id}
	}
	return clone(rec), nil
}

func (r *RecordRepository) List(_ context.Context, filter record.Filter, limit, offset int) ([]*record.Record, error) {
	matched := r.match(filter)
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].TradeDate.Equal(matched[j].TradeDate) {
			return matched[i].TradeDate.After(matched[j].TradeDate)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if offset >= len(matched) {
		return []*record.Record{}, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], nil
}

func (r *RecordRepository) Count(_ context.Context, filter record.Filter) (int64, error) {
	return int64(len(r.match(filter))), nil
}

func (r *RecordRepository) FindOpen(_ context.Context, ownerID, cardID string, recordType shared.RecordType) ([]*record.Record, error) {
	open := r.match(record.Filter{
		OwnerID:  ownerID,
		CardID:   cardID,
		Type:     recordType,
		Statuses: settlement.OpenStatuses(),
	})
	sort.SliceStable(open, func(i, j int) bool {
		return fifoLess(open[i], open[j])
	})
	return open, nil
}

func (r *RecordRepository) ListByCard(_ context.Context, ownerID, cardID string) ([]*record.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*record.Record
	for _, rec := range r.records {
		if rec.OwnerID == ownerID && rec.CardID == cardID {
			out = append(out, clone(rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return fifoLess(out[i], out[j]) })
	return out, nil
}

func (r *RecordRepository) AppendAllocation(_ context.Context, ownerID, recordID string, alloc record.Allocation) (*record.Record, error) {
	if r.FailAppend != nil {
		if err := r.FailAppend(recordID); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordID]
	if !ok || rec.OwnerID != ownerID || !rec.IsActive {
		return nil, record.ErrRecordNotFound{RecordID: recordID}
	}
	if rec.AllocatedSum()+alloc.Amount > rec.Amount {
		return nil, record.ErrOverAllocation{RecordID: recordID, Requested: alloc.Amount}
	}
	rec.Allocations = append(rec.Allocations, alloc)
	rec.UpdatedAt = time.Now()
	return clone(rec), nil
}

func (r *RecordRepository) SumAllocatedTo(_ context.Context, ownerID, recordID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, rec := range r.records {
		if rec.OwnerID != ownerID || !rec.IsActive {
			continue
		}
		sum += rec.AllocatedTo(recordID)
	}
	return sum, nil
}

func (r *RecordRepository) SetStatus(_ context.Context, ownerID, recordID string, status settlement.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordID]
	if !ok || rec.OwnerID != ownerID {
		return record.ErrRecordNotFound{RecordID: recordID}
	}
	rec.Status = status
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *RecordRepository) Update(_ context.Context, ownerID, id string, changes record.Changes) (*record.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.OwnerID != ownerID || !rec.IsActive {
		return nil, record.ErrRecordNotFound{RecordID: id}
	}
	if changes.Amount != nil && rec.AllocatedSum() > *changes.Amount {
		return nil, record.ErrOverAllocation{RecordID: id, Requested: rec.AllocatedSum() - *changes.Amount}
	}
	if changes.Card != nil && changes.Card.ID != rec.CardID && rec.HasAllocations() {
		return nil, record.ErrRecordHasAllocations{RecordID: id}
	}
	changes.Apply(rec)
	rec.UpdatedAt = time.Now()
	return clone(rec), nil
}

func (r *RecordRepository) Deactivate(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.OwnerID != ownerID || !rec.IsActive {
		return record.ErrRecordNotFound{RecordID: id}
	}
	if rec.HasAllocations() {
		return record.ErrRecordHasAllocations{RecordID: id}
	}
	rec.IsActive = false
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *RecordRepository) Aggregate(_ context.Context, query record.Query) ([]record.Group, error) {
	index := make(map[string]*record.Group)
	var order []string

	for _, rec := range r.match(query.Filter) {
		keys := make(map[record.GroupField]string, len(query.GroupBy))
		labels := make(map[record.GroupField]string, len(query.GroupBy))
		composite := ""
		for _, field := range query.GroupBy {
			id, label := record.KeyOf(field, rec)
			keys[field] = id
			labels[field] = label
			composite += string(field) + "=" + id + ";"
		}
		g, ok := index[composite]
		if !ok {
			g = &record.Group{Keys: keys, Labels: labels}
			index[composite] = g
			order = append(order, composite)
		}
		g.Total += record.MeasureOf(query.Measure, rec)
		g.Count++
	}

	groups := make([]record.Group, 0, len(order))
	for _, k := range order {
		groups = append(groups, *index[k])
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Total > groups[j].Total })
	return groups, nil
}

func (r *RecordRepository) ListCardKeys(_ context.Context) ([]record.CardKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[record.CardKey]struct{})
	var keys []record.CardKey
	for _, rec := range r.records {
		if !rec.IsActive {
			continue
		}
		k := record.CardKey{OwnerID: rec.OwnerID, CardID: rec.CardID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].OwnerID != keys[j].OwnerID {
			return keys[i].OwnerID < keys[j].OwnerID
		}
		return keys[i].CardID < keys[j].CardID
	})
	return keys, nil
}

// Put overwrites a stored record as-is, bypassing every guard. Tests use it to
// seed drifted or one-sided states.
func (r *RecordRepository) Put(rec *record.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = clone(rec)
}

// All returns a copy of every stored record
func (r *RecordRepository) All() []*record.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*record.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, clone(rec))
	}
	return out
}

func (r *RecordRepository) match(filter record.Filter) []*record.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*record.Record
	for _, rec := range r.records {
		if filter.Matches(rec) {
			out = append(out, clone(rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return fifoLess(out[i], out[j]) })
	return out
}

func fifoLess(a, b *record.Record) bool {
	if !a.TradeDate.Equal(b.TradeDate) {
		return a.TradeDate.Before(b.TradeDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func clone(rec *record.Record) *record.Record {
	c := *rec
	c.Allocations = make([]record.Allocation, len(rec.Allocations))
	copy(c.Allocations, rec.Allocations)
	return &c
}
