package record

import (
	"time"

	"github.com/card-repayment-ledger/internal/domain/settlement"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

// GroupField names a dimension aggregations can be grouped by
type GroupField string

const (
	GroupByCard            GroupField = "card"
	GroupBySwipeType       GroupField = "swipe_type"
	GroupByConsumptionType GroupField = "consumption_type"
	GroupByRecordType      GroupField = "record_type"
)

// Measure is the per-record value an aggregation sums
type Measure string

const (
	// MeasureAmount sums the record amount
	MeasureAmount Measure = "amount"
	// MeasureOutstanding sums max(amount - allocated, 0)
	MeasureOutstanding Measure = "outstanding"
)

// Filter selects active records. Zero-valued fields do not filter.
type Filter struct {
	OwnerID           string
	CardID            string
	ConsumptionTypeID string
	Type              shared.RecordType
	Statuses          []settlement.Status
	// TradeFrom is inclusive, TradeTo exclusive
	TradeFrom *time.Time
	TradeTo   *time.Time
}

// Matches applies the filter to one record in memory
func (f Filter) Matches(r *Record) bool {
	if !r.IsActive {
		return false
	}
	if f.OwnerID != "" && r.OwnerID != f.OwnerID {
		return false
	}
	if f.CardID != "" && r.CardID != f.CardID {
		return false
	}
	if f.ConsumptionTypeID != "" && r.ConsumptionTypeID != f.ConsumptionTypeID {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.TradeFrom != nil && r.TradeDate.Before(*f.TradeFrom) {
		return false
	}
	if f.TradeTo != nil && !r.TradeDate.Before(*f.TradeTo) {
		return false
	}
	return true
}

// Query is a store-agnostic grouped aggregation: filter, group keys and a reduction
type Query struct {
	Filter  Filter
	GroupBy []GroupField
	Measure Measure
}

// Group is one row of an aggregation result. Keys hold the grouped ids and
// Labels the snapshot display names where the dimension has one.
type Group struct {
	Keys   map[GroupField]string
	Labels map[GroupField]string
	Total  int64
	Count  int64
}

// Key returns the grouped id for a field, empty when not grouped by it
func (g Group) Key(field GroupField) string {
	return g.Keys[field]
}

// Label returns the display name for a field, empty when unknown
func (g Group) Label(field GroupField) string {
	return g.Labels[field]
}

// MeasureOf evaluates a measure for one record
func MeasureOf(m Measure, r *Record) int64 {
	if m == MeasureOutstanding {
		return r.Remaining()
	}
	return r.Amount
}

// KeyOf returns a record's id and display name along one dimension
func KeyOf(field GroupField, r *Record) (string, string) {
	switch field {
	case GroupByCard:
		return r.CardID, r.CardName
	case GroupBySwipeType:
		return r.SwipeTypeID, r.SwipeTypeName
	case GroupByConsumptionType:
		return r.ConsumptionTypeID, r.ConsumptionTypeName
	case GroupByRecordType:
		return string(r.Type), string(r.Type)
	}
	return "", ""
}
