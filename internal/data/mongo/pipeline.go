package mongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/card-repayment-ledger/internal/domain/record"
)

// groupPaths maps a grouping dimension to its id and label document fields
var groupPaths = map[record.GroupField][2]string{
	record.GroupByCard:            {"card_id", "card_name"},
	record.GroupBySwipeType:       {"swipe_type_id", "swipe_type_name"},
	record.GroupByConsumptionType: {"consumption_type_id", "consumption_type_name"},
	record.GroupByRecordType:      {"record_type", "record_type"},
}

// allocatedSum is the expression for the sum of a record's own allocation entries
var allocatedSum = bson.M{"$sum": "$allocations.amount"}

// FilterDocument translates a record filter into a find/match document.
// Only active records match.
func FilterDocument(f record.Filter) bson.D {
	doc := bson.D{{Key: "is_active", Value: true}}
	if f.OwnerID != "" {
		doc = append(doc, bson.E{Key: "owner_id", Value: f.OwnerID})
	}
	if f.CardID != "" {
		doc = append(doc, bson.E{Key: "card_id", Value: f.CardID})
	}
	if f.ConsumptionTypeID != "" {
		doc = append(doc, bson.E{Key: "consumption_type_id", Value: f.ConsumptionTypeID})
	}
	if f.Type != "" {
		doc = append(doc, bson.E{Key: "record_type", Value: f.Type})
	}
	if len(f.Statuses) > 0 {
		doc = append(doc, bson.E{Key: "status", Value: bson.M{"$in": f.Statuses}})
	}
	if f.TradeFrom != nil || f.TradeTo != nil {
		window := bson.D{}
		if f.TradeFrom != nil {
			window = append(window, bson.E{Key: "$gte", Value: *f.TradeFrom})
		}
		if f.TradeTo != nil {
			window = append(window, bson.E{Key: "$lt", Value: *f.TradeTo})
		}
		doc = append(doc, bson.E{Key: "trade_date", Value: window})
	}
	return doc
}

// UpdateDocument turns management changes into $set fields
func UpdateDocument(c record.Changes) bson.D {
	set := bson.D{}
	if c.Amount != nil {
		set = append(set, bson.E{Key: "amount", Value: *c.Amount})
	}
	if c.Status != nil {
		set = append(set, bson.E{Key: "status", Value: *c.Status})
	}
	if c.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *c.Description})
	}
	if c.TradeDate != nil {
		set = append(set, bson.E{Key: "trade_date", Value: *c.TradeDate})
	}
	if c.Card != nil {
		set = append(set,
			bson.E{Key: "card_id", Value: c.Card.ID},
			bson.E{Key: "card_name", Value: c.Card.Name},
			bson.E{Key: "card_bank", Value: c.Card.Bank},
			bson.E{Key: "card_number", Value: c.Card.Number},
		)
	}
	if c.SwipeType != nil {
		set = append(set,
			bson.E{Key: "swipe_type_id", Value: c.SwipeType.ID},
			bson.E{Key: "swipe_type_name", Value: c.SwipeType.Name},
		)
	}
	if c.ConsumptionType != nil {
		set = append(set,
			bson.E{Key: "consumption_type_id", Value: c.ConsumptionType.ID},
			bson.E{Key: "consumption_type_name", Value: c.ConsumptionType.Name},
		)
	}
	return set
}

// SumAllocatedToPipeline sums entries on active records referencing recordID
func SumAllocatedToPipeline(ownerID, recordID string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "owner_id", Value: ownerID},
			{Key: "is_active", Value: true},
			{Key: "allocations.counterpart_id", Value: recordID},
		}}},
		{{Key: "$unwind", Value: "$allocations"}},
		{{Key: "$match", Value: bson.M{"allocations.counterpart_id": recordID}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.M{"$sum": "$allocations.amount"}},
		}}},
	}
}

// AggregatePipeline builds match, measure, group and sort stages for a query
func AggregatePipeline(q record.Query) mongo.Pipeline {
	var value interface{} = "$amount"
	if q.Measure == record.MeasureOutstanding {
		value = bson.M{"$max": bson.A{
			bson.M{"$subtract": bson.A{"$amount", allocatedSum}},
			0,
		}}
	}

	id := bson.D{}
	group := bson.D{}
	for _, field := range q.GroupBy {
		paths, ok := groupPaths[field]
		if !ok {
			continue
		}
		id = append(id, bson.E{Key: string(field), Value: "$" + paths[0]})
	}
	group = append(group, bson.E{Key: "_id", Value: id})
	for _, field := range q.GroupBy {
		paths, ok := groupPaths[field]
		if !ok {
			continue
		}
		group = append(group, bson.E{Key: "label_" + string(field), Value: bson.M{"$first": "$" + paths[1]}})
	}
	group = append(group,
		bson.E{Key: "total", Value: bson.M{"$sum": "$value"}},
		bson.E{Key: "count", Value: bson.M{"$sum": 1}},
	)

	return mongo.Pipeline{
		{{Key: "$match", Value: FilterDocument(q.Filter)}},
		{{Key: "$addFields", Value: bson.M{"value": value}}},
		{{Key: "$group", Value: group}},
		{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}, {Key: "_id", Value: 1}}}},
	}
}

func decodeGroups(rows []bson.M, fields []record.GroupField) []record.Group {
	groups := make([]record.Group, 0, len(rows))
	for _, row := range rows {
		g := record.Group{
			Keys:   make(map[record.GroupField]string, len(fields)),
			Labels: make(map[record.GroupField]string, len(fields)),
			Total:  toInt64(row["total"]),
			Count:  toInt64(row["count"]),
		}
		ids := asMap(row["_id"])
		for _, field := range fields {
			if v, ok := ids[string(field)].(string); ok {
				g.Keys[field] = v
			}
			if v, ok := row["label_"+string(field)].(string); ok {
				g.Labels[field] = v
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// asMap accepts an embedded document decoded either as bson.M or bson.D
func asMap(v interface{}) bson.M {
	switch doc := v.(type) {
	case bson.M:
		return doc
	case bson.D:
		return doc.Map()
	}
	return bson.M{}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
