package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/settlement"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

func TestFilterDocument(t *testing.T) {
	t.Run("ActiveOnlyByDefault", func(t *testing.T) {
		assert.Equal(t, bson.D{{Key: "is_active", Value: true}}, FilterDocument(record.Filter{}))
	})

	t.Run("AllFields", func(t *testing.T) {
		from := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)
		doc := FilterDocument(record.Filter{
			OwnerID:           "o",
			CardID:            "c",
			ConsumptionTypeID: "ct",
			Type:              shared.RecordTypePayment,
			Statuses:          settlement.OpenStatuses(),
			TradeFrom:         &from,
			TradeTo:           &to,
		})

		m := doc.Map()
		assert.Equal(t, true, m["is_active"])
		assert.Equal(t, "o", m["owner_id"])
		assert.Equal(t, "c", m["card_id"])
		assert.Equal(t, "ct", m["consumption_type_id"])
		assert.Equal(t, shared.RecordTypePayment, m["record_type"])
		assert.Equal(t, bson.M{"$in": settlement.OpenStatuses()}, m["status"])
		assert.Equal(t, bson.D{{Key: "$gte", Value: from}, {Key: "$lt", Value: to}}, m["trade_date"])
	})

	t.Run("OpenEndedWindow", func(t *testing.T) {
		from := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
		m := FilterDocument(record.Filter{TradeFrom: &from}).Map()
		assert.Equal(t, bson.D{{Key: "$gte", Value: from}}, m["trade_date"])
	})
}

func TestUpdateDocument(t *testing.T) {
	amount := int64(500)
	status := settlement.StatusPartiallyPaid
	set := UpdateDocument(record.Changes{
		Amount:    &amount,
		Status:    &status,
		SwipeType: &record.Ref{ID: "s1", Name: "Online"},
	}).Map()

	assert.Len(t, set, 4)
	assert.Equal(t, int64(500), set["amount"])
	assert.Equal(t, settlement.StatusPartiallyPaid, set["status"])
	assert.Equal(t, "s1", set["swipe_type_id"])
	assert.Equal(t, "Online", set["swipe_type_name"])

	assert.Empty(t, UpdateDocument(record.Changes{}))
}

func TestAggregatePipeline(t *testing.T) {
	t.Run("Outstanding", func(t *testing.T) {
		pipeline := AggregatePipeline(record.Query{
			Filter:  record.Filter{OwnerID: "o", Type: shared.RecordTypePayment},
			GroupBy: []record.GroupField{record.GroupByCard, record.GroupBySwipeType},
			Measure: record.MeasureOutstanding,
		})
		require.Len(t, pipeline, 4)
		assert.Equal(t, "$match", pipeline[0][0].Key)

		addFields := pipeline[1][0].Value.(bson.M)
		assert.Equal(t, bson.M{"$max": bson.A{
			bson.M{"$subtract": bson.A{"$amount", bson.M{"$sum": "$allocations.amount"}}},
			0,
		}}, addFields["value"])

		group := pipeline[2][0].Value.(bson.D).Map()
		assert.Equal(t, bson.D{
			{Key: "card", Value: "$card_id"},
			{Key: "swipe_type", Value: "$swipe_type_id"},
		}, group["_id"])
		assert.Equal(t, bson.M{"$first": "$swipe_type_name"}, group["label_swipe_type"])
		assert.Equal(t, bson.M{"$sum": "$value"}, group["total"])
	})

	t.Run("Amount", func(t *testing.T) {
		pipeline := AggregatePipeline(record.Query{
			GroupBy: []record.GroupField{record.GroupByRecordType},
			Measure: record.MeasureAmount,
		})
		assert.Equal(t, "$amount", pipeline[1][0].Value.(bson.M)["value"])
	})
}

func TestSumAllocatedToPipeline(t *testing.T) {
	pipeline := SumAllocatedToPipeline("o", "r1")
	require.Len(t, pipeline, 4)
	assert.Equal(t, "$unwind", pipeline[1][0].Key)
	assert.Equal(t, bson.M{"allocations.counterpart_id": "r1"}, pipeline[2][0].Value)
}

func TestDecodeGroups(t *testing.T) {
	groups := decodeGroups([]bson.M{
		{
			"_id":               bson.M{"record_type": "PAYMENT"},
			"label_record_type": "PAYMENT",
			"total":             int64(10),
			"count":             int32(1),
		},
		{
			"_id":   bson.D{{Key: "record_type", Value: "REPAYMENT"}},
			"total": float64(4),
		},
	}, []record.GroupField{record.GroupByRecordType})

	require.Len(t, groups, 2)
	assert.Equal(t, "PAYMENT", groups[0].Key(record.GroupByRecordType))
	assert.Equal(t, int64(1), groups[0].Count)
	assert.Equal(t, "REPAYMENT", groups[1].Key(record.GroupByRecordType))
	assert.Equal(t, int64(4), groups[1].Total)
}
