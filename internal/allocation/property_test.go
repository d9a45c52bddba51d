package allocation

import (
	"context"
	"fmt"
	"testing"
	"time"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

type step struct {
	Repayment bool
	Amount    uint16
	Offset    uint8
}

// TestAllocate_RandomSequences replays random record sequences and checks the
// ledger-wide properties after every allocation run.
func TestAllocate_RandomSequences(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(1, 40)

	for run := 0; run < 50; run++ {
		var steps []step
		f.Fuzz(&steps)

		t.Run(fmt.Sprintf("run-%d", run), func(t *testing.T) {
			ctx := context.Background()
			fx := newFixture(t)

			for i, s := range steps {
				recordType := shared.RecordTypePayment
				if s.Repayment {
					recordType = shared.RecordTypeRepayment
				}
				amount := int64(s.Amount%5000) + 1
				rec := fx.create(t, fmt.Sprintf("rec-%03d", i), recordType, amount, time.Duration(s.Offset)*time.Minute)

				_, err := fx.engine.Allocate(ctx, rec)
				require.NoError(t, err)

				assertLedgerInvariants(t, fx.repo.All())
			}
		})
	}
}

func assertLedgerInvariants(t *testing.T, records []*record.Record) {
	t.Helper()
	byID := make(map[string]*record.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	var openPayments, openRepayments int
	for _, rec := range records {
		assert.LessOrEqual(t, rec.AllocatedSum(), rec.Amount, "conservation on %s", rec.ID)
		assert.Equal(t, rec.DerivedStatus(), rec.Status, "status of %s", rec.ID)

		for _, a := range rec.Allocations {
			other, ok := byID[a.CounterpartID]
			if !assert.True(t, ok, "counterpart %s of %s exists", a.CounterpartID, rec.ID) {
				continue
			}
			assert.NotEqual(t, rec.Type, other.Type, "edges join opposite types")
			assert.Equal(t, rec.AllocatedTo(other.ID), other.AllocatedTo(rec.ID), "reciprocity between %s and %s", rec.ID, other.ID)
		}

		if rec.Remaining() > 0 {
			if rec.Type == shared.RecordTypePayment {
				openPayments++
			} else {
				openRepayments++
			}
		}
	}

	// greedy matching never leaves money unapplied on both sides
	assert.False(t, openPayments > 0 && openRepayments > 0, "open payments and repayments coexist")
}
