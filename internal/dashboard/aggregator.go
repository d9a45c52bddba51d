// Package dashboard assembles the home summary from grouped record aggregations.
// It only reads the settlement state the allocation engine has committed.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/card-repayment-ledger/internal/domain/catalog"
	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/settlement"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

// UnknownLabel names groups whose records carry no swipe type snapshot
const UnknownLabel = "Unknown"

// RecordAggregator runs grouped aggregations over records
type RecordAggregator interface {
	Aggregate(ctx context.Context, query record.Query) ([]record.Group, error)
}

// CardLister lists an owner's cards
type CardLister interface {
	ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*catalog.Card, error)
}

// Options narrows the summary
type Options struct {
	// CardID restricts every figure to one card when set
	CardID string
}

// NamedAmount is a labelled total in minor units
type NamedAmount struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// CardSummary is the per-card block of the dashboard
type CardSummary struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Bank               string        `json:"bank"`
	Color              string        `json:"color"`
	LastFour           string        `json:"last_four"`
	Limit              int64         `json:"limit"`
	Used               int64         `json:"used"`
	MonthlyBill        int64         `json:"monthly_bill"`
	MonthlyOutstanding int64         `json:"monthly_outstanding"`
	DaysToPayment      *int          `json:"days_to_payment"`
	BillDay            int           `json:"bill_day"`
	PaymentDay         int           `json:"payment_day"`
	LastPaymentDay     int           `json:"last_payment_day"`
	UsedBySwipeTypes   []NamedAmount `json:"used_by_swipe_types"`
}

// Totals sums the card blocks
type Totals struct {
	Limit     int64 `json:"limit"`
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
}

// TimeRange is the month window used for monthly figures
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Summary is the full dashboard
type Summary struct {
	Cards       []CardSummary               `json:"cards"`
	Totals      Totals                      `json:"totals"`
	Consumption []NamedAmount               `json:"consumption"`
	TypeStats   map[shared.RecordType]int64 `json:"type_stats"`
	TimeRange   TimeRange                   `json:"time_range"`
}

// Aggregator builds dashboard summaries
type Aggregator struct {
	records  RecordAggregator
	cards    CardLister
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator computing month windows in loc
func NewAggregator(records RecordAggregator, cards CardLister, loc *time.Location, logger *slog.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		records:  records,
		cards:    cards,
		location: loc,
		now:      time.Now,
		logger:   logger,
	}
}

// Build runs the dashboard queries concurrently and assembles the summary.
// The queries are not read from a single snapshot.
func (a *Aggregator) Build(ctx context.Context, ownerID string, opts Options) (*Summary, error) {
	if opts.CardID != "" {
		if _, err := uuid.Parse(opts.CardID); err != nil {
			return nil, shared.ErrInvalidInput{Field: "card_id", Reason: "must be a valid id"}
		}
	}

	now := a.now().In(a.location)
	monthStart, monthEnd := MonthWindow(now, a.location)

	base := record.Filter{OwnerID: ownerID, CardID: opts.CardID, Type: shared.RecordTypePayment}
	open := base
	open.Statuses = settlement.OpenStatuses()
	monthly := base
	monthly.TradeFrom, monthly.TradeTo = &monthStart, &monthEnd
	monthlyOpen := open
	monthlyOpen.TradeFrom, monthlyOpen.TradeTo = &monthStart, &monthEnd

	var (
		cards                                             []*catalog.Card
		outstanding, bill, billOutstanding, spent, byType []record.Group
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cards, err = a.cards.ListByOwner(gctx, ownerID, true)
		if err != nil {
			return fmt.Errorf("failed to list cards: %w", err)
		}
		return nil
	})
	a.aggregate(gctx, g, &outstanding, "outstanding", record.Query{
		Filter:  open,
		GroupBy: []record.GroupField{record.GroupByCard, record.GroupBySwipeType},
		Measure: record.MeasureOutstanding,
	})
	a.aggregate(gctx, g, &bill, "monthly bill", record.Query{
		Filter:  monthly,
		GroupBy: []record.GroupField{record.GroupByCard},
		Measure: record.MeasureAmount,
	})
	a.aggregate(gctx, g, &billOutstanding, "monthly outstanding", record.Query{
		Filter:  monthlyOpen,
		GroupBy: []record.GroupField{record.GroupByCard},
		Measure: record.MeasureOutstanding,
	})
	a.aggregate(gctx, g, &spent, "consumption", record.Query{
		Filter:  base,
		GroupBy: []record.GroupField{record.GroupBySwipeType},
		Measure: record.MeasureAmount,
	})
	a.aggregate(gctx, g, &byType, "type stats", record.Query{
		Filter:  record.Filter{OwnerID: ownerID, CardID: opts.CardID},
		GroupBy: []record.GroupField{record.GroupByRecordType},
		Measure: record.MeasureAmount,
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("Failed to build dashboard", "owner_id", ownerID, "card_id", opts.CardID, "error", err)
		return nil, err
	}

	if opts.CardID != "" {
		cards = filterCards(cards, opts.CardID)
	}

	summary := &Summary{
		Cards:       make([]CardSummary, 0, len(cards)),
		Consumption: mergeByLabel(spent, record.GroupBySwipeType),
		TypeStats: map[shared.RecordType]int64{
			shared.RecordTypePayment:   0,
			shared.RecordTypeRepayment: 0,
		},
		TimeRange: TimeRange{Start: monthStart, End: monthEnd},
	}
	for _, grp := range byType {
		rt := shared.RecordType(grp.Key(record.GroupByRecordType))
		if rt.Valid() {
			summary.TypeStats[rt] += grp.Total
		}
	}

	usedByCard, swipesByCard := splitOutstanding(outstanding)
	billByCard := totalsByCard(bill)
	billOutstandingByCard := totalsByCard(billOutstanding)

	for _, c := range cards {
		id := c.ID.String()
		cs := CardSummary{
			ID:                 id,
			Name:               c.DisplayName(),
			Bank:               c.Bank,
			Color:              c.Color,
			LastFour:           c.LastFour(),
			Limit:              c.CreditLimit,
			Used:               usedByCard[id],
			MonthlyBill:        billByCard[id],
			MonthlyOutstanding: billOutstandingByCard[id],
			BillDay:            c.BillDay,
			PaymentDay:         c.PaymentDay,
			LastPaymentDay:     c.LastPaymentDay,
			UsedBySwipeTypes:   swipesByCard[id],
		}
		if cs.UsedBySwipeTypes == nil {
			cs.UsedBySwipeTypes = []NamedAmount{}
		}
		if days, ok := DaysToPayment(now, c.PaymentDay); ok {
			cs.DaysToPayment = &days
		}

		summary.Cards = append(summary.Cards, cs)
		summary.Totals.Limit += cs.Limit
		summary.Totals.Used += cs.Used
	}
	summary.Totals.Available = summary.Totals.Limit - summary.Totals.Used

	return summary, nil
}

func (a *Aggregator) aggregate(ctx context.Context, g *errgroup.Group, dst *[]record.Group, name string, query record.Query) {
	g.Go(func() error {
		groups, err := a.records.Aggregate(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to aggregate %s: %w", name, err)
		}
		*dst = groups
		return nil
	})
}

func filterCards(cards []*catalog.Card, cardID string) []*catalog.Card {
	for _, c := range cards {
		if c.ID.String() == cardID {
			return []*catalog.Card{c}
		}
	}
	return nil
}

func splitOutstanding(groups []record.Group) (map[string]int64, map[string][]NamedAmount) {
	used := make(map[string]int64)
	bySwipe := make(map[string][]NamedAmount)
	for _, grp := range groups {
		cardID := grp.Key(record.GroupByCard)
		used[cardID] += grp.Total
		bySwipe[cardID] = append(bySwipe[cardID], NamedAmount{Name: labelOf(grp, record.GroupBySwipeType), Amount: grp.Total})
	}
	for _, list := range bySwipe {
		sortNamed(list)
	}
	return used, bySwipe
}

func totalsByCard(groups []record.Group) map[string]int64 {
	out := make(map[string]int64, len(groups))
	for _, grp := range groups {
		out[grp.Key(record.GroupByCard)] += grp.Total
	}
	return out
}

// mergeByLabel folds groups sharing a display name, largest total first
func mergeByLabel(groups []record.Group, field record.GroupField) []NamedAmount {
	index := make(map[string]int)
	out := make([]NamedAmount, 0, len(groups))
	for _, grp := range groups {
		name := labelOf(grp, field)
		if i, ok := index[name]; ok {
			out[i].Amount += grp.Total
			continue
		}
		index[name] = len(out)
		out = append(out, NamedAmount{Name: name, Amount: grp.Total})
	}
	sortNamed(out)
	return out
}

func labelOf(grp record.Group, field record.GroupField) string {
	if name := grp.Label(field); name != "" {
		return name
	}
	return UnknownLabel
}

func sortNamed(list []NamedAmount) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Amount != list[j].Amount {
			return list[i].Amount > list[j].Amount
		}
		return list[i].Name < list[j].Name
	})
}
