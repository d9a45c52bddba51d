package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/card-repayment-ledger/internal/api_gateway/service"
	"github.com/card-repayment-ledger/internal/dashboard"
	"github.com/card-repayment-ledger/internal/domain/catalog"
	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

// dateLayout is accepted next to RFC 3339 for dates and trade dates
const dateLayout = "2006-01-02"

// CreateRecordRequest represents a request to create a payment or repayment.
// Amounts are decimal with at most two fraction digits.
type CreateRecordRequest struct {
	CardID            string           `json:"card_id" binding:"required"`
	Amount            *decimal.Decimal `json:"amount" binding:"required"`
	RecordType        string           `json:"record_type" binding:"required,oneof=PAYMENT REPAYMENT"`
	TradeDate         string           `json:"trade_date,omitempty"`
	SwipeTypeID       string           `json:"swipe_type_id,omitempty" binding:"required_if=RecordType PAYMENT"`
	ConsumptionTypeID string           `json:"consumption_type_id,omitempty" binding:"required_if=RecordType PAYMENT"`
	Description       string           `json:"description,omitempty" binding:"max=500"`
}

// UpdateRecordRequest lists editable record fields; absent fields stay unchanged
type UpdateRecordRequest struct {
	CardID            *string          `json:"card_id"`
	SwipeTypeID       *string          `json:"swipe_type_id"`
	ConsumptionTypeID *string          `json:"consumption_type_id"`
	Amount            *decimal.Decimal `json:"amount"`
	Description       *string          `json:"description" binding:"omitempty,max=500"`
	TradeDate         *string          `json:"trade_date"`
}

// RecordFilterParams are the query parameters shared by record listing and stats
type RecordFilterParams struct {
	CardID            string `form:"card_id"`
	ConsumptionTypeID string `form:"consumption_type_id"`
	RecordType        string `form:"record_type" binding:"omitempty,oneof=PAYMENT REPAYMENT"`
	StartDate         string `form:"start_date"`
	EndDate           string `form:"end_date"`
}

// AllocationResponse is one allocation entry of a record
type AllocationResponse struct {
	CounterpartID string          `json:"counterpart_id"`
	Amount        decimal.Decimal `json:"amount"`
	AllocatedAt   string          `json:"allocated_at"`
}

// RecordResponse represents a record in API responses
type RecordResponse struct {
	ID                  string               `json:"id"`
	CardID              string               `json:"card_id"`
	CardName            string               `json:"card_name,omitempty"`
	CardBank            string               `json:"card_bank,omitempty"`
	CardLastFour        string               `json:"card_last_four,omitempty"`
	SwipeTypeID         string               `json:"swipe_type_id,omitempty"`
	SwipeTypeName       string               `json:"swipe_type_name,omitempty"`
	ConsumptionTypeID   string               `json:"consumption_type_id,omitempty"`
	ConsumptionTypeName string               `json:"consumption_type_name,omitempty"`
	RecordType          string               `json:"record_type"`
	Amount              decimal.Decimal      `json:"amount"`
	AllocatedAmount     decimal.Decimal      `json:"allocated_amount"`
	RemainingAmount     decimal.Decimal      `json:"remaining_amount"`
	Status              string               `json:"status"`
	Description         string               `json:"description,omitempty"`
	TradeDate           string               `json:"trade_date"`
	Allocations         []AllocationResponse `json:"allocations"`
	CreatedAt           string               `json:"created_at"`
	UpdatedAt           string               `json:"updated_at"`
}

// ConsumptionStatResponse is one consumption type in the stats response
type ConsumptionStatResponse struct {
	ConsumptionTypeID string          `json:"consumption_type_id"`
	Name              string          `json:"consumption_type_name"`
	Color             string          `json:"consumption_type_color"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Count             int64           `json:"count"`
}

// RecordStatsResponse represents record stats in API responses
type RecordStatsResponse struct {
	Stats       []ConsumptionStatResponse `json:"stats"`
	TotalAmount decimal.Decimal           `json:"total_amount"`
}

// CreateCardRequest represents a request to add a card
type CreateCardRequest struct {
	Name           string          `json:"name" binding:"max=100"`
	Bank           string          `json:"bank" binding:"required,max=100"`
	CardNumber     string          `json:"card_number" binding:"required,max=32"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	BillDay        int             `json:"bill_day" binding:"required,min=1,max=31"`
	PaymentDay     int             `json:"payment_day" binding:"required,min=1,max=31"`
	LastPaymentDay int             `json:"last_payment_day" binding:"omitempty,min=1,max=31"`
	Color          string          `json:"color" binding:"omitempty,hexcolor"`
	Description    string          `json:"description" binding:"max=500"`
}

// UpdateCardRequest lists editable card fields; absent fields stay unchanged
type UpdateCardRequest struct {
	Name           *string          `json:"name" binding:"omitempty,max=100"`
	Bank           *string          `json:"bank" binding:"omitempty,max=100"`
	CardNumber     *string          `json:"card_number" binding:"omitempty,max=32"`
	CreditLimit    *decimal.Decimal `json:"credit_limit"`
	BillDay        *int             `json:"bill_day" binding:"omitempty,min=1,max=31"`
	PaymentDay     *int             `json:"payment_day" binding:"omitempty,min=1,max=31"`
	LastPaymentDay *int             `json:"last_payment_day" binding:"omitempty,min=0,max=31"`
	Color          *string          `json:"color" binding:"omitempty,hexcolor"`
	Description    *string          `json:"description" binding:"omitempty,max=500"`
}

// CardResponse represents a card in API responses
type CardResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	DisplayName    string          `json:"display_name"`
	Bank           string          `json:"bank"`
	CardNumber     string          `json:"card_number"`
	LastFour       string          `json:"last_four"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	BillDay        int             `json:"bill_day"`
	PaymentDay     int             `json:"payment_day"`
	LastPaymentDay int             `json:"last_payment_day,omitempty"`
	Color          string          `json:"color"`
	Description    string          `json:"description,omitempty"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

// CreateCategoryRequest represents a request to add a swipe or consumption type
type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Icon        string `json:"icon" binding:"max=50"`
	Color       string `json:"color" binding:"omitempty,hexcolor"`
	Description string `json:"description" binding:"max=200"`
	SortOrder   int    `json:"sort_order"`
}

// UpdateCategoryRequest lists editable category fields; absent fields stay unchanged
type UpdateCategoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=50"`
	Icon        *string `json:"icon" binding:"omitempty,max=50"`
	Color       *string `json:"color" binding:"omitempty,hexcolor"`
	Description *string `json:"description" binding:"omitempty,max=200"`
	SortOrder   *int    `json:"sort_order"`
}

// CategoryResponse represents a swipe or consumption type in API responses
type CategoryResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sort_order"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ListParams carries the include_inactive switch of catalog listings
type ListParams struct {
	IncludeInactive bool `form:"include_inactive"`
}

// DashboardParams are the dashboard query parameters
type DashboardParams struct {
	CardID string `form:"card_id"`
}

// NamedAmountResponse is a labelled decimal total
type NamedAmountResponse struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// DashboardCardResponse is the per-card block of the dashboard
type DashboardCardResponse struct {
	ID                 string                `json:"id"`
	Name               string                `json:"name"`
	Bank               string                `json:"bank"`
	Color              string                `json:"color"`
	LastFour           string                `json:"last_four"`
	Limit              decimal.Decimal       `json:"limit"`
	Used               decimal.Decimal       `json:"used"`
	MonthlyBill        decimal.Decimal       `json:"monthly_bill"`
	MonthlyOutstanding decimal.Decimal       `json:"monthly_outstanding"`
	DaysToPayment      *int                  `json:"days_to_payment"`
	BillDay            int                   `json:"bill_day"`
	PaymentDay         int                   `json:"payment_day"`
	LastPaymentDay     int                   `json:"last_payment_day"`
	UsedBySwipeTypes   []NamedAmountResponse `json:"used_by_swipe_types"`
}

// DashboardTotalsResponse sums the card blocks
type DashboardTotalsResponse struct {
	Limit     decimal.Decimal `json:"limit"`
	Used      decimal.Decimal `json:"used"`
	Available decimal.Decimal `json:"available"`
}

// TimeRangeResponse is the month window used for monthly figures
type TimeRangeResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DashboardResponse represents the dashboard summary in API responses
type DashboardResponse struct {
	Cards       []DashboardCardResponse    `json:"cards"`
	Totals      DashboardTotalsResponse    `json:"totals"`
	Consumption []NamedAmountResponse      `json:"consumption"`
	TypeStats   map[string]decimal.Decimal `json:"type_stats"`
	TimeRange   TimeRangeResponse          `json:"time_range"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// parseDate accepts a calendar day or an RFC 3339 timestamp. Calendar days are
// midnight in loc.
func parseDate(field, value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, shared.ErrInvalidInput{Field: field, Reason: "must be YYYY-MM-DD or RFC 3339"}
	}
	return &t, nil
}

// toMinorUnits converts a request amount, rejecting more than two decimals
func toMinorUnits(field string, amount decimal.Decimal) (int64, error) {
	v, err := shared.ToMinorUnits(amount)
	if err != nil {
		return 0, shared.ErrInvalidInput{Field: field, Reason: "must have at most two decimal places and stay in range"}
	}
	return v, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// mapRecordToResponse maps a record entity to a record response DTO
func mapRecordToResponse(rec *record.Record) RecordResponse {
	allocated := rec.AllocatedSum()
	response := RecordResponse{
		ID:                  rec.ID,
		CardID:              rec.CardID,
		CardName:            rec.CardName,
		CardBank:            rec.CardBank,
		CardLastFour:        lastFour(rec.CardNumber),
		SwipeTypeID:         rec.SwipeTypeID,
		SwipeTypeName:       rec.SwipeTypeName,
		ConsumptionTypeID:   rec.ConsumptionTypeID,
		ConsumptionTypeName: rec.ConsumptionTypeName,
		RecordType:          string(rec.Type),
		Amount:              shared.FromMinorUnits(rec.Amount),
		AllocatedAmount:     shared.FromMinorUnits(allocated),
		RemainingAmount:     shared.FromMinorUnits(rec.Remaining()),
		Status:              string(rec.Status),
		Description:         rec.Description,
		TradeDate:           formatTime(rec.TradeDate),
		Allocations:         make([]AllocationResponse, 0, len(rec.Allocations)),
		CreatedAt:           formatTime(rec.CreatedAt),
		UpdatedAt:           formatTime(rec.UpdatedAt),
	}
	for _, a := range rec.Allocations {
		response.Allocations = append(response.Allocations, AllocationResponse{
			CounterpartID: a.CounterpartID,
			Amount:        shared.FromMinorUnits(a.Amount),
			AllocatedAt:   formatTime(a.AllocatedAt),
		})
	}
	return response
}

func mapStatsToResponse(stats *service.RecordStats) RecordStatsResponse {
	response := RecordStatsResponse{
		Stats:       make([]ConsumptionStatResponse, 0, len(stats.Stats)),
		TotalAmount: shared.FromMinorUnits(stats.TotalAmount),
	}
	for _, s := range stats.Stats {
		response.Stats = append(response.Stats, ConsumptionStatResponse{
			ConsumptionTypeID: s.ConsumptionTypeID,
			Name:              s.Name,
			Color:             s.Color,
			TotalAmount:       shared.FromMinorUnits(s.TotalAmount),
			Count:             s.Count,
		})
	}
	return response
}

func mapCardToResponse(card *catalog.Card) CardResponse {
	return CardResponse{
		ID:             card.ID.String(),
		Name:           card.Name,
		DisplayName:    card.DisplayName(),
		Bank:           card.Bank,
		CardNumber:     card.CardNumber,
		LastFour:       card.LastFour(),
		CreditLimit:    shared.FromMinorUnits(card.CreditLimit),
		BillDay:        card.BillDay,
		PaymentDay:     card.PaymentDay,
		LastPaymentDay: card.LastPaymentDay,
		Color:          card.Color,
		Description:    card.Description,
		IsActive:       card.IsActive,
		CreatedAt:      formatTime(card.CreatedAt),
		UpdatedAt:      formatTime(card.UpdatedAt),
	}
}

func mapCategoryToResponse(category *catalog.Category) CategoryResponse {
	return CategoryResponse{
		ID:          category.ID.String(),
		Kind:        string(category.Kind),
		Name:        category.Name,
		Icon:        category.Icon,
		Color:       category.Color,
		Description: category.Description,
		SortOrder:   category.SortOrder,
		IsActive:    category.IsActive,
		CreatedAt:   formatTime(category.CreatedAt),
		UpdatedAt:   formatTime(category.UpdatedAt),
	}
}

func mapNamedAmounts(in []dashboard.NamedAmount) []NamedAmountResponse {
	out := make([]NamedAmountResponse, 0, len(in))
	for _, n := range in {
		out = append(out, NamedAmountResponse{Name: n.Name, Amount: shared.FromMinorUnits(n.Amount)})
	}
	return out
}

func mapSummaryToResponse(summary *dashboard.Summary) DashboardResponse {
	response := DashboardResponse{
		Cards: make([]DashboardCardResponse, 0, len(summary.Cards)),
		Totals: DashboardTotalsResponse{
			Limit:     shared.FromMinorUnits(summary.Totals.Limit),
			Used:      shared.FromMinorUnits(summary.Totals.Used),
			Available: shared.FromMinorUnits(summary.Totals.Available),
		},
		Consumption: mapNamedAmounts(summary.Consumption),
		TypeStats:   make(map[string]decimal.Decimal, len(summary.TypeStats)),
		TimeRange: TimeRangeResponse{
			Start: formatTime(summary.TimeRange.Start),
			End:   formatTime(summary.TimeRange.End),
		},
	}
	for _, card := range summary.Cards {
		response.Cards = append(response.Cards, DashboardCardResponse{
			ID:                 card.ID,
			Name:               card.Name,
			Bank:               card.Bank,
			Color:              card.Color,
			LastFour:           card.LastFour,
			Limit:              shared.FromMinorUnits(card.Limit),
			Used:               shared.FromMinorUnits(card.Used),
			MonthlyBill:        shared.FromMinorUnits(card.MonthlyBill),
			MonthlyOutstanding: shared.FromMinorUnits(card.MonthlyOutstanding),
			DaysToPayment:      card.DaysToPayment,
			BillDay:            card.BillDay,
			PaymentDay:         card.PaymentDay,
			LastPaymentDay:     card.LastPaymentDay,
			UsedBySwipeTypes:   mapNamedAmounts(card.UsedBySwipeTypes),
		})
	}
	for recordType, total := range summary.TypeStats {
		response.TypeStats[string(recordType)] = shared.FromMinorUnits(total)
	}
	return response
}

func lastFour(number string) string {
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}
