package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/card-repayment-ledger/internal/api_gateway/middleware"
	"github.com/card-repayment-ledger/internal/api_gateway/service"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

// RecordHandler handles HTTP requests for payment and repayment records
type RecordHandler struct {
	recordService service.RecordService
	location      *time.Location
	logger        *slog.Logger
}

// NewRecordHandler creates a new record handler. Calendar dates in requests are read in loc.
func NewRecordHandler(logger *slog.Logger, recordService service.RecordService, loc *time.Location) *RecordHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &RecordHandler{
		recordService: recordService,
		location:      loc,
		logger:        logger,
	}
}

// Create stores a record and allocates it before answering with the settled record
func (h *RecordHandler) Create(c *gin.Context) {
	var req CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondInvalidParams(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := toMinorUnits("amount", *req.Amount)
	if err != nil {
		respondServiceError(c, h.logger, err, "create record")
		return
	}
	tradeDate, err := parseDate("trade_date", req.TradeDate, h.location)
	if err != nil {
		respondServiceError(c, h.logger, err, "create record")
		return
	}

	rec, err := h.recordService.CreateRecord(c.Request.Context(), service.CreateRecordInput{
		OwnerID:           middleware.GetOwnerID(c),
		CardID:            req.CardID,
		Type:              shared.RecordType(req.RecordType),
		Amount:            amount,
		TradeDate:         tradeDate,
		SwipeTypeID:       req.SwipeTypeID,
		ConsumptionTypeID: req.ConsumptionTypeID,
		Description:       req.Description,
	})
	if err != nil {
		respondServiceError(c, h.logger, err, "create record")
		return
	}

	RespondCreated(c, mapRecordToResponse(rec))
}

// GetByID returns one record of the owner, 404 when missing or deleted
func (h *RecordHandler) GetByID(c *gin.Context) {
	rec, err := h.recordService.GetRecord(c.Request.Context(), middleware.GetOwnerID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, h.logger, err, "get record")
		return
	}
	RespondOK(c, mapRecordToResponse(rec))
}

// List returns a page of records, newest trade date first
func (h *RecordHandler) List(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondInvalidParams(c, "Invalid pagination parameters")
		return
	}
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	records, total, err := h.recordService.ListRecords(c.Request.Context(), middleware.GetOwnerID(c), filter, pagination.Page, pagination.PerPage)
	if err != nil {
		respondServiceError(c, h.logger, err, "list records")
		return
	}

	response := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		response = append(response, mapRecordToResponse(rec))
	}
	RespondPage(c, response, pagination.Page, pagination.PerPage, total)
}

// Stats sums records per consumption type under the same filters as List
func (h *RecordHandler) Stats(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	stats, err := h.recordService.RecordStats(c.Request.Context(), middleware.GetOwnerID(c), filter)
	if err != nil {
		respondServiceError(c, h.logger, err, "compute record stats")
		return
	}
	RespondOK(c, mapStatsToResponse(stats))
}

// Update applies management edits. Allocation is not re-run.
func (h *RecordHandler) Update(c *gin.Context) {
	var req UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidParams(c, "Invalid request body: "+err.Error())
		return
	}

	in := service.UpdateRecordInput{
		CardID:            req.CardID,
		SwipeTypeID:       req.SwipeTypeID,
		ConsumptionTypeID: req.ConsumptionTypeID,
		Description:       req.Description,
	}
	if req.Amount != nil {
		amount, err := toMinorUnits("amount", *req.Amount)
		if err != nil {
			respondServiceError(c, h.logger, err, "update record")
			return
		}
		in.Amount = &amount
	}
	if req.TradeDate != nil {
		tradeDate, err := parseDate("trade_date", *req.TradeDate, h.location)
		if err != nil {
			respondServiceError(c, h.logger, err, "update record")
			return
		}
		in.TradeDate = tradeDate
	}

	rec, err := h.recordService.UpdateRecord(c.Request.Context(), middleware.GetOwnerID(c), c.Param("id"), in)
	if err != nil {
		respondServiceError(c, h.logger, err, "update record")
		return
	}
	RespondOK(c, mapRecordToResponse(rec))
}

// Delete soft-deletes a record; 409 when money is allocated to it
func (h *RecordHandler) Delete(c *gin.Context) {
	if err := h.recordService.DeleteRecord(c.Request.Context(), middleware.GetOwnerID(c), c.Param("id")); err != nil {
		respondServiceError(c, h.logger, err, "delete record")
		return
	}
	RespondNoContent(c)
}

func (h *RecordHandler) bindFilter(c *gin.Context) (service.ListRecordsInput, bool) {
	var params RecordFilterParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondInvalidParams(c, "Invalid query parameters: "+err.Error())
		return service.ListRecordsInput{}, false
	}

	start, err := parseDate("start_date", params.StartDate, h.location)
	if err != nil {
		respondServiceError(c, h.logger, err, "parse filter")
		return service.ListRecordsInput{}, false
	}
	end, err := parseDate("end_date", params.EndDate, h.location)
	if err != nil {
		respondServiceError(c, h.logger, err, "parse filter")
		return service.ListRecordsInput{}, false
	}

	return service.ListRecordsInput{
		CardID:            params.CardID,
		ConsumptionTypeID: params.ConsumptionTypeID,
		Type:              shared.RecordType(params.RecordType),
		StartDate:         start,
		EndDate:           end,
	}, true
}
