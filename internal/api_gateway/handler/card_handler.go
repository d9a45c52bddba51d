package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/card-repayment-ledger/internal/api_gateway/middleware"
	"github.com/card-repayment-ledger/internal/api_gateway/service"
)

// CardHandler handles HTTP requests for the card catalog
type CardHandler struct {
	cardService service.CardService
	logger      *slog.Logger
}

// NewCardHandler creates a new card handler
func NewCardHandler(logger *slog.Logger, cardService service.CardService) *CardHandler {
	return &CardHandler{
		cardService: cardService,
		logger:      logger,
	}
}

func (h *CardHandler) Create(c *gin.Context) {
	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidParams(c, "Invalid request body: "+err.Error())
		return
	}
	limit, err := toMinorUnits("credit_limit", req.CreditLimit)
	if err != nil {
		respondServiceError(c, h.logger, err, "create card")
		return
	}

	card, err := h.cardService.CreateCard(c.Request.Context(), middleware.GetOwnerID(c), service.CardInput{
		Name:           req.Name,
		Bank:           req.Bank,
		CardNumber:     req.CardNumber,
		CreditLimit:    limit,
		BillDay:        req.BillDay,
		PaymentDay:     req.PaymentDay,
		LastPaymentDay: req.LastPaymentDay,
		Color:          req.Color,
		Description:    req.Description,
	})
	if err != nil {
		respondServiceError(c, h.logger, err, "create card")
		return
	}
	RespondCreated(c, mapCardToResponse(card))
}

func (h *CardHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	card, err := h.cardService.GetCard(c.Request.Context(), middleware.GetOwnerID(c), id)
	if err != nil {
		respondServiceError(c, h.logger, err, "get card")
		return
	}
	RespondOK(c, mapCardToResponse(card))
}

// List returns the owner's cards ordered by payment day
func (h *CardHandler) List(c *gin.Context) {
	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondInvalidParams(c, "Invalid query parameters: "+err.Error())
		return
	}
	cards, err := h.cardService.ListCards(c.Request.Context(), middleware.GetOwnerID(c), params.IncludeInactive)
	if err != nil {
		respondServiceError(c, h.logger, err, "list cards")
		return
	}

	response := make([]CardResponse, 0, len(cards))
	for _, card := range cards {
		response = append(response, mapCardToResponse(card))
	}
	RespondOK(c, response)
}

func (h *CardHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidParams(c, "Invalid request body: "+err.Error())
		return
	}

	patch := service.CardPatch{
		Name:           req.Name,
		Bank:           req.Bank,
		CardNumber:     req.CardNumber,
		BillDay:        req.BillDay,
		PaymentDay:     req.PaymentDay,
		LastPaymentDay: req.LastPaymentDay,
		Color:          req.Color,
		Description:    req.Description,
	}
	if req.CreditLimit != nil {
		limit, err := toMinorUnits("credit_limit", *req.CreditLimit)
		if err != nil {
			respondServiceError(c, h.logger, err, "update card")
			return
		}
		patch.CreditLimit = &limit
	}

	card, err := h.cardService.UpdateCard(c.Request.Context(), middleware.GetOwnerID(c), id, patch)
	if err != nil {
		respondServiceError(c, h.logger, err, "update card")
		return
	}
	RespondOK(c, mapCardToResponse(card))
}

// Delete deactivates a card. Its records keep their card snapshot.
func (h *CardHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.cardService.DeleteCard(c.Request.Context(), middleware.GetOwnerID(c), id); err != nil {
		respondServiceError(c, h.logger, err, "delete card")
		return
	}
	RespondNoContent(c)
}

// parseID reads the :id path parameter as a uuid, answering 400 otherwise
func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondInvalidParams(c, "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}
