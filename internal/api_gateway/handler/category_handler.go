package handler

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/card-repayment-ledger/internal/api_gateway/middleware"
	"github.com/card-repayment-ledger/internal/api_gateway/service"
	"github.com/card-repayment-ledger/internal/domain/catalog"
)

// CategoryHandler serves one kind of category, swipe types or consumption types
type CategoryHandler struct {
	categoryService service.CategoryService
	kind            catalog.Kind
	logger          *slog.Logger
}

// NewCategoryHandler creates a handler bound to kind
func NewCategoryHandler(logger *slog.Logger, categoryService service.CategoryService, kind catalog.Kind) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		kind:            kind,
		logger:          logger.With("kind", strings.ToLower(string(kind))),
	}
}

func (h *CategoryHandler) Create(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidParams(c, "Invalid request body: "+err.Error())
		return
	}

	category, err := h.categoryService.CreateCategory(c.Request.Context(), middleware.GetOwnerID(c), h.kind, service.CategoryInput{
		Name:        req.Name,
		Icon:        req.Icon,
		Color:       req.Color,
		Description: req.Description,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		respondServiceError(c, h.logger, err, "create category")
		return
	}
	RespondCreated(c, mapCategoryToResponse(category))
}

func (h *CategoryHandler) List(c *gin.Context) {
	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondInvalidParams(c, "Invalid query parameters: "+err.Error())
		return
	}
	categories, err := h.categoryService.ListCategories(c.Request.Context(), middleware.GetOwnerID(c), h.kind, params.IncludeInactive)
	if err != nil {
		respondServiceError(c, h.logger, err, "list categories")
		return
	}

	response := make([]CategoryResponse, 0, len(categories))
	for _, category := range categories {
		response = append(response, mapCategoryToResponse(category))
	}
	RespondOK(c, response)
}

func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidParams(c, "Invalid request body: "+err.Error())
		return
	}

	category, err := h.categoryService.UpdateCategory(c.Request.Context(), middleware.GetOwnerID(c), h.kind, id, service.CategoryPatch{
		Name:        req.Name,
		Icon:        req.Icon,
		Color:       req.Color,
		Description: req.Description,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		respondServiceError(c, h.logger, err, "update category")
		return
	}
	RespondOK(c, mapCategoryToResponse(category))
}

func (h *CategoryHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.categoryService.DeleteCategory(c.Request.Context(), middleware.GetOwnerID(c), h.kind, id); err != nil {
		respondServiceError(c, h.logger, err, "delete category")
		return
	}
	RespondNoContent(c)
}
