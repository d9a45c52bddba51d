package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/card-repayment-ledger/internal/domain/catalog"
	"github.com/card-repayment-ledger/internal/domain/record"
	"github.com/card-repayment-ledger/internal/domain/shared"
)

// catalogValidationErrors are rejected catalog fields
var catalogValidationErrors = []error{
	catalog.ErrEmptyOwner,
	catalog.ErrEmptyName,
	catalog.ErrEmptyBank,
	catalog.ErrEmptyCardNumber,
	catalog.ErrInvalidCreditLimit,
	catalog.ErrInvalidDay,
	catalog.ErrInvalidKind,
}

// respondServiceError maps a service error onto the response envelope. Anything
// unrecognised is logged and answered with an opaque 500.
func respondServiceError(c *gin.Context, logger *slog.Logger, err error, action string) {
	var (
		invalid   shared.ErrInvalidInput
		duplicate catalog.ErrDuplicateName
	)
	switch {
	case errors.As(err, &invalid):
		RespondInvalidParams(c, invalid.Error())
	case isCatalogValidation(err):
		RespondInvalidParams(c, err.Error())
	case errors.Is(err, record.ErrRecordNotFound{}):
		RespondNotFound(c, "Record not found")
	case errors.Is(err, catalog.ErrCardNotFound{}):
		RespondNotFound(c, "Card not found")
	case errors.Is(err, catalog.ErrCategoryNotFound{}):
		RespondNotFound(c, "Type not found")
	case errors.Is(err, record.ErrRecordHasAllocations{}):
		RespondConflict(c, "Record has allocations")
	case errors.As(err, &duplicate):
		RespondConflict(c, "An entry named "+duplicate.Name+" already exists")
	case errors.Is(err, shared.ErrOperationFailed):
		// Detail was logged where it happened
		RespondInternalError(c)
	default:
		logger.Error("Failed to "+action, "error", err)
		RespondInternalError(c)
	}
}

func isCatalogValidation(err error) bool {
	for _, target := range catalogValidationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
