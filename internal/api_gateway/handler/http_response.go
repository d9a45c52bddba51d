package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/card-repayment-ledger/internal/api_gateway/middleware"
)

// Error codes carried in ErrorInfo.Code
const (
	CodeInvalidParams = "INVALID_PARAMS"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeInternal      = "INTERNAL_SERVER_ERROR"
)

// Response is the envelope every API answer is wrapped in
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo describes the page of a list response
type MetaInfo struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
	TotalItems int64 `json:"total_items"`
}

func pageMeta(page, perPage int, totalItems int64) *MetaInfo {
	meta := &MetaInfo{Page: page, PerPage: perPage, TotalItems: totalItems}
	if perPage > 0 {
		meta.TotalPages = int((totalItems + int64(perPage) - 1) / int64(perPage))
	}
	return meta
}

func respond(c *gin.Context, status int, response *Response) {
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(status, response)
}

func respondError(c *gin.Context, status int, code, message string) {
	respond(c, status, &Response{Error: &ErrorInfo{Code: code, Message: message}})
}

func RespondOK(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, &Response{Data: data})
}

func RespondCreated(c *gin.Context, data interface{}) {
	respond(c, http.StatusCreated, &Response{Data: data})
}

// RespondPage sends one page of a list with its pagination meta
func RespondPage(c *gin.Context, data interface{}, page, perPage int, totalItems int64) {
	respond(c, http.StatusOK, &Response{Data: data, Meta: pageMeta(page, perPage, totalItems)})
}

func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// RespondInvalidParams rejects a request before anything was written
func RespondInvalidParams(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, CodeInvalidParams, message)
}

func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	respondError(c, http.StatusNotFound, CodeNotFound, message)
}

func RespondConflict(c *gin.Context, message string) {
	respondError(c, http.StatusConflict, CodeConflict, message)
}

// RespondInternalError never exposes the cause; callers log it
func RespondInternalError(c *gin.Context) {
	respondError(c, http.StatusInternalServerError, CodeInternal, "An internal server error occurred")
}
