package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rox-lucas-sh/image-scan-vision/internal/api/middleware"
)

// Response is the envelope every JSON endpoint answers with
type Response struct {
	Data          any        `json:"data,omitempty"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Meta          *MetaInfo  `json:"meta,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo carries pagination details for list responses
type MetaInfo struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
	TotalItems int `json:"total_items"`
}

func newMeta(page, perPage, totalItems int) *MetaInfo {
	totalPages := 0
	if perPage > 0 {
		totalPages = (totalItems + perPage - 1) / perPage
	}
	return &MetaInfo{
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		TotalItems: totalItems,
	}
}

func respond(c *gin.Context, statusCode int, response *Response) {
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data any) {
	respond(c, statusCode, &Response{Data: data})
}

// RespondWithError sends a JSON response with an error and optional data
func RespondWithError(c *gin.Context, statusCode int, code, message string, data any) {
	respond(c, statusCode, &Response{
		Data:  data,
		Error: &ErrorInfo{Code: code, Message: message},
	})
}

// RespondWithPaginatedData sends one page of a list
func RespondWithPaginatedData(c *gin.Context, data any, page, perPage, totalItems int) {
	respond(c, http.StatusOK, &Response{Data: data, Meta: newMeta(page, perPage, totalItems)})
}

func RespondOK(c *gin.Context, data any) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondAccepted is used when background work continues after the response
func RespondAccepted(c *gin.Context, data any) {
	RespondWithData(c, http.StatusAccepted, data)
}

func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message, nil)
}

func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, "NOT_FOUND", message, nil)
}

func RespondConflict(c *gin.Context, message string, data any) {
	RespondWithError(c, http.StatusConflict, "CONFLICT", message, data)
}

func RespondUnprocessable(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", message, nil)
}

// RespondBadGateway reports a failed upstream call. data is the resource
// state the failure left behind and may be nil.
func RespondBadGateway(c *gin.Context, message string, data any) {
	RespondWithError(c, http.StatusBadGateway, "UPSTREAM_ERROR", message, data)
}

func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred", nil)
}
