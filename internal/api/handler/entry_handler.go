package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rox-lucas-sh/image-scan-vision/internal/api/service"
)

// ImageFormField is the multipart field carrying the uploaded image
const ImageFormField = "image"

// EntryHandler handles HTTP requests for entry operations
type EntryHandler struct {
	entryService   service.EntryService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewEntryHandler creates a new entry handler
func NewEntryHandler(logger *slog.Logger, entryService service.EntryService, maxUploadBytes int64) *EntryHandler {
	return &EntryHandler{
		entryService:   entryService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Create accepts a multipart image and starts its pipeline. Upload and scan
// run before the response is written, so a 502 still carries the entry.
func (h *EntryHandler) Create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	file, err := c.FormFile(ImageFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondWithError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Image exceeds the upload limit", nil)
			return
		}
		h.logger.Warn("Missing image in request", "error", err)
		RespondBadRequest(c, "A multipart field named \"image\" is required")
		return
	}

	f, err := file.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded image", "error", err)
		RespondInternalError(c)
		return
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		h.logger.Error("Failed to read uploaded image", "error", err)
		RespondInternalError(c)
		return
	}
	if len(raw) == 0 {
		RespondBadRequest(c, "Image is empty")
		return
	}

	e, err := h.entryService.Submit(c.Request.Context(), raw)
	if err != nil {
		respondEntryError(c, err, e)
		return
	}

	RespondAccepted(c, mapEntryToResponse(e))
}

// List returns entries in insertion order, one page at a time
func (h *EntryHandler) List(c *gin.Context) {
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	entries, total, err := h.entryService.ListEntries(c.Request.Context(), params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list entries", "error", err)
		RespondInternalError(c)
		return
	}

	RespondWithPaginatedData(c, mapEntriesToResponse(entries), params.Page, params.PerPage, total)
}

func (h *EntryHandler) GetByID(c *gin.Context) {
	e, err := h.entryService.GetEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEntryError(c, err, e)
		return
	}
	RespondOK(c, mapEntryToResponse(e))
}

// GetImage streams the stored image bytes of an entry
func (h *EntryHandler) GetImage(c *gin.Context) {
	data, contentType, err := h.entryService.EntryImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEntryError(c, err, emptyEntry)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// RetryOCR re-polls OCR for an entry. The body is optional.
func (h *EntryHandler) RetryOCR(c *gin.Context) {
	var req RetryOCRRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	e, err := h.entryService.RetryOCR(c.Request.Context(), c.Param("id"), req.ScanID)
	if err != nil {
		respondEntryError(c, err, e)
		return
	}
	RespondAccepted(c, mapEntryToResponse(e))
}

// RetryPoints requests points again for a valid entry. The body is optional.
func (h *EntryHandler) RetryPoints(c *gin.Context) {
	var req RetryPointsRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	e, err := h.entryService.RetryPoints(c.Request.Context(), c.Param("id"), req.TransactionID)
	if err != nil {
		respondEntryError(c, err, e)
		return
	}
	RespondAccepted(c, mapEntryToResponse(e))
}

func (h *EntryHandler) Cancel(c *gin.Context) {
	e, err := h.entryService.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEntryError(c, err, e)
		return
	}
	RespondOK(c, mapEntryToResponse(e))
}

func (h *EntryHandler) Delete(c *gin.Context) {
	if err := h.entryService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondEntryError(c, err, emptyEntry)
		return
	}
	RespondNoContent(c)
}

// Select marks the entry shown as current
func (h *EntryHandler) Select(c *gin.Context) {
	var req SelectEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	e, err := h.entryService.Select(c.Request.Context(), req.EntryID)
	if err != nil {
		respondEntryError(c, err, emptyEntry)
		return
	}
	RespondOK(c, mapEntryToResponse(e))
}

func (h *EntryHandler) GetSelected(c *gin.Context) {
	e, ok := h.entryService.Selected(c.Request.Context())
	if !ok {
		RespondNotFound(c, "No entry is selected")
		return
	}
	RespondOK(c, mapEntryToResponse(e))
}

func (h *EntryHandler) ClearSelection(c *gin.Context) {
	h.entryService.ClearSelection(c.Request.Context())
	RespondNoContent(c)
}

// bindOptionalJSON binds the body when one was sent. It writes a 400 and
// returns false on malformed JSON.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
