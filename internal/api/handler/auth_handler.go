package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/rox-lucas-sh/image-scan-vision/internal/api/service"
)

// AuthHandler manages the reward system bearer token
type AuthHandler struct {
	authService service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(logger *slog.Logger, authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// SetToken stores a new token. The response reports its expiry, never the token.
func (h *AuthHandler) SetToken(c *gin.Context) {
	var req SetTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	status, err := h.authService.SetToken(c.Request.Context(), req.Token)
	if err != nil {
		h.logger.Warn("Token rejected", "error", err)
		respondEntryError(c, err, emptyEntry)
		return
	}
	RespondOK(c, mapTokenStatusToResponse(status))
}

func (h *AuthHandler) GetStatus(c *gin.Context) {
	RespondOK(c, mapTokenStatusToResponse(h.authService.Status(c.Request.Context())))
}

func (h *AuthHandler) ClearToken(c *gin.Context) {
	h.authService.ClearToken(c.Request.Context())
	RespondNoContent(c)
}
