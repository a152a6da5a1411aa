package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kseleznov/toolshed/internal/transport/http/middleware"
	"github.com/kseleznov/toolshed/internal/usecase"
)

// TwoFactorHandler exposes second-factor enrollment endpoints.
type TwoFactorHandler struct {
	twoFactor *usecase.TwoFactorService
}

// NewTwoFactorHandler constructs TwoFactorHandler.
func NewTwoFactorHandler(twoFactor *usecase.TwoFactorService) *TwoFactorHandler {
	return &TwoFactorHandler{twoFactor: twoFactor}
}

// RegisterRoutes binds enrollment routes. All of them require a session.
func (h *TwoFactorHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/enable", h.enable)
	r.POST("/disable", h.disable)
	r.POST("/test", h.sendTestCode)
}

func (h *TwoFactorHandler) enable(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)
	if principalID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorEnableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "delivery_id is required"))
		return
	}

	if err := h.twoFactor.Enable(c.Request.Context(), principalID, req.DeliveryID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "second factor enabled"})
}

func (h *TwoFactorHandler) disable(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)
	if principalID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.twoFactor.Disable(c.Request.Context(), principalID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "second factor disabled"})
}

func (h *TwoFactorHandler) sendTestCode(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)
	if principalID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.twoFactor.SendTestCode(c.Request.Context(), principalID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "test code sent"})
}

func (h *TwoFactorHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
	case errors.Is(err, usecase.ErrNotEnabled):
		c.JSON(http.StatusConflict, NewErrorResponse(c, "second factor is not enabled"))
	case errors.Is(err, usecase.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "account no longer exists"))
	case errors.Is(err, usecase.ErrInactiveAccount):
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "account inactive"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "second factor operation failed"))
	}
}
