package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kseleznov/toolshed/internal/transport/http/middleware"
	"github.com/kseleznov/toolshed/internal/usecase"
)

// PasswordHandler exposes password self-service endpoints.
type PasswordHandler struct {
	users *usecase.UserService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(users *usecase.UserService) *PasswordHandler {
	return &PasswordHandler{users: users}
}

// ChangePassword rotates the caller's password after re-verifying the
// current one.
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)
	if principalID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "current_password and new_password are required"))
		return
	}

	err := h.users.ChangePassword(c.Request.Context(), principalID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "current password is incorrect"))
		case errors.Is(err, usecase.ErrValidation):
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
		case errors.Is(err, usecase.ErrInactiveAccount):
			c.JSON(http.StatusForbidden, NewErrorResponse(c, "account inactive"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to change password"))
		}
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}
