package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/repository"
	"github.com/kseleznov/toolshed/internal/usecase"
)

// AdminHandler exposes administration endpoints. The route group applying it
// must already enforce authentication; role floors are applied per route.
type AdminHandler struct {
	users *usecase.UserService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(users *usecase.UserService) *AdminHandler {
	return &AdminHandler{users: users}
}

// RegisterRoutes binds administration routes. Role changes are admin-only;
// the audit trail is readable by moderators as well.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, adminOnly, moderatorFloor gin.HandlerFunc) {
	r.PUT("/principals/:id/role", adminOnly, h.setRole)
	r.GET("/audit", moderatorFloor, h.listAudit)
}

func (h *AdminHandler) setRole(c *gin.Context) {
	principalID := strings.TrimSpace(c.Param("id"))
	if principalID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "principal id is required"))
		return
	}

	var req RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "role is required"))
		return
	}

	principal, err := h.users.SetRole(c.Request.Context(), principalID, domain.Role(strings.TrimSpace(req.Role)))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidRole):
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown role"))
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "principal not found"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to update role"))
		}
		return
	}

	c.JSON(http.StatusOK, newPrincipalSummary(*principal))
}

func (h *AdminHandler) listAudit(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.users.RecentAudit(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list audit entries"))
		return
	}

	views := make([]AuditEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, newAuditEntryView(entry))
	}

	c.JSON(http.StatusOK, AuditListResponse{Entries: views})
}
