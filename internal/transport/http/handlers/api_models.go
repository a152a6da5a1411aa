package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// PrincipalSummary describes the account view returned by the API.
type PrincipalSummary struct {
	ID               string      `json:"id"`
	Username         string      `json:"username"`
	Email            string      `json:"email"`
	Role             domain.Role `json:"role"`
	TwoFactorEnabled bool        `json:"two_factor_enabled"`
}

func newPrincipalSummary(principal domain.Principal) PrincipalSummary {
	return PrincipalSummary{
		ID:               principal.ID,
		Username:         principal.Username,
		Email:            principal.Email,
		Role:             principal.Role,
		TwoFactorEnabled: principal.TwoFactorEnabled,
	}
}

// AuthLoginRequest defines the payload for the login endpoint.
type AuthLoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// AuthLoginResponse describes the login outcome. When requires_2fa is set
// the access token is challenge-scoped and only valid for verify-2fa.
type AuthLoginResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	ExpiresIn   int               `json:"expires_in"`
	Requires2FA bool              `json:"requires_2fa"`
	Principal   *PrincipalSummary `json:"principal,omitempty"`
}

// AuthVerifyRequest carries the delivered code for second-factor completion.
type AuthVerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

// RegistrationRequest defines the account registration payload.
type RegistrationRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegistrationResponse contains the created account view.
type RegistrationResponse struct {
	Principal PrincipalSummary `json:"principal"`
}

// TwoFactorEnableRequest binds the out-of-band code destination.
type TwoFactorEnableRequest struct {
	DeliveryID string `json:"delivery_id" binding:"required"`
}

// PasswordChangeRequest carries a password rotation payload.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// RoleUpdateRequest carries the new role for a principal.
type RoleUpdateRequest struct {
	Role string `json:"role" binding:"required"`
}

// AuditEntryView is the admin-facing audit trail entry.
type AuditEntryView struct {
	ID          string    `json:"id"`
	PrincipalID *string   `json:"principal_id,omitempty"`
	Action      string    `json:"action"`
	Detail      string    `json:"detail"`
	IP          *string   `json:"ip,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuditListResponse wraps the audit trail listing.
type AuditListResponse struct {
	Entries []AuditEntryView `json:"entries"`
}

func newAuditEntryView(entry domain.AuditEntry) AuditEntryView {
	return AuditEntryView{
		ID:          entry.ID,
		PrincipalID: entry.PrincipalID,
		Action:      string(entry.Action),
		Detail:      entry.Detail,
		IP:          entry.IP,
		CreatedAt:   entry.CreatedAt,
	}
}
