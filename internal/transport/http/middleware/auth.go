package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/infra/security"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// SessionTokenParser validates a bearer token and returns its claims.
// Only session-scoped tokens pass; a challenge token is rejected here.
type SessionTokenParser interface {
	ParseSessionToken(token string) (*security.Claims, error)
}

// RequireAuth validates the Authorization header and stores the principal
// identity on the request context.
func RequireAuth(parser SessionTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing session token"))
			return
		}

		claims, err := parser.ParseSessionToken(token)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "session token expired"))
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid session token"))
			}
			return
		}

		c.Set(PrincipalIDKey, claims.Subject)
		c.Set(RoleKey, domain.Role(claims.Role))

		c.Next()
	}
}

// RequireRole checks that the authenticated principal carries at least the
// given privilege level.
func RequireRole(minimum domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get(RoleKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		role, ok := roleVal.(domain.Role)
		if !ok || !role.IsValid() {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient privileges"))
			return
		}

		if !role.AtLeast(minimum) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient privileges"))
			return
		}

		c.Next()
	}
}

// GetPrincipalID returns the authenticated principal ID, if any.
func GetPrincipalID(c *gin.Context) string {
	if val, exists := c.Get(PrincipalIDKey); exists {
		if id, ok := val.(string); ok {
			return id
		}
	}
	return ""
}

// GetRole returns the authenticated principal role, if any.
func GetRole(c *gin.Context) domain.Role {
	if val, exists := c.Get(RoleKey); exists {
		if role, ok := val.(domain.Role); ok {
			return role
		}
	}
	return ""
}
