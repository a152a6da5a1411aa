package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kseleznov/toolshed/internal/transport/http/middleware"
	"github.com/kseleznov/toolshed/internal/usecase"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth         *usecase.AuthService
	registration *usecase.RegistrationService
	sessionTTL   int
	challengeTTL int
}

// NewAuthHandler constructs AuthHandler. TTLs are reported to clients as
// expires_in seconds on issued tokens.
func NewAuthHandler(auth *usecase.AuthService, registration *usecase.RegistrationService, sessionTTLSeconds, challengeTTLSeconds int) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		registration: registration,
		sessionTTL:   sessionTTLSeconds,
		challengeTTL: challengeTTLSeconds,
	}
}

// RegisterRoutes binds authentication routes. Login and verification share
// one rate-limit chain, registration gets its own.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, authMiddleware gin.HandlerFunc, loginMiddlewares, registerMiddlewares []gin.HandlerFunc) {
	registerChain := append([]gin.HandlerFunc{}, registerMiddlewares...)
	r.POST("/register", append(registerChain, h.register)...)

	loginChain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	r.POST("/login", append(loginChain, h.login)...)

	verifyChain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	r.POST("/verify-2fa", append(verifyChain, h.verifySecondFactor)...)

	r.GET("/me", authMiddleware, h.me)
	r.POST("/logout", authMiddleware, h.logout)
}

func (h *AuthHandler) register(c *gin.Context) {
	if h.registration == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "registration service unavailable"))
		return
	}

	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	principal, err := h.registration.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrDuplicateIdentifier):
			c.JSON(http.StatusConflict, NewErrorResponse(c, "username or email already registered"))
		case errors.Is(err, usecase.ErrValidation):
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to register account"))
		}
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{Principal: newPrincipalSummary(*principal)})
}

func (h *AuthHandler) login(c *gin.Context) {
	var req AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), strings.TrimSpace(req.Identifier), req.Password, c.ClientIP())
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.loginResponse(result))
}

func (h *AuthHandler) verifySecondFactor(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "missing challenge token"))
		return
	}

	var req AuthVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	result, err := h.auth.VerifySecondFactor(c.Request.Context(), token, req.Code, c.ClientIP())
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.loginResponse(result))
}

func (h *AuthHandler) me(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)
	if principalID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	principal, err := h.auth.CurrentPrincipal(c.Request.Context(), principalID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "account no longer exists"))
		case errors.Is(err, usecase.ErrInactiveAccount):
			c.JSON(http.StatusForbidden, NewErrorResponse(c, "account inactive"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load account"))
		}
		return
	}

	c.JSON(http.StatusOK, newPrincipalSummary(*principal))
}

func (h *AuthHandler) logout(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)
	if principalID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), principalID, c.ClientIP()); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to record logout"))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) loginResponse(result *usecase.LoginResult) AuthLoginResponse {
	resp := AuthLoginResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		Requires2FA: result.RequiresSecondFactor,
	}

	if result.RequiresSecondFactor {
		resp.ExpiresIn = h.challengeTTL
		return resp
	}

	resp.ExpiresIn = h.sessionTTL
	summary := newPrincipalSummary(result.Principal)
	resp.Principal = &summary
	return resp
}

func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid credentials"))
	case errors.Is(err, usecase.ErrInactiveAccount):
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "account inactive"))
	case errors.Is(err, usecase.ErrInvalidCode):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid verification code"))
	case errors.Is(err, usecase.ErrChallengeExpired):
		c.JSON(http.StatusGone, NewErrorResponse(c, "challenge expired, log in again"))
	case errors.Is(err, usecase.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many verification attempts, log in again"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authentication failed"))
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
