// Package api is a typed HTTP client for the toolshed service. It separates
// transport failures, which say nothing about credential validity, from
// status-coded server rejections so callers can react to each correctly.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable marks transport-level failures: timeouts, refused
// connections, malformed responses. These are retryable and must never be
// treated as an authentication verdict.
var ErrUnavailable = errors.New("service unavailable")

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// Principal mirrors the service's principal summary payload.
type Principal struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
}

// LoginReply is the response of both login and second-factor verification.
// When Requires2FA is set the access token is challenge-scoped and Principal
// is absent.
type LoginReply struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	Requires2FA bool       `json:"requires_2fa"`
	Principal   *Principal `json:"principal,omitempty"`
}

// AuditEntry mirrors one row of the service's audit listing.
type AuditEntry struct {
	ID          string    `json:"id"`
	PrincipalID *string   `json:"principal_id,omitempty"`
	Action      string    `json:"action"`
	Detail      string    `json:"detail"`
	IP          *string   `json:"ip,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const defaultTimeout = 15 * time.Second

// Client talks to one toolshed service instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New builds a Client for the given base URL (scheme://host[:port]).
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerReply struct {
	Principal Principal `json:"principal"`
}

// Register creates a new account and returns its sanitized principal.
func (c *Client) Register(ctx context.Context, username, email, password string) (*Principal, error) {
	var reply registerReply
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", "", registerRequest{
		Username: username,
		Email:    email,
		Password: password,
	}, &reply)
	if err != nil {
		return nil, err
	}
	return &reply.Principal, nil
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login exchanges credentials for either a session token or a
// challenge-scoped token flagged with Requires2FA.
func (c *Client) Login(ctx context.Context, identifier, password string) (*LoginReply, error) {
	var reply LoginReply
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", "", loginRequest{
		Identifier: identifier,
		Password:   password,
	}, &reply)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

type verifyRequest struct {
	Code string `json:"code"`
}

// VerifySecondFactor completes a pending challenge. The challenge-scoped
// token rides the Authorization header, same as a session token would.
func (c *Client) VerifySecondFactor(ctx context.Context, challengeToken, code string) (*LoginReply, error) {
	var reply LoginReply
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/verify-2fa", challengeToken, verifyRequest{Code: code}, &reply)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// CurrentPrincipal resolves the bearer token into its principal.
func (c *Client) CurrentPrincipal(ctx context.Context, token string) (*Principal, error) {
	var principal Principal
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", token, nil, &principal); err != nil {
		return nil, err
	}
	return &principal, nil
}

// Logout records the logout server-side. Token invalidation is local.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/logout", token, nil, nil)
}

type enableTwoFactorRequest struct {
	DeliveryID string `json:"delivery_id"`
}

// EnableTwoFactor binds an out-of-band destination and turns enforcement on.
func (c *Client) EnableTwoFactor(ctx context.Context, token, deliveryID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/2fa/enable", token, enableTwoFactorRequest{DeliveryID: deliveryID}, nil)
}

// DisableTwoFactor turns second-factor enforcement off.
func (c *Client) DisableTwoFactor(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/2fa/disable", token, nil, nil)
}

// SendTestCode delivers a throwaway code to the enrolled destination.
func (c *Client) SendTestCode(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/2fa/test", token, nil, nil)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword rotates the account secret after re-verifying the current one.
func (c *Client) ChangePassword(ctx context.Context, token, current, updated string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/password/change", token, changePasswordRequest{
		CurrentPassword: current,
		NewPassword:     updated,
	}, nil)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetRole changes another principal's role. Requires an admin token.
func (c *Client) SetRole(ctx context.Context, token, principalID, role string) (*Principal, error) {
	var principal Principal
	path := "/api/v1/admin/principals/" + url.PathEscape(principalID) + "/role"
	if err := c.do(ctx, http.MethodPut, path, token, setRoleRequest{Role: role}, &principal); err != nil {
		return nil, err
	}
	return &principal, nil
}

type auditListReply struct {
	Entries []AuditEntry `json:"entries"`
}

// ListAudit fetches recent audit entries. Requires an admin token.
func (c *Client) ListAudit(ctx context.Context, token string, limit int) ([]AuditEntry, error) {
	path := "/api/v1/admin/audit"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var reply auditListReply
	if err := c.do(ctx, http.MethodGet, path, token, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Entries, nil
}

type errorReply struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var reply errorReply
		if decodeErr := json.NewDecoder(resp.Body).Decode(&reply); decodeErr == nil {
			apiErr.Message = reply.Error
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: %w: decode response: %v", method, path, ErrUnavailable, err)
	}
	return nil
}
