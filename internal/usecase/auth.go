package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/core/port"
	"github.com/kseleznov/toolshed/internal/infra/config"
	"github.com/kseleznov/toolshed/internal/infra/logger"
	"github.com/kseleznov/toolshed/internal/infra/security"
	"github.com/kseleznov/toolshed/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the provided identifier or password are
	// incorrect. Unknown identifiers and wrong passwords are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates the account is disabled.
	ErrInactiveAccount = errors.New("account is not active")
	// ErrInvalidCode indicates the submitted second-factor code is wrong or
	// malformed. The challenge stays alive until attempts run out.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrChallengeExpired indicates the challenge elapsed, was consumed, or
	// never existed. The caller must restart the login flow.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrTooManyAttempts indicates the challenge burned through its attempt
	// budget and was discarded.
	ErrTooManyAttempts = errors.New("too many verification attempts")
)

// LoginResult carries the outcome of a credential check: either a completed
// session, or a pending second-factor challenge the caller must finish.
type LoginResult struct {
	Token                string
	RequiresSecondFactor bool
	Principal            domain.Principal
}

// AuthService coordinates login, second-factor verification, and logout.
type AuthService struct {
	cfg        *config.AppConfig
	principals port.PrincipalRepository
	challenges port.ChallengeRepository
	audit      port.AuditRepository
	tokens     *security.TokenIssuer
	codes      port.CodeSender
	events     port.EventPublisher
	log        *zap.Logger
	now        func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg *config.AppConfig,
	principals port.PrincipalRepository,
	challenges port.ChallengeRepository,
	audit port.AuditRepository,
	tokens *security.TokenIssuer,
	codes port.CodeSender,
	events port.EventPublisher,
	log *zap.Logger,
) (*AuthService, error) {
	if principals == nil {
		return nil, fmt.Errorf("principal repository is required")
	}
	if challenges == nil {
		return nil, fmt.Errorf("challenge repository is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthService{
		cfg:        cfg,
		principals: principals,
		challenges: challenges,
		audit:      audit,
		tokens:     tokens,
		codes:      codes,
		events:     events,
		log:        log,
		now:        time.Now,
	}, nil
}

// Login validates credentials. Principals without a second factor get a
// session token directly; enrolled principals get a challenge token and a
// code delivered out of band.
func (s *AuthService) Login(ctx context.Context, identifier, password, ip string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	principal, err := s.principals.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordAudit(ctx, nil, domain.AuditLoginFailed, "unknown identifier", ip)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	ok, err := security.VerifyPassword(password, principal.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.recordAudit(ctx, &principal.ID, domain.AuditLoginFailed, "wrong password", ip)
		return nil, ErrInvalidCredentials
	}

	if !principal.IsActive {
		s.recordAudit(ctx, &principal.ID, domain.AuditLoginFailed, "inactive account", ip)
		return nil, ErrInactiveAccount
	}

	if !principal.TwoFactorEnabled {
		return s.completeLogin(ctx, *principal, ip)
	}

	return s.issueChallenge(ctx, *principal, ip)
}

// VerifySecondFactor consumes a challenge token together with the delivered
// code and completes the login. Challenges are single use: a successful
// verification or an exhausted attempt budget discards them.
func (s *AuthService) VerifySecondFactor(ctx context.Context, challengeToken, code, ip string) (*LoginResult, error) {
	claims, err := s.tokens.ParseChallengeToken(challengeToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrChallengeExpired
		}
		return nil, ErrInvalidCredentials
	}

	challenge, err := s.challenges.Fetch(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChallengeExpired
		}
		return nil, fmt.Errorf("fetch challenge: %w", err)
	}

	if challenge.PrincipalID != claims.Subject {
		return nil, ErrInvalidCredentials
	}

	if challenge.IsExpired(s.now().UTC()) {
		_ = s.challenges.Delete(ctx, challenge.ID)
		return nil, ErrChallengeExpired
	}

	code = strings.TrimSpace(code)
	if !isWellFormedCode(code) || code != challenge.Code {
		attempts, incErr := s.challenges.IncrementAttempts(ctx, challenge.ID)
		if incErr != nil {
			if errors.Is(incErr, repository.ErrNotFound) {
				return nil, ErrChallengeExpired
			}
			return nil, fmt.Errorf("increment challenge attempts: %w", incErr)
		}

		s.recordAudit(ctx, &challenge.PrincipalID, domain.AuditSecondFactorFailed, "wrong code", ip)

		if attempts >= s.maxAttempts() {
			_ = s.challenges.Delete(ctx, challenge.ID)
			return nil, ErrTooManyAttempts
		}

		return nil, ErrInvalidCode
	}

	// Single use: losing the delete race means another caller consumed the
	// challenge first.
	if err := s.challenges.Delete(ctx, challenge.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChallengeExpired
		}
		return nil, fmt.Errorf("consume challenge: %w", err)
	}

	principal, err := s.principals.GetByID(ctx, challenge.PrincipalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup principal: %w", err)
	}
	if !principal.IsActive {
		return nil, ErrInactiveAccount
	}

	s.recordAudit(ctx, &principal.ID, domain.AuditSecondFactorOK, "code accepted", ip)

	return s.completeLogin(ctx, *principal, ip)
}

// Logout records the end of a session. Session tokens are stateless, so the
// server side is an audit entry; discarding the token is the caller's job.
func (s *AuthService) Logout(ctx context.Context, principalID, ip string) error {
	if strings.TrimSpace(principalID) == "" {
		return fmt.Errorf("principal id is required")
	}

	s.recordAudit(ctx, &principalID, domain.AuditLogout, "session ended", ip)
	s.publishEvent(ctx, domain.AuditLogout, principalID, "", nil)

	return nil
}

// CurrentPrincipal resolves the principal behind a validated session token.
func (s *AuthService) CurrentPrincipal(ctx context.Context, principalID string) (*domain.Principal, error) {
	if strings.TrimSpace(principalID) == "" {
		return nil, fmt.Errorf("principal id is required")
	}

	principal, err := s.principals.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup principal: %w", err)
	}
	if !principal.IsActive {
		return nil, ErrInactiveAccount
	}

	sanitized := principal.Sanitized()
	return &sanitized, nil
}

// ParseSessionToken validates a session token and returns its claims.
func (s *AuthService) ParseSessionToken(token string) (*security.Claims, error) {
	return s.tokens.ParseSessionToken(token)
}

func (s *AuthService) completeLogin(ctx context.Context, principal domain.Principal, ip string) (*LoginResult, error) {
	token, err := s.tokens.IssueSessionToken(principal)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	s.recordAudit(ctx, &principal.ID, domain.AuditLoginSucceeded, "session issued", ip)
	s.publishEvent(ctx, domain.AuditLoginSucceeded, principal.ID, principal.Username, nil)

	return &LoginResult{
		Token:     token,
		Principal: principal.Sanitized(),
	}, nil
}

func (s *AuthService) issueChallenge(ctx context.Context, principal domain.Principal, ip string) (*LoginResult, error) {
	if principal.DeliveryID == nil || strings.TrimSpace(*principal.DeliveryID) == "" {
		return nil, fmt.Errorf("principal %s has second factor enabled without a delivery destination", principal.ID)
	}

	token, challengeID, err := s.tokens.IssueChallengeToken(principal.ID)
	if err != nil {
		return nil, fmt.Errorf("issue challenge token: %w", err)
	}

	code, err := security.GenerateNumericCode(domain.SecondFactorCodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	now := s.now().UTC()
	ttl := s.codeTTL()
	challenge := domain.Challenge{
		ID:          challengeID,
		PrincipalID: principal.ID,
		Code:        code,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	if err := s.challenges.Store(ctx, challenge, ttl); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}

	if err := s.codes.SendCode(ctx, *principal.DeliveryID, code); err != nil {
		// Without a delivered code the challenge is unanswerable.
		_ = s.challenges.Delete(ctx, challengeID)
		return nil, fmt.Errorf("send verification code: %w", err)
	}

	s.recordAudit(ctx, &principal.ID, domain.AuditChallengeIssued, "code delivered", ip)
	s.publishEvent(ctx, domain.AuditChallengeIssued, principal.ID, principal.Username, map[string]any{
		"delivery_id": logger.MaskDeliveryID(*principal.DeliveryID),
	})

	return &LoginResult{
		Token:                token,
		RequiresSecondFactor: true,
		Principal:            principal.Sanitized(),
	}, nil
}

func (s *AuthService) codeTTL() time.Duration {
	if s.cfg != nil && s.cfg.TwoFactor.CodeTTL > 0 {
		return s.cfg.TwoFactor.CodeTTL
	}
	return 5 * time.Minute
}

func (s *AuthService) maxAttempts() int {
	if s.cfg != nil && s.cfg.TwoFactor.MaxAttempts > 0 {
		return s.cfg.TwoFactor.MaxAttempts
	}
	return 5
}

// recordAudit is best effort: a failed audit write never blocks the flow.
func (s *AuthService) recordAudit(ctx context.Context, principalID *string, action domain.AuditAction, detail, ip string) {
	if s.audit == nil {
		return
	}

	entry := domain.AuditEntry{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		Action:      action,
		Detail:      detail,
		CreatedAt:   s.now().UTC(),
	}
	if ip != "" {
		entry.IP = &ip
	}

	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Warn("record audit entry",
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func (s *AuthService) publishEvent(ctx context.Context, action domain.AuditAction, principalID, username string, metadata map[string]any) {
	if s.events == nil {
		return
	}

	event := domain.SecurityEvent{
		EventID:     uuid.NewString(),
		Action:      action,
		PrincipalID: principalID,
		Username:    username,
		OccurredAt:  s.now().UTC(),
		Metadata:    metadata,
	}

	if err := s.events.PublishSecurityEvent(ctx, event); err != nil {
		s.log.Warn("publish security event",
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func isWellFormedCode(code string) bool {
	if len(code) != domain.SecondFactorCodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
