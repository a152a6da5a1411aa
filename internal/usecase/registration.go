package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	uuid "github.com/google/uuid"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/core/port"
	"github.com/kseleznov/toolshed/internal/infra/logger"
	"github.com/kseleznov/toolshed/internal/infra/security"
	"github.com/kseleznov/toolshed/internal/repository"
)

const minUsernameLength = 3

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var (
	// ErrDuplicateIdentifier indicates the username or email is already taken.
	ErrDuplicateIdentifier = errors.New("username or email already registered")
	// ErrValidation indicates the submitted registration fields are invalid.
	ErrValidation = errors.New("validation failed")
)

// RegistrationService handles new account onboarding.
type RegistrationService struct {
	principals        port.PrincipalRepository
	audit             port.AuditRepository
	events            port.EventPublisher
	passwordValidator *security.PasswordValidator
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(
	principals port.PrincipalRepository,
	audit port.AuditRepository,
	events port.EventPublisher,
	validator *security.PasswordValidator,
) *RegistrationService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	return &RegistrationService{
		principals:        principals,
		audit:             audit,
		events:            events,
		passwordValidator: validator,
	}
}

// Register creates a new principal with the default role. Second factor
// starts disabled; enrollment is a separate step after first login.
func (s *RegistrationService) Register(ctx context.Context, username, email, password string) (*domain.Principal, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if len(username) < minUsernameLength {
		return nil, fmt.Errorf("%w: username must be at least %d characters", ErrValidation, minUsernameLength)
	}
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: email address is malformed", ErrValidation)
	}
	if err := s.passwordValidator.Validate(password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	principal := domain.Principal{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.principals.Create(ctx, principal); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateIdentifier
		}
		return nil, fmt.Errorf("create principal: %w", err)
	}

	s.recordAudit(ctx, principal, now)
	s.publishRegistered(ctx, principal)

	sanitized := principal.Sanitized()
	return &sanitized, nil
}

func (s *RegistrationService) recordAudit(ctx context.Context, principal domain.Principal, at time.Time) {
	if s.audit == nil {
		return
	}
	principalID := principal.ID
	// Audit rows are operator-visible, so the address is masked.
	detail := fmt.Sprintf("account created for %s", logger.MaskEmail(principal.Email))
	_ = s.audit.Record(ctx, domain.AuditEntry{
		ID:          uuid.NewString(),
		PrincipalID: &principalID,
		Action:      domain.AuditRegistered,
		Detail:      detail,
		CreatedAt:   at,
	})
}

func (s *RegistrationService) publishRegistered(ctx context.Context, principal domain.Principal) {
	if s.events == nil {
		return
	}
	_ = s.events.PublishSecurityEvent(ctx, domain.SecurityEvent{
		EventID:     uuid.NewString(),
		Action:      domain.AuditRegistered,
		PrincipalID: principal.ID,
		Username:    principal.Username,
		OccurredAt:  time.Now().UTC(),
	})
}
