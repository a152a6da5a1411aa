package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/core/port"
	"github.com/kseleznov/toolshed/internal/infra/security"
	"github.com/kseleznov/toolshed/internal/repository"
)

// ErrInvalidRole indicates an unknown role value was submitted.
var ErrInvalidRole = errors.New("invalid role")

// UserService covers account self-service and administration.
type UserService struct {
	principals        port.PrincipalRepository
	audit             port.AuditRepository
	events            port.EventPublisher
	passwordValidator *security.PasswordValidator
	now               func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(
	principals port.PrincipalRepository,
	audit port.AuditRepository,
	events port.EventPublisher,
	validator *security.PasswordValidator,
) *UserService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	return &UserService{
		principals:        principals,
		audit:             audit,
		events:            events,
		passwordValidator: validator,
		now:               time.Now,
	}
}

// ChangePassword re-verifies the current password before storing a new hash.
func (s *UserService) ChangePassword(ctx context.Context, principalID, currentPassword, newPassword string) error {
	if strings.TrimSpace(principalID) == "" {
		return fmt.Errorf("principal id is required")
	}
	if currentPassword == "" {
		return fmt.Errorf("current password is required")
	}

	principal, err := s.principals.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("lookup principal: %w", err)
	}
	if !principal.IsActive {
		return ErrInactiveAccount
	}

	ok, err := security.VerifyPassword(currentPassword, principal.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	validator := s.passwordValidator.WithRules(security.RequireDifferentFrom(currentPassword))
	if err := validator.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	newHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.principals.UpdatePassword(ctx, principal.ID, newHash, s.now().UTC()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.record(ctx, principal, domain.AuditPasswordChanged, "password changed")
	return nil
}

// SetRole changes the principal role. The transport layer guards this with
// an admin check; the service validates the role value itself.
func (s *UserService) SetRole(ctx context.Context, principalID string, role domain.Role) (*domain.Principal, error) {
	if strings.TrimSpace(principalID) == "" {
		return nil, fmt.Errorf("principal id is required")
	}
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	principal, err := s.principals.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	if err := s.principals.UpdateRole(ctx, principal.ID, role, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	principal.Role = role
	s.record(ctx, principal, domain.AuditRoleChanged, fmt.Sprintf("role set to %s", role))

	sanitized := principal.Sanitized()
	return &sanitized, nil
}

// RecentAudit returns the newest audit entries for the admin trail.
func (s *UserService) RecentAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if s.audit == nil {
		return nil, fmt.Errorf("audit repository not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	entries, err := s.audit.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	return entries, nil
}

func (s *UserService) record(ctx context.Context, principal *domain.Principal, action domain.AuditAction, detail string) {
	now := s.now().UTC()
	if s.audit != nil {
		_ = s.audit.Record(ctx, domain.AuditEntry{
			ID:          uuid.NewString(),
			PrincipalID: &principal.ID,
			Action:      action,
			Detail:      detail,
			CreatedAt:   now,
		})
	}
	if s.events != nil {
		_ = s.events.PublishSecurityEvent(ctx, domain.SecurityEvent{
			EventID:     uuid.NewString(),
			Action:      action,
			PrincipalID: principal.ID,
			Username:    principal.Username,
			OccurredAt:  now,
		})
	}
}
