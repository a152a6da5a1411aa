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

// ErrNotEnabled indicates the principal has no second factor to act on.
var ErrNotEnabled = errors.New("second factor is not enabled")

// TwoFactorService manages second-factor enrollment for a principal.
type TwoFactorService struct {
	principals port.PrincipalRepository
	audit      port.AuditRepository
	events     port.EventPublisher
	codes      port.CodeSender
	now        func() time.Time
}

// NewTwoFactorService constructs a TwoFactorService instance.
func NewTwoFactorService(
	principals port.PrincipalRepository,
	audit port.AuditRepository,
	events port.EventPublisher,
	codes port.CodeSender,
) *TwoFactorService {
	return &TwoFactorService{
		principals: principals,
		audit:      audit,
		events:     events,
		codes:      codes,
		now:        time.Now,
	}
}

// Enable binds the out-of-band destination and turns the second factor on.
// Subsequent logins require a delivered code.
func (s *TwoFactorService) Enable(ctx context.Context, principalID, deliveryID string) error {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return fmt.Errorf("%w: delivery destination is required", ErrValidation)
	}

	principal, err := s.lookup(ctx, principalID)
	if err != nil {
		return err
	}

	if err := s.principals.UpdateTwoFactor(ctx, principal.ID, true, &deliveryID, s.now().UTC()); err != nil {
		return fmt.Errorf("enable second factor: %w", err)
	}

	s.record(ctx, principal, domain.AuditTwoFactorEnabled, "second factor enabled")
	return nil
}

// Disable turns the second factor off and clears the stored destination.
func (s *TwoFactorService) Disable(ctx context.Context, principalID string) error {
	principal, err := s.lookup(ctx, principalID)
	if err != nil {
		return err
	}
	if !principal.TwoFactorEnabled {
		return ErrNotEnabled
	}

	if err := s.principals.UpdateTwoFactor(ctx, principal.ID, false, nil, s.now().UTC()); err != nil {
		return fmt.Errorf("disable second factor: %w", err)
	}

	s.record(ctx, principal, domain.AuditTwoFactorDisabled, "second factor disabled")
	return nil
}

// SendTestCode delivers a throwaway code so the principal can confirm the
// destination actually receives messages. The code is not stored and cannot
// complete a login.
func (s *TwoFactorService) SendTestCode(ctx context.Context, principalID string) error {
	principal, err := s.lookup(ctx, principalID)
	if err != nil {
		return err
	}
	if !principal.TwoFactorEnabled || principal.DeliveryID == nil {
		return ErrNotEnabled
	}

	code, err := security.GenerateNumericCode(domain.SecondFactorCodeLength)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	if err := s.codes.SendCode(ctx, *principal.DeliveryID, code); err != nil {
		return fmt.Errorf("send test code: %w", err)
	}

	return nil
}

func (s *TwoFactorService) lookup(ctx context.Context, principalID string) (*domain.Principal, error) {
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

	return principal, nil
}

func (s *TwoFactorService) record(ctx context.Context, principal *domain.Principal, action domain.AuditAction, detail string) {
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
