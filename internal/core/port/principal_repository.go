package port

import (
	"context"
	"time"

	"github.com/kseleznov/toolshed/internal/core/domain"
)

// PrincipalRepository exposes persistence behavior for principals.
type PrincipalRepository interface {
	Create(ctx context.Context, principal domain.Principal) error
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
	// GetByIdentifier resolves a principal by username or email.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Principal, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	UpdateTwoFactor(ctx context.Context, id string, enabled bool, deliveryID *string, changedAt time.Time) error
	UpdateRole(ctx context.Context, id string, role domain.Role, changedAt time.Time) error
}
