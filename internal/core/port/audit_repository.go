package port

import (
	"context"

	"github.com/kseleznov/toolshed/internal/core/domain"
)

// AuditRepository persists the authentication audit trail.
type AuditRepository interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}
