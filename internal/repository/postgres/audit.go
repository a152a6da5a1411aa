package postgres

import (
	"context"
	"database/sql"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/core/port"
)

const auditTable = "audit_log"

var auditColumns = []string{
	"id",
	"principal_id",
	"action",
	"detail",
	"ip",
	"created_at",
}

// AuditRepository implements port.AuditRepository using PostgreSQL.
type AuditRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuditRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewAuditRepository(exec pgExecutor) *AuditRepository {
	return &AuditRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Record appends one entry to the audit trail.
func (r *AuditRepository) Record(ctx context.Context, entry domain.AuditEntry) error {
	var principalValue any
	if entry.PrincipalID != nil && *entry.PrincipalID != "" {
		principalValue = *entry.PrincipalID
	}
	var ipValue any
	if entry.IP != nil && *entry.IP != "" {
		ipValue = *entry.IP
	}

	stmt, args, err := r.builder.Insert(auditTable).
		Columns(auditColumns...).
		Values(
			entry.ID,
			principalValue,
			entry.Action,
			entry.Detail,
			ipValue,
			entry.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit entry sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", normalizeError(err))
	}

	return nil
}

// ListRecent returns the newest entries first, capped at limit.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	stmt, args, err := r.builder.
		Select(auditColumns...).
		From(auditTable).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select audit entries sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select audit entries: %w", normalizeError(err))
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0, limit)
	for rows.Next() {
		var (
			entry     domain.AuditEntry
			principal sql.NullString
			ip        sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&principal,
			&entry.Action,
			&entry.Detail,
			&ip,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if principal.Valid {
			val := principal.String
			entry.PrincipalID = &val
		}
		if ip.Valid {
			val := ip.String
			entry.IP = &val
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}

var _ port.AuditRepository = (*AuditRepository)(nil)
