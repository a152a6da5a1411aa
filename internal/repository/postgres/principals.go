package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/core/port"
	"github.com/kseleznov/toolshed/internal/repository"
)

const principalsTable = "principals"

var principalColumns = []string{
	"id",
	"username",
	"email",
	"password_hash",
	"role",
	"two_factor_enabled",
	"delivery_id",
	"is_active",
	"created_at",
	"updated_at",
}

// PrincipalRepository implements port.PrincipalRepository using PostgreSQL.
type PrincipalRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPrincipalRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewPrincipalRepository(exec pgExecutor) *PrincipalRepository {
	return &PrincipalRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new principal row.
func (r *PrincipalRepository) Create(ctx context.Context, principal domain.Principal) error {
	var deliveryValue any
	if principal.DeliveryID != nil && *principal.DeliveryID != "" {
		deliveryValue = *principal.DeliveryID
	}

	stmt, args, err := r.builder.Insert(principalsTable).
		Columns(principalColumns...).
		Values(
			principal.ID,
			principal.Username,
			principal.Email,
			principal.PasswordHash,
			principal.Role,
			principal.TwoFactorEnabled,
			deliveryValue,
			principal.IsActive,
			principal.CreatedAt,
			principal.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert principal sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert principal: %w", normalizeError(err))
	}

	return nil
}

// GetByID retrieves a principal by identifier.
func (r *PrincipalRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	stmt, args, err := r.builder.
		Select(principalColumns...).
		From(principalsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select principal sql: %w", err)
	}

	return r.scanPrincipal(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByIdentifier retrieves a principal by username or email.
func (r *PrincipalRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Principal, error) {
	stmt, args, err := r.builder.
		Select(principalColumns...).
		From(principalsTable).
		Where(squirrel.Or{
			squirrel.Eq{"username": identifier},
			squirrel.Eq{"email": identifier},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select principal by identifier sql: %w", err)
	}

	return r.scanPrincipal(r.exec.QueryRow(ctx, stmt, args...))
}

// UpdatePassword replaces the stored password hash.
func (r *PrincipalRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update(principalsTable).
		Set("password_hash", passwordHash).
		Set("updated_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	return r.execExpectingRow(ctx, stmt, args, "update password")
}

// UpdateTwoFactor sets the second-factor enrollment state.
func (r *PrincipalRepository) UpdateTwoFactor(ctx context.Context, id string, enabled bool, deliveryID *string, changedAt time.Time) error {
	var deliveryValue any
	if deliveryID != nil && *deliveryID != "" {
		deliveryValue = *deliveryID
	}

	stmt, args, err := r.builder.Update(principalsTable).
		Set("two_factor_enabled", enabled).
		Set("delivery_id", deliveryValue).
		Set("updated_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update two factor sql: %w", err)
	}

	return r.execExpectingRow(ctx, stmt, args, "update two factor")
}

// UpdateRole changes the principal role.
func (r *PrincipalRepository) UpdateRole(ctx context.Context, id string, role domain.Role, changedAt time.Time) error {
	stmt, args, err := r.builder.Update(principalsTable).
		Set("role", role).
		Set("updated_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update role sql: %w", err)
	}

	return r.execExpectingRow(ctx, stmt, args, "update role")
}

func (r *PrincipalRepository) execExpectingRow(ctx context.Context, stmt string, args []any, op string) error {
	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, normalizeError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	return nil
}

func (r *PrincipalRepository) scanPrincipal(row interface{ Scan(...any) error }) (*domain.Principal, error) {
	var (
		principal domain.Principal
		delivery  sql.NullString
	)

	if err := row.Scan(
		&principal.ID,
		&principal.Username,
		&principal.Email,
		&principal.PasswordHash,
		&principal.Role,
		&principal.TwoFactorEnabled,
		&delivery,
		&principal.IsActive,
		&principal.CreatedAt,
		&principal.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan principal: %w", normalizeError(err))
	}

	if delivery.Valid {
		val := delivery.String
		principal.DeliveryID = &val
	}

	return &principal, nil
}

var _ port.PrincipalRepository = (*PrincipalRepository)(nil)
