package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/infra/security"
)

func TestUserService_ChangePassword(t *testing.T) {
	principals := newStubPrincipalRepo(testPrincipal(t, false))
	service := NewUserService(principals, &stubAuditRepo{}, &stubEventPublisher{}, nil)

	ctx := context.Background()
	newPassword := "entirely different secret 9"

	if err := service.ChangePassword(ctx, "principal-1", testPassword, newPassword); err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}

	principal, err := principals.GetByID(ctx, "principal-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	ok, err := security.VerifyPassword(newPassword, principal.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("expected new password to verify, ok=%v err=%v", ok, err)
	}
	ok, err = security.VerifyPassword(testPassword, principal.PasswordHash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected old password to stop verifying")
	}
}

func TestUserService_ChangePasswordWrongCurrent(t *testing.T) {
	service := NewUserService(newStubPrincipalRepo(testPrincipal(t, false)), nil, nil, nil)

	err := service.ChangePassword(context.Background(), "principal-1", "not the password", "entirely different secret 9")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserService_ChangePasswordRejectsReuse(t *testing.T) {
	service := NewUserService(newStubPrincipalRepo(testPrincipal(t, false)), nil, nil, nil)

	err := service.ChangePassword(context.Background(), "principal-1", testPassword, testPassword)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for reused password, got %v", err)
	}
}

func TestUserService_SetRole(t *testing.T) {
	principals := newStubPrincipalRepo(testPrincipal(t, false))
	audit := &stubAuditRepo{}
	service := NewUserService(principals, audit, &stubEventPublisher{}, nil)

	ctx := context.Background()

	principal, err := service.SetRole(ctx, "principal-1", domain.RoleModerator)
	if err != nil {
		t.Fatalf("SetRole returned error: %v", err)
	}
	if principal.Role != domain.RoleModerator {
		t.Fatalf("expected moderator role, got %s", principal.Role)
	}

	stored, err := principals.GetByID(ctx, "principal-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if stored.Role != domain.RoleModerator {
		t.Fatalf("expected persisted role change, got %s", stored.Role)
	}

	actions := audit.actions()
	if len(actions) != 1 || actions[0] != domain.AuditRoleChanged {
		t.Fatalf("expected role change audit entry, got %v", actions)
	}
}

func TestUserService_SetRoleRejectsUnknownRole(t *testing.T) {
	service := NewUserService(newStubPrincipalRepo(testPrincipal(t, false)), nil, nil, nil)

	if _, err := service.SetRole(context.Background(), "principal-1", domain.Role("owner")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestUserService_RecentAudit(t *testing.T) {
	audit := &stubAuditRepo{}
	for i := 0; i < 10; i++ {
		principalID := "principal-1"
		_ = audit.Record(context.Background(), domain.AuditEntry{
			ID:          "entry",
			PrincipalID: &principalID,
			Action:      domain.AuditLoginSucceeded,
		})
	}

	service := NewUserService(newStubPrincipalRepo(), audit, nil, nil)

	entries, err := service.RecentAudit(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentAudit returned error: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected five entries, got %d", len(entries))
	}
}
