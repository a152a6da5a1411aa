package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/infra/security"
)

func TestRegistrationService_Register(t *testing.T) {
	principals := newStubPrincipalRepo()
	audit := &stubAuditRepo{}
	events := &stubEventPublisher{}
	service := NewRegistrationService(principals, audit, events, nil)

	principal, err := service.Register(context.Background(), "alice", "Alice@Example.com", testPassword)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if principal.Role != domain.RoleUser {
		t.Fatalf("expected default role user, got %s", principal.Role)
	}
	if principal.TwoFactorEnabled {
		t.Fatalf("expected second factor disabled on registration")
	}
	if !principal.IsActive {
		t.Fatalf("expected account active")
	}
	if principal.Email != "alice@example.com" {
		t.Fatalf("expected lowercased email, got %s", principal.Email)
	}
	if principal.PasswordHash != "" {
		t.Fatalf("expected sanitized principal")
	}

	stored, err := principals.GetByIdentifier(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByIdentifier returned error: %v", err)
	}
	ok, err := security.VerifyPassword(testPassword, stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify, ok=%v err=%v", ok, err)
	}

	actions := audit.actions()
	if len(actions) != 1 || actions[0] != domain.AuditRegistered {
		t.Fatalf("expected registration audit entry, got %v", actions)
	}
	entries, err := audit.ListRecent(context.Background(), 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one audit entry, err=%v", err)
	}
	if !strings.Contains(entries[0].Detail, "ali***@example.com") {
		t.Fatalf("expected masked email in audit detail, got %q", entries[0].Detail)
	}
	if strings.Contains(entries[0].Detail, "alice@example.com") {
		t.Fatalf("full email leaked into audit detail: %q", entries[0].Detail)
	}
	if len(events.events) != 1 {
		t.Fatalf("expected one security event, got %d", len(events.events))
	}
}

func TestRegistrationService_Validation(t *testing.T) {
	service := NewRegistrationService(newStubPrincipalRepo(), nil, nil, nil)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short username", "ab", "a@example.com", testPassword},
		{"malformed email", "alice", "not-an-email", testPassword},
		{"missing email domain", "alice", "alice@", testPassword},
		{"short password", "alice", "a@example.com", "abc"},
		{"guessable password", "alice", "a@example.com", "password"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Register(ctx, tc.username, tc.email, tc.password)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRegistrationService_Duplicate(t *testing.T) {
	service := NewRegistrationService(newStubPrincipalRepo(), nil, nil, nil)
	ctx := context.Background()

	if _, err := service.Register(ctx, "alice", "alice@example.com", testPassword); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}

	if _, err := service.Register(ctx, "alice", "other@example.com", testPassword); !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier for username clash, got %v", err)
	}
	if _, err := service.Register(ctx, "bob", "alice@example.com", testPassword); !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier for email clash, got %v", err)
	}
}
