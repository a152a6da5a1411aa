package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kseleznov/toolshed/internal/core/domain"
)

func TestTwoFactorService_EnableAndDisable(t *testing.T) {
	principals := newStubPrincipalRepo(testPrincipal(t, false))
	audit := &stubAuditRepo{}
	sender := &stubCodeSender{}
	service := NewTwoFactorService(principals, audit, &stubEventPublisher{}, sender)

	ctx := context.Background()

	if err := service.Enable(ctx, "principal-1", "482913557"); err != nil {
		t.Fatalf("Enable returned error: %v", err)
	}

	principal, err := principals.GetByID(ctx, "principal-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if !principal.TwoFactorEnabled {
		t.Fatalf("expected second factor enabled")
	}
	if principal.DeliveryID == nil || *principal.DeliveryID != "482913557" {
		t.Fatalf("expected delivery destination bound")
	}

	if err := service.Disable(ctx, "principal-1"); err != nil {
		t.Fatalf("Disable returned error: %v", err)
	}

	principal, err = principals.GetByID(ctx, "principal-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if principal.TwoFactorEnabled || principal.DeliveryID != nil {
		t.Fatalf("expected second factor disabled and destination cleared")
	}

	actions := audit.actions()
	if len(actions) != 2 || actions[0] != domain.AuditTwoFactorEnabled || actions[1] != domain.AuditTwoFactorDisabled {
		t.Fatalf("unexpected audit actions: %v", actions)
	}
}

func TestTwoFactorService_EnableRequiresDestination(t *testing.T) {
	service := NewTwoFactorService(newStubPrincipalRepo(testPrincipal(t, false)), nil, nil, &stubCodeSender{})

	if err := service.Enable(context.Background(), "principal-1", "   "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank destination, got %v", err)
	}
}

func TestTwoFactorService_DisableWhenNotEnabled(t *testing.T) {
	service := NewTwoFactorService(newStubPrincipalRepo(testPrincipal(t, false)), nil, nil, &stubCodeSender{})

	if err := service.Disable(context.Background(), "principal-1"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled, got %v", err)
	}
}

func TestTwoFactorService_SendTestCode(t *testing.T) {
	sender := &stubCodeSender{}
	service := NewTwoFactorService(newStubPrincipalRepo(testPrincipal(t, true)), nil, nil, sender)

	if err := service.SendTestCode(context.Background(), "principal-1"); err != nil {
		t.Fatalf("SendTestCode returned error: %v", err)
	}

	if len(sender.destinations) != 1 || sender.destinations[0] != "482913557" {
		t.Fatalf("expected code sent to bound destination, got %v", sender.destinations)
	}
	if len(sender.lastCode()) != domain.SecondFactorCodeLength {
		t.Fatalf("expected %d-digit test code, got %q", domain.SecondFactorCodeLength, sender.lastCode())
	}
}

func TestTwoFactorService_SendTestCodeRequiresEnrollment(t *testing.T) {
	service := NewTwoFactorService(newStubPrincipalRepo(testPrincipal(t, false)), nil, nil, &stubCodeSender{})

	if err := service.SendTestCode(context.Background(), "principal-1"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled, got %v", err)
	}
}
