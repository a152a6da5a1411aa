package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/repository"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func testChallenge(id string) domain.Challenge {
	now := time.Now().UTC()
	return domain.Challenge{
		ID:          id,
		PrincipalID: "principal-1",
		Code:        "482913",
		Attempts:    0,
		CreatedAt:   now,
		ExpiresAt:   now.Add(5 * time.Minute),
	}
}

func TestChallengeRepository_StoreAndFetch(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewChallengeRepository(client, "challenge")

	ctx := context.Background()
	challenge := testChallenge("jti-1")

	if err := repo.Store(ctx, challenge, 5*time.Minute); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	fetched, err := repo.Fetch(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if fetched.PrincipalID != challenge.PrincipalID {
		t.Fatalf("expected principal %s, got %s", challenge.PrincipalID, fetched.PrincipalID)
	}
	if fetched.Code != challenge.Code {
		t.Fatalf("expected code %s, got %s", challenge.Code, fetched.Code)
	}
	if fetched.Attempts != 0 {
		t.Fatalf("expected zero attempts, got %d", fetched.Attempts)
	}

	remaining := server.TTL("challenge:jti-1")
	if remaining <= 0 || remaining > 5*time.Minute {
		t.Fatalf("expected ttl within (0, 5m], got %v", remaining)
	}
}

func TestChallengeRepository_StoreValidation(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewChallengeRepository(client, "challenge")

	ctx := context.Background()

	blank := testChallenge("")
	if err := repo.Store(ctx, blank, time.Minute); err == nil {
		t.Fatalf("expected error for missing challenge id")
	}

	noTTL := testChallenge("jti-1")
	if err := repo.Store(ctx, noTTL, 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}
}

func TestChallengeRepository_FetchMiss(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewChallengeRepository(client, "challenge")

	_, err := repo.Fetch(context.Background(), "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChallengeRepository_IncrementAttempts(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewChallengeRepository(client, "challenge")

	ctx := context.Background()
	if err := repo.Store(ctx, testChallenge("jti-1"), 5*time.Minute); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := repo.IncrementAttempts(ctx, "jti-1")
		if err != nil {
			t.Fatalf("IncrementAttempts returned error: %v", err)
		}
		if got != want {
			t.Fatalf("expected attempt count %d, got %d", want, got)
		}
	}

	fetched, err := repo.Fetch(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if fetched.Attempts != 3 {
		t.Fatalf("expected three recorded attempts, got %d", fetched.Attempts)
	}
}

func TestChallengeRepository_DeleteSingleUse(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewChallengeRepository(client, "challenge")

	ctx := context.Background()
	if err := repo.Store(ctx, testChallenge("jti-1"), 5*time.Minute); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	if err := repo.Delete(ctx, "jti-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if err := repo.Delete(ctx, "jti-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	if _, err := repo.Fetch(ctx, "jti-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestChallengeRepository_Expiry(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewChallengeRepository(client, "challenge")

	ctx := context.Background()
	if err := repo.Store(ctx, testChallenge("jti-1"), time.Minute); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	server.FastForward(2 * time.Minute)

	if _, err := repo.Fetch(ctx, "jti-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}
