package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitRepository_Window(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{
		KeyPrefix: "ratelimit",
		TTL:       time.Hour,
	})

	ctx := context.Background()
	now := time.Now().UTC()
	window := time.Minute

	stamps := []time.Time{
		now.Add(-2 * time.Minute),
		now.Add(-30 * time.Second),
		now.Add(-5 * time.Second),
	}
	for _, at := range stamps {
		if err := repo.RecordAttempt(ctx, "alice", at); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := repo.CountAttempts(ctx, "alice", window, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two attempts inside the window, got %d", count)
	}

	if err := repo.TrimWindow(ctx, "alice", window, now); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}

	count, err = repo.CountAttempts(ctx, "alice", 10*time.Minute, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected trim to drop the stale attempt, got %d", count)
	}
}

func TestRateLimitRepository_InvalidWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "ratelimit"})

	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.CountAttempts(ctx, "alice", 0, now); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
	if err := repo.TrimWindow(ctx, "alice", 0, now); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
}

func TestRateLimitRepository_IsolatedIdentifiers(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "ratelimit"})

	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.RecordAttempt(ctx, "alice", now); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	count, err := repo.CountAttempts(ctx, "bob", time.Minute, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no attempts for other identifier, got %d", count)
	}
}
