package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/core/port"
	"github.com/kseleznov/toolshed/internal/repository"
)

const (
	defaultChallengePrefix = "toolshed:challenge"

	fieldPrincipalID = "principal_id"
	fieldCode        = "code"
	fieldAttempts    = "attempts"
	fieldCreatedAt   = "created_at"
	fieldExpiresAt   = "expires_at"
)

// ChallengeRepository persists pending second-factor challenges in Redis,
// keyed by the challenge token identifier.
type ChallengeRepository struct {
	client *red.Client
	prefix string
}

// NewChallengeRepository constructs a challenge repository with the provided
// Redis client and key prefix.
func NewChallengeRepository(client *red.Client, keyPrefix string) *ChallengeRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}

	return &ChallengeRepository{
		client: client,
		prefix: prefix,
	}
}

// Store persists the challenge under its identifier with the supplied TTL.
// The key expires on its own, so abandoned challenges never need sweeping.
func (r *ChallengeRepository) Store(ctx context.Context, challenge domain.Challenge, ttl time.Duration) error {
	switch {
	case strings.TrimSpace(challenge.ID) == "":
		return errors.New("challenge id is required")
	case strings.TrimSpace(challenge.PrincipalID) == "":
		return errors.New("principal id is required")
	case strings.TrimSpace(challenge.Code) == "":
		return errors.New("code is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	key := r.key(challenge.ID)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldPrincipalID: challenge.PrincipalID,
		fieldCode:        challenge.Code,
		fieldAttempts:    strconv.Itoa(challenge.Attempts),
		fieldCreatedAt:   strconv.FormatInt(challenge.CreatedAt.Unix(), 10),
		fieldExpiresAt:   strconv.FormatInt(challenge.ExpiresAt.Unix(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store challenge: %w", err)
	}

	return nil
}

// Fetch retrieves the challenge for the provided identifier.
func (r *ChallengeRepository) Fetch(ctx context.Context, id string) (*domain.Challenge, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("challenge id is required")
	}

	values, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall challenge: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	code := strings.TrimSpace(values[fieldCode])
	if code == "" {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	attempts := 0
	if raw := values[fieldAttempts]; raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			attempts = v
		}
	}

	return &domain.Challenge{
		ID:          id,
		PrincipalID: values[fieldPrincipalID],
		Code:        code,
		Attempts:    attempts,
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	}, nil
}

// IncrementAttempts increments the attempt counter and returns the new value.
func (r *ChallengeRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	if _, err := r.Fetch(ctx, id); err != nil {
		return 0, err
	}

	count, err := r.client.HIncrBy(ctx, r.key(strings.TrimSpace(id)), fieldAttempts, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby challenge attempts: %w", err)
	}

	return int(count), nil
}

// Delete removes the challenge, enforcing single-use semantics.
func (r *ChallengeRepository) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("challenge id is required")
	}

	deleted, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis delete challenge: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *ChallengeRepository) key(id string) string {
	return fmt.Sprintf("%s:%s", r.prefix, id)
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.ChallengeRepository = (*ChallengeRepository)(nil)
