package port

import (
	"context"
	"time"

	"github.com/kseleznov/toolshed/internal/core/domain"
)

// ChallengeRepository stores pending second-factor challenges keyed by the
// challenge token identifier. Entries are single-use: Delete is called on a
// successful verification and the backing store expires the rest.
type ChallengeRepository interface {
	Store(ctx context.Context, challenge domain.Challenge, ttl time.Duration) error
	Fetch(ctx context.Context, id string) (*domain.Challenge, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}
