package domain

import "time"

// TokenScope distinguishes the two credentials the service issues. A
// challenge-scoped token proves only that the primary secret was verified;
// it is accepted solely by second-factor verification.
type TokenScope string

const (
	ScopeSession   TokenScope = "session"
	ScopeChallenge TokenScope = "challenge"
)

// SecondFactorCodeLength is the exact length of delivered verification
// codes. Anything else is rejected before the stored code is consulted.
const SecondFactorCodeLength = 6

// Challenge is the server-side state behind a challenge token: the expected
// code and how many verification attempts were spent on it.
type Challenge struct {
	ID          string
	PrincipalID string
	Code        string
	Attempts    int
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// IsExpired reports whether the challenge elapsed its validity window.
func (c Challenge) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}
