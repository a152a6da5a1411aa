package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/kseleznov/toolshed/internal/core/domain"
)

var (
	// ErrTokenInvalid indicates the token is malformed, unsigned by us, or
	// carries the wrong scope for the requested operation.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates the token elapsed its validity window.
	ErrTokenExpired = errors.New("token expired")
)

// Claims carries the principal identity and the token scope. The scope is
// what keeps a challenge-scoped token from ever acting as a session.
type Claims struct {
	Role  string `json:"role,omitempty"`
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and validates the two token kinds the service uses.
type TokenIssuer struct {
	secret       []byte
	issuer       string
	sessionTTL   time.Duration
	challengeTTL time.Duration
}

// NewTokenIssuer constructs a TokenIssuer signing with HMAC-SHA256.
func NewTokenIssuer(secret, issuer string, sessionTTL, challengeTTL time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	if challengeTTL <= 0 {
		challengeTTL = 5 * time.Minute
	}

	return &TokenIssuer{
		secret:       []byte(secret),
		issuer:       issuer,
		sessionTTL:   sessionTTL,
		challengeTTL: challengeTTL,
	}, nil
}

// SessionTTL returns the configured session token lifetime.
func (t *TokenIssuer) SessionTTL() time.Duration {
	return t.sessionTTL
}

// ChallengeTTL returns the configured challenge token lifetime.
func (t *TokenIssuer) ChallengeTTL() time.Duration {
	return t.challengeTTL
}

// IssueSessionToken mints a session-scoped token carrying identity and role.
func (t *TokenIssuer) IssueSessionToken(principal domain.Principal) (string, error) {
	if principal.ID == "" {
		return "", fmt.Errorf("principal id is required")
	}

	return t.sign(Claims{
		Role:             string(principal.Role),
		Scope:            string(domain.ScopeSession),
		RegisteredClaims: t.registered(principal.ID, t.sessionTTL),
	})
}

// IssueChallengeToken mints a challenge-scoped token for the principal and
// returns it together with its identifier, which keys the stored challenge.
func (t *TokenIssuer) IssueChallengeToken(principalID string) (string, string, error) {
	if principalID == "" {
		return "", "", fmt.Errorf("principal id is required")
	}

	claims := Claims{
		Scope:            string(domain.ScopeChallenge),
		RegisteredClaims: t.registered(principalID, t.challengeTTL),
	}

	signed, err := t.sign(claims)
	if err != nil {
		return "", "", err
	}

	return signed, claims.ID, nil
}

// ParseSessionToken validates a token and requires session scope.
func (t *TokenIssuer) ParseSessionToken(token string) (*Claims, error) {
	return t.parse(token, domain.ScopeSession)
}

// ParseChallengeToken validates a token and requires challenge scope.
func (t *TokenIssuer) ParseChallengeToken(token string) (*Claims, error) {
	return t.parse(token, domain.ScopeChallenge)
}

func (t *TokenIssuer) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now().UTC()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func (t *TokenIssuer) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(token string, scope domain.TokenScope) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tk.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || claims.Scope != string(scope) {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
