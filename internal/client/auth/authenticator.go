// Package auth drives the client-side login state machine: credential
// submission, the optional second-factor challenge step, session persistence,
// and the derived authentication state every other surface consumes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/kseleznov/toolshed/internal/client/api"
)

// Failure kinds surfaced by the authenticator. Transport failures are not
// part of this taxonomy; they arrive wrapped in api.ErrUnavailable and leave
// local state untouched.
var (
	// ErrInvalidCredentials covers both unknown identifier and wrong secret.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned for a deactivated account.
	ErrAccountInactive = errors.New("account is inactive")
	// ErrInvalidCode is returned for a malformed or wrong second-factor code.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrChallengeExpired is returned when the challenge handle is stale,
	// superseded, or already consumed.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrTooManyAttempts is returned when the service exhausts the challenge.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrDuplicateIdentifier is returned when a username or email is taken.
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	// ErrValidation is returned for input rejected before or by the service.
	ErrValidation = errors.New("validation failed")
	// ErrNotEnabled is returned for second-factor actions without enrollment.
	ErrNotEnabled = errors.New("second factor is not enabled")
	// ErrNotAuthenticated is returned for operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// SecondFactorCodeLength is the exact length of a delivered code. Anything
// else is rejected locally without a network round trip.
const SecondFactorCodeLength = 6

const minUsernameLength = 3

const minPasswordLength = 6

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
)

// State is the resolved authentication state of the process.
type State int

const (
	// StateUnresolved means the stored token has not been checked yet.
	// Consumers must defer decisions rather than treat it as logged out.
	StateUnresolved State = iota
	// StateUnauthenticated means no valid session exists.
	StateUnauthenticated
	// StateAuthenticated means a session token resolved to a principal.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the current state. Principal is non-nil
// only when State is StateAuthenticated.
type Snapshot struct {
	State     State
	Principal *api.Principal
}

// Challenge is the opaque handle for one pending second-factor step. A new
// Login supersedes any outstanding handle.
type Challenge struct {
	token string
	seq   uint64
}

// LoginResult is the outcome of a Login call: either a completed session or
// a pending challenge.
type LoginResult struct {
	Principal *api.Principal
	Challenge *Challenge
}

// RequiresSecondFactor reports whether the login is waiting on a code.
func (r LoginResult) RequiresSecondFactor() bool {
	return r.Challenge != nil
}

// SessionStore is the persistence slot for the single session token.
type SessionStore interface {
	Save(token string) error
	Load() (string, error)
	Clear() error
}

// Subscriber receives state snapshots as they change.
type Subscriber func(Snapshot)

// Authenticator owns the login state machine and the session slot.
type Authenticator struct {
	api   *api.Client
	store SessionStore

	mu          sync.Mutex
	state       State
	principal   *api.Principal
	loginSeq    uint64
	storeGen    uint64
	subscribers map[uint64]Subscriber
	nextSubID   uint64
}

// NewAuthenticator builds an Authenticator in the Unresolved state. Callers
// must run ResolveSession before acting on the state.
func NewAuthenticator(client *api.Client, store SessionStore) (*Authenticator, error) {
	if client == nil {
		return nil, fmt.Errorf("api client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	return &Authenticator{
		api:         client,
		store:       store,
		state:       StateUnresolved,
		subscribers: make(map[uint64]Subscriber),
	}, nil
}

// Snapshot returns the current state.
func (a *Authenticator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{State: a.state, Principal: a.principal}
}

// Subscribe registers fn for state changes and returns an unsubscribe
// function. fn is called synchronously on each transition.
func (a *Authenticator) Subscribe(fn Subscriber) func() {
	a.mu.Lock()
	id := a.nextSubID
	a.nextSubID++
	a.subscribers[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subscribers, id)
		a.mu.Unlock()
	}
}

// setState mutates state under the lock and notifies subscribers outside it.
func (a *Authenticator) setState(state State, principal *api.Principal) {
	a.mu.Lock()
	a.state = state
	a.principal = principal
	subs := make([]Subscriber, 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	snapshot := Snapshot{State: state, Principal: principal}
	for _, fn := range subs {
		fn(snapshot)
	}
}

// ResolveSession checks the stored token against the service and settles the
// state. A rejected token is cleared and resolves to Unauthenticated, same
// as never having logged in. A transport failure leaves both the token and
// the state alone and is returned for the caller to retry.
func (a *Authenticator) ResolveSession(ctx context.Context) error {
	token, err := a.store.Load()
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	if token == "" {
		a.setState(StateUnauthenticated, nil)
		return nil
	}

	a.mu.Lock()
	gen := a.storeGen
	a.mu.Unlock()

	principal, err := a.api.CurrentPrincipal(ctx, token)
	if err != nil {
		if errors.Is(err, api.ErrUnavailable) {
			return fmt.Errorf("resolve session: %w", err)
		}
		// Expired, revoked, malformed: all collapse to logged out.
		if clearErr := a.clearSlot(gen); clearErr != nil {
			return fmt.Errorf("resolve session: %w", clearErr)
		}
		a.setState(StateUnauthenticated, nil)
		return nil
	}

	a.mu.Lock()
	stale := a.storeGen != gen
	a.mu.Unlock()
	if stale {
		// Logout or a new login won the race; their state stands.
		return nil
	}

	a.setState(StateAuthenticated, principal)
	return nil
}

// clearSlot clears the token only if the slot has not been rewritten since
// gen was read. Logout and fresh logins always win the race.
func (a *Authenticator) clearSlot(gen uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.storeGen != gen {
		return nil
	}
	a.storeGen++
	return a.store.Clear()
}

// Login verifies credentials. A completed login persists the session token
// and resolves the state to Authenticated. A challenge keeps the state at
// Unauthenticated and returns a handle for VerifySecondFactor; any prior
// outstanding handle is invalidated.
func (a *Authenticator) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, fmt.Errorf("%w: identifier and password are required", ErrValidation)
	}

	a.mu.Lock()
	a.loginSeq++
	seq := a.loginSeq
	a.mu.Unlock()

	reply, err := a.api.Login(ctx, identifier, secret)
	if err != nil {
		return nil, mapLoginError(err)
	}

	if reply.Requires2FA {
		return &LoginResult{Challenge: &Challenge{token: reply.AccessToken, seq: seq}}, nil
	}
	return a.completeLogin(reply)
}

// VerifySecondFactor submits a delivered code for the given challenge. The
// code format is checked locally first; nothing leaves the process for a
// malformed code. A wrong code keeps the handle alive for a retry.
func (a *Authenticator) VerifySecondFactor(ctx context.Context, code string, challenge *Challenge) (*LoginResult, error) {
	if challenge == nil || challenge.token == "" {
		return nil, fmt.Errorf("%w: no pending challenge", ErrChallengeExpired)
	}
	if !codePattern.MatchString(code) {
		return nil, fmt.Errorf("%w: code must be %d digits", ErrInvalidCode, SecondFactorCodeLength)
	}

	a.mu.Lock()
	superseded := challenge.seq != a.loginSeq
	a.mu.Unlock()
	if superseded {
		return nil, fmt.Errorf("%w: superseded by a newer login", ErrChallengeExpired)
	}

	reply, err := a.api.VerifySecondFactor(ctx, challenge.token, code)
	if err != nil {
		return nil, mapVerifyError(err)
	}
	return a.completeChallengeLogin(reply, challenge.seq)
}

func (a *Authenticator) completeLogin(reply *api.LoginReply) (*LoginResult, error) {
	return a.persistLogin(reply, nil)
}

// completeChallengeLogin persists the session only if the challenge has not
// been superseded while the verification call was in flight.
func (a *Authenticator) completeChallengeLogin(reply *api.LoginReply, seq uint64) (*LoginResult, error) {
	return a.persistLogin(reply, &seq)
}

func (a *Authenticator) persistLogin(reply *api.LoginReply, seq *uint64) (*LoginResult, error) {
	if reply.AccessToken == "" || reply.Principal == nil {
		return nil, fmt.Errorf("login reply missing session token or principal")
	}

	a.mu.Lock()
	if seq != nil && *seq != a.loginSeq {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: superseded by a newer login", ErrChallengeExpired)
	}
	a.storeGen++
	err := a.store.Save(reply.AccessToken)
	a.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("persist session token: %w", err)
	}

	a.setState(StateAuthenticated, reply.Principal)
	return &LoginResult{Principal: reply.Principal}, nil
}

// Register creates an account. Format rules are enforced locally before any
// network call; the service re-checks them authoritatively.
func (a *Authenticator) Register(ctx context.Context, username, email, password, confirm string) (*api.Principal, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if len(username) < minUsernameLength {
		return nil, fmt.Errorf("%w: username must be at least %d characters", ErrValidation, minUsernameLength)
	}
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: email address is malformed", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if password != confirm {
		return nil, fmt.Errorf("%w: password confirmation does not match", ErrValidation)
	}

	principal, err := a.api.Register(ctx, username, email, password)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Status {
			case 409:
				return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, apiErr.Message)
			case 400:
				return nil, fmt.Errorf("%w: %s", ErrValidation, apiErr.Message)
			}
		}
		return nil, err
	}
	return principal, nil
}

// Logout clears the session unconditionally and settles the state at
// Unauthenticated. The server call is best effort; local clearing never
// depends on it.
func (a *Authenticator) Logout(ctx context.Context) {
	a.mu.Lock()
	a.storeGen++
	token, _ := a.store.Load()
	_ = a.store.Clear()
	a.mu.Unlock()

	if token != "" {
		_ = a.api.Logout(ctx, token)
	}
	a.setState(StateUnauthenticated, nil)
}

// EnableSecondFactor binds destination and turns enforcement on, then
// refreshes the cached principal so enrollment state stays consistent.
func (a *Authenticator) EnableSecondFactor(ctx context.Context, destination string) error {
	if strings.TrimSpace(destination) == "" {
		return fmt.Errorf("%w: delivery destination is required", ErrValidation)
	}
	return a.authenticatedCall(ctx, func(token string) error {
		return a.api.EnableTwoFactor(ctx, token, destination)
	})
}

// DisableSecondFactor turns enforcement off and refreshes the principal.
func (a *Authenticator) DisableSecondFactor(ctx context.Context) error {
	return a.authenticatedCall(ctx, func(token string) error {
		return a.api.DisableTwoFactor(ctx, token)
	})
}

// SendTestCode delivers a throwaway code to the enrolled destination.
func (a *Authenticator) SendTestCode(ctx context.Context) error {
	return a.authenticatedCall(ctx, func(token string) error {
		return a.api.SendTestCode(ctx, token)
	})
}

// ChangePassword rotates the secret after re-verifying the current one.
func (a *Authenticator) ChangePassword(ctx context.Context, current, updated string) error {
	if len(updated) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return a.authenticatedCall(ctx, func(token string) error {
		return a.api.ChangePassword(ctx, token, current, updated)
	})
}

// Token returns the stored session token for callers that talk to the API
// directly, such as role-gated admin commands.
func (a *Authenticator) Token() (string, error) {
	token, err := a.store.Load()
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// authenticatedCall runs fn with the stored token and re-resolves the
// session afterwards so the cached principal reflects the mutation.
func (a *Authenticator) authenticatedCall(ctx context.Context, fn func(token string) error) error {
	token, err := a.Token()
	if err != nil {
		return err
	}
	if err := fn(token); err != nil {
		return mapAccountError(err)
	}
	return a.ResolveSession(ctx)
}

func mapLoginError(err error) error {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Status {
	case 401:
		return ErrInvalidCredentials
	case 403:
		return ErrAccountInactive
	default:
		return err
	}
}

func mapVerifyError(err error) error {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Status {
	case 401:
		return ErrInvalidCode
	case 410:
		return ErrChallengeExpired
	case 429:
		return ErrTooManyAttempts
	case 403:
		return ErrAccountInactive
	default:
		return err
	}
}

func mapAccountError(err error) error {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Status {
	case 400:
		return fmt.Errorf("%w: %s", ErrValidation, apiErr.Message)
	case 401:
		return ErrInvalidCredentials
	case 403:
		return ErrAccountInactive
	case 409:
		return ErrNotEnabled
	default:
		return err
	}
}
