package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kseleznov/toolshed/internal/client/api"
)

type memoryStore struct {
	mu    sync.Mutex
	token string
}

func (s *memoryStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *memoryStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *memoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// fakeService is an in-memory stand-in for the toolshed API with two fixed
// accounts: alice (no second factor) and bob (enrolled, code 123456).
type fakeService struct {
	mu           sync.Mutex
	hits         map[string]int
	bobEnrolled  bool
	aliceTwoFA   bool
	takenUsers   map[string]bool
	activeTokens map[string]string
}

const (
	aliceSession = "session-alice"
	bobSession   = "session-bob"
	bobChallenge = "challenge-bob"
	bobCode      = "123456"
)

func newFakeService() *fakeService {
	return &fakeService{
		hits:        make(map[string]int),
		bobEnrolled: true,
		takenUsers:  map[string]bool{"alice": true, "bob": true},
		activeTokens: map[string]string{
			aliceSession: "alice",
			bobSession:   "bob",
		},
	}
}

func (f *fakeService) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeService) principal(username string) *api.Principal {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch username {
	case "alice":
		return &api.Principal{ID: "p-alice", Username: "alice", Email: "alice@example.com", Role: "user", TwoFactorEnabled: f.aliceTwoFA}
	case "bob":
		return &api.Principal{ID: "p-bob", Username: "bob", Email: "bob@example.com", Role: "moderator", TwoFactorEnabled: f.bobEnrolled}
	default:
		return nil
	}
}

func (f *fakeService) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		f.mu.Unlock()

		switch r.URL.Path {
		case "/api/v1/auth/login":
			f.handleLogin(w, r)
		case "/api/v1/auth/verify-2fa":
			f.handleVerify(w, r)
		case "/api/v1/auth/me":
			f.handleMe(w, r)
		case "/api/v1/auth/logout":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v1/auth/register":
			f.handleRegister(w, r)
		case "/api/v1/2fa/enable":
			f.mu.Lock()
			if f.bearer(r) == aliceSession {
				f.aliceTwoFA = true
			}
			f.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]string{"message": "enabled"})
		case "/api/v1/2fa/disable":
			f.mu.Lock()
			if f.bearer(r) == aliceSession {
				f.aliceTwoFA = false
			}
			f.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]string{"message": "disabled"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeService) bearer(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) {
		return header[len(prefix):]
	}
	return ""
}

func (f *fakeService) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	json.NewDecoder(r.Body).Decode(&body)

	switch {
	case body["identifier"] == "alice" && body["password"] == "correct":
		json.NewEncoder(w).Encode(api.LoginReply{
			AccessToken: aliceSession,
			TokenType:   "Bearer",
			ExpiresIn:   900,
			Principal:   f.principal("alice"),
		})
	case body["identifier"] == "bob" && body["password"] == "correct":
		json.NewEncoder(w).Encode(api.LoginReply{
			AccessToken: bobChallenge,
			TokenType:   "Bearer",
			ExpiresIn:   300,
			Requires2FA: true,
		})
	default:
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
	}
}

func (f *fakeService) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	json.NewDecoder(r.Body).Decode(&body)

	if f.bearer(r) != bobChallenge {
		w.WriteHeader(http.StatusGone)
		json.NewEncoder(w).Encode(map[string]string{"error": "challenge expired"})
		return
	}
	if body["code"] != bobCode {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid verification code"})
		return
	}
	json.NewEncoder(w).Encode(api.LoginReply{
		AccessToken: bobSession,
		TokenType:   "Bearer",
		ExpiresIn:   900,
		Principal:   f.principal("bob"),
	})
}

func (f *fakeService) handleMe(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	username, ok := f.activeTokens[f.bearer(r)]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid session"})
		return
	}
	json.NewEncoder(w).Encode(f.principal(username))
}

func (f *fakeService) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	taken := f.takenUsers[body["username"]]
	f.mu.Unlock()
	if taken {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "username or email already registered"})
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"principal": api.Principal{ID: "p-new", Username: body["username"], Email: body["email"], Role: "user"},
	})
}

type fixture struct {
	service *fakeService
	store   *memoryStore
	auth    *Authenticator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	service := newFakeService()
	srv := httptest.NewServer(service.handler())
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	require.NoError(t, err)

	store := &memoryStore{}
	authenticator, err := NewAuthenticator(client, store)
	require.NoError(t, err)

	return &fixture{service: service, store: store, auth: authenticator}
}

func TestLoginWithoutSecondFactorCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var notified []Snapshot
	f.auth.Subscribe(func(s Snapshot) { notified = append(notified, s) })

	result, err := f.auth.Login(ctx, "alice", "correct")
	require.NoError(t, err)
	require.False(t, result.RequiresSecondFactor())
	require.NotNil(t, result.Principal)
	assert.Equal(t, "alice", result.Principal.Username)

	snapshot := f.auth.Snapshot()
	assert.Equal(t, StateAuthenticated, snapshot.State)

	token, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, aliceSession, token)

	require.Len(t, notified, 1)
	assert.Equal(t, StateAuthenticated, notified[0].State)
}

func TestLoginWrongCredentials(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	token, loadErr := f.store.Load()
	require.NoError(t, loadErr)
	assert.Empty(t, token)
}

func TestLoginWithSecondFactorStaysUnauthenticated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.auth.Login(ctx, "bob", "correct")
	require.NoError(t, err)
	require.True(t, result.RequiresSecondFactor())
	assert.Nil(t, result.Principal)

	// The challenge step grants nothing: no session is stored and the
	// state has not moved.
	token, err := f.store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.NotEqual(t, StateAuthenticated, f.auth.Snapshot().State)
}

func TestVerifySecondFactorRetryThenSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.auth.Login(ctx, "bob", "correct")
	require.NoError(t, err)
	handle := result.Challenge

	_, err = f.auth.VerifySecondFactor(ctx, "000000", handle)
	require.ErrorIs(t, err, ErrInvalidCode)

	// Same handle stays usable after a wrong code.
	completed, err := f.auth.VerifySecondFactor(ctx, bobCode, handle)
	require.NoError(t, err)
	require.NotNil(t, completed.Principal)
	assert.Equal(t, "bob", completed.Principal.Username)
	assert.Equal(t, StateAuthenticated, f.auth.Snapshot().State)

	token, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, bobSession, token)
}

func TestMalformedCodeRejectedWithoutNetworkCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.auth.Login(ctx, "bob", "correct")
	require.NoError(t, err)

	for _, code := range []string{"", "12345", "1234567", "abcdef", "12 456"} {
		_, err := f.auth.VerifySecondFactor(ctx, code, result.Challenge)
		require.ErrorIs(t, err, ErrInvalidCode, "code %q", code)
	}
	assert.Zero(t, f.service.count("/api/v1/auth/verify-2fa"))
}

func TestNewLoginSupersedesChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.auth.Login(ctx, "bob", "correct")
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, "bob", "correct")
	require.NoError(t, err)

	_, err = f.auth.VerifySecondFactor(ctx, bobCode, first.Challenge)
	require.ErrorIs(t, err, ErrChallengeExpired)
	assert.Zero(t, f.service.count("/api/v1/auth/verify-2fa"))
}

func TestLogoutClearsSessionUnconditionally(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Login(ctx, "alice", "correct")
	require.NoError(t, err)

	f.auth.Logout(ctx)

	token, err := f.store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Equal(t, StateUnauthenticated, f.auth.Snapshot().State)

	// Logging out while already logged out is a no-op, never a failure.
	f.auth.Logout(ctx)
	assert.Equal(t, StateUnauthenticated, f.auth.Snapshot().State)
}

func TestResolveSessionWithValidToken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(aliceSession))

	require.NoError(t, f.auth.ResolveSession(context.Background()))

	snapshot := f.auth.Snapshot()
	require.Equal(t, StateAuthenticated, snapshot.State)
	assert.Equal(t, "alice", snapshot.Principal.Username)
}

func TestResolveSessionWithoutToken(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.auth.ResolveSession(context.Background()))
	assert.Equal(t, StateUnauthenticated, f.auth.Snapshot().State)
	assert.Zero(t, f.service.count("/api/v1/auth/me"))
}

func TestResolveSessionClearsRejectedToken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save("revoked-token"))

	for i := 0; i < 2; i++ {
		require.NoError(t, f.auth.ResolveSession(context.Background()))
		assert.Equal(t, StateUnauthenticated, f.auth.Snapshot().State)

		token, err := f.store.Load()
		require.NoError(t, err)
		assert.Empty(t, token)
	}
}

func TestResolveSessionKeepsTokenOnTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := api.New(srv.URL)
	require.NoError(t, err)

	store := &memoryStore{token: aliceSession}
	authenticator, err := NewAuthenticator(client, store)
	require.NoError(t, err)

	err = authenticator.ResolveSession(context.Background())
	require.ErrorIs(t, err, api.ErrUnavailable)

	// An unreachable backend says nothing about the token. Keep it and
	// stay undecided.
	token, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, aliceSession, token)
	assert.Equal(t, StateUnresolved, authenticator.Snapshot().State)
}

func TestRegisterValidatesBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		email    string
		password string
		confirm  string
	}{
		{"short username", "ca", "carol@x.com", "sturdy-passphrase", "sturdy-passphrase"},
		{"malformed email", "carol", "carol-at-x", "sturdy-passphrase", "sturdy-passphrase"},
		{"short password", "carol", "carol@x.com", "short", "short"},
		{"confirmation mismatch", "carol", "carol@x.com", "sturdy-passphrase", "different"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.auth.Register(ctx, tc.username, tc.email, tc.password, tc.confirm)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Zero(t, f.service.count("/api/v1/auth/register"))
}

func TestRegisterDuplicateIdentifier(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Register(context.Background(), "alice", "other@example.com", "sturdy-passphrase", "sturdy-passphrase")
	require.ErrorIs(t, err, ErrDuplicateIdentifier)
}

func TestRegisterSuccess(t *testing.T) {
	f := newFixture(t)

	principal, err := f.auth.Register(context.Background(), "carol", "Carol@X.com", "sturdy-passphrase", "sturdy-passphrase")
	require.NoError(t, err)
	assert.Equal(t, "carol", principal.Username)
	// Registration does not log in.
	assert.NotEqual(t, StateAuthenticated, f.auth.Snapshot().State)
}

func TestEnableSecondFactorRefreshesPrincipal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Login(ctx, "alice", "correct")
	require.NoError(t, err)
	require.False(t, f.auth.Snapshot().Principal.TwoFactorEnabled)

	require.NoError(t, f.auth.EnableSecondFactor(ctx, "482913557"))
	assert.True(t, f.auth.Snapshot().Principal.TwoFactorEnabled)

	require.NoError(t, f.auth.DisableSecondFactor(ctx))
	assert.False(t, f.auth.Snapshot().Principal.TwoFactorEnabled)
}

func TestEnableSecondFactorRequiresDestination(t *testing.T) {
	f := newFixture(t)

	err := f.auth.EnableSecondFactor(context.Background(), "   ")
	require.ErrorIs(t, err, ErrValidation)
}
