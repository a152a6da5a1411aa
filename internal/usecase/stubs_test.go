package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kseleznov/toolshed/internal/core/domain"
	"github.com/kseleznov/toolshed/internal/repository"
)

type stubPrincipalRepo struct {
	mu         sync.Mutex
	principals map[string]domain.Principal
	createErr  error
}

func newStubPrincipalRepo(principals ...domain.Principal) *stubPrincipalRepo {
	repo := &stubPrincipalRepo{principals: make(map[string]domain.Principal)}
	for _, p := range principals {
		repo.principals[p.ID] = p
	}
	return repo
}

func (r *stubPrincipalRepo) Create(_ context.Context, principal domain.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.principals {
		if existing.Username == principal.Username || existing.Email == principal.Email {
			return repository.ErrDuplicate
		}
	}
	r.principals[principal.ID] = principal
	return nil
}

func (r *stubPrincipalRepo) GetByID(_ context.Context, id string) (*domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if principal, ok := r.principals[id]; ok {
		copied := principal
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubPrincipalRepo) GetByIdentifier(_ context.Context, identifier string) (*domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, principal := range r.principals {
		if principal.Username == identifier || principal.Email == identifier {
			copied := principal
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubPrincipalRepo) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	principal, ok := r.principals[id]
	if !ok {
		return repository.ErrNotFound
	}
	principal.PasswordHash = passwordHash
	principal.UpdatedAt = changedAt
	r.principals[id] = principal
	return nil
}

func (r *stubPrincipalRepo) UpdateTwoFactor(_ context.Context, id string, enabled bool, deliveryID *string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	principal, ok := r.principals[id]
	if !ok {
		return repository.ErrNotFound
	}
	principal.TwoFactorEnabled = enabled
	principal.DeliveryID = deliveryID
	principal.UpdatedAt = changedAt
	r.principals[id] = principal
	return nil
}

func (r *stubPrincipalRepo) UpdateRole(_ context.Context, id string, role domain.Role, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	principal, ok := r.principals[id]
	if !ok {
		return repository.ErrNotFound
	}
	principal.Role = role
	principal.UpdatedAt = changedAt
	r.principals[id] = principal
	return nil
}

type stubChallengeRepo struct {
	mu         sync.Mutex
	challenges map[string]domain.Challenge
}

func newStubChallengeRepo() *stubChallengeRepo {
	return &stubChallengeRepo{challenges: make(map[string]domain.Challenge)}
}

func (r *stubChallengeRepo) Store(_ context.Context, challenge domain.Challenge, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.challenges[challenge.ID] = challenge
	return nil
}

func (r *stubChallengeRepo) Fetch(_ context.Context, id string) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if challenge, ok := r.challenges[id]; ok {
		copied := challenge
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubChallengeRepo) IncrementAttempts(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge, ok := r.challenges[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	challenge.Attempts++
	r.challenges[id] = challenge
	return challenge.Attempts, nil
}

func (r *stubChallengeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.challenges[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.challenges, id)
	return nil
}

func (r *stubChallengeRepo) single() domain.Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, challenge := range r.challenges {
		return challenge
	}
	return domain.Challenge{}
}

type stubAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (r *stubAuditRepo) Record(_ context.Context, entry domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	return nil
}

func (r *stubAuditRepo) ListRecent(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit > len(r.entries) {
		limit = len(r.entries)
	}
	out := make([]domain.AuditEntry, limit)
	for i := 0; i < limit; i++ {
		out[i] = r.entries[len(r.entries)-1-i]
	}
	return out, nil
}

func (r *stubAuditRepo) actions() []domain.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.AuditAction, len(r.entries))
	for i, entry := range r.entries {
		out[i] = entry.Action
	}
	return out
}

type stubCodeSender struct {
	mu           sync.Mutex
	destinations []string
	codes        []string
	err          error
}

func (s *stubCodeSender) SendCode(_ context.Context, deliveryID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.destinations = append(s.destinations, deliveryID)
	s.codes = append(s.codes, code)
	return nil
}

func (s *stubCodeSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.codes) == 0 {
		return ""
	}
	return s.codes[len(s.codes)-1]
}

type stubEventPublisher struct {
	mu     sync.Mutex
	events []domain.SecurityEvent
}

func (p *stubEventPublisher) PublishSecurityEvent(_ context.Context, event domain.SecurityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
	return nil
}
