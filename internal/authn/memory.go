package authn

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/schoolcore/internal/authz"
)

// MemStore es un CredentialStore en memoria para tests y desarrollo.
// Replica la semántica del adapter pg: scoping por trust, incrementos
// atómicos (acá por mutex) y shape de errores.
type MemStore struct {
	mu      sync.Mutex
	system  map[string]*Principal            // identifier → principal
	tenants map[string]map[string]*Principal // trustCode → identifier → principal
	now     func() time.Time
}

func NewMem() *MemStore {
	return &MemStore{
		system:  make(map[string]*Principal),
		tenants: make(map[string]map[string]*Principal),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemStore) GetSystemPrincipal(_ context.Context, identifier string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.system[identifier]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) GetTenantPrincipal(_ context.Context, trustCode, identifier string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.tenants[trustCode][identifier]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) CreateSystemPrincipal(_ context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.system[p.Identifier]; ok {
		return ErrPrincipalExists
	}
	cp := *p
	s.system[p.Identifier] = &cp
	return nil
}

func (s *MemStore) CreateTenantPrincipal(_ context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.tenants[p.TrustCode]
	if !ok {
		byID = make(map[string]*Principal)
		s.tenants[p.TrustCode] = byID
	}
	if _, ok := byID[p.Identifier]; ok {
		return ErrPrincipalExists
	}
	cp := *p
	byID[p.Identifier] = &cp
	return nil
}

func (s *MemStore) RecordFailure(_ context.Context, p *Principal, threshold int, window time.Duration) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.locate(p)
	if err != nil {
		return 0, nil, err
	}
	stored.FailedAttempts++
	if stored.FailedAttempts >= threshold {
		until := s.now().Add(window)
		stored.LockedUntil = &until
	}
	return stored.FailedAttempts, stored.LockedUntil, nil
}

func (s *MemStore) RecordSuccess(_ context.Context, p *Principal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.locate(p)
	if err != nil {
		return err
	}
	stored.FailedAttempts = 0
	stored.LockedUntil = nil
	stored.LastLogin = &at
	return nil
}

func (s *MemStore) ListTenantPrincipals(_ context.Context, trustCode string) ([]Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Principal, 0, len(s.tenants[trustCode]))
	for _, p := range s.tenants[trustCode] {
		out = append(out, *p)
	}
	sortPrincipals(out)
	return out, nil
}

func (s *MemStore) ListSystemPrincipals(_ context.Context) ([]Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Principal, 0, len(s.system))
	for _, p := range s.system {
		out = append(out, *p)
	}
	sortPrincipals(out)
	return out, nil
}

// locate retorna el puntero interno (caller ya tiene el lock).
func (s *MemStore) locate(p *Principal) (*Principal, error) {
	if p.Kind == authz.KindSystem {
		if stored, ok := s.system[p.Identifier]; ok {
			return stored, nil
		}
		return nil, ErrPrincipalNotFound
	}
	if stored, ok := s.tenants[p.TrustCode][p.Identifier]; ok {
		return stored, nil
	}
	return nil, ErrPrincipalNotFound
}

func sortPrincipals(ps []Principal) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].Identifier < ps[j].Identifier
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}
