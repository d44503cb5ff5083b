package registry

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemStore implementa Store en memoria. Para tests y modo dev sin Postgres.
type MemStore struct {
	mu     sync.RWMutex
	byCode map[string]*Trust
}

func NewMem() *MemStore {
	return &MemStore{byCode: make(map[string]*Trust)}
}

func (m *MemStore) CreateTrust(_ context.Context, t *Trust) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.byCode {
		if e.Code == t.Code || e.Subdomain == t.Subdomain ||
			strings.EqualFold(e.ContactEmail, t.ContactEmail) {
			return ErrConflict
		}
	}
	cp := *t
	cp.CreatedAt = time.Now().UTC()
	m.byCode[t.Code] = &cp
	t.CreatedAt = cp.CreatedAt
	return nil
}

func (m *MemStore) GetTrustByCode(_ context.Context, code string) (*Trust, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.byCode[NormalizeCode(code)]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemStore) GetTrustBySubdomain(_ context.Context, subdomain string) (*Trust, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub := strings.ToLower(strings.TrimSpace(subdomain))
	for _, t := range m.byCode {
		if t.Subdomain == sub {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) ListTrusts(context.Context) ([]Trust, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Trust, 0, len(m.byCode))
	for _, t := range m.byCode {
		out = append(out, *t)
	}
	return out, nil
}

func (m *MemStore) UpdateTrustStatus(_ context.Context, code string, status Status, setupDone bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byCode[NormalizeCode(code)]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	if setupDone {
		now := time.Now().UTC()
		t.SetupCompletedAt = &now
	}
	return nil
}

func (m *MemStore) DeleteTrust(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := NormalizeCode(code)
	t, ok := m.byCode[c]
	if !ok || t.Status != StatusPending {
		return ErrNotFound
	}
	delete(m.byCode, c)
	return nil
}
