package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/exchangewatch/internal/domain"
	"github.com/hamed0406/exchangewatch/internal/repo"
)

type payloadKey struct {
	tenant domain.TenantID
	url    string
}

type recordKey struct {
	tenant   domain.TenantID
	endpoint string
}

// Store is a mutex-guarded in-memory implementation of all three ports.
// Used when no DATABASE_URL is configured.
type Store struct {
	mu        sync.RWMutex
	creds     map[domain.TenantID]domain.TenantCredentials
	endpoints []domain.EndpointDefinition
	payloads  map[payloadKey]any
	records   map[recordKey]*domain.ProbeResult
}

func New() *Store {
	return &Store{
		creds:    make(map[domain.TenantID]domain.TenantCredentials),
		payloads: make(map[payloadKey]any),
		records:  make(map[recordKey]*domain.ProbeResult),
	}
}

// AddCredentials seeds a tenant. Not part of the CredentialStore port;
// credentials are normally maintained out of band.
func (m *Store) AddCredentials(ctx context.Context, c domain.TenantCredentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[c.TenantID] = c
	return nil
}

func (m *Store) ListCredentials(ctx context.Context) ([]domain.TenantCredentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.TenantCredentials, 0, len(m.creds))
	for _, c := range m.creds {
		out = append(out, c)
	}
	return out, nil
}

func (m *Store) GetCredentials(ctx context.Context, id domain.TenantID) (*domain.TenantCredentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[id]
	if !ok {
		return nil, nil
	}
	cc := c
	return &cc, nil
}

func (m *Store) ListEndpoints(ctx context.Context) ([]domain.EndpointDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.EndpointDefinition, len(m.endpoints))
	copy(out, m.endpoints)
	return out, nil
}

func (m *Store) AddEndpoint(ctx context.Context, ep domain.EndpointDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.endpoints {
		if cur.URL == ep.URL && cur.Method == ep.Method {
			m.endpoints[i] = ep
			return nil
		}
	}
	m.endpoints = append(m.endpoints, ep)
	return nil
}

func (m *Store) Payload(ctx context.Context, id domain.TenantID, url string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payloads[payloadKey{id, url}]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (m *Store) PutPayload(ctx context.Context, id domain.TenantID, url string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[payloadKey{id, url}] = payload
	return nil
}

func (m *Store) Put(ctx context.Context, r *domain.ProbeResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records[recordKey{r.TenantID, r.Endpoint}] = &cp
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.TenantID, endpoint string) (*domain.ProbeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[recordKey{id, endpoint}]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *Store) ListByTenant(ctx context.Context, id domain.TenantID) ([]domain.ProbeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ProbeResult
	for k, r := range m.records {
		if k.tenant == id {
			out = append(out, *r)
		}
	}
	return out, nil
}

var _ repo.CredentialStore = (*Store)(nil)
var _ repo.EndpointCatalog = (*Store)(nil)
var _ repo.HealthRecordStore = (*Store)(nil)
