package repo

import (
	"context"

	"github.com/hamed0406/exchangewatch/internal/domain"
)

// Ports (interfaces) — swap in any DB adapter later.

// CredentialStore exposes tenant credentials, maintained out of band.
type CredentialStore interface {
	ListCredentials(ctx context.Context) ([]domain.TenantCredentials, error)
	// GetCredentials returns nil, nil when the tenant is unknown.
	GetCredentials(ctx context.Context, id domain.TenantID) (*domain.TenantCredentials, error)
}

// EndpointCatalog lists the monitored endpoint definitions and holds
// stored payloads for write-method checks.
type EndpointCatalog interface {
	ListEndpoints(ctx context.Context) ([]domain.EndpointDefinition, error)
	AddEndpoint(ctx context.Context, ep domain.EndpointDefinition) error
	// Payload returns nil, nil when no payload is stored for the pair.
	Payload(ctx context.Context, id domain.TenantID, url string) (any, error)
	PutPayload(ctx context.Context, id domain.TenantID, url string, payload any) error
}

// HealthRecordStore keeps the latest probe result per (tenant, endpoint).
type HealthRecordStore interface {
	// Put replaces the record for the pair; latest write wins.
	Put(ctx context.Context, r *domain.ProbeResult) error
	// Get returns nil, nil when the pair has never been recorded.
	Get(ctx context.Context, id domain.TenantID, endpoint string) (*domain.ProbeResult, error)
	ListByTenant(ctx context.Context, id domain.TenantID) ([]domain.ProbeResult, error)
}
