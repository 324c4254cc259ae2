package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hamed0406/exchangewatch/internal/domain"
	"github.com/hamed0406/exchangewatch/internal/repo"
)

var _ repo.CredentialStore = (*Store)(nil)
var _ repo.EndpointCatalog = (*Store)(nil)
var _ repo.HealthRecordStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- CredentialStore ----

func (s *Store) ListCredentials(ctx context.Context) ([]domain.TenantCredentials, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tenant_id, username, password FROM tenant_credentials ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.TenantCredentials
	for rows.Next() {
		var c domain.TenantCredentials
		if err := rows.Scan(&c.TenantID, &c.Username, &c.Password); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCredentials(ctx context.Context, id domain.TenantID) (*domain.TenantCredentials, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT tenant_id, username, password FROM tenant_credentials WHERE tenant_id = $1`, id)
	var c domain.TenantCredentials
	if err := row.Scan(&c.TenantID, &c.Username, &c.Password); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// AddCredentials seeds a tenant; normal operation maintains this table
// out of band.
func (s *Store) AddCredentials(ctx context.Context, c domain.TenantCredentials) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenant_credentials (tenant_id, username, password)
		 VALUES ($1,$2,$3)
		 ON CONFLICT (tenant_id) DO UPDATE SET username = $2, password = $3`,
		c.TenantID, c.Username, c.Password)
	return err
}

// ---- EndpointCatalog ----

func (s *Store) ListEndpoints(ctx context.Context) ([]domain.EndpointDefinition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url, method, tenant_scoped, token_required, probe FROM endpoints ORDER BY url`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.EndpointDefinition
	for rows.Next() {
		var ep domain.EndpointDefinition
		if err := rows.Scan(&ep.URL, &ep.Method, &ep.TenantScoped, &ep.TokenRequired, &ep.Probe); err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

func (s *Store) AddEndpoint(ctx context.Context, ep domain.EndpointDefinition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO endpoints (url, method, tenant_scoped, token_required, probe)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (url, method) DO UPDATE
		 SET tenant_scoped = $3, token_required = $4, probe = $5`,
		ep.URL, ep.Method, ep.TenantScoped, ep.TokenRequired, ep.Probe)
	return err
}

func (s *Store) Payload(ctx context.Context, id domain.TenantID, url string) (any, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT payload FROM endpoint_payloads WHERE tenant_id = $1 AND url = $2`, id, url)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) PutPayload(ctx context.Context, id domain.TenantID, url string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO endpoint_payloads (tenant_id, url, payload)
		 VALUES ($1,$2,$3)
		 ON CONFLICT (tenant_id, url) DO UPDATE SET payload = $3`,
		id, url, raw)
	return err
}

// ---- HealthRecordStore ----

func (s *Store) Put(ctx context.Context, r *domain.ProbeResult) error {
	record, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO endpoint_healthchecks (tenant_id, endpoint, status, record, checked_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (tenant_id, endpoint) DO UPDATE
		 SET status = $3, record = $4, checked_at = $5`,
		r.TenantID, r.Endpoint, r.Status, record, r.Timestamp)
	return err
}

func (s *Store) Get(ctx context.Context, id domain.TenantID, endpoint string) (*domain.ProbeResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT record FROM endpoint_healthchecks WHERE tenant_id = $1 AND endpoint = $2`,
		id, endpoint)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var r domain.ProbeResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListByTenant(ctx context.Context, id domain.TenantID) ([]domain.ProbeResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM endpoint_healthchecks WHERE tenant_id = $1 ORDER BY endpoint`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ProbeResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r domain.ProbeResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
