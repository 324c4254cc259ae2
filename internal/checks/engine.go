// Package checks orchestrates the periodic health-check cycles: fan out
// all (tenant, endpoint) probes, persist their outcomes and raise
// deduplicated alerts.
package checks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/exchangewatch/internal/domain"
	"github.com/hamed0406/exchangewatch/internal/probe"
	"github.com/hamed0406/exchangewatch/internal/repo"
	"github.com/hamed0406/exchangewatch/internal/tokencache"
)

// TokenSource exchanges credentials for a bearer token.
type TokenSource interface {
	Token(ctx context.Context, creds domain.TenantCredentials) (string, error)
}

// RequestProber runs a single-request probe for a (tenant, endpoint) pair.
type RequestProber interface {
	Run(ctx context.Context, tenantID domain.TenantID, ep domain.EndpointDefinition, authHeader string) (*domain.ProbeResult, error)
}

// TradeProber runs the compound order round trip.
type TradeProber interface {
	Run(ctx context.Context, tenantID domain.TenantID, authHeader string) (*domain.ProbeResult, error)
}

type Engine struct {
	Logger   *zap.Logger
	Creds    repo.CredentialStore
	Catalog  repo.EndpointCatalog
	Records  repo.HealthRecordStore
	Alerter  *Alerter
	Executor RequestProber
	Trade    TradeProber
	Auth     TokenSource
	Tokens   *tokencache.Cache
	Interval time.Duration
	TokenTTL time.Duration
}

func NewEngine(
	logger *zap.Logger,
	creds repo.CredentialStore,
	catalog repo.EndpointCatalog,
	records repo.HealthRecordStore,
	alerter *Alerter,
	executor RequestProber,
	trade TradeProber,
	auth TokenSource,
	interval time.Duration,
	tokenTTL time.Duration,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if tokenTTL <= 0 {
		tokenTTL = 15 * time.Minute
	}
	return &Engine{
		Logger:   logger,
		Creds:    creds,
		Catalog:  catalog,
		Records:  records,
		Alerter:  alerter,
		Executor: executor,
		Trade:    trade,
		Auth:     auth,
		Tokens:   tokencache.New(),
		Interval: interval,
		TokenTTL: tokenTTL,
	}
}

// Run starts the cycle loop: an immediate pass, then one per tick.
// Cycles are launched on the tick regardless of whether the previous one
// finished; overlap is tolerated since every record write is an
// idempotent replacement keyed by (tenant, endpoint). Stops when ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) {
	t := time.NewTicker(e.Interval)
	defer t.Stop()

	go e.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			e.Logger.Info("checks_engine_stopped")
			return
		case <-t.C:
			go e.RunCycle(ctx)
		}
	}
}

// RunCycle performs one full pass over all tenant×endpoint pairs.
func (e *Engine) RunCycle(ctx context.Context) {
	tenants, err := e.Creds.ListCredentials(ctx)
	if err != nil {
		e.Logger.Warn("cycle_credentials_error", zap.Error(err))
		return
	}
	endpoints, err := e.Catalog.ListEndpoints(ctx)
	if err != nil {
		e.Logger.Warn("cycle_catalog_error", zap.Error(err))
		return
	}
	if len(tenants) == 0 || len(endpoints) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, tenant := range tenants {
		tenant := tenant
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.checkTenant(ctx, tenant, endpoints); err != nil {
				e.Logger.Error("tenant_cycle_failed",
					zap.String("tenant", string(tenant.TenantID)),
					zap.Error(err),
				)
			}
		}()
	}
	wg.Wait()

	e.Logger.Debug("cycle_complete",
		zap.Int("tenants", len(tenants)),
		zap.Int("endpoints", len(endpoints)),
	)
}

func (e *Engine) checkTenant(ctx context.Context, creds domain.TenantCredentials, endpoints []domain.EndpointDefinition) error {
	authHeader := ""
	if anyTokenRequired(endpoints) {
		h, err := e.authHeader(ctx, creds)
		if err != nil {
			// credentials may be mid-rotation: token-required pairs are
			// skipped this cycle, public ones still run
			e.Logger.Warn("auth_header_unavailable",
				zap.String("tenant", string(creds.TenantID)),
				zap.Error(err),
			)
		} else {
			authHeader = h
		}
	}

	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	for _, ep := range endpoints {
		ep := ep
		if ep.TokenRequired && authHeader == "" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.checkPair(ctx, creds.TenantID, ep, authHeader); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}

// checkPair runs one probe, persists its result and conditionally alerts.
func (e *Engine) checkPair(ctx context.Context, tenantID domain.TenantID, ep domain.EndpointDefinition, authHeader string) error {
	var (
		res *domain.ProbeResult
		err error
	)
	if ep.Probe == domain.ProbeTradeRoundTrip {
		res, err = e.Trade.Run(ctx, tenantID, authHeader)
	} else {
		res, err = e.Executor.Run(ctx, tenantID, ep, authHeader)
	}
	switch {
	case err == nil:
	case probe.IsTransient(err):
		e.Logger.Warn("probe_skipped",
			zap.String("tenant", string(tenantID)),
			zap.String("endpoint", ep.URL),
			zap.Error(err),
		)
		return nil
	default:
		// ErrInvalidExchange and anything unclassified surface to the
		// tenant cycle error
		return err
	}

	prev, err := e.Records.Get(ctx, tenantID, res.Endpoint)
	if err != nil {
		e.Logger.Warn("record_read_failed",
			zap.String("tenant", string(tenantID)),
			zap.String("endpoint", res.Endpoint),
			zap.Error(err),
		)
	}
	if err := e.Records.Put(ctx, res); err != nil {
		// the result is lost for this cycle; never fatal
		e.Logger.Warn("record_write_failed",
			zap.String("tenant", string(tenantID)),
			zap.String("endpoint", res.Endpoint),
			zap.Error(err),
		)
	}
	e.Alerter.Maybe(ctx, prev, res)
	return nil
}

// authHeader builds the bearer header through the token cache, so a
// tenant's token is fetched at most once per TTL window no matter how
// many endpoints or overlapping cycles need it.
func (e *Engine) authHeader(ctx context.Context, creds domain.TenantCredentials) (string, error) {
	fingerprint := tokencache.Fingerprint(creds)
	token, err := e.Tokens.Get(ctx, fingerprint, e.TokenTTL, func(ctx context.Context) (string, error) {
		return e.Auth.Token(ctx, creds)
	})
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

func anyTokenRequired(endpoints []domain.EndpointDefinition) bool {
	for _, ep := range endpoints {
		if ep.TokenRequired {
			return true
		}
	}
	return false
}
