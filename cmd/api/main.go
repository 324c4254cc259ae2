package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hamed0406/exchangewatch/internal/auth"
	"github.com/hamed0406/exchangewatch/internal/checks"
	"github.com/hamed0406/exchangewatch/internal/config"
	"github.com/hamed0406/exchangewatch/internal/domain"
	"github.com/hamed0406/exchangewatch/internal/httpapi"
	"github.com/hamed0406/exchangewatch/internal/httpapi/middleware"
	"github.com/hamed0406/exchangewatch/internal/logging"
	"github.com/hamed0406/exchangewatch/internal/notify"
	"github.com/hamed0406/exchangewatch/internal/probe"
	"github.com/hamed0406/exchangewatch/internal/repo"
	"github.com/hamed0406/exchangewatch/internal/repo/memory"
	"github.com/hamed0406/exchangewatch/internal/repo/postgres"
)

// store is the full persistence surface the service needs from one
// backend, plus the seeding hook both adapters provide.
type store interface {
	repo.CredentialStore
	repo.EndpointCatalog
	repo.HealthRecordStore
	AddCredentials(ctx context.Context, c domain.TenantCredentials) error
}

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres_connect_failed", zap.Error(err))
		}
		defer pg.Close()
		st = pg
		logger.Info("store_postgres")
	} else {
		st = memory.New()
		logger.Info("store_memory")
	}

	if cfg.SeedFile != "" {
		if err := seed(ctx, st, cfg.SeedFile); err != nil {
			logger.Fatal("seed_failed", zap.String("file", cfg.SeedFile), zap.Error(err))
		}
		logger.Info("seed_loaded", zap.String("file", cfg.SeedFile))
	}

	var notifiers notify.Multi
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		notifiers = append(notifiers, s)
	}

	authClient := auth.NewClient(cfg.AuthTokenURL, cfg.MfaSettingsURL, st, logger)
	executor := probe.NewExecutor(logger, st, cfg.ProbeTimeout)
	trade := probe.NewTradeRoundTrip(logger, probe.TradeConfig{
		AccountsURL:        cfg.TradeAccountsURL,
		QuotesURL:          cfg.QuotesURL,
		OrderURL:           cfg.TradeOrderURL,
		SettlementCurrency: cfg.SettlementCurrency,
		MinBalance:         cfg.TradeMinBalance,
		Instrument:         cfg.TradeInstrument,
		Quantity:           cfg.TradeQuantity,
		Markup:             cfg.TradeMarkup,
	}, cfg.ProbeTimeout)

	alerter := checks.NewAlerter(logger, notifiers, cfg.AlertMinStatus)
	engine := checks.NewEngine(logger, st, st, st, alerter, executor, trade, authClient,
		cfg.CheckInterval, cfg.TokenTTL)
	go engine.Run(ctx)

	api := httpapi.NewServer(logger, st, st)
	api.Keys = middleware.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}

	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router()}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("api_listen", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("api_serve_failed", zap.Error(err))
	}
}

type seedFile struct {
	Tenants   []domain.TenantCredentials  `json:"tenants"`
	Endpoints []domain.EndpointDefinition `json:"endpoints"`
}

func seed(ctx context.Context, st store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f seedFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return err
	}
	for _, c := range f.Tenants {
		if err := st.AddCredentials(ctx, c); err != nil {
			return err
		}
	}
	for _, ep := range f.Endpoints {
		if ep.Method == "" {
			ep.Method = http.MethodGet
		}
		if ep.Probe == "" {
			ep.Probe = domain.ProbeRequest
		}
		if err := st.AddEndpoint(ctx, ep); err != nil {
			return err
		}
	}
	return nil
}
