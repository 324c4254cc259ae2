package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultAuthBase      = "https://authentication.cryptosrvc.com/api/user_authentication"
	defaultDataBase      = "https://exchange-data-service.cryptosrvc.com/v1"
	defaultTradeBase     = "https://trade-service-sls.cryptosrvc.com"
	defaultMinBalance    = "10"
	defaultOrderQuantity = "0.0001"
	defaultMarkup        = "1.2"
)

type Config struct {
	Addr     string // API bind address, e.g., "127.0.0.1:8080" (Windows) or ":8080" (Docker)
	LogDir   string
	LogLevel string

	DatabaseURL string // empty means use in-memory stores
	SeedFile    string // optional JSON seed (tenants + endpoints)

	CheckInterval time.Duration // cycle timer
	TokenTTL      time.Duration // cached bearer token lifetime
	ProbeTimeout  time.Duration // per-request HTTP client timeout

	AuthTokenURL     string
	MfaSettingsURL   string
	TradeAccountsURL string
	QuotesURL        string
	TradeOrderURL    string

	SettlementCurrency string
	TradeMinBalance    decimal.Decimal
	TradeInstrument    string
	TradeQuantity      decimal.Decimal
	TradeMarkup        decimal.Decimal

	AlertMinStatus int
	SlackWebhook   string

	PublicAPIKeys []string
	AdminAPIKeys  []string
}

func FromEnv() Config {
	return Config{
		Addr:     envStr("ADDR", "127.0.0.1:8080"),
		LogDir:   envStr("LOG_DIR", "logs"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		SeedFile:    os.Getenv("SEED_FILE"),

		CheckInterval: envDur("CHECK_INTERVAL_SEC", 15*time.Second, time.Second),
		TokenTTL:      envDur("TOKEN_TTL_MIN", 15*time.Minute, time.Minute),
		ProbeTimeout:  envDur("PROBE_TIMEOUT_SEC", 10*time.Second, time.Second),

		AuthTokenURL:     envStr("AUTH_TOKEN_URL", defaultAuthBase+"/exchangeToken"),
		MfaSettingsURL:   envStr("MFA_SETTINGS_URL", defaultAuthBase+"/getUserMfaSettings"),
		TradeAccountsURL: envStr("TRADE_ACCOUNTS_URL", defaultTradeBase+"/v1/trade/accounts"),
		QuotesURL:        envStr("QUOTES_URL", defaultDataBase+"/quotes"),
		TradeOrderURL:    envStr("TRADE_ORDER_URL", defaultTradeBase+"/v1/trade/order"),

		SettlementCurrency: envStr("SETTLEMENT_CURRENCY", "USDT"),
		TradeMinBalance:    envDec("TRADE_MIN_BALANCE", defaultMinBalance),
		TradeInstrument:    envStr("TRADE_INSTRUMENT", "BTCUSDT"),
		TradeQuantity:      envDec("TRADE_QUANTITY", defaultOrderQuantity),
		TradeMarkup:        envDec("TRADE_MARKUP", defaultMarkup),

		AlertMinStatus: envInt("ALERT_MIN_STATUS", 400),
		SlackWebhook:   os.Getenv("SLACK_WEBHOOK"),

		PublicAPIKeys: envList("PUBLIC_API_KEYS"),
		AdminAPIKeys:  envList("ADMIN_API_KEYS"),
	}
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDur(key string, def, unit time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * unit
		}
	}
	return def
}

func envDec(key, def string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(def)
	return d
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
