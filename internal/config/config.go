// Package config defines the top-level configuration for the tenor
// arbitrage engine and provides validation helpers. Values come from a
// TOML file merged over built-in defaults, with TENORARB_* environment
// overrides on top. Secrets (private key, CLOB API credentials, bot
// tokens) are never read from the TOML file; they arrive through the
// environment only. S3 credentials ride the standard AWS_* chain.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TENORARB_* environment
// variables. Secrets is populated from the environment alone.
type Config struct {
	Logging    LoggingConfig    `toml:"logging"`
	Strategy   StrategyConfig   `toml:"strategy"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Keystore   KeystoreConfig   `toml:"keystore"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Telegram   TelegramConfig   `toml:"telegram"`
	Server     ServerConfig     `toml:"server"`

	// Secrets is env-only; the TOML decoder never touches it.
	Secrets Secrets `toml:"-"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// StrategyConfig holds the cross-tenor trading parameters shared by every
// symbol machine.
type StrategyConfig struct {
	Symbols                    []string           `toml:"symbols"`
	SumThreshold               float64            `toml:"sum_threshold"`
	TradeIntervalSecs          int                `toml:"trade_interval_secs"`
	SimulationMode             bool               `toml:"simulation_mode"`
	Shares                     float64            `toml:"shares"`
	ResolutionPollIntervalSecs int                `toml:"resolution_poll_interval_secs"`
	ResolutionMaxWaitSecs      int                `toml:"resolution_max_wait_secs"`
	AutoRedeem                 bool               `toml:"auto_redeem"`
	ToleranceUSD               map[string]float64 `toml:"tolerance_usd"`
}

// TradeInterval returns the cooldown between trades in one overlap window.
func (s StrategyConfig) TradeInterval() time.Duration {
	return time.Duration(s.TradeIntervalSecs) * time.Second
}

// ResolutionPoll returns the pause between resolution checks.
func (s StrategyConfig) ResolutionPoll() time.Duration {
	return time.Duration(s.ResolutionPollIntervalSecs) * time.Second
}

// ResolutionMaxWait returns how long a round waits for both markets to
// resolve before it is abandoned.
func (s StrategyConfig) ResolutionMaxWait() time.Duration {
	return time.Duration(s.ResolutionMaxWaitSecs) * time.Second
}

// Tolerance returns the reference price sanity band for symbol in USD.
// Symbols without a configured band get 0.0, which disables the check.
func (s StrategyConfig) Tolerance(symbol string) float64 {
	return s.ToleranceUSD[strings.ToLower(symbol)]
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	GammaAPIURL        string `toml:"gamma_api_url"`
	ClobAPIURL         string `toml:"clob_api_url"`
	DataAPIURL         string `toml:"data_api_url"`
	WsURL              string `toml:"ws_url"`
	RtdsWsURL          string `toml:"rtds_ws_url"`
	RPCURL             string `toml:"rpc_url"`
	SignatureType      int    `toml:"signature_type"`
	ProxyWalletAddress string `toml:"proxy_wallet_address"`
}

// KeystoreConfig points at an encrypted key file. The decryption password
// comes from TENORARB_KEYFILE_PASSWORD; a raw TENORARB_PRIVATE_KEY takes
// precedence over the file.
type KeystoreConfig struct {
	Path string `toml:"path"`
}

// PostgresConfig enables the trade journal when DSN is set.
type PostgresConfig struct {
	DSN string `toml:"dsn"`
}

// RedisConfig enables the quote mirror and event bus when Addr is set.
type RedisConfig struct {
	Addr string `toml:"addr"`
	DB   int    `toml:"db"`
}

// S3Config enables the round archiver when Bucket is set. Endpoint
// overrides the AWS default for MinIO-style deployments.
type S3Config struct {
	Bucket         string `toml:"bucket"`
	Region         string `toml:"region"`
	Endpoint       string `toml:"endpoint"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// TelegramConfig enables operator alerts when ChatID is set and
// TELEGRAM_BOT_TOKEN is present in the environment.
type TelegramConfig struct {
	ChatID string `toml:"chat_id"`
}

// ServerConfig enables the HTTP status surface when ListenAddr is set.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// Defaults returns the built-in configuration. An empty TOML file on top
// of these runs the engine in live mode against production Polymarket
// endpoints with every side channel disabled.
func Defaults() Config {
	return Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Strategy: StrategyConfig{
			Symbols:                    []string{"btc", "eth", "sol", "xrp"},
			SumThreshold:               0.99,
			TradeIntervalSecs:          60,
			SimulationMode:             false,
			Shares:                     10.0,
			ResolutionPollIntervalSecs: 30,
			ResolutionMaxWaitSecs:      600,
			AutoRedeem:                 true,
			ToleranceUSD: map[string]float64{
				"btc": 10.0,
				"eth": 1.0,
				"sol": 0.05,
				"xrp": 0.0003,
			},
		},
		Polymarket: PolymarketConfig{
			GammaAPIURL:   "https://gamma-api.polymarket.com",
			ClobAPIURL:    "https://clob.polymarket.com",
			DataAPIURL:    "https://data-api.polymarket.com",
			WsURL:         "wss://ws-subscriptions-clob.polymarket.com",
			RtdsWsURL:     "wss://ws-live-data.polymarket.com",
			RPCURL:        "https://polygon-rpc.com",
			SignatureType: 0,
		},
	}
}

// validLogLevels enumerates the accepted values for logging.level.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging: unknown level %q (valid: debug, info, warn, error)", c.Logging.Level))
	}

	if len(c.Strategy.Symbols) == 0 {
		errs = append(errs, "strategy: symbols must not be empty")
	}
	for _, sym := range c.Strategy.Symbols {
		if strings.TrimSpace(sym) == "" {
			errs = append(errs, "strategy: symbols must not contain empty entries")
			break
		}
	}
	if c.Strategy.SumThreshold <= 0 || c.Strategy.SumThreshold >= 2 {
		errs = append(errs, fmt.Sprintf("strategy: sum_threshold must be in (0, 2), got %v", c.Strategy.SumThreshold))
	}
	if c.Strategy.Shares <= 0 {
		errs = append(errs, fmt.Sprintf("strategy: shares must be positive, got %v", c.Strategy.Shares))
	}
	if c.Strategy.TradeIntervalSecs < 0 {
		errs = append(errs, fmt.Sprintf("strategy: trade_interval_secs must not be negative, got %d", c.Strategy.TradeIntervalSecs))
	}
	if c.Strategy.ResolutionPollIntervalSecs <= 0 {
		errs = append(errs, fmt.Sprintf("strategy: resolution_poll_interval_secs must be positive, got %d", c.Strategy.ResolutionPollIntervalSecs))
	}
	if c.Strategy.ResolutionMaxWaitSecs <= 0 {
		errs = append(errs, fmt.Sprintf("strategy: resolution_max_wait_secs must be positive, got %d", c.Strategy.ResolutionMaxWaitSecs))
	}
	for sym, tol := range c.Strategy.ToleranceUSD {
		if tol < 0 {
			errs = append(errs, fmt.Sprintf("strategy: tolerance_usd %q must not be negative, got %v", sym, tol))
		}
	}

	if c.Polymarket.GammaAPIURL == "" {
		errs = append(errs, "polymarket: gamma_api_url must not be empty")
	}
	if c.Polymarket.ClobAPIURL == "" {
		errs = append(errs, "polymarket: clob_api_url must not be empty")
	}
	if c.Polymarket.DataAPIURL == "" {
		errs = append(errs, "polymarket: data_api_url must not be empty")
	}
	if c.Polymarket.WsURL == "" {
		errs = append(errs, "polymarket: ws_url must not be empty")
	}
	if c.Polymarket.RtdsWsURL == "" {
		errs = append(errs, "polymarket: rtds_ws_url must not be empty")
	}
	if c.Polymarket.RPCURL == "" {
		errs = append(errs, "polymarket: rpc_url must not be empty")
	}
	switch c.Polymarket.SignatureType {
	case 0:
	case 1, 2:
		if strings.TrimSpace(c.Polymarket.ProxyWalletAddress) == "" {
			errs = append(errs, fmt.Sprintf("polymarket: signature_type %d requires proxy_wallet_address", c.Polymarket.SignatureType))
		}
	default:
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 0 (EOA), 1 (proxy) or 2 (Safe), got %d", c.Polymarket.SignatureType))
	}

	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Sprintf("redis: db must not be negative, got %d", c.Redis.DB))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
