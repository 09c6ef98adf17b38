package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TENORARB_* environment variable overrides,
// and pulls secrets from the environment. The returned Config has NOT
// been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	cfg.Secrets = secretsFromEnv()
	normalize(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TENORARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators flip deployment knobs without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Strategy ──
	setBool(&cfg.Strategy.SimulationMode, "TENORARB_SIMULATION_MODE")
	setFloat64(&cfg.Strategy.SumThreshold, "TENORARB_SUM_THRESHOLD")
	setStringSlice(&cfg.Strategy.Symbols, "TENORARB_SYMBOLS")

	// ── Logging ──
	setStr(&cfg.Logging.Level, "TENORARB_LOG_LEVEL")

	// ── Side channels ──
	setStr(&cfg.Postgres.DSN, "TENORARB_POSTGRES_DSN")
	setStr(&cfg.Redis.Addr, "TENORARB_REDIS_ADDR")
	setInt(&cfg.Redis.DB, "TENORARB_REDIS_DB")
	setStr(&cfg.S3.Bucket, "TENORARB_S3_BUCKET")
	setStr(&cfg.Server.ListenAddr, "TENORARB_SERVER_LISTEN_ADDR")
}

// normalize canonicalizes values after all sources have been merged.
// Symbols are lowercased and deduplicated so "BTC, btc" configures one
// machine, not two.
func normalize(cfg *Config) {
	seen := make(map[string]bool, len(cfg.Strategy.Symbols))
	symbols := make([]string, 0, len(cfg.Strategy.Symbols))
	for _, sym := range cfg.Strategy.Symbols {
		sym = strings.ToLower(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	cfg.Strategy.Symbols = symbols

	tolerances := make(map[string]float64, len(cfg.Strategy.ToleranceUSD))
	for sym, tol := range cfg.Strategy.ToleranceUSD {
		tolerances[strings.ToLower(strings.TrimSpace(sym))] = tol
	}
	cfg.Strategy.ToleranceUSD = tolerances

	cfg.Polymarket.ProxyWalletAddress = strings.TrimSpace(cfg.Polymarket.ProxyWalletAddress)
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
