package config

import "os"

// Secrets holds every credential the engine may need. They are read from
// the environment only (after an optional .env load) and never from the
// TOML file, so a checked-in config cannot leak them.
type Secrets struct {
	// PrivateKey is the raw hex-encoded Polygon key (TENORARB_PRIVATE_KEY).
	// When empty, the keystore path plus KeyfilePassword is tried instead.
	PrivateKey string

	// KeyfilePassword decrypts the keystore file (TENORARB_KEYFILE_PASSWORD).
	KeyfilePassword string

	// APIKey, APISecret and APIPassphrase are the CLOB L2 credentials
	// (TENORARB_API_KEY / TENORARB_API_SECRET / TENORARB_API_PASSPHRASE).
	// When absent in live mode they are derived at startup via L1 auth.
	APIKey        string
	APISecret     string
	APIPassphrase string

	// TelegramToken is the bot token for alerts (TELEGRAM_BOT_TOKEN).
	TelegramToken string

	// RedisPassword authenticates the mirror connection (TENORARB_REDIS_PASSWORD).
	RedisPassword string
}

// HasCLOBCreds reports whether a complete L2 credential set is present.
func (s Secrets) HasCLOBCreds() bool {
	return s.APIKey != "" && s.APISecret != "" && s.APIPassphrase != ""
}

// secretsFromEnv reads every secret the engine understands. Missing
// variables stay empty; whether that is an error depends on the run mode
// and is decided at wiring time.
func secretsFromEnv() Secrets {
	return Secrets{
		PrivateKey:      os.Getenv("TENORARB_PRIVATE_KEY"),
		KeyfilePassword: os.Getenv("TENORARB_KEYFILE_PASSWORD"),
		APIKey:          os.Getenv("TENORARB_API_KEY"),
		APISecret:       os.Getenv("TENORARB_API_SECRET"),
		APIPassphrase:   os.Getenv("TENORARB_API_PASSPHRASE"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		RedisPassword:   os.Getenv("TENORARB_REDIS_PASSWORD"),
	}
}

// RedactedConfig returns a copy of cfg with sensitive fields replaced by
// the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Postgres.DSN)
	redact(&out.Secrets.PrivateKey)
	redact(&out.Secrets.KeyfilePassword)
	redact(&out.Secrets.APIKey)
	redact(&out.Secrets.APISecret)
	redact(&out.Secrets.APIPassphrase)
	redact(&out.Secrets.TelegramToken)
	redact(&out.Secrets.RedisPassword)

	// Copy the slice and map so callers cannot mutate the original through
	// the redacted copy.
	if cfg.Strategy.Symbols != nil {
		out.Strategy.Symbols = make([]string, len(cfg.Strategy.Symbols))
		copy(out.Strategy.Symbols, cfg.Strategy.Symbols)
	}
	if cfg.Strategy.ToleranceUSD != nil {
		out.Strategy.ToleranceUSD = make(map[string]float64, len(cfg.Strategy.ToleranceUSD))
		for k, v := range cfg.Strategy.ToleranceUSD {
			out.Strategy.ToleranceUSD[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
