// Command tenorarb is the entry point for the cross-tenor arbitrage
// engine. It loads configuration, validates it, wires dependencies, sets
// up signal handling, and trades 15m/5m Polymarket period pairs until
// interrupted. With -redeem it instead settles resolved positions once
// and exits; with -encrypt-key it writes an encrypted keyfile and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/alanyoungcy/tenorarb/internal/app"
	"github.com/alanyoungcy/tenorarb/internal/config"
	"github.com/alanyoungcy/tenorarb/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	redeem := flag.Bool("redeem", false, "settle redeemable positions once and exit")
	conditionID := flag.String("condition-id", "", "with -redeem: settle only this condition")
	encryptKey := flag.String("encrypt-key", "", "encrypt TENORARB_PRIVATE_KEY into a keyfile at this path and exit")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *conditionID != "" && !*redeem {
		fmt.Fprintln(os.Stderr, "-condition-id requires -redeem")
		os.Exit(2)
	}
	if *encryptKey != "" {
		if *redeem {
			fmt.Fprintln(os.Stderr, "-encrypt-key and -redeem are mutually exclusive")
			os.Exit(2)
		}
		if err := encryptKeyFile(*encryptKey); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		logger.Info("keyfile written", slog.String("path", *encryptKey))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Rebuild the logger at the configured level.
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Debug("active configuration", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger)
	defer application.Close()

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *redeem {
		err = application.RedeemMode(ctx, *conditionID)
	} else {
		logger.Info("tenor arbitrage engine starting", slog.String("config", *configPath))
		err = application.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	logger.Info("stopped")
}

// encryptKeyFile seals TENORARB_PRIVATE_KEY under TENORARB_KEYFILE_PASSWORD
// and writes the keyfile, so the raw key can be dropped from the environment
// and keystore.path pointed at the result.
func encryptKeyFile(path string) error {
	_ = godotenv.Load()

	key := os.Getenv("TENORARB_PRIVATE_KEY")
	password := os.Getenv("TENORARB_KEYFILE_PASSWORD")
	if key == "" || password == "" {
		return errors.New("set TENORARB_PRIVATE_KEY and TENORARB_KEYFILE_PASSWORD")
	}

	blob, err := crypto.EncryptKey(key, password)
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o600)
}

// logLevel maps the configured level name onto slog. Unknown names fall
// back to info; Validate has already rejected them by the time this runs.
func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
