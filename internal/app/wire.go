package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/tenorarb/internal/blob/s3"
	"github.com/alanyoungcy/tenorarb/internal/cache/redis"
	"github.com/alanyoungcy/tenorarb/internal/clock"
	"github.com/alanyoungcy/tenorarb/internal/config"
	"github.com/alanyoungcy/tenorarb/internal/crypto"
	"github.com/alanyoungcy/tenorarb/internal/discovery"
	"github.com/alanyoungcy/tenorarb/internal/domain"
	"github.com/alanyoungcy/tenorarb/internal/feed"
	"github.com/alanyoungcy/tenorarb/internal/notify"
	"github.com/alanyoungcy/tenorarb/internal/platform/polygon"
	"github.com/alanyoungcy/tenorarb/internal/platform/polymarket"
	"github.com/alanyoungcy/tenorarb/internal/server"
	"github.com/alanyoungcy/tenorarb/internal/store/postgres"
	"github.com/alanyoungcy/tenorarb/internal/strategy"
)

// polygonChainID is the chain every order signature and redemption
// transaction targets.
const polygonChainID = 137

// Dependencies bundles what the run modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	Orchestrator *strategy.Orchestrator

	// Server is nil unless server.listen_addr is configured.
	Server *server.Server
}

// Wire constructs the full engine from the configuration: optional side
// channels first, then credentials, venue clients, feeds, and one machine
// per symbol. The returned cleanup releases pools and connections in
// reverse order and must be called on shutdown.
//
// Side channels are only constructed when their section is configured, but
// a configured channel that cannot be reached is a wiring error: the
// operator asked for it, so starting without it would silently drop data.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// ── Trade journal (PostgreSQL) ──
	var journal domain.TradeJournal
	if cfg.Postgres.DSN != "" {
		pg, err := postgres.New(ctx, postgres.ClientConfig{DSN: cfg.Postgres.DSN})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)
		if err := pg.RunMigrations(ctx); err != nil {
			return fail(fmt.Errorf("wire: postgres migrations: %w", err))
		}
		journal = postgres.NewTradeStore(pg.Pool())
		logger.Info("trade journal enabled")
	}

	// ── Quote mirror and event bus (Redis) ──
	var mirror domain.QuoteMirror
	var bus domain.EventBus
	if cfg.Redis.Addr != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Secrets.RedisPassword,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		mirror = redis.NewQuoteMirror(rc)
		bus = redis.NewEventBus(rc)
		logger.Info("quote mirror and event bus enabled", slog.String("addr", cfg.Redis.Addr))
	}

	// ── Round archiver (S3) ──
	var archiver domain.RoundArchiver
	if cfg.S3.Bucket != "" {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Bucket:         cfg.S3.Bucket,
			Region:         cfg.S3.Region,
			Endpoint:       cfg.S3.Endpoint,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		if err := sc.Health(ctx); err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		archiver = s3blob.NewArchiver(s3blob.NewWriter(sc))
		logger.Info("round archiver enabled", slog.String("bucket", cfg.S3.Bucket))
	}

	// ── Operator alerts ──
	var senders []notify.Sender
	if cfg.Secrets.TelegramToken != "" && cfg.Telegram.ChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Secrets.TelegramToken, cfg.Telegram.ChatID))
		logger.Info("telegram alerts enabled", slog.String("chat_id", cfg.Telegram.ChatID))
	}
	notifier := notify.New(senders, nil, logger)

	// ── Signing key ──
	live := !cfg.Strategy.SimulationMode
	var signer *crypto.Signer
	keyHex, keyErr := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Secrets.PrivateKey,
		EncryptedKeyPath: cfg.Keystore.Path,
		KeyPassword:      cfg.Secrets.KeyfilePassword,
	})
	switch {
	case keyErr == nil:
		signer, keyErr = crypto.NewSigner(keyHex, polygonChainID)
		if keyErr != nil {
			return fail(fmt.Errorf("wire: signer: %w", keyErr))
		}
	case live || cfg.Secrets.PrivateKey != "" || cfg.Keystore.Path != "":
		// Live trading cannot run unsigned, and a key source that is
		// configured but unusable is an operator mistake in any mode.
		return fail(fmt.Errorf("wire: resolve private key: %w", keyErr))
	}

	// ── Venue clients ──
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaAPIURL)
	var hmacAuth *crypto.HMACAuth
	if cfg.Secrets.HasCLOBCreds() {
		hmacAuth = &crypto.HMACAuth{
			Key:        cfg.Secrets.APIKey,
			Secret:     cfg.Secrets.APISecret,
			Passphrase: cfg.Secrets.APIPassphrase,
		}
	}
	clob := polymarket.NewClobClient(cfg.Polymarket.ClobAPIURL, signer, hmacAuth)
	venue := polymarket.NewVenue(gamma, clob)

	var orders domain.OrderGateway
	if live {
		if !clob.Authenticated() {
			if err := clob.DeriveAPIKey(ctx); err != nil {
				return fail(fmt.Errorf("wire: derive clob api key: %w", err))
			}
			logger.Info("derived CLOB API credentials", slog.String("api_key", clob.APIKey()))
		}
		orders = polymarket.NewOrderPlacer(clob, signer,
			cfg.Polymarket.ProxyWalletAddress, cfg.Polymarket.SignatureType, polygonChainID)
	}

	// ── On-chain settlement ──
	var settler domain.SettlementGateway
	if live && cfg.Strategy.AutoRedeem && signer != nil {
		r, err := polygon.Dial(ctx, signer.PrivateKey(), polygon.Config{
			RPCURL:        cfg.Polymarket.RPCURL,
			ChainID:       polygonChainID,
			SignatureType: cfg.Polymarket.SignatureType,
			FunderAddress: cfg.Polymarket.ProxyWalletAddress,
		}, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: polygon redeemer: %w", err))
		}
		settler = r
	}

	// ── Feeds, discovery, machines ──
	cache := feed.NewCache()
	books := feed.NewBookFeed(
		polymarket.NewMarketStream(cfg.Polymarket.WsURL, logger),
		venue, cache, mirror, logger)
	refFeed := feed.NewReferenceFeed(
		polymarket.NewRTDSStream(cfg.Polymarket.RtdsWsURL, cfg.Strategy.Symbols, logger),
		cache, mirror, logger)
	disc := discovery.New(venue, logger)
	ledger := strategy.NewPnLLedger()
	clk := clock.System{}

	sinks := strategy.Sinks{
		Journal:  journal,
		Bus:      bus,
		Archiver: archiver,
		Notifier: notifier,
	}

	machines := make([]*strategy.Machine, 0, len(cfg.Strategy.Symbols))
	for _, sym := range cfg.Strategy.Symbols {
		machines = append(machines, strategy.NewMachine(strategy.MachineConfig{
			Symbol:            sym,
			SumThreshold:      cfg.Strategy.SumThreshold,
			Shares:            cfg.Strategy.Shares,
			TradeInterval:     cfg.Strategy.TradeInterval(),
			ToleranceUSD:      cfg.Strategy.Tolerance(sym),
			SimulationMode:    cfg.Strategy.SimulationMode,
			ResolutionPoll:    cfg.Strategy.ResolutionPoll(),
			ResolutionMaxWait: cfg.Strategy.ResolutionMaxWait(),
			AutoRedeem:        cfg.Strategy.AutoRedeem,
		}, strategy.Deps{
			Discovery: disc,
			Venue:     venue,
			Cache:     cache,
			Books:     books,
			Orders:    orders,
			Settler:   settler,
			Sinks:     sinks,
			Ledger:    ledger,
			Clock:     clk,
			Logger:    logger,
		}))
	}

	orch := strategy.NewOrchestrator(strategy.Settings{
		Symbols:        cfg.Strategy.Symbols,
		SumThreshold:   cfg.Strategy.SumThreshold,
		Shares:         cfg.Strategy.Shares,
		TradeInterval:  cfg.Strategy.TradeInterval(),
		SimulationMode: cfg.Strategy.SimulationMode,
		AutoRedeem:     cfg.Strategy.AutoRedeem,
	}, machines, refFeed, ledger, clk, logger)

	deps := &Dependencies{Orchestrator: orch}
	if cfg.Server.ListenAddr != "" {
		deps.Server = server.New(server.Config{ListenAddr: cfg.Server.ListenAddr}, orch, journal, logger)
	}

	return deps, cleanup, nil
}
