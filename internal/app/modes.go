package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tenorarb/internal/crypto"
	"github.com/alanyoungcy/tenorarb/internal/domain"
	"github.com/alanyoungcy/tenorarb/internal/platform/polygon"
	"github.com/alanyoungcy/tenorarb/internal/platform/polymarket"
)

// EngineMode runs the trading engine and, when configured, the HTTP status
// server. It blocks until the context is cancelled or a component fails.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Orchestrator.Run(ctx)
	})

	if deps.Server != nil {
		g.Go(func() error {
			return deps.Server.Run(ctx)
		})
	}

	return g.Wait()
}

// RedeemMode settles resolved positions once and exits. With a condition
// id it claims that condition alone; otherwise it scans the wallet's
// redeemable positions via the data API. Unlike the engine it needs no
// market feeds, so it wires only the signing key and the redeemer.
func (a *App) RedeemMode(ctx context.Context, conditionID string) error {
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Secrets.PrivateKey,
		EncryptedKeyPath: a.cfg.Keystore.Path,
		KeyPassword:      a.cfg.Secrets.KeyfilePassword,
	})
	if err != nil {
		return fmt.Errorf("app: redeem needs a signing key: %w", err)
	}
	signer, err := crypto.NewSigner(keyHex, polygonChainID)
	if err != nil {
		return fmt.Errorf("app: signer: %w", err)
	}

	redeemer, err := polygon.Dial(ctx, signer.PrivateKey(), polygon.Config{
		RPCURL:        a.cfg.Polymarket.RPCURL,
		ChainID:       polygonChainID,
		SignatureType: a.cfg.Polymarket.SignatureType,
		FunderAddress: a.cfg.Polymarket.ProxyWalletAddress,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("app: polygon redeemer: %w", err)
	}

	var targets []domain.RedemptionTarget
	if conditionID != "" {
		// No recorded outcome for a manually named condition; an empty
		// outcome makes the redeemer claim both sides.
		targets = []domain.RedemptionTarget{{ConditionID: conditionID}}
	} else {
		wallet := a.cfg.Polymarket.ProxyWalletAddress
		if wallet == "" {
			wallet = signer.Address().Hex()
		}
		data := polymarket.NewDataClient(a.cfg.Polymarket.DataAPIURL)
		targets, err = data.RedeemableTargets(ctx, wallet)
		if err != nil {
			return fmt.Errorf("app: scan redeemable positions: %w", err)
		}
		a.logger.Info("scanned redeemable positions",
			slog.String("wallet", wallet),
			slog.Int("targets", len(targets)))
	}

	if len(targets) == 0 {
		a.logger.Info("nothing to redeem")
		return nil
	}

	var failed int
	for _, target := range targets {
		txHash, err := redeemer.Redeem(ctx, target)
		if err != nil {
			a.logger.Error("redemption failed",
				slog.String("condition_id", target.ConditionID),
				slog.String("outcome", target.Outcome),
				slog.String("error", err.Error()))
			failed++
			continue
		}
		a.logger.Info("position redeemed",
			slog.String("condition_id", target.ConditionID),
			slog.String("outcome", target.Outcome),
			slog.String("tx", txHash))
	}
	if failed > 0 {
		return fmt.Errorf("app: %d of %d redemptions failed", failed, len(targets))
	}
	return nil
}
