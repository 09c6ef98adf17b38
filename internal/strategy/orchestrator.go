package strategy

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tenorarb/internal/clock"
	"github.com/alanyoungcy/tenorarb/internal/feed"
)

// refWarmup gives the oracle stream a head start before the symbol
// machines begin looking for reference prices.
const refWarmup = 2 * time.Second

// PnLLedger accumulates realised PnL across all symbol machines.
type PnLLedger struct {
	mu     sync.RWMutex
	total  float64
	trades int
}

func NewPnLLedger() *PnLLedger { return &PnLLedger{} }

// Add books a settled period's PnL and its trade count.
func (l *PnLLedger) Add(pnl float64, trades int) {
	l.mu.Lock()
	l.total += pnl
	l.trades += trades
	l.mu.Unlock()
}

// Total returns the cumulative realised PnL.
func (l *PnLLedger) Total() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Trades returns how many settled trades the total covers.
func (l *PnLLedger) Trades() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.trades
}

// Settings summarises the engine-wide configuration for the startup
// banner and the status surface.
type Settings struct {
	Symbols        []string
	SumThreshold   float64
	Shares         float64
	TradeInterval  time.Duration
	SimulationMode bool
	AutoRedeem     bool
}

// SymbolStatus is one machine's state snapshot.
type SymbolStatus struct {
	Symbol string `json:"symbol"`
	State  string `json:"state"`
}

// Orchestrator runs the shared reference feed and one Machine per
// configured symbol. A machine dying on a fatal error does not stop
// its siblings; only ctx cancellation stops the engine.
type Orchestrator struct {
	settings Settings
	machines []*Machine
	refFeed  *feed.ReferenceFeed
	ledger   *PnLLedger
	clk      clock.Clock
	logger   *slog.Logger
	startAt  time.Time
}

// NewOrchestrator assembles the engine from already-wired machines.
func NewOrchestrator(settings Settings, machines []*Machine, refFeed *feed.ReferenceFeed,
	ledger *PnLLedger, clk clock.Clock, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		settings: settings,
		machines: machines,
		refFeed:  refFeed,
		ledger:   ledger,
		clk:      clk,
		logger:   logger.With(slog.String("component", "orchestrator")),
		startAt:  clk.Now(),
	}
}

// Run starts the reference feed, waits briefly for it to warm up, then
// runs every symbol machine until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	mode := "live"
	if o.settings.SimulationMode {
		mode = "simulation"
	}
	o.logger.Info("cross-tenor arbitrage engine starting",
		slog.String("symbols", strings.Join(o.settings.Symbols, ",")),
		slog.Float64("sum_threshold", o.settings.SumThreshold),
		slog.Float64("shares", o.settings.Shares),
		slog.Duration("trade_interval", o.settings.TradeInterval),
		slog.String("mode", mode),
		slog.Bool("auto_redeem", o.settings.AutoRedeem))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := o.refFeed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("reference feed terminated",
				slog.String("error", err.Error()))
		}
		return nil
	})

	if err := o.clk.Sleep(ctx, refWarmup); err != nil {
		_ = g.Wait()
		return err
	}

	for _, m := range o.machines {
		m := m
		g.Go(func() error {
			err := m.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				// Fatal for this symbol only; siblings keep trading.
				o.logger.Error("symbol machine terminated",
					slog.String("symbol", m.Symbol()),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Status snapshots every machine's phase for the status endpoint.
func (o *Orchestrator) Status() []SymbolStatus {
	out := make([]SymbolStatus, 0, len(o.machines))
	for _, m := range o.machines {
		out = append(out, SymbolStatus{Symbol: m.Symbol(), State: string(m.State())})
	}
	return out
}

// CumulativePnL returns the engine's realised PnL so far.
func (o *Orchestrator) CumulativePnL() float64 { return o.ledger.Total() }

// TradeCount returns how many settled trades the PnL covers.
func (o *Orchestrator) TradeCount() int { return o.ledger.Trades() }

// Simulation reports whether the engine records trades without placing
// venue orders.
func (o *Orchestrator) Simulation() bool { return o.settings.SimulationMode }

// StartedAt returns when the engine was assembled.
func (o *Orchestrator) StartedAt() time.Time { return o.startAt }
