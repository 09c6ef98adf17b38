package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tenorarb/internal/clock"
	"github.com/alanyoungcy/tenorarb/internal/discovery"
	"github.com/alanyoungcy/tenorarb/internal/domain"
	"github.com/alanyoungcy/tenorarb/internal/feed"
)

const (
	// overlapPoll is how often the machine rechecks for an overlap
	// window (and retries a failed discovery inside one).
	overlapPoll = 5 * time.Second

	// referencePoll is how often the machine rechecks for captured
	// reference prices.
	referencePoll = 10 * time.Second

	// quotePoll is the trading loop cadence against the quote cache.
	quotePoll = 10 * time.Millisecond

	// settleDelay is the pause after a settled round before the next
	// overlap hunt.
	settleDelay = 5 * time.Second
)

// State names the phase a symbol machine is in, for the status surface.
type State string

const (
	StateWaitingOverlap   State = "waiting_for_overlap"
	StateWaitingReference State = "waiting_for_reference_prices"
	StateTrading          State = "trading"
	StateResolving        State = "resolving"
	StateRedeeming        State = "redeeming"
)

// Engine event names, shared by the event bus and the notifier filter.
const (
	EventTradePlaced    = "trade_placed"
	EventTradeFailed    = "trade_failed"
	EventRoundResolved  = "round_resolved"
	EventBatchAbandoned = "batch_abandoned"
	EventRedeemed       = "redeemed"
)

// Notifier posts operator alerts. notify.Notifier satisfies it; a nil
// Notifier disables alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Sinks are the optional side channels. Every field may be nil; sink
// calls are fire-and-forget and never fail the engine.
type Sinks struct {
	Journal  domain.TradeJournal
	Bus      domain.EventBus
	Archiver domain.RoundArchiver
	Notifier Notifier
}

// MachineConfig is the per-symbol trading configuration.
type MachineConfig struct {
	Symbol            string
	SumThreshold      float64
	Shares            float64
	TradeInterval     time.Duration
	ToleranceUSD      float64
	SimulationMode    bool
	ResolutionDelay   time.Duration
	ResolutionPoll    time.Duration
	ResolutionMaxWait time.Duration
	AutoRedeem        bool
}

// Deps are the machine's collaborators. Settler may be nil (simulation,
// or no funding wallet); Sinks fields may each be nil.
type Deps struct {
	Discovery *discovery.Service
	Venue     domain.VenueQuery
	Cache     *feed.Cache
	Books     *feed.BookFeed
	Orders    domain.OrderGateway
	Settler   domain.SettlementGateway
	Sinks     Sinks
	Ledger    *PnLLedger
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Machine runs the cross-tenor cycle for one symbol: wait for the final
// five minutes of a 15m period, pair it with the 5m period inside it,
// trade the spread, then resolve and redeem. One Machine per symbol;
// the orchestrator runs them concurrently.
type Machine struct {
	cfg      MachineConfig
	disc     *discovery.Service
	cache    *feed.Cache
	books    *feed.BookFeed
	orders   domain.OrderGateway
	settler  domain.SettlementGateway
	sinks    Sinks
	ledger   *PnLLedger
	resolver *Resolver
	clk      clock.Clock
	logger   *slog.Logger

	mu    sync.RWMutex
	state State
}

// NewMachine creates a symbol machine.
func NewMachine(cfg MachineConfig, deps Deps) *Machine {
	logger := deps.Logger.With(
		slog.String("component", "machine"),
		slog.String("symbol", cfg.Symbol))
	return &Machine{
		cfg:     cfg,
		disc:    deps.Discovery,
		cache:   deps.Cache,
		books:   deps.Books,
		orders:  deps.Orders,
		settler: deps.Settler,
		sinks:   deps.Sinks,
		ledger:  deps.Ledger,
		resolver: NewResolver(deps.Venue, deps.Clock, logger,
			cfg.ResolutionDelay, cfg.ResolutionPoll, cfg.ResolutionMaxWait),
		clk:    deps.Clock,
		logger: logger,
		state:  StateWaitingOverlap,
	}
}

// Symbol returns the symbol this machine trades.
func (m *Machine) Symbol() string { return m.cfg.Symbol }

// State returns the machine's current phase.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// placedTrade pairs a held position with its journal row so the
// settled outcome can be written against the same row later.
type placedTrade struct {
	rec       domain.TradeRecord
	journalID int64
}

// round is one overlap occurrence: the paired periods, their markets,
// and the classified outcome tokens.
type round struct {
	period15 time.Time
	period5  time.Time
	market15 *domain.Market
	market5  *domain.Market
	up15     domain.Token
	down15   domain.Token
	up5      domain.Token
	down5    domain.Token
	ref15    float64
	ref5     float64
}

func (r *round) tokenIDs() []string {
	return []string{r.up15.ID, r.down15.ID, r.up5.ID, r.down5.ID}
}

// Run drives the symbol cycle until ctx is done. Transient problems
// (missing markets, missing references, diverged references, failed
// legs) are logged and retried; only ctx cancellation and fatal
// misconfiguration (missing credentials) return.
func (m *Machine) Run(ctx context.Context) error {
	m.logger.Info("symbol machine started",
		slog.Float64("sum_threshold", m.cfg.SumThreshold),
		slog.Float64("shares", m.cfg.Shares),
		slog.Bool("simulation", m.cfg.SimulationMode))
	defer m.logger.Info("symbol machine stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := m.clk.Now()
		p15 := clock.PeriodStart(now, domain.Tenor15m)
		if !clock.IsOverlap(now, p15) {
			m.setState(StateWaitingOverlap)
			if err := m.clk.Sleep(ctx, overlapPoll); err != nil {
				return err
			}
			continue
		}
		p5 := clock.PeriodStart(now, domain.Tenor5m)

		r, err := m.discoverRound(ctx, p15, p5)
		if err != nil {
			m.logger.Warn("markets not ready",
				slog.Int64("period_15m", p15.Unix()),
				slog.Int64("period_5m", p5.Unix()),
				slog.String("error", err.Error()))
			if err := m.clk.Sleep(ctx, overlapPoll); err != nil {
				return err
			}
			continue
		}

		m.setState(StateWaitingReference)
		ref15, ok15 := m.cache.Reference(m.cfg.Symbol, domain.Tenor15m, p15.Unix())
		ref5, ok5 := m.cache.Reference(m.cfg.Symbol, domain.Tenor5m, p5.Unix())
		if !ok15 || !ok5 {
			m.logger.Info("waiting for reference prices",
				slog.Bool("have_15m", ok15),
				slog.Bool("have_5m", ok5))
			if err := m.clk.Sleep(ctx, referencePoll); err != nil {
				return err
			}
			continue
		}
		if diff := math.Abs(ref15 - ref5); diff > m.cfg.ToleranceUSD {
			m.logger.Warn("reference prices diverge, skipping occurrence",
				slog.Float64("ref_15m", ref15),
				slog.Float64("ref_5m", ref5),
				slog.Float64("diff", diff),
				slog.Float64("tolerance", m.cfg.ToleranceUSD))
			if err := m.clk.Sleep(ctx, overlapPoll); err != nil {
				return err
			}
			continue
		}
		r.ref15, r.ref5 = ref15, ref5

		// Token classification failures are config-grade: the market
		// exists but its outcomes make no sense for an up/down pair.
		if err := m.classifyTokens(ctx, r); err != nil {
			return err
		}

		trades, err := m.trade(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, domain.ErrNotConfigured) {
				return err
			}
			m.logger.Error("trading round failed",
				slog.String("error", err.Error()))
			continue
		}

		if len(trades) == 0 {
			m.logger.Info("round closed with no trades",
				slog.Int64("period_15m", r.period15.Unix()))
			continue
		}

		m.setState(StateResolving)
		win15, win5, resolved, err := m.resolver.AwaitWinners(ctx,
			r.market15.ConditionID, r.market5.ConditionID)
		if err != nil {
			return err
		}
		if !resolved {
			m.abandonBatch(ctx, r, trades)
			continue
		}

		m.setState(StateRedeeming)
		m.settleRound(ctx, r, trades, win15, win5)

		if err := m.clk.Sleep(ctx, settleDelay); err != nil {
			return err
		}
	}
}

// discoverRound resolves both tenors' markets for the current overlap.
func (m *Machine) discoverRound(ctx context.Context, p15, p5 time.Time) (*round, error) {
	m15, err := m.disc.FindMarket(ctx, m.cfg.Symbol, domain.Tenor15m, p15)
	if err != nil {
		return nil, err
	}
	m5, err := m.disc.FindMarket(ctx, m.cfg.Symbol, domain.Tenor5m, p5)
	if err != nil {
		return nil, err
	}
	return &round{period15: p15, period5: p5, market15: m15, market5: m5}, nil
}

func (m *Machine) classifyTokens(ctx context.Context, r *round) error {
	up15, down15, err := m.disc.OutcomeTokens(ctx, r.market15.ConditionID)
	if err != nil {
		return fmt.Errorf("classify 15m tokens: %w", err)
	}
	up5, down5, err := m.disc.OutcomeTokens(ctx, r.market5.ConditionID)
	if err != nil {
		return fmt.Errorf("classify 5m tokens: %w", err)
	}
	r.up15, r.down15, r.up5, r.down5 = up15, down15, up5, down5
	return nil
}

// trade runs the live quote loop until the 15m period ends. It owns the
// round's order-book subscription; cancelling the round context tears
// the stream down.
func (m *Machine) trade(ctx context.Context, r *round) ([]placedTrade, error) {
	roundCtx, cancel := context.WithCancel(ctx)

	tokens := r.tokenIDs()
	m.books.Seed(roundCtx, tokens)

	feedDone := make(chan error, 1)
	go func() {
		feedDone <- m.books.Run(roundCtx, tokens)
	}()
	defer func() {
		cancel()
		<-feedDone
	}()

	m.setState(StateTrading)
	endAt := clock.PeriodEnd(r.period15, domain.Tenor15m)
	m.logger.Info("trading window open",
		slog.Int64("period_15m", r.period15.Unix()),
		slog.Int64("period_5m", r.period5.Unix()),
		slog.Float64("ref_15m", r.ref15),
		slog.Float64("ref_5m", r.ref5),
		slog.Any("strike_15m", r.market15.Strike),
		slog.Any("strike_5m", r.market5.Strike),
		slog.Time("until", endAt))

	var trades []placedTrade
	var lastTrade time.Time

	for {
		now := m.clk.Now()
		if !now.Before(endAt) {
			break
		}
		if err := ctx.Err(); err != nil {
			return trades, err
		}

		if !lastTrade.IsZero() && now.Sub(lastTrade) < m.cfg.TradeInterval {
			if err := m.clk.Sleep(ctx, quotePoll); err != nil {
				return trades, err
			}
			continue
		}

		sel, ok := SelectLegs(QuadAsks{
			Up15:   m.cache.BestAsk(r.up15.ID),
			Down15: m.cache.BestAsk(r.down15.ID),
			Up5:    m.cache.BestAsk(r.up5.ID),
			Down5:  m.cache.BestAsk(r.down5.ID),
		}, LegTokens{
			Up15:   r.up15.ID,
			Down15: r.down15.ID,
			Up5:    r.up5.ID,
			Down5:  r.down5.ID,
		}, m.cfg.SumThreshold)
		if !ok {
			if err := m.clk.Sleep(ctx, quotePoll); err != nil {
				return trades, err
			}
			continue
		}

		rec, err := m.executeSelection(ctx, r, sel)
		if err != nil {
			if errors.Is(err, domain.ErrNotConfigured) {
				return trades, err
			}
			// One or both legs failed: hold whatever filled, no
			// unwind, no cooldown.
			m.logger.Warn("pair execution failed",
				slog.Float64("sum", sel.Sum()),
				slog.String("error", err.Error()))
			m.notify(ctx, EventTradeFailed, "Leg placement failed",
				fmt.Sprintf("%s %s@%.4f / %s@%.4f: %v",
					m.cfg.Symbol, sel.Dir15, sel.Price15, sel.Dir5, sel.Price5, err))
			if err := m.clk.Sleep(ctx, quotePoll); err != nil {
				return trades, err
			}
			continue
		}

		trades = append(trades, placedTrade{rec: rec, journalID: m.recordTrade(ctx, rec)})
		lastTrade = m.clk.Now()
	}

	m.logger.Info("trading window closed",
		slog.Int64("period_15m", r.period15.Unix()),
		slog.Int("trades", len(trades)))
	return trades, nil
}

// executeSelection turns a selector hit into a held position. In
// simulation mode the pair is recorded without touching the venue. Live
// mode places both BUY legs; both are always attempted, and only a
// double fill produces a record.
func (m *Machine) executeSelection(ctx context.Context, r *round, sel domain.ArbSelection) (domain.TradeRecord, error) {
	rec := domain.TradeRecord{
		ID:     uuid.New().String(),
		Symbol: m.cfg.Symbol,
		Leg15: domain.TradeLeg{
			ConditionID: r.market15.ConditionID,
			TokenID:     sel.Token15,
			Outcome:     string(sel.Dir15),
			Tenor:       domain.Tenor15m,
			Price:       sel.Price15,
		},
		Leg5: domain.TradeLeg{
			ConditionID: r.market5.ConditionID,
			TokenID:     sel.Token5,
			Outcome:     string(sel.Dir5),
			Tenor:       domain.Tenor5m,
			Price:       sel.Price5,
		},
		Size:      m.cfg.Shares,
		Simulated: m.cfg.SimulationMode,
		PlacedAt:  m.clk.Now(),
	}

	if m.cfg.SimulationMode {
		m.logger.Info("simulated cross-tenor pair",
			slog.String("dir_15m", string(sel.Dir15)),
			slog.Float64("ask_15m", sel.Price15),
			slog.String("dir_5m", string(sel.Dir5)),
			slog.Float64("ask_5m", sel.Price5),
			slog.Float64("sum", sel.Sum()),
			slog.Float64("shares", m.cfg.Shares))
		return rec, nil
	}

	req15 := domain.OrderRequest{
		TokenID: sel.Token15,
		Side:    domain.OrderSideBuy,
		Price:   sel.Price15,
		Size:    m.cfg.Shares,
		NegRisk: r.market15.NegRisk,
	}
	req5 := domain.OrderRequest{
		TokenID: sel.Token5,
		Side:    domain.OrderSideBuy,
		Price:   sel.Price5,
		Size:    m.cfg.Shares,
		NegRisk: r.market5.NegRisk,
	}

	res15, err15 := m.orders.PlaceOrder(ctx, req15)
	res5, err5 := m.orders.PlaceOrder(ctx, req5)

	if errors.Is(err15, domain.ErrNotConfigured) || errors.Is(err5, domain.ErrNotConfigured) {
		return domain.TradeRecord{}, fmt.Errorf("place pair: %w", domain.ErrNotConfigured)
	}
	if err15 != nil || err5 != nil {
		return domain.TradeRecord{}, fmt.Errorf("leg 15m err=%v id=%s, leg 5m err=%v id=%s",
			err15, res15.OrderID, err5, res5.OrderID)
	}

	m.logger.Info("cross-tenor pair placed",
		slog.String("order_15m", res15.OrderID),
		slog.String("dir_15m", string(sel.Dir15)),
		slog.Float64("ask_15m", sel.Price15),
		slog.String("order_5m", res5.OrderID),
		slog.String("dir_5m", string(sel.Dir5)),
		slog.Float64("ask_5m", sel.Price5),
		slog.Float64("sum", sel.Sum()),
		slog.Float64("shares", m.cfg.Shares))
	return rec, nil
}

// settleRound computes and books PnL for every trade of the round, then
// redeems the winning legs when live redemption is enabled.
func (m *Machine) settleRound(ctx context.Context, r *round, trades []placedTrade, win15, win5 domain.Token) {
	periodPnL := 0.0
	var targets []domain.RedemptionTarget

	for _, pt := range trades {
		rec := pt.rec
		res := ComputeTradePnL(rec, win15.ID, win5.ID)
		periodPnL += res.PnL

		m.logger.Info("trade settled",
			slog.String("trade_id", rec.ID),
			slog.Float64("cost", res.Cost),
			slog.Float64("payout", res.Payout),
			slog.Float64("pnl", res.PnL),
			slog.Bool("won_15m", res.Won15),
			slog.Bool("won_5m", res.Won5),
			slog.Bool("simulated", rec.Simulated))

		var tradeTargets []domain.RedemptionTarget
		if res.Won15 {
			tradeTargets = append(tradeTargets, domain.RedemptionTarget{
				ConditionID: rec.Leg15.ConditionID,
				Outcome:     rec.Leg15.Outcome,
			})
		}
		if res.Won5 {
			tradeTargets = append(tradeTargets, domain.RedemptionTarget{
				ConditionID: rec.Leg5.ConditionID,
				Outcome:     rec.Leg5.Outcome,
			})
		}
		targets = append(targets, tradeTargets...)

		m.recordOutcome(ctx, pt, res, tradeTargets)
	}

	m.ledger.Add(periodPnL, len(trades))
	m.logger.Info("period settled",
		slog.Int64("period_15m", r.period15.Unix()),
		slog.Int("trades", len(trades)),
		slog.Float64("period_pnl", periodPnL),
		slog.Float64("cumulative_pnl", m.ledger.Total()))
	m.notify(ctx, EventRoundResolved, "Round resolved",
		fmt.Sprintf("%s period %d: %d trade(s), pnl %.4f (cumulative %.4f)",
			m.cfg.Symbol, r.period15.Unix(), len(trades), periodPnL, m.ledger.Total()))

	if !m.cfg.AutoRedeem || m.cfg.SimulationMode || m.settler == nil {
		return
	}
	for _, target := range targets {
		txHash, err := m.settler.Redeem(ctx, target)
		if err != nil {
			m.logger.Warn("redemption failed",
				slog.String("condition_id", target.ConditionID),
				slog.String("outcome", target.Outcome),
				slog.String("error", err.Error()))
			continue
		}
		m.logger.Info("position redeemed",
			slog.String("condition_id", target.ConditionID),
			slog.String("outcome", target.Outcome),
			slog.String("tx_hash", txHash))
		m.publish(ctx, EventRedeemed, map[string]string{
			"symbol":       m.cfg.Symbol,
			"condition_id": target.ConditionID,
			"outcome":      target.Outcome,
			"tx_hash":      txHash,
		})
	}
}

// abandonBatch drops a round whose markets never resolved in time. The
// drop is loud: warn log, bus event, alert, and a journal row, so the
// positions can be redeemed manually later.
func (m *Machine) abandonBatch(ctx context.Context, r *round, trades []placedTrade) {
	m.logger.Warn("resolution timed out, dropping batch",
		slog.Int64("period_15m", r.period15.Unix()),
		slog.Int("trades", len(trades)),
		slog.String("condition_15m", r.market15.ConditionID),
		slog.String("condition_5m", r.market5.ConditionID))

	m.publish(ctx, EventBatchAbandoned, map[string]any{
		"symbol":       m.cfg.Symbol,
		"period_15m":   r.period15.Unix(),
		"trades":       len(trades),
		"condition_15": r.market15.ConditionID,
		"condition_5":  r.market5.ConditionID,
	})
	m.notify(ctx, EventBatchAbandoned, "Batch abandoned",
		fmt.Sprintf("%s period %d: %d trade(s) unresolved after max wait; redeem manually",
			m.cfg.Symbol, r.period15.Unix(), len(trades)))

	if m.sinks.Journal == nil {
		return
	}
	for _, pt := range trades {
		out := domain.RoundOutcome{
			Symbol:      m.cfg.Symbol,
			Trade:       pt.rec,
			Abandoned:   true,
			ResolvedAt:  m.clk.Now(),
			Description: "resolution timeout",
		}
		if err := m.sinks.Journal.RecordOutcome(ctx, pt.journalID, out); err != nil {
			m.logger.Warn("journal abandon write failed",
				slog.String("trade_id", pt.rec.ID),
				slog.String("error", err.Error()))
		}
	}
}

// --------------------------------------------------------------------------
// Side-channel plumbing (all best effort)
// --------------------------------------------------------------------------

func (m *Machine) recordTrade(ctx context.Context, rec domain.TradeRecord) int64 {
	var journalID int64
	if m.sinks.Journal != nil {
		id, err := m.sinks.Journal.RecordTrade(ctx, rec)
		if err != nil {
			m.logger.Warn("journal trade write failed",
				slog.String("trade_id", rec.ID),
				slog.String("error", err.Error()))
		} else {
			journalID = id
		}
	}
	m.publish(ctx, EventTradePlaced, map[string]any{
		"trade_id":  rec.ID,
		"symbol":    rec.Symbol,
		"token_15m": rec.Leg15.TokenID,
		"price_15m": rec.Leg15.Price,
		"token_5m":  rec.Leg5.TokenID,
		"price_5m":  rec.Leg5.Price,
		"size":      rec.Size,
		"simulated": rec.Simulated,
	})
	m.notify(ctx, EventTradePlaced, "Pair placed",
		fmt.Sprintf("%s %s@%.4f + %s@%.4f, %g shares (sum %.4f)",
			rec.Symbol, rec.Leg15.Outcome, rec.Leg15.Price,
			rec.Leg5.Outcome, rec.Leg5.Price, rec.Size,
			rec.Leg15.Price+rec.Leg5.Price))
	return journalID
}

func (m *Machine) recordOutcome(ctx context.Context, pt placedTrade, res domain.PnLResult, targets []domain.RedemptionTarget) {
	out := domain.RoundOutcome{
		Symbol:     m.cfg.Symbol,
		Trade:      pt.rec,
		Result:     res,
		Targets:    targets,
		ResolvedAt: m.clk.Now(),
	}
	if m.sinks.Journal != nil {
		if err := m.sinks.Journal.RecordOutcome(ctx, pt.journalID, out); err != nil {
			m.logger.Warn("journal outcome write failed",
				slog.String("trade_id", pt.rec.ID),
				slog.String("error", err.Error()))
		}
	}
	if m.sinks.Archiver != nil {
		if err := m.sinks.Archiver.ArchiveRound(ctx, out); err != nil {
			m.logger.Warn("round archive failed",
				slog.String("trade_id", pt.rec.ID),
				slog.String("error", err.Error()))
		}
	}
}

func (m *Machine) publish(ctx context.Context, event string, payload any) {
	if m.sinks.Bus == nil {
		return
	}
	if err := m.sinks.Bus.Publish(ctx, event, payload); err != nil {
		m.logger.Debug("event publish failed",
			slog.String("event", event),
			slog.String("error", err.Error()))
	}
}

func (m *Machine) notify(ctx context.Context, event, title, message string) {
	if m.sinks.Notifier == nil {
		return
	}
	if err := m.sinks.Notifier.Notify(ctx, event, title, message); err != nil {
		m.logger.Debug("notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()))
	}
}
