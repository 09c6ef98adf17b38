package strategy

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tenorarb/internal/clock"
	"github.com/alanyoungcy/tenorarb/internal/domain"
)

const (
	defaultResolutionDelay   = 60 * time.Second
	defaultResolutionPoll    = 30 * time.Second
	defaultResolutionMaxWait = 600 * time.Second
)

// Resolver waits for a round's markets to resolve on the venue. Markets
// typically declare a winner a minute or two after the period closes,
// so polling starts after an initial delay.
type Resolver struct {
	venue        domain.VenueQuery
	clk          clock.Clock
	logger       *slog.Logger
	initialDelay time.Duration
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewResolver creates a resolver. Zero durations fall back to the
// defaults (60s delay, 30s poll, 600s max wait).
func NewResolver(venue domain.VenueQuery, clk clock.Clock, logger *slog.Logger,
	initialDelay, pollInterval, maxWait time.Duration) *Resolver {
	if initialDelay <= 0 {
		initialDelay = defaultResolutionDelay
	}
	if pollInterval <= 0 {
		pollInterval = defaultResolutionPoll
	}
	if maxWait <= 0 {
		maxWait = defaultResolutionMaxWait
	}
	return &Resolver{
		venue:        venue,
		clk:          clk,
		logger:       logger,
		initialDelay: initialDelay,
		pollInterval: pollInterval,
		maxWait:      maxWait,
	}
}

// AwaitWinners polls both conditions until each has closed with exactly
// one declared winner. It returns ok=false when maxWait elapses first;
// the error return is reserved for ctx cancellation. Venue errors and
// half-resolved states count as not-yet-resolved and are retried.
func (r *Resolver) AwaitWinners(ctx context.Context, cond15, cond5 string) (win15, win5 domain.Token, ok bool, err error) {
	r.logger.Info("awaiting market resolution",
		slog.String("condition_15m", cond15),
		slog.String("condition_5m", cond5),
		slog.Duration("initial_delay", r.initialDelay))
	if err := r.clk.Sleep(ctx, r.initialDelay); err != nil {
		return domain.Token{}, domain.Token{}, false, err
	}

	deadline := r.clk.Now().Add(r.maxWait)
	var have15, have5 bool

	for {
		if !have15 {
			win15, have15 = r.winner(ctx, cond15)
		}
		if !have5 {
			win5, have5 = r.winner(ctx, cond5)
		}
		if have15 && have5 {
			r.logger.Info("both markets resolved",
				slog.String("winner_15m", win15.Outcome),
				slog.String("winner_5m", win5.Outcome))
			return win15, win5, true, nil
		}
		if !r.clk.Now().Before(deadline) {
			r.logger.Warn("resolution wait exhausted",
				slog.Bool("resolved_15m", have15),
				slog.Bool("resolved_5m", have5),
				slog.Duration("max_wait", r.maxWait))
			return domain.Token{}, domain.Token{}, false, nil
		}
		if err := r.clk.Sleep(ctx, r.pollInterval); err != nil {
			return domain.Token{}, domain.Token{}, false, err
		}
	}
}

// winner fetches one condition and reports its winning token when the
// market is closed with exactly one winner.
func (r *Resolver) winner(ctx context.Context, conditionID string) (domain.Token, bool) {
	mkt, err := r.venue.MarketByConditionID(ctx, conditionID)
	if err != nil {
		r.logger.Debug("resolution poll failed",
			slog.String("condition_id", conditionID),
			slog.String("error", err.Error()))
		return domain.Token{}, false
	}
	if !mkt.Closed {
		return domain.Token{}, false
	}
	var win domain.Token
	winners := 0
	for _, t := range mkt.Tokens {
		if t.Winner {
			win = t
			winners++
		}
	}
	if winners != 1 {
		return domain.Token{}, false
	}
	return win, true
}
