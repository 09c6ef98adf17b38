package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeJournal persists executed trades and their settled outcomes.
// Journaling never blocks or fails the trading loop; callers log and
// carry on when a write errors.
type TradeJournal interface {
	RecordTrade(ctx context.Context, rec TradeRecord) (int64, error)
	RecordOutcome(ctx context.Context, tradeID int64, out RoundOutcome) error
	ListRecent(ctx context.Context, opts ListOpts) ([]RoundOutcome, error)
	SumPnL(ctx context.Context, since time.Time) (float64, error)
}

// EventBus publishes engine events for external consumers.
type EventBus interface {
	Publish(ctx context.Context, event string, payload any) error
}

// QuoteMirror mirrors the latest quotes per token for inspection.
type QuoteMirror interface {
	SetQuote(ctx context.Context, tokenID string, q Quote) error
	SetReference(ctx context.Context, symbol string, price float64) error
}

// RoundArchiver writes settled round summaries to long-term storage.
type RoundArchiver interface {
	ArchiveRound(ctx context.Context, out RoundOutcome) error
}
