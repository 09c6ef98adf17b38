package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// Mirrored values expire on their own so a stalled feed cannot leave
// stale prices looking live.
const (
	quoteTTL     = time.Minute
	referenceTTL = 30 * time.Minute
)

// QuoteMirror implements domain.QuoteMirror: the latest accepted quote
// per token and the captured reference price per symbol, written through
// as plain keys with a TTL.
type QuoteMirror struct {
	rdb *redis.Client
}

// NewQuoteMirror creates a QuoteMirror backed by the given Client.
func NewQuoteMirror(c *Client) *QuoteMirror {
	return &QuoteMirror{rdb: c.Underlying()}
}

var _ domain.QuoteMirror = (*QuoteMirror)(nil)

type mirroredQuote struct {
	Bid *float64  `json:"bid,omitempty"`
	Ask *float64  `json:"ask,omitempty"`
	At  time.Time `json:"at"`
}

func quoteKey(tokenID string) string {
	return "quote:" + tokenID
}

func referenceKey(symbol string) string {
	return "ref:" + symbol
}

// SetQuote stores the merged best bid/ask for a token as JSON.
func (m *QuoteMirror) SetQuote(ctx context.Context, tokenID string, q domain.Quote) error {
	payload, err := json.Marshal(mirroredQuote{Bid: q.Bid, Ask: q.Ask, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("redis: marshal quote %s: %w", tokenID, err)
	}
	if err := m.rdb.Set(ctx, quoteKey(tokenID), payload, quoteTTL).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", tokenID, err)
	}
	return nil
}

// SetReference stores the captured oracle price for a symbol.
func (m *QuoteMirror) SetReference(ctx context.Context, symbol string, price float64) error {
	val := strconv.FormatFloat(price, 'f', -1, 64)
	if err := m.rdb.Set(ctx, referenceKey(symbol), val, referenceTTL).Err(); err != nil {
		return fmt.Errorf("redis: set reference %s: %w", symbol, err)
	}
	return nil
}
