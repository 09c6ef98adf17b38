// Package feed maintains the in-process market data caches and the
// streaming collectors that fill them. The quote cache holds best
// bid/ask per token, the reference cache holds the captured open price
// per (symbol, tenor, period). Both are shared across all symbol loops
// and guarded for concurrent access; writers hold the lock only for
// the map mutation itself.
package feed

import (
	"sync"
	"time"

	"github.com/alanyoungcy/tenorarb/internal/clock"
	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// captureWindow is how long after a period start a reference tick is
// still accepted as that period's open price.
const captureWindow = 2 * time.Second

type refKey struct {
	symbol string
	tenor  domain.Tenor
	start  int64
}

// Cache is the dual price cache.
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
	refs   map[refKey]float64
}

func NewCache() *Cache {
	return &Cache{
		quotes: make(map[string]domain.Quote),
		refs:   make(map[refKey]float64),
	}
}

// placeholderQuote reports whether a candidate update looks like the
// venue's empty-book placeholder rather than real liquidity.
func placeholderQuote(bid, ask *float64) bool {
	switch {
	case bid != nil && ask != nil:
		return *bid < 0.05 && *ask > 0.95
	case bid != nil:
		return *bid < 0.05
	case ask != nil:
		return *ask > 0.95
	}
	return false
}

// ApplyQuote merges a best bid/ask update for a token and reports
// whether it was accepted. Empty and placeholder updates are rejected
// outright. A side missing from the update never clears the side
// already cached.
func (c *Cache) ApplyQuote(tokenID string, bid, ask *float64) bool {
	if bid == nil && ask == nil {
		return false
	}
	if placeholderQuote(bid, ask) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.quotes[tokenID]
	if bid != nil {
		v := *bid
		q.Bid = &v
	}
	if ask != nil {
		v := *ask
		q.Ask = &v
	}
	c.quotes[tokenID] = q
	return true
}

// Quote returns the cached best prices for a token.
func (c *Cache) Quote(tokenID string) (domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[tokenID]
	return q, ok
}

// BestAsk returns the cached best ask for a token, or nil.
func (c *Cache) BestAsk(tokenID string) *float64 {
	q, ok := c.Quote(tokenID)
	if !ok {
		return nil
	}
	return q.Ask
}

// ApplyReference routes one oracle tick into the reference slots of
// both tenors. A tick lands in a period's slot only when its timestamp
// falls inside the capture window right after that period starts, and
// only when the slot is still empty. Returns how many slots it filled.
func (c *Cache) ApplyReference(symbol string, tsSec int64, value float64) int {
	at := time.Unix(tsSec, 0)
	filled := 0
	for _, tenor := range []domain.Tenor{domain.Tenor15m, domain.Tenor5m} {
		start := clock.PeriodStart(at, tenor)
		if tsSec < start.Unix() || tsSec >= start.Unix()+int64(captureWindow/time.Second) {
			continue
		}
		if c.PutReference(symbol, tenor, start.Unix(), value) {
			filled++
		}
	}
	return filled
}

// PutReference records a period's reference price if none is recorded
// yet. First write wins; later writes are ignored even when the value
// differs. Reports whether the write took.
func (c *Cache) PutReference(symbol string, tenor domain.Tenor, periodStart int64, value float64) bool {
	k := refKey{symbol: symbol, tenor: tenor, start: periodStart}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.refs[k]; exists {
		return false
	}
	c.refs[k] = value
	return true
}

// Reference returns the captured reference price for one period.
func (c *Cache) Reference(symbol string, tenor domain.Tenor, periodStart int64) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.refs[refKey{symbol: symbol, tenor: tenor, start: periodStart}]
	return v, ok
}
