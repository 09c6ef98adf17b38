package feed

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// BookFeed drains a market stream into the quote cache for the lifetime
// of one trading round. Each symbol loop runs its own feed scoped to the
// round's four outcome tokens.
type BookFeed struct {
	stream domain.BookStream
	venue  domain.VenueQuery
	cache  *Cache
	mirror domain.QuoteMirror // may be nil
	logger *slog.Logger
}

// NewBookFeed creates a book feed writing into cache. Accepted updates
// are additionally written through to mirror when one is configured.
func NewBookFeed(stream domain.BookStream, venue domain.VenueQuery, cache *Cache, mirror domain.QuoteMirror, logger *slog.Logger) *BookFeed {
	return &BookFeed{
		stream: stream,
		venue:  venue,
		cache:  cache,
		mirror: mirror,
		logger: logger.With(slog.String("component", "book_feed")),
	}
}

// Run subscribes the token set and applies every update to the cache
// until ctx is done. The stream reconnects internally, so Run returning
// means the round is over.
func (f *BookFeed) Run(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		f.logger.Info("no tokens to subscribe, exiting")
		return nil
	}

	quotes := make(chan domain.BookQuote, 256)
	errc := make(chan error, 1)
	go func() {
		errc <- f.stream.Subscribe(ctx, tokenIDs, quotes)
	}()

	f.logger.Info("book feed started", slog.Int("assets", len(tokenIDs)))
	defer f.logger.Info("book feed stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case q := <-quotes:
			if f.cache.ApplyQuote(q.TokenID, q.Quote.Bid, q.Quote.Ask) {
				f.mirrorQuote(ctx, q.TokenID)
			}
		}
	}
}

// mirrorQuote writes the merged cache entry for a token through to the
// ops mirror. Best effort.
func (f *BookFeed) mirrorQuote(ctx context.Context, tokenID string) {
	if f.mirror == nil {
		return
	}
	q, ok := f.cache.Quote(tokenID)
	if !ok {
		return
	}
	if err := f.mirror.SetQuote(ctx, tokenID, q); err != nil {
		f.logger.Debug("quote mirror write failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()))
	}
}

// Seed primes the cache over REST so the trading loop sees prices before
// the first stream frame lands. Fetch failures are logged and skipped;
// the stream will fill the gap.
func (f *BookFeed) Seed(ctx context.Context, tokenIDs []string) {
	for _, id := range tokenIDs {
		q, err := f.venue.BookBestPrices(ctx, id)
		if err != nil {
			f.logger.Debug("book seed fetch failed",
				slog.String("token_id", id),
				slog.String("error", err.Error()))
			continue
		}
		f.cache.ApplyQuote(id, q.Bid, q.Ask)
	}
}
