package feed

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// ReferenceFeed drains the oracle stream into the reference cache. It
// runs for the whole process so every period boundary is observed, not
// just the ones a symbol loop happens to be watching.
type ReferenceFeed struct {
	stream domain.ReferenceStream
	cache  *Cache
	mirror domain.QuoteMirror // may be nil
	logger *slog.Logger
}

// NewReferenceFeed creates a reference feed writing into cache.
func NewReferenceFeed(stream domain.ReferenceStream, cache *Cache, mirror domain.QuoteMirror, logger *slog.Logger) *ReferenceFeed {
	return &ReferenceFeed{
		stream: stream,
		cache:  cache,
		mirror: mirror,
		logger: logger.With(slog.String("component", "reference_feed")),
	}
}

// Run pumps oracle ticks into the cache until ctx is done.
func (f *ReferenceFeed) Run(ctx context.Context) error {
	ticks := make(chan domain.ReferenceTick, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- f.stream.Run(ctx, ticks)
	}()

	f.logger.Info("reference feed started")
	defer f.logger.Info("reference feed stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case tick := <-ticks:
			filled := f.cache.ApplyReference(tick.Symbol, tick.At.Unix(), tick.Price)
			if filled > 0 {
				f.logger.Info("reference price captured",
					slog.String("symbol", tick.Symbol),
					slog.Float64("price", tick.Price),
					slog.Int("slots", filled))
				if f.mirror != nil {
					if err := f.mirror.SetReference(ctx, tick.Symbol, tick.Price); err != nil {
						f.logger.Debug("reference mirror write failed",
							slog.String("symbol", tick.Symbol),
							slog.String("error", err.Error()))
					}
				}
			}
		}
	}
}
