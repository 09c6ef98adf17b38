package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second

	// marketReconnectDelay is the pause before redialing the market channel.
	marketReconnectDelay = 3 * time.Second

	// marketWSPath is appended to the subscriptions WebSocket base URL.
	marketWSPath = "ws/market"
)

// MarketStream streams best bid/ask updates for a set of asset ids from the
// CLOB market WebSocket. It implements domain.BookStream.
type MarketStream struct {
	baseURL string
	logger  *slog.Logger
}

// NewMarketStream creates a market channel stream.
//
// baseURL is the subscriptions WebSocket root,
// e.g. "wss://ws-subscriptions-clob.polymarket.com".
func NewMarketStream(baseURL string, logger *slog.Logger) *MarketStream {
	return &MarketStream{
		baseURL: baseURL,
		logger:  logger.With(slog.String("component", "market_ws")),
	}
}

// Subscribe connects, subscribes the token set, and emits top-of-book
// updates on out until ctx is done. Dropped connections redial after a
// fixed delay with the subscription replayed. Frames that carry no price on
// either side are not emitted.
func (s *MarketStream) Subscribe(ctx context.Context, tokenIDs []string, out chan<- domain.BookQuote) error {
	wsURL := strings.TrimSuffix(s.baseURL, "/") + "/" + marketWSPath

	sub, err := json.Marshal(marketSubscribeCmd{AssetIDs: tokenIDs, Type: "market"})
	if err != nil {
		return fmt.Errorf("polymarket/ws: marshal subscribe: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.logger.Info("connecting to market websocket",
			slog.String("url", wsURL),
			slog.Int("assets", len(tokenIDs)))

		err := s.streamConn(ctx, wsURL, sub, len(tokenIDs), out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("market websocket dropped",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", marketReconnectDelay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(marketReconnectDelay):
		}
	}
}

var _ domain.BookStream = (*MarketStream)(nil)

// streamConn runs a single connection: dial, subscribe, read until the
// connection fails or ctx ends.
func (s *MarketStream) streamConn(ctx context.Context, wsURL string, sub []byte, assets int, out chan<- domain.BookQuote) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Unblock the read when ctx ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("subscribed to market channel", slog.Int("assets", assets))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		s.handleFrame(ctx, raw, out)
	}
}

// handleFrame parses one market frame and emits quote updates. Heartbeat
// text and frames of unknown shape are dropped.
func (s *MarketStream) handleFrame(ctx context.Context, raw []byte, out chan<- domain.BookQuote) {
	text := strings.TrimSpace(string(raw))
	if text == "PONG" || text == "pong" {
		return
	}

	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Debug("unparseable market frame", slog.String("error", err.Error()))
		return
	}

	switch env.EventType {
	case "book":
		var book wsBookEvent
		if err := json.Unmarshal(raw, &book); err != nil {
			s.logger.Debug("unparseable book frame", slog.String("error", err.Error()))
			return
		}
		s.emit(ctx, out, book.AssetID, domain.Quote{
			Bid: bestLevelPrice(book.bidLevels()),
			Ask: bestLevelPrice(book.askLevels()),
		})

	case "price_change":
		var pc wsPriceChangeEvent
		if err := json.Unmarshal(raw, &pc); err != nil {
			s.logger.Debug("unparseable price_change frame", slog.String("error", err.Error()))
			return
		}
		for _, item := range pc.PriceChanges {
			s.emit(ctx, out, item.AssetID, domain.Quote{
				Bid: parsePricePtr(item.BestBid),
				Ask: parsePricePtr(item.BestAsk),
			})
		}
	}
}

func (s *MarketStream) emit(ctx context.Context, out chan<- domain.BookQuote, tokenID string, q domain.Quote) {
	if q.Empty() {
		return
	}
	select {
	case out <- domain.BookQuote{TokenID: tokenID, Quote: q}:
	case <-ctx.Done():
	}
}

// bestLevelPrice returns the price of the first (best) level, or nil when
// the side is empty or unparseable.
func bestLevelPrice(levels []wsBookLevel) *float64 {
	if len(levels) == 0 {
		return nil
	}
	return parsePrice(levels[0].Price)
}

func parsePrice(s string) *float64 {
	p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &p
}

func parsePricePtr(s *string) *float64 {
	if s == nil {
		return nil
	}
	return parsePrice(*s)
}
