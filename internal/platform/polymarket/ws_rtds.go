package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

const (
	// chainlinkTopic is the real-time data socket topic carrying oracle
	// spot prices.
	chainlinkTopic = "crypto_prices_chainlink"

	// rtdsPingPeriod keeps the socket alive; the server drops quiet peers.
	rtdsPingPeriod = 5 * time.Second

	// rtdsReconnectDelay is the pause before redialing after a drop.
	rtdsReconnectDelay = 5 * time.Second
)

// RTDSStream streams Chainlink oracle ticks from the Polymarket real-time
// data socket. The topic has no server-side symbol filter, so the stream
// subscribes to everything and filters locally. It implements
// domain.ReferenceStream.
type RTDSStream struct {
	url     string
	symbols map[string]struct{}
	logger  *slog.Logger
}

// NewRTDSStream creates an oracle tick stream.
//
// url is the real-time data socket endpoint,
// e.g. "wss://ws-live-data.polymarket.com". symbols are the bot's symbol
// keys ("btc", "eth"); ticks for any other pair are dropped.
func NewRTDSStream(url string, symbols []string, logger *slog.Logger) *RTDSStream {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[strings.ToLower(s)] = struct{}{}
	}
	return &RTDSStream{
		url:     url,
		symbols: set,
		logger:  logger.With(slog.String("component", "rtds_ws")),
	}
}

// Run connects and emits oracle ticks on out until ctx is done, redialing
// after drops.
func (s *RTDSStream) Run(ctx context.Context, out chan<- domain.ReferenceTick) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.logger.Info("connecting to rtds websocket",
			slog.String("url", s.url),
			slog.String("topic", chainlinkTopic))

		err := s.streamConn(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("rtds websocket dropped",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", rtdsReconnectDelay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rtdsReconnectDelay):
		}
	}
}

var _ domain.ReferenceStream = (*RTDSStream)(nil)

func (s *RTDSStream) streamConn(ctx context.Context, out chan<- domain.ReferenceTick) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub, err := json.Marshal(rtdsSubscribeCmd{
		Action: "subscribe",
		Subscriptions: []rtdsTopicEntry{
			{Topic: chainlinkTopic, Type: "*", Filters: ""},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("subscribed to oracle topic", slog.Int("symbols", len(s.symbols)))

	// WriteControl is safe alongside the pong replies gorilla sends from
	// the read side.
	go func() {
		ticker := time.NewTicker(rtdsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		s.handleFrame(ctx, raw, out)
	}
}

func (s *RTDSStream) handleFrame(ctx context.Context, raw []byte, out chan<- domain.ReferenceTick) {
	var msg chainlinkMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Topic != chainlinkTopic || msg.Payload == nil {
		return
	}

	key := symbolKey(msg.Payload.Symbol)
	if _, want := s.symbols[key]; !want {
		return
	}

	tsSec := int64(msg.Payload.Timestamp)
	if tsSec > 1_000_000_000_000 {
		tsSec /= 1000
	}

	tick := domain.ReferenceTick{
		Symbol: key,
		Price:  float64(msg.Payload.Value),
		At:     time.Unix(tsSec, 0),
	}

	select {
	case out <- tick:
	case <-ctx.Done():
	}
}

// symbolKey maps an oracle pair like "BTC/USD" to the lowercase symbol key
// used throughout the bot ("btc"). Pairs without a slash map to the whole
// string.
func symbolKey(pair string) string {
	p := strings.ToLower(strings.TrimSpace(pair))
	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i]
	}
	return p
}
