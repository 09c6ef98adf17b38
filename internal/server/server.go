// Package server exposes a small HTTP surface for liveness checks and
// run status. It reports; it never steers the engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/tenorarb/internal/domain"
	"github.com/alanyoungcy/tenorarb/internal/strategy"
)

// StatusSource reports the engine's run state. *strategy.Orchestrator
// satisfies it.
type StatusSource interface {
	Status() []strategy.SymbolStatus
	CumulativePnL() float64
	TradeCount() int
	Simulation() bool
	StartedAt() time.Time
}

// Config holds the HTTP server configuration.
type Config struct {
	ListenAddr string
}

// Server is the status HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with its routes registered. journal may be nil
// when no trade store is configured; /api/trades then reports 503.
func New(cfg Config, src StatusSource, journal domain.TradeJournal, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      newHandler(src, journal, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return <-errCh
}

type statusResponse struct {
	Status        string                  `json:"status"`
	Simulation    bool                    `json:"simulation"`
	StartedAt     time.Time               `json:"started_at"`
	UptimeSecs    int64                   `json:"uptime_secs"`
	Symbols       []strategy.SymbolStatus `json:"symbols"`
	CumulativePnL float64                 `json:"cumulative_pnl"`
	TradeCount    int                     `json:"trade_count"`
}

type tradeView struct {
	TradeID    string    `json:"trade_id"`
	Symbol     string    `json:"symbol"`
	PlacedAt   time.Time `json:"placed_at"`
	ResolvedAt time.Time `json:"resolved_at"`
	Simulated  bool      `json:"simulated"`
	Size       float64   `json:"size"`
	Cost       float64   `json:"cost"`
	Payout     float64   `json:"payout"`
	PnL        float64   `json:"pnl"`
	Won15      bool      `json:"won_15m"`
	Won5       bool      `json:"won_5m"`
	Abandoned  bool      `json:"abandoned,omitempty"`
}

func toTradeView(out domain.RoundOutcome) tradeView {
	return tradeView{
		TradeID:    out.Trade.ID,
		Symbol:     out.Symbol,
		PlacedAt:   out.Trade.PlacedAt.UTC(),
		ResolvedAt: out.ResolvedAt.UTC(),
		Simulated:  out.Trade.Simulated,
		Size:       out.Trade.Size,
		Cost:       out.Result.Cost,
		Payout:     out.Result.Payout,
		PnL:        out.Result.PnL,
		Won15:      out.Result.Won15,
		Won5:       out.Result.Won5,
		Abandoned:  out.Abandoned,
	}
}

type tradesResponse struct {
	Trades      []tradeView `json:"trades"`
	RealisedPnL float64     `json:"realised_pnl"`
	Since       *time.Time  `json:"since,omitempty"`
}

func newHandler(src StatusSource, journal domain.TradeJournal, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		started := src.StartedAt()
		writeJSON(w, http.StatusOK, statusResponse{
			Status:        "ok",
			Simulation:    src.Simulation(),
			StartedAt:     started.UTC(),
			UptimeSecs:    int64(time.Since(started).Seconds()),
			Symbols:       src.Status(),
			CumulativePnL: src.CumulativePnL(),
			TradeCount:    src.TradeCount(),
		})
	})

	mux.HandleFunc("GET /api/trades", func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "trade journal not configured"})
			return
		}

		opts := domain.ListOpts{Limit: 50}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			opts.Limit = n
		}
		var since time.Time
		if raw := r.URL.Query().Get("since"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC 3339"})
				return
			}
			since = t
			opts.Since = &t
		}

		trades, err := journal.ListRecent(r.Context(), opts)
		if err != nil {
			logger.Error("list trades", slog.Any("error", err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		pnl, err := journal.SumPnL(r.Context(), since)
		if err != nil {
			logger.Error("sum pnl", slog.Any("error", err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

		resp := tradesResponse{Trades: make([]tradeView, 0, len(trades)), RealisedPnL: pnl, Since: opts.Since}
		for _, out := range trades {
			resp.Trades = append(resp.Trades, toTradeView(out))
		}
		writeJSON(w, http.StatusOK, resp)
	})

	return logging(logger)(mux)
}

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// logging wraps a handler with structured request logs.
func logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.status),
				slog.Duration("duration", time.Since(start)))
		})
	}
}

// statusWriter captures the response code for request logs.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
