package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tenorarb/internal/domain"
	"github.com/alanyoungcy/tenorarb/internal/strategy"
)

type fakeSource struct {
	statuses []strategy.SymbolStatus
	pnl      float64
	trades   int
	sim      bool
	started  time.Time
}

func (f *fakeSource) Status() []strategy.SymbolStatus { return f.statuses }
func (f *fakeSource) CumulativePnL() float64          { return f.pnl }
func (f *fakeSource) TradeCount() int                 { return f.trades }
func (f *fakeSource) Simulation() bool                { return f.sim }
func (f *fakeSource) StartedAt() time.Time            { return f.started }

type fakeJournal struct {
	outcomes []domain.RoundOutcome
	pnl      float64
	gotOpts  domain.ListOpts
	gotSince time.Time
}

func (f *fakeJournal) RecordTrade(ctx context.Context, rec domain.TradeRecord) (int64, error) {
	return 0, nil
}

func (f *fakeJournal) RecordOutcome(ctx context.Context, tradeID int64, out domain.RoundOutcome) error {
	return nil
}

func (f *fakeJournal) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.RoundOutcome, error) {
	f.gotOpts = opts
	return f.outcomes, nil
}

func (f *fakeJournal) SumPnL(ctx context.Context, since time.Time) (float64, error) {
	f.gotSince = since
	return f.pnl, nil
}

func testHandler(src StatusSource, journal domain.TradeJournal) http.Handler {
	return newHandler(src, journal, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHealthz(t *testing.T) {
	ts := httptest.NewServer(testHandler(&fakeSource{}, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestStatusEndpoint(t *testing.T) {
	src := &fakeSource{
		statuses: []strategy.SymbolStatus{
			{Symbol: "btc", State: "trading"},
			{Symbol: "eth", State: "waiting_overlap"},
		},
		pnl:     10.8,
		trades:  3,
		sim:     true,
		started: time.Now().Add(-90 * time.Second),
	}
	ts := httptest.NewServer(testHandler(src, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.True(t, body.Simulation)
	require.Equal(t, src.statuses, body.Symbols)
	require.InDelta(t, 10.8, body.CumulativePnL, 1e-9)
	require.Equal(t, 3, body.TradeCount)
	require.GreaterOrEqual(t, body.UptimeSecs, int64(90))
}

func TestTradesEndpoint(t *testing.T) {
	placed := time.Date(2026, 8, 25, 14, 11, 0, 0, time.UTC)
	journal := &fakeJournal{
		outcomes: []domain.RoundOutcome{{
			Symbol: "btc",
			Trade: domain.TradeRecord{
				ID:        "trade-1",
				Symbol:    "btc",
				Size:      20,
				Simulated: true,
				PlacedAt:  placed,
			},
			Result:     domain.PnLResult{Cost: 9.2, Payout: 20, PnL: 10.8, Won15: true, Won5: true},
			ResolvedAt: placed.Add(5 * time.Minute),
		}},
		pnl: 10.8,
	}
	ts := httptest.NewServer(testHandler(&fakeSource{}, journal))
	defer ts.Close()

	t.Run("defaults", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/trades")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body tradesResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Trades, 1)
		require.Equal(t, "trade-1", body.Trades[0].TradeID)
		require.True(t, body.Trades[0].Won15)
		require.InDelta(t, 10.8, body.Trades[0].PnL, 1e-9)
		require.InDelta(t, 10.8, body.RealisedPnL, 1e-9)
		require.Nil(t, body.Since)
		require.Equal(t, 50, journal.gotOpts.Limit)
		require.True(t, journal.gotSince.IsZero())
	})

	t.Run("limit and since", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/trades?limit=5&since=2026-08-25T00:00:00Z")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, 5, journal.gotOpts.Limit)
		require.NotNil(t, journal.gotOpts.Since)
		require.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), journal.gotSince)
	})

	t.Run("bad limit", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/trades?limit=nope")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad since", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/trades?since=yesterday")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestTradesEndpointWithoutJournal(t *testing.T) {
	ts := httptest.NewServer(testHandler(&fakeSource{}, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/trades")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body["error"], "not configured")
}

func TestUnknownRouteAndMethod(t *testing.T) {
	ts := httptest.NewServer(testHandler(&fakeSource{}, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/markets")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/status", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
