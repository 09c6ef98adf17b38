package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

func TestMarketBySlug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/events/slug/btc-updown-15m-1700000000":
			w.Write([]byte(`{
				"id": "evt-1",
				"slug": "btc-updown-15m-1700000000",
				"markets": [{
					"conditionId": "0xc0ffee",
					"id": "mkt-1",
					"question": "Will the price of BTC be above $97,500 at 10:15 AM ET?",
					"slug": "btc-updown-15m-1700000000",
					"endDateISO": "2026-08-25T14:15:00Z",
					"active": true,
					"closed": false,
					"negRisk": false
				}]
			}`))
		case "/events/slug/stringly-active":
			w.Write([]byte(`{"markets":[{"conditionId":"0xbeef","question":"q","active":"true","closed":false}]}`))
		case "/events/slug/empty-event":
			w.Write([]byte(`{"id":"evt-2","markets":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"event not found"}`))
		}
	}))
	defer srv.Close()

	g := NewGammaClient(srv.URL)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		m, err := g.MarketBySlug(ctx, "btc-updown-15m-1700000000")
		require.NoError(t, err)
		require.Equal(t, "0xc0ffee", m.ConditionID)
		require.Equal(t, "btc-updown-15m-1700000000", m.Slug)
		require.True(t, m.Tradeable())
		require.False(t, m.NegRisk)
	})

	t.Run("active as string", func(t *testing.T) {
		m, err := g.MarketBySlug(ctx, "stringly-active")
		require.NoError(t, err)
		require.True(t, m.Active)
		// Slug backfilled from the lookup when the payload omits it.
		require.Equal(t, "stringly-active", m.Slug)
	})

	t.Run("event without markets", func(t *testing.T) {
		_, err := g.MarketBySlug(ctx, "empty-event")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("missing event", func(t *testing.T) {
		_, err := g.MarketBySlug(ctx, "btc-updown-15m-99")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}
