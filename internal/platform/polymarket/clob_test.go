package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tenorarb/internal/crypto"
	"github.com/alanyoungcy/tenorarb/internal/domain"
)

const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.NewSigner(testPrivateKey, 137)
	require.NoError(t, err)
	return s
}

func TestMarketByConditionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets/0xc0ffee":
			w.Write([]byte(`{
				"condition_id": "0xc0ffee",
				"question": "Will the price of BTC be above $97,500 at 10:15 AM ET?",
				"tokens": [
					{"token_id": "111", "outcome": "Up", "winner": true},
					{"token_id": "222", "outcome": "Down", "winner": false}
				],
				"active": true,
				"closed": true,
				"end_date_iso": "2026-08-25T14:15:00Z",
				"neg_risk": false,
				"minimum_tick_size": 0.01
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"market not found"}`))
		}
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil, nil)
	ctx := context.Background()

	t.Run("resolved market with tokens", func(t *testing.T) {
		m, err := c.MarketByConditionID(ctx, "0xc0ffee")
		require.NoError(t, err)
		require.Equal(t, "0xc0ffee", m.ConditionID)
		require.Len(t, m.Tokens, 2)
		require.True(t, m.Resolved())

		win, ok := m.WinningToken()
		require.True(t, ok)
		require.Equal(t, "111", win.ID)
		require.Equal(t, 0.01, m.TickSize)
	})

	t.Run("missing market", func(t *testing.T) {
		_, err := c.MarketByConditionID(ctx, "0xmissing")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestBookBestPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/book", r.URL.Path)
		switch r.URL.Query().Get("token_id") {
		case "touch-last":
			// Live serving order: bids ascend, asks descend, touch at
			// the end of each side.
			w.Write([]byte(`{"bids":[{"price":"0.40","size":"50"},{"price":"0.44","size":"100"}],"asks":[{"price":"0.52","size":"30"},{"price":"0.47","size":"80"}]}`))
		case "touch-first":
			w.Write([]byte(`{"bids":[{"price":"0.44","size":"100"},{"price":"0.40","size":"50"}],"asks":[{"price":"0.47","size":"80"},{"price":"0.52","size":"30"}]}`))
		case "bid-only":
			w.Write([]byte(`{"bids":[{"price":"0.30","size":"10"}],"asks":[]}`))
		case "empty":
			w.Write([]byte(`{"bids":[],"asks":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, nil, nil)
	ctx := context.Background()

	t.Run("touch served last", func(t *testing.T) {
		q, err := c.BookBestPrices(ctx, "touch-last")
		require.NoError(t, err)
		require.NotNil(t, q.Bid)
		require.NotNil(t, q.Ask)
		require.Equal(t, 0.44, *q.Bid)
		require.Equal(t, 0.47, *q.Ask)
	})

	t.Run("touch served first", func(t *testing.T) {
		q, err := c.BookBestPrices(ctx, "touch-first")
		require.NoError(t, err)
		require.Equal(t, 0.44, *q.Bid)
		require.Equal(t, 0.47, *q.Ask)
	})

	t.Run("no asks", func(t *testing.T) {
		q, err := c.BookBestPrices(ctx, "bid-only")
		require.NoError(t, err)
		require.NotNil(t, q.Bid)
		require.Nil(t, q.Ask)
		require.False(t, q.HasAsk())
	})

	t.Run("empty book", func(t *testing.T) {
		q, err := c.BookBestPrices(ctx, "empty")
		require.NoError(t, err)
		require.True(t, q.Empty())
	})
}

func TestPostOrderAppliesL2Headers(t *testing.T) {
	var gotHeaders http.Header
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/order", r.URL.Path)
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"success":true,"orderID":"0xoid","status":"live"}`))
	}))
	defer srv.Close()

	auth := &crypto.HMACAuth{Key: "api-key", Secret: "c2VjcmV0", Passphrase: "phrase"}
	c := NewClobClient(srv.URL, testSigner(t), auth)

	res, err := c.PostOrder(context.Background(), signedOrderPayload{
		Owner:     "api-key",
		OrderType: "GTC",
		Order:     orderJSON{TokenID: "123", Side: "BUY"},
	})
	require.NoError(t, err)
	require.True(t, res.Filled())
	require.Equal(t, "0xoid", res.OrderID)

	require.Equal(t, "api-key", gotHeaders.Get("POLY_API_KEY"))
	require.Equal(t, "phrase", gotHeaders.Get("POLY_PASSPHRASE"))
	require.NotEmpty(t, gotHeaders.Get("POLY_SIGNATURE"))
	require.NotEmpty(t, gotHeaders.Get("POLY_TIMESTAMP"))
	require.NotEmpty(t, gotHeaders.Get("POLY_ADDRESS"))

	require.Equal(t, "api-key", gotBody["owner"])
	require.Equal(t, "GTC", gotBody["orderType"])
}

func TestPostOrderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"errorMsg":"not enough balance / allowance"}`))
	}))
	defer srv.Close()

	auth := &crypto.HMACAuth{Key: "k", Secret: "c2VjcmV0", Passphrase: "p"}
	c := NewClobClient(srv.URL, testSigner(t), auth)

	res, err := c.PostOrder(context.Background(), signedOrderPayload{})
	require.Error(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.ErrorMsg, "not enough balance")
}

func TestDeriveAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/derive-api-key", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("POLY_ADDRESS"))
		require.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		require.NotEmpty(t, r.Header.Get("POLY_TIMESTAMP"))
		require.Equal(t, "0", r.Header.Get("POLY_NONCE"))
		w.Write([]byte(`{"apiKey":"derived-key","secret":"c2VjcmV0","passphrase":"pp"}`))
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, testSigner(t), nil)
	require.False(t, c.Authenticated())

	require.NoError(t, c.DeriveAPIKey(context.Background()))
	require.True(t, c.Authenticated())
	require.Equal(t, "derived-key", c.APIKey())
}

func TestDeriveAPIKeyCreateFallback(t *testing.T) {
	var createCalled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/derive-api-key":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"Unable to derive api key"}`))
		case "/auth/api-key":
			createCalled = true
			require.Equal(t, http.MethodPost, r.Method)
			require.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
			w.Write([]byte(`{"apiKey":"created-key","secret":"c2VjcmV0","passphrase":"pp"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, testSigner(t), nil)
	require.NoError(t, c.DeriveAPIKey(context.Background()))
	require.True(t, createCalled)
	require.Equal(t, "created-key", c.APIKey())
}

func TestDeriveAPIKeyBothEndpointsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid signature"}`))
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, testSigner(t), nil)
	err := c.DeriveAPIKey(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "create api key")
	require.False(t, c.Authenticated())
}

func TestDeriveAPIKeyWithoutSigner(t *testing.T) {
	c := NewClobClient("http://unused", nil, nil)
	err := c.DeriveAPIKey(context.Background())
	require.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestCheckHTTPStatus(t *testing.T) {
	require.NoError(t, checkHTTPStatus(200, nil))
	require.NoError(t, checkHTTPStatus(204, nil))
	require.ErrorIs(t, checkHTTPStatus(404, []byte("x")), domain.ErrNotFound)
	require.ErrorIs(t, checkHTTPStatus(401, nil), domain.ErrUnauthorized)
	require.ErrorIs(t, checkHTTPStatus(403, nil), domain.ErrUnauthorized)
	require.ErrorIs(t, checkHTTPStatus(429, nil), domain.ErrRateLimited)
	require.Error(t, checkHTTPStatus(500, []byte("boom")))
}
