package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tenorarb/internal/crypto"
	"github.com/alanyoungcy/tenorarb/internal/domain"
)

func TestLimitOrderAmounts(t *testing.T) {
	tests := []struct {
		name      string
		side      domain.OrderSide
		price     float64
		size      float64
		wantMaker string
		wantTaker string
		wantErr   bool
	}{
		{
			name:      "buy at 0.45 for 10 shares",
			side:      domain.OrderSideBuy,
			price:     0.45,
			size:      10,
			wantMaker: "4500000",
			wantTaker: "10000000",
		},
		{
			name:      "buy at 4-decimal price",
			side:      domain.OrderSideBuy,
			price:     0.4567,
			size:      10,
			wantMaker: "4567000",
			wantTaker: "10000000",
		},
		{
			name:      "sell swaps maker and taker",
			side:      domain.OrderSideSell,
			price:     0.45,
			size:      10,
			wantMaker: "10000000",
			wantTaker: "4500000",
		},
		{
			name:      "fractional size keeps product exact",
			side:      domain.OrderSideBuy,
			price:     0.33,
			size:      7.5,
			wantMaker: "2475000",
			wantTaker: "7500000",
		},
		{name: "price at 0 rejected", side: domain.OrderSideBuy, price: 0, size: 10, wantErr: true},
		{name: "price at 1 rejected", side: domain.OrderSideBuy, price: 1, size: 10, wantErr: true},
		{name: "zero size rejected", side: domain.OrderSideBuy, price: 0.5, size: 0, wantErr: true},
		{name: "negative size rejected", side: domain.OrderSideBuy, price: 0.5, size: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maker, taker, err := limitOrderAmounts(tt.side, tt.price, tt.size)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidOrder)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantMaker, maker.String())
			require.Equal(t, tt.wantTaker, taker.String())
		})
	}
}

func TestParseDecimalToUnits(t *testing.T) {
	tests := []struct {
		in       string
		decimals int
		want     string
		wantErr  bool
	}{
		{in: "0.45", decimals: 6, want: "450000"},
		{in: "10", decimals: 6, want: "10000000"},
		{in: "10.00", decimals: 6, want: "10000000"},
		{in: "0.123456789", decimals: 6, want: "123456"}, // extra precision truncated
		{in: ".5", decimals: 6, want: "500000"},
		{in: "0", decimals: 6, want: "0"},
		{in: "", decimals: 6, wantErr: true},
		{in: "-1", decimals: 6, wantErr: true},
		{in: "1.2.3", decimals: 6, wantErr: true},
		{in: "abc", decimals: 6, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDecimalToUnits(tt.in, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got.String())
		})
	}
}

func TestPlaceOrder(t *testing.T) {
	var gotBody signedOrderPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/order", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"success":true,"orderID":"0xoid","status":"live"}`))
	}))
	defer srv.Close()

	signer := testSigner(t)
	auth := &crypto.HMACAuth{Key: "owner-key", Secret: "c2VjcmV0", Passphrase: "p"}
	clob := NewClobClient(srv.URL, signer, auth)
	placer := NewOrderPlacer(clob, signer, "", 0, 137)

	res, err := placer.PlaceOrder(context.Background(), domain.OrderRequest{
		TokenID: "123456",
		Side:    domain.OrderSideBuy,
		Price:   0.45,
		Size:    10,
	})
	require.NoError(t, err)
	require.True(t, res.Filled())
	require.Equal(t, "0xoid", res.OrderID)

	require.Equal(t, "owner-key", gotBody.Owner)
	require.Equal(t, "GTC", gotBody.OrderType)
	require.False(t, gotBody.DeferExec)

	o := gotBody.Order
	require.Equal(t, "123456", o.TokenID)
	require.Equal(t, "BUY", o.Side)
	require.Equal(t, "4500000", o.MakerAmount)
	require.Equal(t, "10000000", o.TakerAmount)
	require.Equal(t, "0", o.Nonce)
	require.Equal(t, "0", o.Expiration)
	require.Equal(t, "0", o.FeeRateBps)
	require.Equal(t, 0, o.SignatureType)
	require.Equal(t, signer.Address().Hex(), o.Maker)
	require.Equal(t, signer.Address().Hex(), o.Signer)
	require.Equal(t, zeroAddressHex, o.Taker)
	require.True(t, strings.HasPrefix(o.Signature, "0x"))
	require.Len(t, strings.TrimPrefix(o.Signature, "0x"), 130)
}

func TestPlaceOrderUsesFunderAsMaker(t *testing.T) {
	var gotBody signedOrderPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"success":true,"orderID":"0xoid"}`))
	}))
	defer srv.Close()

	signer := testSigner(t)
	auth := &crypto.HMACAuth{Key: "k", Secret: "c2VjcmV0", Passphrase: "p"}
	clob := NewClobClient(srv.URL, signer, auth)

	proxy := "0x00000000000000000000000000000000DeaDBeef"
	placer := NewOrderPlacer(clob, signer, proxy, 1, 137)

	_, err := placer.PlaceOrder(context.Background(), domain.OrderRequest{
		TokenID: "777",
		Side:    domain.OrderSideBuy,
		Price:   0.5,
		Size:    5,
	})
	require.NoError(t, err)

	require.Equal(t, common.HexToAddress(proxy).Hex(), gotBody.Order.Maker)
	require.Equal(t, signer.Address().Hex(), gotBody.Order.Signer)
	require.Equal(t, 1, gotBody.Order.SignatureType)
}

func TestPlaceOrderWithoutCredentials(t *testing.T) {
	clob := NewClobClient("http://unused", testSigner(t), nil)
	placer := NewOrderPlacer(clob, testSigner(t), "", 0, 137)

	_, err := placer.PlaceOrder(context.Background(), domain.OrderRequest{
		TokenID: "1", Side: domain.OrderSideBuy, Price: 0.5, Size: 1,
	})
	require.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestPlaceOrderInvalidPrice(t *testing.T) {
	signer := testSigner(t)
	auth := &crypto.HMACAuth{Key: "k", Secret: "c2VjcmV0", Passphrase: "p"}
	clob := NewClobClient("http://unused", signer, auth)
	placer := NewOrderPlacer(clob, signer, "", 0, 137)

	_, err := placer.PlaceOrder(context.Background(), domain.OrderRequest{
		TokenID: "1", Side: domain.OrderSideBuy, Price: 1.2, Size: 1,
	})
	require.ErrorIs(t, err, domain.ErrInvalidOrder)
}
