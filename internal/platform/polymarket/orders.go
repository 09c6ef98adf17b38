package polymarket

import (
	"context"
	"fmt"
	"math/big"
	"math/rand/v2"
	"strings"

	orderbuilder "github.com/polymarket/go-order-utils/pkg/builder"
	ordermodel "github.com/polymarket/go-order-utils/pkg/model"

	"github.com/alanyoungcy/tenorarb/internal/crypto"
	"github.com/alanyoungcy/tenorarb/internal/domain"
)

const (
	zeroAddressHex = "0x0000000000000000000000000000000000000000"

	// USDC and outcome tokens both use 6 decimals on Polygon.
	collateralDecimals = 6
)

// signedOrderPayload is the JSON body POSTed to /order.
type signedOrderPayload struct {
	DeferExec bool      `json:"deferExec"`
	Order     orderJSON `json:"order"`
	Owner     string    `json:"owner"`
	OrderType string    `json:"orderType"`
}

type orderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// OrderPlacer signs and submits GTC limit orders through the CLOB API. It
// implements domain.OrderGateway.
//
// funder is the address that holds the collateral: the proxy wallet when one
// is configured, otherwise the signer's own address. sigType selects the
// exchange signature scheme (0 EOA, 1 Polymarket proxy, 2 Gnosis Safe).
type OrderPlacer struct {
	clob    *ClobClient
	signer  *crypto.Signer
	funder  string
	sigType int
	chainID int64
	saltGen func() int64
}

// NewOrderPlacer creates an order gateway bound to an authenticated CLOB
// client.
func NewOrderPlacer(clob *ClobClient, signer *crypto.Signer, funder string, sigType int, chainID int64) *OrderPlacer {
	return &OrderPlacer{
		clob:    clob,
		signer:  signer,
		funder:  funder,
		sigType: sigType,
		chainID: chainID,
		saltGen: func() int64 { return rand.Int64() },
	}
}

// PlaceOrder builds, signs, and posts a limit order. The venue's rejection
// verdict comes back as a result with Success=false plus an error.
func (p *OrderPlacer) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if p.signer == nil || !p.clob.Authenticated() {
		return domain.OrderResult{}, fmt.Errorf("polymarket/orders: place order: %w", domain.ErrNotConfigured)
	}

	makerAmount, takerAmount, err := limitOrderAmounts(req.Side, req.Price, req.Size)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/orders: %w", err)
	}

	side := ordermodel.BUY
	if req.Side == domain.OrderSideSell {
		side = ordermodel.SELL
	}

	maker := p.funder
	if maker == "" {
		maker = p.signer.Address().Hex()
	}

	od := &ordermodel.OrderData{
		Maker:         maker,
		Taker:         zeroAddressHex,
		TokenId:       req.TokenID,
		MakerAmount:   makerAmount.String(),
		TakerAmount:   takerAmount.String(),
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        p.signer.Address().Hex(),
		Expiration:    "0",
		Side:          side,
		SignatureType: ordermodel.SignatureType(p.sigType),
	}

	contract := ordermodel.CTFExchange
	if req.NegRisk {
		contract = ordermodel.NegRiskCTFExchange
	}

	builder := orderbuilder.NewExchangeOrderBuilderImpl(big.NewInt(p.chainID), p.saltGen)
	signed, err := builder.BuildSignedOrder(p.signer.PrivateKey(), od, contract)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/orders: %w: %v", domain.ErrSigningFailed, err)
	}

	payload := signedOrderPayload{
		DeferExec: false,
		Owner:     p.clob.APIKey(),
		OrderType: string(domain.OrderTypeGTC),
		Order: orderJSON{
			Salt:          signed.Salt.Int64(),
			Maker:         signed.Maker.Hex(),
			Signer:        signed.Signer.Hex(),
			Taker:         signed.Taker.Hex(),
			TokenID:       signed.TokenId.String(),
			MakerAmount:   signed.MakerAmount.String(),
			TakerAmount:   signed.TakerAmount.String(),
			Expiration:    signed.Expiration.String(),
			Nonce:         signed.Nonce.String(),
			FeeRateBps:    signed.FeeRateBps.String(),
			Side:          sideToString(signed.Side),
			SignatureType: int(signed.SignatureType.Int64()),
			Signature:     "0x" + fmt.Sprintf("%x", signed.Signature),
		},
	}

	return p.clob.PostOrder(ctx, payload)
}

var _ domain.OrderGateway = (*OrderPlacer)(nil)

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// limitOrderAmounts converts a price/size limit order into on-chain amounts.
// Price is quantized to 4 decimals and size to 2, which keeps the product
// exact within the 6-decimal token units:
//
//	BUY:  maker = collateral spent, taker = shares received
//	SELL: maker = shares sold, taker = collateral received
func limitOrderAmounts(side domain.OrderSide, price, size float64) (*big.Int, *big.Int, error) {
	if price <= 0 || price >= 1 {
		return nil, nil, fmt.Errorf("%w: price %.4f outside (0, 1)", domain.ErrInvalidOrder, price)
	}
	if size <= 0 {
		return nil, nil, fmt.Errorf("%w: size %.2f must be > 0", domain.ErrInvalidOrder, size)
	}

	priceUnits, err := parseDecimalToUnits(fmt.Sprintf("%.4f", price), collateralDecimals)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: price: %v", domain.ErrInvalidOrder, err)
	}
	sizeUnits, err := parseDecimalToUnits(fmt.Sprintf("%.2f", size), collateralDecimals)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: size: %v", domain.ErrInvalidOrder, err)
	}

	unitScale := new(big.Int).Exp(big.NewInt(10), big.NewInt(collateralDecimals), nil)
	collateral := new(big.Int).Mul(priceUnits, sizeUnits)
	collateral.Div(collateral, unitScale)
	if collateral.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: order value rounds to 0", domain.ErrInvalidOrder)
	}

	if side == domain.OrderSideSell {
		return sizeUnits, collateral, nil
	}
	return collateral, sizeUnits, nil
}

// parseDecimalToUnits parses a non-negative decimal string into integer
// units at the given number of decimals, truncating extra precision.
func parseDecimalToUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty decimal string")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative not supported: %q", s)
	}

	parts := strings.SplitN(s, ".", 3)
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid decimal: %q", s)
	}

	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" {
		whole = "0"
	}

	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	for len(frac) < decimals {
		frac += "0"
	}

	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	w, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, fmt.Errorf("invalid whole part: %q", s)
	}
	w.Mul(w, base)

	if frac != "" {
		f, ok := new(big.Int).SetString(frac, 10)
		if !ok {
			return nil, fmt.Errorf("invalid fractional part: %q", s)
		}
		w.Add(w, f)
	}
	return w, nil
}

func sideToString(v *big.Int) string {
	if v != nil && v.Int64() == int64(ordermodel.SELL) {
		return "SELL"
	}
	return "BUY"
}
