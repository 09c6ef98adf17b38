package domain

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
	OrderTypeFAK OrderType = "FAK" // Fill-And-Kill
)

// OrderRequest is a limit order to place on the venue.
type OrderRequest struct {
	TokenID string
	Side    OrderSide
	Price   float64
	Size    float64
	NegRisk bool
}

// OrderResult wraps the venue response after order submission.
type OrderResult struct {
	OrderID  string
	Success  bool
	ErrorMsg string
}

// Filled reports whether the venue accepted the order without error.
func (r OrderResult) Filled() bool {
	return r.Success && r.ErrorMsg == ""
}
