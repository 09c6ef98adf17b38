package domain

import "context"

// VenueQuery is read-only access to market metadata and order books.
type VenueQuery interface {
	MarketBySlug(ctx context.Context, slug string) (*Market, error)
	MarketByConditionID(ctx context.Context, conditionID string) (*Market, error)
	BookBestPrices(ctx context.Context, tokenID string) (Quote, error)
}

// OrderGateway places signed orders on the venue.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// SettlementGateway redeems winning positions on chain.
type SettlementGateway interface {
	Redeem(ctx context.Context, target RedemptionTarget) (string, error)
}

// BookQuote is one best-of-book update from the market stream.
type BookQuote struct {
	TokenID string
	Quote   Quote
}

// BookStream delivers best bid/ask updates for a token set. Subscribe
// blocks until ctx is done, reconnecting internally on stream errors.
type BookStream interface {
	Subscribe(ctx context.Context, tokenIDs []string, out chan<- BookQuote) error
}

// ReferenceStream delivers oracle spot ticks. Run blocks until ctx is
// done, reconnecting internally on stream errors.
type ReferenceStream interface {
	Run(ctx context.Context, out chan<- ReferenceTick) error
}
