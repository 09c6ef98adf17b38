package polymarket

import (
	"context"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// Venue bundles the Gamma and CLOB clients behind the read-side query
// interface used by market discovery and quote seeding. Slug lookups go to
// Gamma, everything keyed by condition id or token id goes to the CLOB.
type Venue struct {
	gamma *GammaClient
	clob  *ClobClient
}

// NewVenue creates a combined read-side view over both REST APIs.
func NewVenue(gamma *GammaClient, clob *ClobClient) *Venue {
	return &Venue{gamma: gamma, clob: clob}
}

func (v *Venue) MarketBySlug(ctx context.Context, slug string) (*domain.Market, error) {
	return v.gamma.MarketBySlug(ctx, slug)
}

func (v *Venue) MarketByConditionID(ctx context.Context, conditionID string) (*domain.Market, error) {
	return v.clob.MarketByConditionID(ctx, conditionID)
}

func (v *Venue) BookBestPrices(ctx context.Context, tokenID string) (domain.Quote, error) {
	return v.clob.BookBestPrices(ctx, tokenID)
}

var _ domain.VenueQuery = (*Venue)(nil)
