// Package discovery resolves (symbol, tenor, period) triples to venue
// markets and their outcome tokens.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// BuildSlug returns the deterministic venue slug for an up/down market,
// e.g. "btc-updown-15m-1700000000".
func BuildSlug(symbol string, tenor domain.Tenor, periodStart int64) string {
	return fmt.Sprintf("%s-updown-%s-%d", strings.ToLower(symbol), tenor, periodStart)
}

// QuestionPrice extracts the price-to-beat embedded in a market
// question such as "Will Bitcoin be above $97,500 at 10:15 ET?".
// It locates the "above " marker (or a bare "$") and parses the
// following numeric literal with comma separators stripped.
func QuestionPrice(question string) (float64, bool) {
	lower := strings.ToLower(question)
	idx := strings.Index(lower, "above ")
	if idx < 0 {
		idx = strings.Index(lower, "$")
	}
	if idx < 0 {
		return 0, false
	}
	rest := question[idx:]

	start := -1
	for i, c := range rest {
		if c == '$' {
			start = i + 1
			break
		}
		if c >= '0' && c <= '9' {
			start = i
			break
		}
	}
	if start < 0 || start >= len(rest) {
		return 0, false
	}

	var b strings.Builder
	for _, c := range rest[start:] {
		if c >= '0' && c <= '9' || c == '.' {
			b.WriteRune(c)
			continue
		}
		if c == ',' {
			continue
		}
		break
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Service looks markets up on the venue.
type Service struct {
	venue  domain.VenueQuery
	logger *slog.Logger
}

func New(venue domain.VenueQuery, logger *slog.Logger) *Service {
	return &Service{
		venue:  venue,
		logger: logger.With(slog.String("component", "discovery")),
	}
}

// FindMarket resolves the up/down market for one period. A market that
// cannot be fetched, is inactive, or is already closed all come back as
// ErrNotFound: callers treat every one of those as "not yet tradeable"
// and retry on their own schedule.
func (s *Service) FindMarket(ctx context.Context, symbol string, tenor domain.Tenor, start time.Time) (*domain.Market, error) {
	slug := BuildSlug(symbol, tenor, start.Unix())
	m, err := s.venue.MarketBySlug(ctx, slug)
	if err != nil {
		s.logger.Debug("market lookup failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("discovery: market %s: %w", slug, domain.ErrNotFound)
	}
	if !m.Tradeable() {
		return nil, fmt.Errorf("discovery: market %s: %w", slug, domain.ErrNotFound)
	}
	if v, ok := QuestionPrice(m.Question); ok {
		m.Strike = &v
	}
	return m, nil
}

// OutcomeTokens fetches the market for conditionID and classifies its
// two tokens into the up and down legs.
func (s *Service) OutcomeTokens(ctx context.Context, conditionID string) (up, down domain.Token, err error) {
	m, err := s.venue.MarketByConditionID(ctx, conditionID)
	if err != nil {
		return domain.Token{}, domain.Token{}, fmt.Errorf("discovery: outcome tokens %s: %w", conditionID, err)
	}
	return ClassifyTokens(m)
}

// ClassifyTokens splits a market's tokens into up and down. It fails
// when either side cannot be classified from its outcome label.
func ClassifyTokens(m *domain.Market) (up, down domain.Token, err error) {
	var haveUp, haveDown bool
	for _, t := range m.Tokens {
		dir, ok := domain.DirectionOfOutcome(t.Outcome)
		if !ok {
			continue
		}
		switch dir {
		case domain.DirectionUp:
			up, haveUp = t, true
		case domain.DirectionDown:
			down, haveDown = t, true
		}
	}
	if !haveUp {
		return domain.Token{}, domain.Token{}, fmt.Errorf("discovery: market %s: up token not classified", m.ConditionID)
	}
	if !haveDown {
		return domain.Token{}, domain.Token{}, fmt.Errorf("discovery: market %s: down token not classified", m.ConditionID)
	}
	return up, down, nil
}
