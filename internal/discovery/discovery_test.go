package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

func TestBuildSlug(t *testing.T) {
	tests := []struct {
		symbol string
		tenor  domain.Tenor
		start  int64
		want   string
	}{
		{"BTC", domain.Tenor15m, 1700000000, "btc-updown-15m-1700000000"},
		{"Eth", domain.Tenor5m, 1700000300, "eth-updown-5m-1700000300"},
		{"xrp", domain.Tenor15m, 0, "xrp-updown-15m-0"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, BuildSlug(tt.symbol, tt.tenor, tt.start))
	}
}

func TestQuestionPrice(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     float64
		ok       bool
	}{
		{"above marker with commas", "Will Bitcoin be above $97,500 at 10:15 ET?", 97500, true},
		{"dollar marker only", "BTC > $105,250.50 by close?", 105250.50, true},
		{"decimal price", "Will XRP be above $0.58 at 3:05 PM ET?", 0.58, true},
		{"above without dollar sign", "Will ETH close above 3200 today?", 3200, true},
		{"no marker", "Will it rain tomorrow?", 0, false},
		{"marker without number", "Priced in $ terms?", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := QuestionPrice(tt.question)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

type fakeVenue struct {
	bySlug   map[string]*domain.Market
	byCondID map[string]*domain.Market
	err      error
}

func (f *fakeVenue) MarketBySlug(_ context.Context, slug string) (*domain.Market, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("gamma: market %s: %w", slug, domain.ErrNotFound)
	}
	return m, nil
}

func (f *fakeVenue) MarketByConditionID(_ context.Context, id string) (*domain.Market, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.byCondID[id]
	if !ok {
		return nil, fmt.Errorf("clob: market %s: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

func (f *fakeVenue) BookBestPrices(context.Context, string) (domain.Quote, error) {
	return domain.Quote{}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFindMarket(t *testing.T) {
	start := time.Unix(1700000000, 0)
	active := &domain.Market{
		ConditionID: "0xabc",
		Slug:        "btc-updown-15m-1700000000",
		Question:    "Will Bitcoin be above $97,500 at 10:15 ET?",
		Active:      true,
	}

	t.Run("active market found with strike", func(t *testing.T) {
		svc := New(&fakeVenue{bySlug: map[string]*domain.Market{active.Slug: active}}, discard())
		m, err := svc.FindMarket(context.Background(), "BTC", domain.Tenor15m, start)
		require.NoError(t, err)
		require.Equal(t, "0xabc", m.ConditionID)
		require.NotNil(t, m.Strike)
		require.InDelta(t, 97500, *m.Strike, 1e-9)
	})

	t.Run("question without a price leaves strike unset", func(t *testing.T) {
		m := &domain.Market{ConditionID: "0xdef", Slug: active.Slug, Question: "Bitcoin Up or Down?", Active: true}
		svc := New(&fakeVenue{bySlug: map[string]*domain.Market{m.Slug: m}}, discard())
		got, err := svc.FindMarket(context.Background(), "BTC", domain.Tenor15m, start)
		require.NoError(t, err)
		require.Nil(t, got.Strike)
	})

	t.Run("missing market is not found", func(t *testing.T) {
		svc := New(&fakeVenue{bySlug: map[string]*domain.Market{}}, discard())
		_, err := svc.FindMarket(context.Background(), "BTC", domain.Tenor15m, start)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("inactive market is not found", func(t *testing.T) {
		m := &domain.Market{ConditionID: "0xabc", Slug: active.Slug, Active: false}
		svc := New(&fakeVenue{bySlug: map[string]*domain.Market{m.Slug: m}}, discard())
		_, err := svc.FindMarket(context.Background(), "BTC", domain.Tenor15m, start)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("closed market is not found", func(t *testing.T) {
		m := &domain.Market{ConditionID: "0xabc", Slug: active.Slug, Active: true, Closed: true}
		svc := New(&fakeVenue{bySlug: map[string]*domain.Market{m.Slug: m}}, discard())
		_, err := svc.FindMarket(context.Background(), "BTC", domain.Tenor15m, start)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("venue error is not found", func(t *testing.T) {
		svc := New(&fakeVenue{err: errors.New("connection refused")}, discard())
		_, err := svc.FindMarket(context.Background(), "BTC", domain.Tenor15m, start)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestOutcomeTokens(t *testing.T) {
	tests := []struct {
		name    string
		tokens  []domain.Token
		wantUp  string
		wantDn  string
		wantErr bool
	}{
		{
			name:   "up down labels",
			tokens: []domain.Token{{ID: "111", Outcome: "Up"}, {ID: "222", Outcome: "Down"}},
			wantUp: "111", wantDn: "222",
		},
		{
			name:   "binary labels",
			tokens: []domain.Token{{ID: "333", Outcome: "0"}, {ID: "444", Outcome: "1"}},
			wantUp: "444", wantDn: "333",
		},
		{
			name:    "unclassifiable outcome",
			tokens:  []domain.Token{{ID: "111", Outcome: "Yes"}, {ID: "222", Outcome: "No"}},
			wantErr: true,
		},
		{
			name:    "missing down token",
			tokens:  []domain.Token{{ID: "111", Outcome: "Up"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &domain.Market{ConditionID: "0xabc", Tokens: tt.tokens}
			svc := New(&fakeVenue{byCondID: map[string]*domain.Market{"0xabc": m}}, discard())
			up, down, err := svc.OutcomeTokens(context.Background(), "0xabc")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantUp, up.ID)
			require.Equal(t, tt.wantDn, down.ID)
		})
	}
}

func TestOutcomeTokens_VenueErrorPropagates(t *testing.T) {
	svc := New(&fakeVenue{err: errors.New("boom")}, discard())
	_, _, err := svc.OutcomeTokens(context.Background(), "0xabc")
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrNotFound)
}
