package s3blob

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

func TestSummariseRound(t *testing.T) {
	placed := time.Date(2025, 6, 2, 16, 12, 30, 0, time.UTC)
	out := domain.RoundOutcome{
		Symbol: "btc",
		Trade: domain.TradeRecord{
			ID:       "trade-1",
			Symbol:   "btc",
			Size:     10,
			PlacedAt: placed,
			Leg15: domain.TradeLeg{
				ConditionID: "0xc15", TokenID: "t15", Outcome: "Up",
				Tenor: domain.Tenor15m, Price: 0.45,
			},
			Leg5: domain.TradeLeg{
				ConditionID: "0xc5", TokenID: "t5", Outcome: "Down",
				Tenor: domain.Tenor5m, Price: 0.47,
			},
		},
		Result:     domain.PnLResult{Cost: 9.2, Payout: 20, PnL: 10.8, Won15: true, Won5: true},
		Targets:    []domain.RedemptionTarget{{ConditionID: "0xc15", Outcome: "Up"}},
		ResolvedAt: placed.Add(10 * time.Minute),
	}

	s := summarise(out)
	require.Equal(t, "trade-1", s.TradeID)
	require.Equal(t, "btc", s.Symbol)
	require.Equal(t, time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC).Unix(), s.Period15)
	require.Equal(t, 10.8, s.PnL)
	require.True(t, s.Won15)
	require.True(t, s.Won5)
	require.False(t, s.Abandoned)
	require.Equal(t, []legSummary{
		{Tenor: "15m", ConditionID: "0xc15", TokenID: "t15", Outcome: "Up", Price: 0.45},
		{Tenor: "5m", ConditionID: "0xc5", TokenID: "t5", Outcome: "Down", Price: 0.47},
	}, s.Legs)
	require.Equal(t, []targetSummary{{ConditionID: "0xc15", Outcome: "Up"}}, s.Targets)

	wantKey := fmt.Sprintf("rounds/btc/%d/trade-1.json",
		time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC).Unix())
	require.Equal(t, wantKey, roundKey(s))
}

func TestSummariseAbandonedRound(t *testing.T) {
	out := domain.RoundOutcome{
		Symbol: "eth",
		Trade: domain.TradeRecord{
			ID:       "trade-2",
			PlacedAt: time.Date(2025, 6, 2, 16, 12, 0, 0, time.UTC),
		},
		Abandoned:   true,
		Description: "resolution timeout",
	}

	s := summarise(out)
	require.True(t, s.Abandoned)
	require.Equal(t, "resolution timeout", s.Description)
	require.Empty(t, s.Targets)
	require.Zero(t, s.PnL)
}
