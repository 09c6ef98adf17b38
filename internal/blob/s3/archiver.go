package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/tenorarb/internal/clock"
	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// Archiver implements domain.RoundArchiver: each settled pair becomes
// one JSON object under rounds/{symbol}/{period15}/{trade}.json, where
// period15 is the Unix start of the 15m period the pair was placed in.
type Archiver struct {
	writer *Writer
}

// NewArchiver creates an Archiver uploading through the given writer.
func NewArchiver(w *Writer) *Archiver {
	return &Archiver{writer: w}
}

var _ domain.RoundArchiver = (*Archiver)(nil)

type legSummary struct {
	Tenor       string  `json:"tenor"`
	ConditionID string  `json:"condition_id"`
	TokenID     string  `json:"token_id"`
	Outcome     string  `json:"outcome"`
	Price       float64 `json:"price"`
}

type targetSummary struct {
	ConditionID string `json:"condition_id"`
	Outcome     string `json:"outcome"`
}

type roundSummary struct {
	TradeID     string          `json:"trade_id"`
	Symbol      string          `json:"symbol"`
	Period15    int64           `json:"period_15m"`
	PlacedAt    time.Time       `json:"placed_at"`
	ResolvedAt  time.Time       `json:"resolved_at"`
	Simulated   bool            `json:"simulated"`
	Size        float64         `json:"size"`
	Legs        []legSummary    `json:"legs"`
	Cost        float64         `json:"cost"`
	Payout      float64         `json:"payout"`
	PnL         float64         `json:"pnl"`
	Won15       bool            `json:"won_15m"`
	Won5        bool            `json:"won_5m"`
	Abandoned   bool            `json:"abandoned,omitempty"`
	Description string          `json:"description,omitempty"`
	Targets     []targetSummary `json:"redemption_targets,omitempty"`
}

func summarise(out domain.RoundOutcome) roundSummary {
	t := out.Trade
	s := roundSummary{
		TradeID:     t.ID,
		Symbol:      out.Symbol,
		Period15:    clock.PeriodStart(t.PlacedAt, domain.Tenor15m).Unix(),
		PlacedAt:    t.PlacedAt,
		ResolvedAt:  out.ResolvedAt,
		Simulated:   t.Simulated,
		Size:        t.Size,
		Cost:        out.Result.Cost,
		Payout:      out.Result.Payout,
		PnL:         out.Result.PnL,
		Won15:       out.Result.Won15,
		Won5:        out.Result.Won5,
		Abandoned:   out.Abandoned,
		Description: out.Description,
	}
	for _, leg := range []domain.TradeLeg{t.Leg15, t.Leg5} {
		s.Legs = append(s.Legs, legSummary{
			Tenor:       leg.Tenor.String(),
			ConditionID: leg.ConditionID,
			TokenID:     leg.TokenID,
			Outcome:     leg.Outcome,
			Price:       leg.Price,
		})
	}
	for _, target := range out.Targets {
		s.Targets = append(s.Targets, targetSummary{
			ConditionID: target.ConditionID,
			Outcome:     target.Outcome,
		})
	}
	return s
}

func roundKey(s roundSummary) string {
	return fmt.Sprintf("rounds/%s/%d/%s.json", s.Symbol, s.Period15, s.TradeID)
}

// ArchiveRound uploads one settled pair.
func (a *Archiver) ArchiveRound(ctx context.Context, out domain.RoundOutcome) error {
	summary := summarise(out)
	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal round %s: %w", summary.TradeID, err)
	}
	return a.writer.Put(ctx, roundKey(summary), bytes.NewReader(body), "application/json")
}
