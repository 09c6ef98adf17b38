package domain

import "time"

// ArbSelection is a cross-tenor pair picked by the selector: one leg in
// each tenor, opposite directions, sum of asks below the threshold.
type ArbSelection struct {
	Token15 string
	Price15 float64
	Dir15   Direction
	Token5  string
	Price5  float64
	Dir5    Direction
}

// Sum is the combined premium of both legs for one share each.
func (s ArbSelection) Sum() float64 { return s.Price15 + s.Price5 }

// TradeLeg is one executed (or simulated) leg of a cross-tenor trade.
type TradeLeg struct {
	ConditionID string
	TokenID     string
	Outcome     string
	Tenor       Tenor
	Price       float64
}

// TradeRecord is a round's paired position held through resolution.
type TradeRecord struct {
	ID        string
	Symbol    string
	Leg15     TradeLeg
	Leg5      TradeLeg
	Size      float64
	Simulated bool
	PlacedAt  time.Time
}

// Cost returns the total premium paid for both legs.
func (t *TradeRecord) Cost() float64 {
	return (t.Leg15.Price + t.Leg5.Price) * t.Size
}

// PnLResult is the realised outcome of one resolved trade pair.
type PnLResult struct {
	Cost   float64
	Payout float64
	PnL    float64
	Won15  bool
	Won5   bool
}

// RedemptionTarget identifies a winning position to redeem on chain.
type RedemptionTarget struct {
	ConditionID string
	Outcome     string
}

// RoundOutcome is the settled result of one trading round, suitable for
// journaling and archival.
type RoundOutcome struct {
	Symbol      string
	Trade       TradeRecord
	Result      PnLResult
	Targets     []RedemptionTarget
	Abandoned   bool
	ResolvedAt  time.Time
	Description string
}
