package strategy

import "github.com/alanyoungcy/tenorarb/internal/domain"

// ComputeTradePnL settles one recorded trade pair against the winning
// token of each tenor. Every held share of a winning token pays out
// exactly one collateral unit; losing shares pay nothing.
func ComputeTradePnL(rec domain.TradeRecord, winToken15, winToken5 string) domain.PnLResult {
	cost := (rec.Leg15.Price + rec.Leg5.Price) * rec.Size
	won15 := winToken15 == rec.Leg15.TokenID || winToken15 == rec.Leg5.TokenID
	won5 := winToken5 == rec.Leg15.TokenID || winToken5 == rec.Leg5.TokenID

	payout := 0.0
	if won15 {
		payout += rec.Size
	}
	if won5 {
		payout += rec.Size
	}
	return domain.PnLResult{
		Cost:   cost,
		Payout: payout,
		PnL:    payout - cost,
		Won15:  won15,
		Won5:   won5,
	}
}
