// Package strategy implements the cross-tenor arbitrage engine: leg
// selection over live quotes, the per-symbol execution state machine,
// resolution polling, and realised PnL accounting.
package strategy

import "github.com/alanyoungcy/tenorarb/internal/domain"

// QuadAsks are the four best asks the selector decides over. A nil
// entry means no executable ask is currently cached for that token.
type QuadAsks struct {
	Up15   *float64
	Down15 *float64
	Up5    *float64
	Down5  *float64
}

// LegTokens are the token ids behind the four asks, in the same order.
type LegTokens struct {
	Up15   string
	Down15 string
	Up5    string
	Down5  string
}

// SelectLegs picks an opposite-direction pair across the two tenors
// whose combined ask is under threshold. Two candidates exist:
// 15m-Up with 5m-Down, and 15m-Down with 5m-Up. A candidate needs both
// asks present to qualify. The Up/Down pair is checked first and wins
// outright when both qualify; the fixed order is a deliberate
// tie-break.
func SelectLegs(asks QuadAsks, tokens LegTokens, threshold float64) (domain.ArbSelection, bool) {
	if asks.Up15 != nil && asks.Down5 != nil && *asks.Up15+*asks.Down5 < threshold {
		return domain.ArbSelection{
			Token15: tokens.Up15,
			Price15: *asks.Up15,
			Dir15:   domain.DirectionUp,
			Token5:  tokens.Down5,
			Price5:  *asks.Down5,
			Dir5:    domain.DirectionDown,
		}, true
	}
	if asks.Down15 != nil && asks.Up5 != nil && *asks.Down15+*asks.Up5 < threshold {
		return domain.ArbSelection{
			Token15: tokens.Down15,
			Price15: *asks.Down15,
			Dir15:   domain.DirectionDown,
			Token5:  tokens.Up5,
			Price5:  *asks.Up5,
			Dir5:    domain.DirectionUp,
		}, true
	}
	return domain.ArbSelection{}, false
}
