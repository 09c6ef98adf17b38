package domain

import "strings"

// Tenor identifies which up/down market family a leg belongs to.
type Tenor int

const (
	Tenor15m Tenor = 15
	Tenor5m  Tenor = 5
)

// Minutes returns the tenor length in minutes.
func (t Tenor) Minutes() int64 { return int64(t) }

// Seconds returns the tenor length in seconds.
func (t Tenor) Seconds() int64 { return int64(t) * 60 }

func (t Tenor) String() string {
	switch t {
	case Tenor15m:
		return "15m"
	case Tenor5m:
		return "5m"
	default:
		return "unknown"
	}
}

// Direction is the side of an up/down market.
type Direction string

const (
	DirectionUp   Direction = "Up"
	DirectionDown Direction = "Down"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionUp {
		return DirectionDown
	}
	return DirectionUp
}

// Token is one outcome token of a market.
type Token struct {
	ID      string
	Outcome string
	Winner  bool
}

// Market is an up/down prediction market as discovered from the venue.
type Market struct {
	ConditionID string
	Slug        string
	Question    string
	// Strike is the price-to-beat named in the question text, when the
	// question names one.
	Strike   *float64
	Active   bool
	Closed   bool
	NegRisk  bool
	TickSize float64
	Tokens   []Token
}

// Tradeable reports whether the market accepts orders.
func (m *Market) Tradeable() bool {
	return m.Active && !m.Closed
}

// Resolved reports whether the market has closed with a declared winner.
func (m *Market) Resolved() bool {
	if !m.Closed {
		return false
	}
	for _, t := range m.Tokens {
		if t.Winner {
			return true
		}
	}
	return false
}

// WinningToken returns the winning outcome token, if declared.
func (m *Market) WinningToken() (Token, bool) {
	for _, t := range m.Tokens {
		if t.Winner {
			return t, true
		}
	}
	return Token{}, false
}

// TokenFor returns the token for the given direction. Outcome labels on
// up/down markets are either "Up"/"Down" or "1"/"0" depending on the
// market generation, so both spellings are honoured.
func (m *Market) TokenFor(dir Direction) (Token, bool) {
	for _, t := range m.Tokens {
		if d, ok := DirectionOfOutcome(t.Outcome); ok && d == dir {
			return t, true
		}
	}
	return Token{}, false
}

// DirectionOfOutcome classifies a venue outcome label. It reports false
// for labels that are neither an up nor a down spelling.
func DirectionOfOutcome(outcome string) (Direction, bool) {
	u := strings.ToUpper(strings.TrimSpace(outcome))
	switch {
	case strings.Contains(u, "UP") || u == "1":
		return DirectionUp, true
	case strings.Contains(u, "DOWN") || u == "0":
		return DirectionDown, true
	}
	return "", false
}
