package domain

import "time"

// Quote is the best bid and ask for a single token. Either side may be
// nil when the venue has published no executable level for it.
type Quote struct {
	Bid *float64
	Ask *float64
}

// HasAsk reports whether the quote carries an executable ask.
func (q Quote) HasAsk() bool { return q.Ask != nil }

// Empty reports whether neither side is present.
func (q Quote) Empty() bool { return q.Bid == nil && q.Ask == nil }

// ReferenceTick is a spot price observation from the oracle stream.
type ReferenceTick struct {
	Symbol string
	Price  float64
	At     time.Time
}

// Float64Ptr returns a pointer to v. Quote sides are pointer-valued so
// tests and callers build them through this helper.
func Float64Ptr(v float64) *float64 { return &v }
