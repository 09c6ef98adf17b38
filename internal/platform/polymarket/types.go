package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string. The data API
// and the real-time socket are inconsistent about quoting numbers.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// flexInt64 unmarshals from a JSON integer or a numeric string.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt64(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt64(n)
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// GammaEvent is an event as returned by the Gamma API. Up/down events carry
// exactly one market each, so lookups take markets[0].
type GammaEvent struct {
	ID      string        `json:"id"`
	Slug    string        `json:"slug"`
	Title   string        `json:"title"`
	Markets []GammaMarket `json:"markets"`
}

// GammaMarket is a market as returned by the Gamma API (camelCase fields).
type GammaMarket struct {
	ConditionID string   `json:"conditionId"`
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Slug        string   `json:"slug"`
	EndDateISO  string   `json:"endDateISO"`
	Active      flexBool `json:"active"`
	Closed      bool     `json:"closed"`
	NegRisk     bool     `json:"negRisk"`
}

// ToDomainMarket converts a Gamma market to a domain.Market. The Gamma API
// does not expose outcome tokens; those come from the CLOB market lookup.
func (m *GammaMarket) ToDomainMarket() domain.Market {
	return domain.Market{
		ConditionID: m.ConditionID,
		Slug:        m.Slug,
		Question:    m.Question,
		Active:      bool(m.Active),
		Closed:      m.Closed,
		NegRisk:     m.NegRisk,
	}
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// ClobMarket is a market as returned by the CLOB API (snake_case fields).
// Unlike the Gamma variant it carries the outcome tokens and, once the
// market resolves, their winner flags.
type ClobMarket struct {
	ConditionID     string      `json:"condition_id"`
	Question        string      `json:"question"`
	Tokens          []ClobToken `json:"tokens"`
	Active          bool        `json:"active"`
	Closed          bool        `json:"closed"`
	EndDateISO      string      `json:"end_date_iso"`
	NegRisk         bool        `json:"neg_risk"`
	MinimumTickSize flexFloat   `json:"minimum_tick_size"`
}

// ClobToken is a single outcome token inside a CLOB market response.
type ClobToken struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Winner  bool   `json:"winner"`
}

// ToDomainMarket converts a CLOB market to a domain.Market.
func (m *ClobMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Active:      m.Active,
		Closed:      m.Closed,
		NegRisk:     m.NegRisk,
		TickSize:    float64(m.MinimumTickSize),
	}
	for _, t := range m.Tokens {
		dm.Tokens = append(dm.Tokens, domain.Token{
			ID:      t.TokenID,
			Outcome: t.Outcome,
			Winner:  t.Winner,
		})
	}
	return dm
}

// BookResponse is the order book snapshot from GET /book.
type BookResponse struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// BookLevel is a single price level; the API quotes both fields as strings.
type BookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BestQuote extracts the top-of-book quote. The book endpoint serves each
// side sorted with the touch at the end, but both ends are compared by
// price so a best-first ordering is handled too.
func (b *BookResponse) BestQuote() domain.Quote {
	var q domain.Quote
	if first, last, ok := endPrices(b.Bids); ok {
		best := first
		if last > best {
			best = last
		}
		q.Bid = &best
	}
	if first, last, ok := endPrices(b.Asks); ok {
		best := first
		if last < best {
			best = last
		}
		q.Ask = &best
	}
	return q
}

// endPrices parses the two ends of one book side. An end that fails to
// parse mirrors the other; a side with no parseable end reports !ok.
func endPrices(levels []BookLevel) (first, last float64, ok bool) {
	if len(levels) == 0 {
		return 0, 0, false
	}
	fp, ferr := strconv.ParseFloat(strings.TrimSpace(levels[0].Price), 64)
	lp, lerr := strconv.ParseFloat(strings.TrimSpace(levels[len(levels)-1].Price), 64)
	switch {
	case ferr == nil && lerr == nil:
		return fp, lp, true
	case ferr == nil:
		return fp, fp, true
	case lerr == nil:
		return lp, lp, true
	}
	return 0, 0, false
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	OrderID  string `json:"orderID,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ToDomainOrderResult converts an APIOrderResult to a domain.OrderResult.
func (r *APIOrderResult) ToDomainOrderResult() domain.OrderResult {
	return domain.OrderResult{
		OrderID:  r.OrderID,
		Success:  r.Success,
		ErrorMsg: r.ErrorMsg,
	}
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// DataPosition is one entry from the data API /positions endpoint. Only the
// fields redemption scanning needs are decoded.
type DataPosition struct {
	ConditionID string    `json:"conditionId"`
	Outcome     string    `json:"outcome"`
	Size        flexFloat `json:"size"`
}

// --------------------------------------------------------------------------
// Market WebSocket DTOs
// --------------------------------------------------------------------------

// marketSubscribeCmd is the JSON payload sent to the market channel on
// connect to subscribe a set of asset ids.
type marketSubscribeCmd struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

// wsEnvelope carries just enough of a market frame to dispatch on its type.
type wsEnvelope struct {
	EventType string `json:"event_type"`
}

// wsBookLevel is a single level inside a book frame.
type wsBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// wsBookEvent is a full book snapshot frame. Older frames use "buys"/"sells",
// newer ones "bids"/"asks"; both spellings are accepted.
type wsBookEvent struct {
	AssetID string        `json:"asset_id"`
	Buys    []wsBookLevel `json:"buys"`
	Sells   []wsBookLevel `json:"sells"`
	Bids    []wsBookLevel `json:"bids"`
	Asks    []wsBookLevel `json:"asks"`
}

func (e *wsBookEvent) bidLevels() []wsBookLevel {
	if len(e.Buys) > 0 {
		return e.Buys
	}
	return e.Bids
}

func (e *wsBookEvent) askLevels() []wsBookLevel {
	if len(e.Sells) > 0 {
		return e.Sells
	}
	return e.Asks
}

// wsPriceChangeEvent is an incremental best bid/ask frame covering one or
// more assets.
type wsPriceChangeEvent struct {
	PriceChanges []wsPriceChangeItem `json:"price_changes"`
}

type wsPriceChangeItem struct {
	AssetID string  `json:"asset_id"`
	BestBid *string `json:"best_bid"`
	BestAsk *string `json:"best_ask"`
}

// --------------------------------------------------------------------------
// Real-time data socket DTOs
// --------------------------------------------------------------------------

// rtdsSubscribeCmd subscribes to a real-time data socket topic.
type rtdsSubscribeCmd struct {
	Action        string           `json:"action"`
	Subscriptions []rtdsTopicEntry `json:"subscriptions"`
}

type rtdsTopicEntry struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Filters string `json:"filters"`
}

// chainlinkMessage is one frame from the crypto_prices_chainlink topic.
type chainlinkMessage struct {
	Topic   string            `json:"topic"`
	Payload *chainlinkPayload `json:"payload"`
}

// chainlinkPayload is an oracle price tick. Symbol arrives as a trading pair
// such as "BTC/USD".
type chainlinkPayload struct {
	Symbol    string    `json:"symbol"`
	Timestamp flexInt64 `json:"timestamp"`
	Value     flexFloat `json:"value"`
}
