package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// MarketBySlug looks up a market through its event slug. Up/down events hold
// exactly one market, so the first entry of the event's market list is the
// one the slug names. Returns domain.ErrNotFound when the venue has no event
// for the slug or the event carries no markets.
func (g *GammaClient) MarketBySlug(ctx context.Context, slug string) (*domain.Market, error) {
	path := fmt.Sprintf("/events/slug/%s", url.PathEscape(slug))

	body, err := g.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get event by slug %s: %w", slug, err)
	}

	var event GammaEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode event: %w", err)
	}

	if len(event.Markets) == 0 {
		return nil, fmt.Errorf("polymarket/gamma: %w: event %s has no markets", domain.ErrNotFound, slug)
	}

	m := event.Markets[0].ToDomainMarket()
	if m.Slug == "" {
		m.Slug = slug
	}
	return &m, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
