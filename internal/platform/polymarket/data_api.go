package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// DataClient is the REST client for the Polymarket data API, used to scan
// wallet positions for redeemable winnings.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a new data API client.
//
// baseURL is the data API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string) *DataClient {
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RedeemableTargets returns the distinct (condition id, outcome) pairs of
// resolved positions the wallet still holds, sorted and with ids
// normalized to 0x form. Zero-size dust entries are dropped. The same
// condition can appear twice when the wallet holds both of its sides.
func (d *DataClient) RedeemableTargets(ctx context.Context, wallet string) ([]domain.RedemptionTarget, error) {
	params := url.Values{}
	params.Set("user", wallet)
	params.Set("redeemable", "true")
	params.Set("limit", "500")

	body, err := d.doGet(ctx, "/positions?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get positions for %s: %w", wallet, err)
	}

	var positions []DataPosition
	if err := json.Unmarshal(body, &positions); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode positions: %w", err)
	}

	seen := make(map[domain.RedemptionTarget]struct{}, len(positions))
	targets := make([]domain.RedemptionTarget, 0, len(positions))
	for _, p := range positions {
		if float64(p.Size) <= 0 {
			continue
		}
		id := strings.TrimSpace(p.ConditionID)
		if id == "" {
			continue
		}
		if !strings.HasPrefix(id, "0x") {
			id = "0x" + id
		}
		target := domain.RedemptionTarget{ConditionID: id, Outcome: strings.TrimSpace(p.Outcome)}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		targets = append(targets, target)
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].ConditionID != targets[j].ConditionID {
			return targets[i].ConditionID < targets[j].ConditionID
		}
		return targets[i].Outcome < targets[j].Outcome
	})

	return targets, nil
}

// doGet sends an unauthenticated GET request to the data API.
func (d *DataClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
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
