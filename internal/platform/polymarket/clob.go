package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/tenorarb/internal/crypto"
	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. It handles market lookups, order book queries, and
// authenticated order placement.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
// signer is the EIP-712 signer for auth messages; nil for read-only use.
// hmac is the HMAC authenticator for L2 requests; nil until DeriveAPIKey runs.
func NewClobClient(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:   signer,
		hmacAuth: hmac,
	}
}

// MarketByConditionID returns the CLOB view of a market, which carries the
// outcome tokens and their winner flags.
func (c *ClobClient) MarketByConditionID(ctx context.Context, conditionID string) (*domain.Market, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(conditionID))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: get market %s: %w", conditionID, err)
	}

	var apiMarket ClobMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode market: %w", err)
	}

	m := apiMarket.ToDomainMarket()
	return &m, nil
}

// BookBestPrices returns the top-of-book quote for a token. A thin or
// one-sided book yields a quote with the missing side nil; callers decide
// whether that is tradeable.
func (c *ClobClient) BookBestPrices(ctx context.Context, tokenID string) (domain.Quote, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, "/book?"+params.Encode())
	if err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var book BookResponse
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	return book.BestQuote(), nil
}

// PostOrder submits a signed order payload to the CLOB API and returns the
// venue's verdict. A rejected order is returned alongside an error so the
// caller still sees the errorMsg.
func (c *ClobClient) PostOrder(ctx context.Context, payload signedOrderPayload) (domain.OrderResult, error) {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", payload)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}

	result := apiResult.ToDomainOrderResult()
	if !result.Success {
		return result, fmt.Errorf("polymarket/clob: order rejected: %s", result.ErrorMsg)
	}

	return result, nil
}

// DeriveAPIKey performs the CLOB auth flow to obtain an HMAC API key. It
// signs a ClobAuth EIP-712 message and sends it with L1 headers to the
// derive-api-key endpoint; a wallet that never created credentials gets a
// 4xx there, so on failure it falls back to POST /auth/api-key which
// creates a fresh key set. Per Polymarket docs, L1 requires POLY_ADDRESS,
// POLY_SIGNATURE, POLY_TIMESTAMP, POLY_NONCE. On success it populates the
// client's hmacAuth field.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	if c.signer == nil {
		return fmt.Errorf("polymarket/clob: derive api key: %w", domain.ErrNotConfigured)
	}

	auth, deriveErr := c.l1AuthRequest(ctx, http.MethodGet, "/auth/derive-api-key")
	if deriveErr != nil {
		var createErr error
		auth, createErr = c.l1AuthRequest(ctx, http.MethodPost, "/auth/api-key")
		if createErr != nil {
			return fmt.Errorf("polymarket/clob: derive api key: %v; create api key: %w", deriveErr, createErr)
		}
	}

	c.hmacAuth = auth
	return nil
}

// l1AuthRequest sends a ClobAuth-signed request to one of the /auth
// endpoints and decodes the returned credential triple.
func (c *ClobClient) l1AuthRequest(ctx context.Context, method, path string) (*crypto.HMACAuth, error) {
	address := c.signer.Address().Hex()
	timestamp := time.Now().Unix()
	nonce := int64(0)

	sig, err := c.signer.SignAuthMessage(address, timestamp, nonce)
	if err != nil {
		return nil, fmt.Errorf("sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", fmt.Sprintf("%d", timestamp))
	req.Header.Set("POLY_NONCE", fmt.Sprintf("%d", nonce))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}

	return &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}, nil
}

// APIKey returns the HMAC API key, or "" when credentials are absent. Order
// payloads carry it as the owner field.
func (c *ClobClient) APIKey() string {
	if c.hmacAuth == nil {
		return ""
	}
	return c.hmacAuth.Key
}

// Authenticated reports whether the client holds both a signer and L2
// credentials, i.e. whether it can place orders.
func (c *ClobClient) Authenticated() bool {
	return c.hmacAuth != nil && c.signer != nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request to the CLOB API.
func (c *ClobClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
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

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. It returns the raw response body.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Apply HMAC authentication headers.
	if c.hmacAuth != nil && c.signer != nil {
		address := c.signer.Address().Hex()
		headers := c.hmacAuth.L2Headers(address, method, path, bodyStr)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
