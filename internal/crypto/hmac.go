package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HMACAuth holds the L2 credentials required for authenticated requests
// against the Polymarket CLOB API.
type HMACAuth struct {
	Key        string // API key
	Secret     string // API secret, base64-encoded
	Passphrase string // API passphrase
}

// L2Headers returns the HTTP headers for an L2 (CLOB) API request, signing
// timestamp+method+path+body with the decoded secret.
//
// Returned header keys:
//   - POLY_ADDRESS
//   - POLY_API_KEY
//   - POLY_TIMESTAMP
//   - POLY_PASSPHRASE
//   - POLY_SIGNATURE
func (h *HMACAuth) L2Headers(address, method, path, body string) map[string]string {
	return h.L2HeadersAt(address, method, path, body, time.Now().Unix())
}

// L2HeadersAt is like L2Headers but lets the caller supply the Unix
// timestamp (useful for deterministic testing).
func (h *HMACAuth) L2HeadersAt(address, method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)

	message := ts + method + path + body
	sig := hmacSHA256URLSafe(h.secretBytes(), message)

	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    h.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": h.Passphrase,
		"POLY_SIGNATURE":  sig,
	}
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// secretBytes decodes the stored secret. Secrets are issued in URL-safe
// base64; normalise to standard alphabet before decoding. If decoding fails,
// fall back to raw bytes so the caller gets an obviously-wrong signature
// rather than a panic.
func (h *HMACAuth) secretBytes() []byte {
	normalized := strings.TrimSpace(h.Secret)
	normalized = strings.ReplaceAll(normalized, "-", "+")
	normalized = strings.ReplaceAll(normalized, "_", "/")
	if rem := len(normalized) % 4; rem != 0 {
		normalized += strings.Repeat("=", 4-rem)
	}

	decoded, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return []byte(h.Secret)
	}
	return decoded
}

// hmacSHA256URLSafe computes HMAC-SHA256 of message using key and returns
// the result as URL-safe base64 with padding kept, matching the encoding
// the CLOB verifies against.
func hmacSHA256URLSafe(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))

	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	sig = strings.ReplaceAll(sig, "+", "-")
	sig = strings.ReplaceAll(sig, "/", "_")
	return sig
}
