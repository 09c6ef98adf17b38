package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestL2HeadersAt(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("super-secret-hmac-key"))
	auth := &HMACAuth{Key: "api-key-1", Secret: secret, Passphrase: "pass"}

	headers := auth.L2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1700000000)

	require.Equal(t, "0xabc", headers["POLY_ADDRESS"])
	require.Equal(t, "api-key-1", headers["POLY_API_KEY"])
	require.Equal(t, "1700000000", headers["POLY_TIMESTAMP"])
	require.Equal(t, "pass", headers["POLY_PASSPHRASE"])
	require.NotEmpty(t, headers["POLY_SIGNATURE"])

	// Signature must be URL-safe base64.
	sig := headers["POLY_SIGNATURE"]
	require.NotContains(t, sig, "+")
	require.NotContains(t, sig, "/")
	_, err := base64.URLEncoding.DecodeString(sig)
	require.NoError(t, err)
}

func TestL2HeadersDeterministic(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("k"))
	auth := &HMACAuth{Key: "k1", Secret: secret, Passphrase: "p"}

	a := auth.L2HeadersAt("0xabc", "GET", "/orders", "", 42)
	b := auth.L2HeadersAt("0xabc", "GET", "/orders", "", 42)
	require.Equal(t, a["POLY_SIGNATURE"], b["POLY_SIGNATURE"])

	// Different timestamp changes the signature.
	c := auth.L2HeadersAt("0xabc", "GET", "/orders", "", 43)
	require.NotEqual(t, a["POLY_SIGNATURE"], c["POLY_SIGNATURE"])
}

func TestSecretAcceptsURLSafeEncoding(t *testing.T) {
	raw := []byte{0xfb, 0xef, 0xff, 0x01, 0x02, 0x03}
	std := base64.StdEncoding.EncodeToString(raw)
	urlSafe := strings.ReplaceAll(strings.ReplaceAll(std, "+", "-"), "/", "_")

	a := &HMACAuth{Key: "k", Secret: std, Passphrase: "p"}
	b := &HMACAuth{Key: "k", Secret: urlSafe, Passphrase: "p"}

	ha := a.L2HeadersAt("0xabc", "GET", "/x", "", 1)
	hb := b.L2HeadersAt("0xabc", "GET", "/x", "", 1)
	require.Equal(t, ha["POLY_SIGNATURE"], hb["POLY_SIGNATURE"])
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "abcdefgh", Secret: "supersecret"}
	s := auth.String()
	require.NotContains(t, s, "efgh")
	require.NotContains(t, s, "supersecret")
	require.Contains(t, s, "abcd")
}
