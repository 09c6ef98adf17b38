package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSignerDerivesAddress(t *testing.T) {
	s, err := NewSigner("0x"+testKeyHex, 137)
	require.NoError(t, err)
	require.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", s.Address().Hex())
	require.Equal(t, 137, s.ChainID())
	require.NotNil(t, s.PrivateKey())
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	_, err := NewSigner("nope", 137)
	require.Error(t, err)
}

func TestSignAuthMessage(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)

	sig, err := s.SignAuthMessage(s.Address().Hex(), 1700000000, 0)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(sig, "0x"))
	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	require.NoError(t, err)
	require.Len(t, raw, 65)
	require.Contains(t, []byte{27, 28}, raw[64])

	// Deterministic for fixed inputs.
	again, err := s.SignAuthMessage(s.Address().Hex(), 1700000000, 0)
	require.NoError(t, err)
	require.Equal(t, sig, again)

	// Timestamp participates in the digest.
	other, err := s.SignAuthMessage(s.Address().Hex(), 1700000001, 0)
	require.NoError(t, err)
	require.NotEqual(t, sig, other)
}
