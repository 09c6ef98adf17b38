// Package crypto provides key management, EIP-712 signing, and HMAC
// authentication for the Polymarket CLOB API.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// keyfileIterations is the PBKDF2 round count, the OWASP minimum for
	// HMAC-SHA256 as of 2023.
	keyfileIterations = 480_000
	keyfileSaltLen    = 16
	keyfileVersion    = 1

	// privateKeyLen is the secp256k1 scalar size.
	privateKeyLen = 32
)

// keyfile is the on-disk envelope for an encrypted trading key. All three
// binary fields are standard base64.
type keyfile struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig carries the information LoadKey needs to resolve a private key.
// The config layer populates it from the keystore section and the
// TENORARB_PRIVATE_KEY / TENORARB_KEYFILE_PASSWORD environment variables.
type KeyConfig struct {
	// RawPrivateKey is the hex-encoded private key (with or without 0x
	// prefix). If non-empty, LoadKey returns it directly.
	RawPrivateKey string

	// EncryptedKeyPath is the path to a JSON file produced by EncryptKey.
	EncryptedKeyPath string

	// KeyPassword decrypts the file at EncryptedKeyPath.
	KeyPassword string
}

// aeadFor derives the AES-256-GCM cipher for a password and salt. Both
// the encrypt and decrypt paths must derive identically.
func aeadFor(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, keyfileIterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return gcm, nil
}

// decodeKeyHex normalizes and validates a hex private key, returning the
// raw bytes.
func decodeKeyHex(privateKeyHex string) ([]byte, error) {
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key hex: %w", err)
	}
	if len(keyBytes) != privateKeyLen {
		return nil, fmt.Errorf("crypto: expected %d-byte key, got %d bytes", privateKeyLen, len(keyBytes))
	}
	return keyBytes, nil
}

// EncryptKey seals a hex-encoded private key under a password using
// PBKDF2-HMAC-SHA256 key derivation and AES-256-GCM. It returns the JSON
// keyfile blob suitable for writing to disk.
func EncryptKey(privateKeyHex string, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	keyBytes, err := decodeKeyHex(privateKeyHex)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, keyfileSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: salt: %w", err)
	}
	gcm, err := aeadFor(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}

	enc := base64.StdEncoding
	return json.MarshalIndent(keyfile{
		Version:    keyfileVersion,
		Salt:       enc.EncodeToString(salt),
		Nonce:      enc.EncodeToString(nonce),
		Ciphertext: enc.EncodeToString(gcm.Seal(nil, nonce, keyBytes, nil)),
	}, "", "  ")
}

// DecryptKey opens a keyfile blob produced by EncryptKey, returning the
// hex-encoded private key without 0x prefix.
func DecryptKey(encryptedJSON []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: password must not be empty")
	}

	var kf keyfile
	if err := json.Unmarshal(encryptedJSON, &kf); err != nil {
		return "", fmt.Errorf("crypto: parse keyfile: %w", err)
	}
	if kf.Version != keyfileVersion {
		return "", fmt.Errorf("crypto: unsupported keyfile version %d", kf.Version)
	}

	var salt, nonce, ciphertext []byte
	for _, field := range []struct {
		name string
		raw  string
		dst  *[]byte
	}{
		{"salt", kf.Salt, &salt},
		{"nonce", kf.Nonce, &nonce},
		{"ciphertext", kf.Ciphertext, &ciphertext},
	} {
		b, err := base64.StdEncoding.DecodeString(field.raw)
		if err != nil {
			return "", fmt.Errorf("crypto: decode %s: %w", field.name, err)
		}
		*field.dst = b
	}

	gcm, err := aeadFor(password, salt)
	if err != nil {
		return "", err
	}
	// Open panics on a wrong-length nonce, so a truncated keyfile must be
	// rejected here.
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("crypto: keyfile nonce is %d bytes, want %d", len(nonce), gcm.NonceSize())
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	if len(plaintext) != privateKeyLen {
		return "", fmt.Errorf("crypto: keyfile holds a %d-byte secret, want %d", len(plaintext), privateKeyLen)
	}

	return hex.EncodeToString(plaintext), nil
}

// LoadKey resolves the trading key: a raw hex key wins, then an encrypted
// keyfile, otherwise an error telling the operator what to set.
func LoadKey(cfg KeyConfig) (string, error) {
	if cfg.RawPrivateKey != "" {
		keyBytes, err := decodeKeyHex(cfg.RawPrivateKey)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(keyBytes), nil
	}

	if cfg.EncryptedKeyPath != "" {
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return "", fmt.Errorf("crypto: read keyfile: %w", err)
		}
		return DecryptKey(data, cfg.KeyPassword)
	}

	return "", errors.New("crypto: no private key source configured (set RawPrivateKey or EncryptedKeyPath)")
}
