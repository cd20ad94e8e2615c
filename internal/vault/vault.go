// Package vault encrypts OAuth tokens at rest with AES-256-GCM. The key is
// derived once at startup; every encryption uses a fresh random nonce, which
// is prefixed to the ciphertext before base64 encoding.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrEmptyKey          = errors.New("vault: encryption key material is empty")
	ErrInvalidCiphertext = errors.New("vault: invalid ciphertext")
)

// Vault seals and opens token strings.
type Vault struct {
	aead cipher.AEAD
}

// New derives the AES key from the configured secret material via
// HKDF-SHA256 and builds the AEAD. The secret may be base64 or raw text.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}

	material := []byte(secret)
	if decoded, err := base64.StdEncoding.DecodeString(secret); err == nil {
		material = decoded
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, material, nil, []byte("mailsweep token vault"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("vault: key derivation failed: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: cipher init failed: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: gcm init failed: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: nonce generation failed: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any malformed or tampered input returns
// ErrInvalidCiphertext; callers treat that the same as a missing token.
func (v *Vault) Decrypt(encrypted string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(raw) < v.aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}
