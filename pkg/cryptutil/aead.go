// Package cryptutil implements the AEAD scheme used to encrypt per-node
// shared secrets and on-disk kubeconfig payloads at rest (spec.md §3, §4.5:
// "encrypted at rest using a Fernet-equivalent symmetric scheme whose key
// is the SHA-256 of the application auth secret").
package cryptutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Box encrypts and decrypts with a key derived once from an application
// secret. It is safe for concurrent use; chacha20poly1305.AEAD itself is
// stateless and safe for concurrent Seal/Open calls.
type Box struct {
	aead chacha20poly1305PacketAEAD
}

// chacha20poly1305PacketAEAD narrows the cipher.AEAD interface to the two
// methods Box needs.
type chacha20poly1305PacketAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

// NewBox derives a 32-byte key as SHA-256(appSecret) and builds the AEAD.
func NewBox(appSecret string) (*Box, error) {
	key := sha256.Sum256([]byte(appSecret))
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("build AEAD: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce, returning
// base64(nonce || ciphertext) so the result is safe to store in a YAML/JSON
// document or a file.
func (b *Box) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (b *Box) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	nonceSize := b.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
