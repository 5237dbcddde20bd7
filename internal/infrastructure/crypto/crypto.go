// Package crypto seals provider tokens before they are written to the database.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the required length of the master key.
const KeySize = 32

// sealedPrefix versions the ciphertext format.
const sealedPrefix = "v1:"

var (
	ErrInvalidKey        = errors.New("encryption key must be 32 bytes")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// Encryptor seals strings with XChaCha20-Poly1305. The AEAD key is derived from the
// master key with HKDF-SHA256 so the master key never touches data directly.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates an Encryptor from a 32 byte master key.
func NewEncryptor(key string) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	derived := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(key), nil, []byte("tavola provider credentials"))
	if _, err := io.ReadFull(r, derived); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// Encrypt seals plaintext; the empty string stays empty.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Tampered input fails with ErrInvalidCiphertext.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	if len(ciphertext) < len(sealedPrefix) || ciphertext[:len(sealedPrefix)] != sealedPrefix {
		return "", ErrInvalidCiphertext
	}

	data, err := base64.RawStdEncoding.DecodeString(ciphertext[len(sealedPrefix):])
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(data) < chacha20poly1305.NonceSizeX+e.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}

	nonce, ct := data[:chacha20poly1305.NonceSizeX], data[chacha20poly1305.NonceSizeX:]
	plaintext, err := e.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}
