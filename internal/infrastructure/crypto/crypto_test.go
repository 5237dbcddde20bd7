package crypto

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "01234567890123456789012345678901" // 32 bytes

func TestNewEncryptor(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid key", testKey, nil},
		{"short key", "too-short", ErrInvalidKey},
		{"empty key", "", ErrInvalidKey},
		{"long key", testKey + "x", ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncryptor(tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewEncryptor() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && enc == nil {
				t.Fatal("NewEncryptor() returned nil")
			}
		})
	}
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	enc, _ := NewEncryptor(testKey)

	for _, plaintext := range []string{
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.access",
		"Cuenta: 1.500,00 € - café",
		strings.Repeat("refresh-token ", 500),
	} {
		ciphertext, err := enc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt() failed: %v", err)
		}
		if strings.Contains(ciphertext, plaintext) {
			t.Error("Encrypt() leaked plaintext")
		}
		if !strings.HasPrefix(ciphertext, "v1:") {
			t.Errorf("ciphertext %q lacks version prefix", ciphertext[:8])
		}

		decrypted, err := enc.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("Decrypt() failed: %v", err)
		}
		if decrypted != plaintext {
			t.Errorf("Decrypt() = %q, want %q", decrypted, plaintext)
		}
	}
}

func TestEncryptDecrypt_EmptyString(t *testing.T) {
	enc, _ := NewEncryptor(testKey)

	ciphertext, err := enc.Encrypt("")
	if err != nil || ciphertext != "" {
		t.Errorf("Encrypt(\"\") = %q, %v; want empty", ciphertext, err)
	}
	plaintext, err := enc.Decrypt("")
	if err != nil || plaintext != "" {
		t.Errorf("Decrypt(\"\") = %q, %v; want empty", plaintext, err)
	}
}

func TestEncrypt_DifferentCiphertexts(t *testing.T) {
	enc, _ := NewEncryptor(testKey)

	c1, _ := enc.Encrypt("same token")
	c2, _ := enc.Encrypt("same token")

	if c1 == c2 {
		t.Error("Encrypt() produced identical ciphertexts for same plaintext (nonce should differ)")
	}
}

func TestDecrypt_Rejects(t *testing.T) {
	enc, _ := NewEncryptor(testKey)
	other, _ := NewEncryptor("98765432109876543210987654321098")

	sealed, _ := enc.Encrypt("secret data")
	foreign, _ := other.Encrypt("secret data")

	tests := map[string]string{
		"tampered":       sealed[:len(sealed)-2] + "XX",
		"wrong key":      foreign,
		"missing prefix": strings.TrimPrefix(sealed, "v1:"),
		"invalid base64": "v1:not-valid-base64!!!",
		"too short":      "v1:YQ",
		"plaintext":      "secret data",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := enc.Decrypt(input); !errors.Is(err, ErrInvalidCiphertext) {
				t.Errorf("Decrypt() error = %v, want ErrInvalidCiphertext", err)
			}
		})
	}
}
