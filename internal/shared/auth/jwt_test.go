package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWT_GenerateAndValidate(t *testing.T) {
	j := NewJWT("my-secret-key", time.Hour)

	token, err := j.Generate("ops@tavola")
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	claims, err := j.Validate(token)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if claims.Subject != "ops@tavola" {
		t.Errorf("Subject = %q, want ops@tavola", claims.Subject)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".invalid-signature"
	if _, err := j.Validate(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate(tampered) error = %v, want ErrInvalidToken", err)
	}

	if _, err := NewJWT("other-secret", time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate(foreign key) error = %v, want ErrInvalidToken", err)
	}

	if _, err := j.Validate("invalid.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate(malformed) error = %v, want ErrInvalidToken", err)
	}
}

func TestJWT_ExpiredToken(t *testing.T) {
	j := NewJWT("my-secret-key", time.Hour)
	j.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := j.Generate("ops@tavola")
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	j.now = time.Now
	if _, err := j.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Validate() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWT_RejectsOtherAlgorithms(t *testing.T) {
	j := NewJWT("my-secret-key", time.Hour)

	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "ops@tavola",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate(alg=none) error = %v, want ErrInvalidToken", err)
	}
}

func TestJWT_RequiresSubject(t *testing.T) {
	if _, err := NewJWT("s", 0).Generate(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Generate(\"\") error = %v, want ErrInvalidToken", err)
	}
}
