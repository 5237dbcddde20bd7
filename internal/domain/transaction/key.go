package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

const fallbackKeyPrefix = "fb_"

// FallbackKey derives a stable id for provider entries that carry no transaction id, so that
// re-running a sync over the same window upserts the same row instead of duplicating it.
// The amount is normalized first: "-45.60" and "-45.6" yield the same key.
func FallbackKey(accountID, bookingDate string, amount decimal.Decimal, description string) string {
	descHash := sha256.Sum256([]byte(strings.TrimSpace(description)))

	h := sha256.New()
	h.Write([]byte(accountID))
	h.Write([]byte{'|'})
	h.Write([]byte(bookingDate))
	h.Write([]byte{'|'})
	h.Write([]byte(amount.String()))
	h.Write([]byte{'|'})
	h.Write([]byte(hex.EncodeToString(descHash[:])))

	return fallbackKeyPrefix + hex.EncodeToString(h.Sum(nil))[:40]
}

// IsFallbackKey reports whether id was produced by FallbackKey.
func IsFallbackKey(id string) bool {
	return strings.HasPrefix(id, fallbackKeyPrefix)
}
