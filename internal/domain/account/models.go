package account

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Account lifecycle states.
const (
	StatusActive  = "active"
	StatusPending = "pending"
)

// Domain errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidCurrency = errors.New("valid ISO 4217 currency is required")
)

// Account is a bank account mirrored from the provider. Balance is the latest snapshot,
// not a ledger.
type Account struct {
	ID            string          `json:"id"`
	InstitutionID string          `json:"institutionId"`
	RequisitionID string          `json:"requisitionId"`
	Name          string          `json:"name"`
	IBAN          string          `json:"iban"`
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	Status        string          `json:"status"`
	LastSyncedAt  time.Time       `json:"lastSyncedAt"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// UpsertParams contains parameters for upserting an account
type UpsertParams struct {
	ID            string
	InstitutionID string
	RequisitionID string
	Name          string
	IBAN          string
	Currency      string
	Balance       decimal.Decimal
	Status        string
	LastSyncedAt  time.Time
}

// Validate validates the upsert parameters
func (p UpsertParams) Validate() error {
	if p.ID == "" {
		return errors.Join(ErrInvalidInput, errors.New("account ID is required for upsert"))
	}
	if p.Name == "" {
		return errors.Join(ErrInvalidInput, errors.New("account name is required"))
	}
	if !IsValidCurrency(p.Currency) {
		return ErrInvalidCurrency
	}
	if p.Status != StatusActive && p.Status != StatusPending {
		return errors.Join(ErrInvalidInput, errors.New("status must be active or pending"))
	}
	return nil
}

// IsValidCurrency checks the shape of an ISO 4217 code. Providers serve currencies well
// beyond any fixed list, so only the format is enforced.
func IsValidCurrency(c string) bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}
