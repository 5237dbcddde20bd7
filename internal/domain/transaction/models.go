package transaction

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction directions, derived from the amount sign.
const (
	TypeCredit = "credit"
	TypeDebit  = "debit"
)

// StatusBooked marks a transaction the bank has settled.
const StatusBooked = "booked"

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransaction  = errors.New("invalid transaction")
)

// Transaction is a booked bank movement mirrored from the provider.
type Transaction struct {
	ID               string          `json:"id"` // provider id or deterministic fallback key
	AccountID        string          `json:"accountId"`
	Amount           decimal.Decimal `json:"amount"` // negative = debit
	Currency         string          `json:"currency"`
	Description      string          `json:"description"`
	BookingDate      time.Time       `json:"bookingDate"`
	ValueDate        *time.Time      `json:"valueDate,omitempty"`
	CounterpartyName string          `json:"counterpartyName"`
	Type             string          `json:"type"`
	Status           string          `json:"status"`
	RawPayload       json.RawMessage `json:"-"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// UpsertTransactionParams is used for syncing transactions from the provider
type UpsertTransactionParams struct {
	ID               string
	AccountID        string
	Amount           decimal.Decimal
	Currency         string
	Description      string
	BookingDate      time.Time
	ValueDate        *time.Time
	CounterpartyName string
	Type             string
	Status           string
	RawPayload       json.RawMessage
}

// Validate checks the fields needed for an idempotent upsert.
func (p UpsertTransactionParams) Validate() error {
	switch {
	case p.ID == "":
		return errors.Join(ErrInvalidTransaction, errors.New("id is required"))
	case p.AccountID == "":
		return errors.Join(ErrInvalidTransaction, errors.New("account id is required"))
	case p.BookingDate.IsZero():
		return errors.Join(ErrInvalidTransaction, errors.New("booking date is required"))
	case p.Type != TypeFromAmount(p.Amount):
		return errors.Join(ErrInvalidTransaction, errors.New("type does not match amount sign"))
	}
	return nil
}

// TypeFromAmount returns credit for amounts >= 0 and debit otherwise.
func TypeFromAmount(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return TypeDebit
	}
	return TypeCredit
}
