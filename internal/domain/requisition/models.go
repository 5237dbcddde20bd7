// Package requisition models the consent objects of a bank-linking attempt.
package requisition

import (
	"errors"
	"time"
)

var (
	ErrRequisitionNotFound = errors.New("requisition not found")
	ErrAgreementNotFound   = errors.New("agreement not found")
)

// Access scopes granted by an end-user agreement.
const (
	ScopeBalances     = "balances"
	ScopeDetails      = "details"
	ScopeTransactions = "transactions"
)

// Agreement is a time-boxed, scope-boxed consent created before a requisition.
type Agreement struct {
	ID                string    `json:"id"`
	InstitutionID     string    `json:"institutionId"`
	MaxHistoricalDays int       `json:"maxHistoricalDays"`
	ValidForDays      int       `json:"validForDays"`
	Scope             []string  `json:"scope"`
	Accepted          bool      `json:"accepted"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Requisition is one bank-linking attempt and its authorization state.
type Requisition struct {
	ID               string    `json:"id"`
	InstitutionID    string    `json:"institutionId"`
	AgreementID      string    `json:"agreementId"`
	Reference        string    `json:"reference"`
	Status           Status    `json:"status"`
	ProviderStatus   string    `json:"providerStatus"`
	AuthorizationURL string    `json:"authorizationUrl"`
	LinkedAccountIDs []string  `json:"linkedAccountIds"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// IsLinked reports whether account synchronization is authorized.
func (r *Requisition) IsLinked() bool {
	return r != nil && r.Status == StatusLinked
}
