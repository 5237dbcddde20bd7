package openbanking

import (
	"context"
	"time"
)

// ClientInterface defines the methods required from the bank account data provider.
// Every method except token issuance takes an explicit bearer token.
type ClientInterface interface {
	NewToken(ctx context.Context, secretID, secretKey string) (*TokenResponse, error)
	RefreshToken(ctx context.Context, refresh string) (*TokenResponse, error)
	ListInstitutions(ctx context.Context, token, country string) ([]Institution, error)
	CreateAgreement(ctx context.Context, token string, req AgreementRequest) (*Agreement, error)
	CreateRequisition(ctx context.Context, token string, req RequisitionRequest) (*Requisition, error)
	GetRequisition(ctx context.Context, token, id string) (*Requisition, error)
	GetAccountDetails(ctx context.Context, token, accountID string) (*AccountDetails, error)
	GetAccountBalances(ctx context.Context, token, accountID string) ([]Balance, error)
	// GetAccountTransactions lists transactions booked on or after dateFrom; a zero dateFrom
	// leaves the window to the agreement.
	GetAccountTransactions(ctx context.Context, token, accountID string, dateFrom time.Time) (*AccountTransactions, error)
}
