package account

import (
	"context"
	"strings"
)

// Service contains the business logic for account operations
type Service struct {
	repo Repository
}

// NewService creates a new account service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetAccount retrieves an account by ID
func (s *Service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	if accountID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, accountID)
}

// ListAccounts retrieves all mirrored accounts
func (s *Service) ListAccounts(ctx context.Context) ([]*Account, error) {
	return s.repo.List(ctx)
}

// ListRequisitionAccounts returns the accounts a requisition has linked so far. A
// requisition that never reached LINKED has none.
func (s *Service) ListRequisitionAccounts(ctx context.Context, requisitionID string) ([]*Account, error) {
	if requisitionID == "" {
		return nil, ErrInvalidInput
	}
	accounts, err := s.repo.ListByRequisitionID(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []*Account{}
	}
	return accounts, nil
}

// UpsertAccount creates or updates an account with validation
func (s *Service) UpsertAccount(ctx context.Context, params UpsertParams) (*Account, error) {
	params.Currency = strings.ToUpper(strings.TrimSpace(params.Currency))
	if params.Status == "" {
		params.Status = StatusActive
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return s.repo.Upsert(ctx, params)
}
