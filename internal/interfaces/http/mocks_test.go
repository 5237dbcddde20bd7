package http

import (
	"context"

	"tavola/internal/domain/account"
	"tavola/internal/domain/institution"
	"tavola/internal/domain/openbanking"
	"tavola/internal/domain/requisition"
	"tavola/internal/domain/transaction"
)

type MockCallbackResolver struct {
	ResolveCallbackFunc func(ctx context.Context, reference string) (*openbanking.CallbackResult, error)
}

func (m *MockCallbackResolver) ResolveCallback(ctx context.Context, reference string) (*openbanking.CallbackResult, error) {
	if m.ResolveCallbackFunc != nil {
		return m.ResolveCallbackFunc(ctx, reference)
	}
	return nil, nil
}

type MockConnectionCreator struct {
	CreateConnectionFunc func(ctx context.Context, institutionID string) (*openbanking.Connection, error)
}

func (m *MockConnectionCreator) CreateConnection(ctx context.Context, institutionID string) (*openbanking.Connection, error) {
	if m.CreateConnectionFunc != nil {
		return m.CreateConnectionFunc(ctx, institutionID)
	}
	return nil, nil
}

type MockInstitutionCatalogue struct {
	ListInstitutionsFunc    func(ctx context.Context, country string) ([]*institution.Institution, error)
	RefreshInstitutionsFunc func(ctx context.Context, country string) (*openbanking.InstitutionSyncResult, error)
}

func (m *MockInstitutionCatalogue) ListInstitutions(ctx context.Context, country string) ([]*institution.Institution, error) {
	if m.ListInstitutionsFunc != nil {
		return m.ListInstitutionsFunc(ctx, country)
	}
	return nil, nil
}

func (m *MockInstitutionCatalogue) RefreshInstitutions(ctx context.Context, country string) (*openbanking.InstitutionSyncResult, error) {
	if m.RefreshInstitutionsFunc != nil {
		return m.RefreshInstitutionsFunc(ctx, country)
	}
	return nil, nil
}

type MockAccountReader struct {
	GetAccountFunc   func(ctx context.Context, accountID string) (*account.Account, error)
	ListAccountsFunc func(ctx context.Context) ([]*account.Account, error)
}

func (m *MockAccountReader) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	if m.GetAccountFunc != nil {
		return m.GetAccountFunc(ctx, accountID)
	}
	return nil, nil
}

func (m *MockAccountReader) ListAccounts(ctx context.Context) ([]*account.Account, error) {
	if m.ListAccountsFunc != nil {
		return m.ListAccountsFunc(ctx)
	}
	return nil, nil
}

type MockTransactionReader struct {
	ListByAccountIDFunc  func(ctx context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error)
	CountByAccountIDFunc func(ctx context.Context, accountID string) (int64, error)
}

func (m *MockTransactionReader) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error) {
	if m.ListByAccountIDFunc != nil {
		return m.ListByAccountIDFunc(ctx, accountID, limit, offset)
	}
	return nil, nil
}

func (m *MockTransactionReader) CountByAccountID(ctx context.Context, accountID string) (int64, error) {
	if m.CountByAccountIDFunc != nil {
		return m.CountByAccountIDFunc(ctx, accountID)
	}
	return 0, nil
}

type MockRequisitionReader struct {
	GetByIDFunc func(ctx context.Context, id string) (*requisition.Requisition, error)
}

func (m *MockRequisitionReader) GetByID(ctx context.Context, id string) (*requisition.Requisition, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

type MockRequisitionAccounts struct {
	ListRequisitionAccountsFunc func(ctx context.Context, requisitionID string) ([]*account.Account, error)
}

func (m *MockRequisitionAccounts) ListRequisitionAccounts(ctx context.Context, requisitionID string) ([]*account.Account, error) {
	if m.ListRequisitionAccountsFunc != nil {
		return m.ListRequisitionAccountsFunc(ctx, requisitionID)
	}
	return []*account.Account{}, nil
}

type MockResyncer struct {
	ResyncRequisitionFunc func(ctx context.Context, requisitionID string) (*openbanking.CallbackResult, error)
}

func (m *MockResyncer) ResyncRequisition(ctx context.Context, requisitionID string) (*openbanking.CallbackResult, error) {
	if m.ResyncRequisitionFunc != nil {
		return m.ResyncRequisitionFunc(ctx, requisitionID)
	}
	return nil, nil
}
