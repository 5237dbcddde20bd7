package openbanking

import (
	"context"
	"sort"
	"sync"
	"time"

	"tavola/internal/domain/account"
	"tavola/internal/domain/credential"
	"tavola/internal/domain/institution"
	"tavola/internal/domain/requisition"
	"tavola/internal/domain/transaction"
	ofclient "tavola/internal/infrastructure/openbanking"
)

// MockClient implements ofclient.ClientInterface
type MockClient struct {
	mu    sync.Mutex
	calls map[string]int

	NewTokenFunc               func(ctx context.Context, secretID, secretKey string) (*ofclient.TokenResponse, error)
	RefreshTokenFunc           func(ctx context.Context, refresh string) (*ofclient.TokenResponse, error)
	ListInstitutionsFunc       func(ctx context.Context, token, country string) ([]ofclient.Institution, error)
	CreateAgreementFunc        func(ctx context.Context, token string, req ofclient.AgreementRequest) (*ofclient.Agreement, error)
	CreateRequisitionFunc      func(ctx context.Context, token string, req ofclient.RequisitionRequest) (*ofclient.Requisition, error)
	GetRequisitionFunc         func(ctx context.Context, token, id string) (*ofclient.Requisition, error)
	GetAccountDetailsFunc      func(ctx context.Context, token, accountID string) (*ofclient.AccountDetails, error)
	GetAccountBalancesFunc     func(ctx context.Context, token, accountID string) ([]ofclient.Balance, error)
	GetAccountTransactionsFunc func(ctx context.Context, token, accountID string, dateFrom time.Time) (*ofclient.AccountTransactions, error)
}

func (m *MockClient) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[name]++
}

// Calls returns how often a method was invoked.
func (m *MockClient) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockClient) NewToken(ctx context.Context, secretID, secretKey string) (*ofclient.TokenResponse, error) {
	m.record("NewToken")
	if m.NewTokenFunc != nil {
		return m.NewTokenFunc(ctx, secretID, secretKey)
	}
	return &ofclient.TokenResponse{Access: "access-1", AccessExpires: 86400, Refresh: "refresh-1", RefreshExpires: 2592000}, nil
}

func (m *MockClient) RefreshToken(ctx context.Context, refresh string) (*ofclient.TokenResponse, error) {
	m.record("RefreshToken")
	if m.RefreshTokenFunc != nil {
		return m.RefreshTokenFunc(ctx, refresh)
	}
	return &ofclient.TokenResponse{Access: "access-refreshed", AccessExpires: 86400}, nil
}

func (m *MockClient) ListInstitutions(ctx context.Context, token, country string) ([]ofclient.Institution, error) {
	m.record("ListInstitutions")
	if m.ListInstitutionsFunc != nil {
		return m.ListInstitutionsFunc(ctx, token, country)
	}
	return nil, nil
}

func (m *MockClient) CreateAgreement(ctx context.Context, token string, req ofclient.AgreementRequest) (*ofclient.Agreement, error) {
	m.record("CreateAgreement")
	if m.CreateAgreementFunc != nil {
		return m.CreateAgreementFunc(ctx, token, req)
	}
	return &ofclient.Agreement{ID: "agr-1", InstitutionID: req.InstitutionID}, nil
}

func (m *MockClient) CreateRequisition(ctx context.Context, token string, req ofclient.RequisitionRequest) (*ofclient.Requisition, error) {
	m.record("CreateRequisition")
	if m.CreateRequisitionFunc != nil {
		return m.CreateRequisitionFunc(ctx, token, req)
	}
	return &ofclient.Requisition{ID: "req-1", Status: "CR", Link: "https://bank.example/auth/req-1", Reference: req.Reference}, nil
}

func (m *MockClient) GetRequisition(ctx context.Context, token, id string) (*ofclient.Requisition, error) {
	m.record("GetRequisition")
	if m.GetRequisitionFunc != nil {
		return m.GetRequisitionFunc(ctx, token, id)
	}
	return &ofclient.Requisition{ID: id, Status: "CR"}, nil
}

func (m *MockClient) GetAccountDetails(ctx context.Context, token, accountID string) (*ofclient.AccountDetails, error) {
	m.record("GetAccountDetails")
	if m.GetAccountDetailsFunc != nil {
		return m.GetAccountDetailsFunc(ctx, token, accountID)
	}
	return &ofclient.AccountDetails{Name: "Account " + accountID, Currency: "EUR"}, nil
}

func (m *MockClient) GetAccountBalances(ctx context.Context, token, accountID string) ([]ofclient.Balance, error) {
	m.record("GetAccountBalances")
	if m.GetAccountBalancesFunc != nil {
		return m.GetAccountBalancesFunc(ctx, token, accountID)
	}
	return nil, nil
}

func (m *MockClient) GetAccountTransactions(ctx context.Context, token, accountID string, dateFrom time.Time) (*ofclient.AccountTransactions, error) {
	m.record("GetAccountTransactions")
	if m.GetAccountTransactionsFunc != nil {
		return m.GetAccountTransactionsFunc(ctx, token, accountID, dateFrom)
	}
	return &ofclient.AccountTransactions{}, nil
}

// staticTokens implements TokenSource
type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) GetValidToken(ctx context.Context) (string, error) { return s.token, s.err }

// memCredentialRepo implements credential.Repository with the same compare-and-swap rule
// as the Postgres store.
type memCredentialRepo struct {
	mu     sync.Mutex
	rows   []credential.Credential
	nextID int64
	now    func() time.Time
}

func (r *memCredentialRepo) GetActive(ctx context.Context) (*credential.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].Active {
			c := r.rows[i]
			return &c, nil
		}
	}
	return nil, credential.ErrNoActiveCredential
}

func (r *memCredentialRepo) Rotate(ctx context.Context, previousID int64, next credential.Credential) (*credential.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if r.now != nil {
		now = r.now()
	}
	for i := range r.rows {
		if r.rows[i].Active && r.rows[i].ID != previousID && r.rows[i].ExpiresAt.After(now) {
			c := r.rows[i]
			return &c, nil
		}
	}
	for i := range r.rows {
		r.rows[i].Active = false
	}
	r.nextID++
	next.ID = r.nextID
	next.Active = true
	r.rows = append(r.rows, next)
	return &next, nil
}

func (r *memCredentialRepo) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.rows {
		if c.Active {
			n++
		}
	}
	return n
}

// memRequisitionRepo implements requisition.Repository
type memRequisitionRepo struct {
	mu           sync.Mutex
	agreements   map[string]requisition.Agreement
	requisitions map[string]requisition.Requisition
	updates      int

	UpdateStatusErr error
}

func newMemRequisitionRepo() *memRequisitionRepo {
	return &memRequisitionRepo{
		agreements:   map[string]requisition.Agreement{},
		requisitions: map[string]requisition.Requisition{},
	}
}

func (r *memRequisitionRepo) CreateAgreement(ctx context.Context, a requisition.Agreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agreements[a.ID] = a
	return nil
}

func (r *memRequisitionRepo) CreateRequisition(ctx context.Context, req requisition.Requisition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requisitions[req.ID] = req
	return nil
}

func (r *memRequisitionRepo) GetByID(ctx context.Context, id string) (*requisition.Requisition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requisitions[id]
	if !ok {
		return nil, requisition.ErrRequisitionNotFound
	}
	return &req, nil
}

func (r *memRequisitionRepo) GetByReference(ctx context.Context, reference string) (*requisition.Requisition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requisitions {
		if req.Reference == reference {
			return &req, nil
		}
	}
	return nil, requisition.ErrRequisitionNotFound
}

func (r *memRequisitionRepo) ListByStatus(ctx context.Context, status requisition.Status) ([]*requisition.Requisition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*requisition.Requisition
	for _, req := range r.requisitions {
		if req.Status == status {
			req := req
			out = append(out, &req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRequisitionRepo) UpdateStatus(ctx context.Context, id string, status requisition.Status, providerStatus string, accountIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.UpdateStatusErr != nil {
		return r.UpdateStatusErr
	}
	req, ok := r.requisitions[id]
	if !ok {
		return requisition.ErrRequisitionNotFound
	}
	req.Status = status
	req.ProviderStatus = providerStatus
	req.LinkedAccountIDs = accountIDs
	r.requisitions[id] = req
	return nil
}

// memAccountRepo implements account.Repository
type memAccountRepo struct {
	mu      sync.Mutex
	rows    map[string]account.Account
	upserts int
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{rows: map[string]account.Account{}}
}

func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return &a, nil
}

func (r *memAccountRepo) List(ctx context.Context) ([]*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*account.Account, 0, len(r.rows))
	for _, a := range r.rows {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memAccountRepo) ListByRequisitionID(ctx context.Context, requisitionID string) ([]*account.Account, error) {
	all, _ := r.List(ctx)
	var out []*account.Account
	for _, a := range all {
		if a.RequisitionID == requisitionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAccountRepo) Upsert(ctx context.Context, p account.UpsertParams) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	a := account.Account{
		ID:            p.ID,
		InstitutionID: p.InstitutionID,
		RequisitionID: p.RequisitionID,
		Name:          p.Name,
		IBAN:          p.IBAN,
		Currency:      p.Currency,
		Balance:       p.Balance,
		Status:        p.Status,
		LastSyncedAt:  p.LastSyncedAt,
	}
	r.rows[p.ID] = a
	return &a, nil
}

// memTransactionRepo implements transaction.Repository with insert-or-refresh-status semantics.
type memTransactionRepo struct {
	mu      sync.Mutex
	rows    map[string]transaction.UpsertTransactionParams
	upserts int

	UpsertFunc func(p transaction.UpsertTransactionParams) error
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{rows: map[string]transaction.UpsertTransactionParams{}}
}

func (r *memTransactionRepo) Upsert(ctx context.Context, p transaction.UpsertTransactionParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.UpsertFunc != nil {
		if err := r.UpsertFunc(p); err != nil {
			return false, err
		}
	}
	existing, ok := r.rows[p.ID]
	if ok {
		existing.Status = p.Status
		r.rows[p.ID] = existing
		return false, nil
	}
	r.rows[p.ID] = p
	return true, nil
}

func (r *memTransactionRepo) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	return &transaction.Transaction{ID: p.ID, AccountID: p.AccountID, Amount: p.Amount, Type: p.Type}, nil
}

func (r *memTransactionRepo) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Transaction
	for _, p := range r.rows {
		if p.AccountID == accountID {
			out = append(out, &transaction.Transaction{
				ID:          p.ID,
				AccountID:   p.AccountID,
				Amount:      p.Amount,
				BookingDate: p.BookingDate,
				Type:        p.Type,
				Description: p.Description,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BookingDate.Equal(out[j].BookingDate) {
			return out[i].BookingDate.After(out[j].BookingDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memTransactionRepo) CountByAccountID(ctx context.Context, accountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.rows {
		if p.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

// memInstitutionRepo implements institution.Repository
type memInstitutionRepo struct {
	mu   sync.Mutex
	rows map[string]institution.Institution

	UpsertErr map[string]error
}

func newMemInstitutionRepo() *memInstitutionRepo {
	return &memInstitutionRepo{rows: map[string]institution.Institution{}}
}

func (r *memInstitutionRepo) Upsert(ctx context.Context, inst institution.Institution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.UpsertErr[inst.ID]; err != nil {
		return err
	}
	r.rows[inst.ID] = inst
	return nil
}

func (r *memInstitutionRepo) GetByID(ctx context.Context, id string) (*institution.Institution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.rows[id]
	if !ok {
		return nil, institution.ErrInstitutionNotFound
	}
	return &inst, nil
}

func (r *memInstitutionRepo) ListByCountry(ctx context.Context, country string) ([]*institution.Institution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*institution.Institution
	for _, inst := range r.rows {
		inst := inst
		for _, c := range inst.Countries {
			if country == "" || c == country {
				out = append(out, &inst)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
