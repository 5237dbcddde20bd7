package account

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

// MockRepo implements Repository for testing
type MockRepo struct {
	GetByIDFunc             func(ctx context.Context, id string) (*Account, error)
	ListByRequisitionIDFunc func(ctx context.Context, requisitionID string) ([]*Account, error)
	UpsertFunc              func(ctx context.Context, params UpsertParams) (*Account, error)
}

func (m *MockRepo) GetByID(ctx context.Context, id string) (*Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, ErrAccountNotFound
}
func (m *MockRepo) List(ctx context.Context) ([]*Account, error) { return nil, nil }
func (m *MockRepo) ListByRequisitionID(ctx context.Context, requisitionID string) ([]*Account, error) {
	if m.ListByRequisitionIDFunc != nil {
		return m.ListByRequisitionIDFunc(ctx, requisitionID)
	}
	return nil, nil
}
func (m *MockRepo) Upsert(ctx context.Context, params UpsertParams) (*Account, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return &Account{ID: params.ID, Name: params.Name, Currency: params.Currency, Balance: params.Balance, Status: params.Status}, nil
}

func TestUpsertAccount(t *testing.T) {
	tests := []struct {
		name    string
		params  UpsertParams
		wantErr error
	}{
		{
			name:   "Valid",
			params: UpsertParams{ID: "acc-1", Name: "Main", Currency: "EUR", Balance: decimal.RequireFromString("15420.50")},
		},
		{
			name:   "Lowercase currency is normalized",
			params: UpsertParams{ID: "acc-1", Name: "Main", Currency: " eur "},
		},
		{
			name:    "Missing ID",
			params:  UpsertParams{Name: "Main", Currency: "EUR"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "Missing name",
			params:  UpsertParams{ID: "acc-1", Currency: "EUR"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "Bad currency",
			params:  UpsertParams{ID: "acc-1", Name: "Main", Currency: "EURO"},
			wantErr: ErrInvalidCurrency,
		},
		{
			name:    "Bad status",
			params:  UpsertParams{ID: "acc-1", Name: "Main", Currency: "EUR", Status: "closed"},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&MockRepo{})
			acc, err := svc.UpsertAccount(context.Background(), tt.params)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("UpsertAccount() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpsertAccount() unexpected error: %v", err)
			}
			if acc.Currency != "EUR" {
				t.Errorf("Currency = %q, want EUR", acc.Currency)
			}
			if acc.Status != StatusActive {
				t.Errorf("Status = %q, want %q", acc.Status, StatusActive)
			}
		})
	}
}

func TestGetAccount_EmptyID(t *testing.T) {
	svc := NewService(&MockRepo{})
	if _, err := svc.GetAccount(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("GetAccount(\"\") error = %v, want %v", err, ErrInvalidInput)
	}
}

func TestIsValidCurrency(t *testing.T) {
	for c, want := range map[string]bool{"EUR": true, "GBP": true, "eur": false, "EU": false, "EUR1": false, "": false} {
		if got := IsValidCurrency(c); got != want {
			t.Errorf("IsValidCurrency(%q) = %v, want %v", c, got, want)
		}
	}
}

func TestListRequisitionAccounts(t *testing.T) {
	repo := &MockRepo{
		ListByRequisitionIDFunc: func(ctx context.Context, requisitionID string) ([]*Account, error) {
			switch requisitionID {
			case "req-linked":
				return []*Account{{ID: "acc-1", RequisitionID: requisitionID}, {ID: "acc-2", RequisitionID: requisitionID}}, nil
			case "req-broken":
				return nil, errors.New("connection reset")
			default:
				return nil, nil
			}
		},
	}
	svc := NewService(repo)

	accounts, err := svc.ListRequisitionAccounts(context.Background(), "req-linked")
	if err != nil || len(accounts) != 2 {
		t.Fatalf("linked: got %d accounts, err %v", len(accounts), err)
	}

	accounts, err = svc.ListRequisitionAccounts(context.Background(), "req-pending")
	if err != nil || accounts == nil || len(accounts) != 0 {
		t.Errorf("pending: got %v, err %v; want empty non-nil slice", accounts, err)
	}

	if _, err := svc.ListRequisitionAccounts(context.Background(), "req-broken"); err == nil {
		t.Error("repository error was swallowed")
	}
	if _, err := svc.ListRequisitionAccounts(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty id: err = %v, want ErrInvalidInput", err)
	}
}
