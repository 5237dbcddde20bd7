package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tavola/internal/domain/account"
	"tavola/internal/domain/openbanking"
	"tavola/internal/domain/requisition"
)

func TestHandleGetRequisition(t *testing.T) {
	reader := &MockRequisitionReader{
		GetByIDFunc: func(ctx context.Context, id string) (*requisition.Requisition, error) {
			switch id {
			case "req-1", "req-2":
				return &requisition.Requisition{ID: id, Status: requisition.StatusLinked, LinkedAccountIDs: []string{"acc-1"}}, nil
			}
			return nil, requisition.ErrRequisitionNotFound
		},
	}
	accounts := &MockRequisitionAccounts{
		ListRequisitionAccountsFunc: func(ctx context.Context, requisitionID string) ([]*account.Account, error) {
			if requisitionID == "req-2" {
				return nil, errors.New("connection reset")
			}
			return []*account.Account{{ID: "acc-1", RequisitionID: requisitionID, Currency: "EUR"}}, nil
		},
	}
	h := NewRequisitionHandler(reader, accounts, &MockResyncer{}, zap.NewNop())

	for id, want := range map[string]int{
		"req-1": http.StatusOK,
		"req-2": http.StatusInternalServerError,
		"req-9": http.StatusNotFound,
	} {
		req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/banking/requisitions/"+id, nil), map[string]string{"id": id})
		rr := httptest.NewRecorder()
		h.HandleGetRequisition(rr, req)
		if rr.Code != want {
			t.Errorf("GET %s: status = %d, want %d", id, rr.Code, want)
		}
		if want != http.StatusOK {
			continue
		}

		var got struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			Accounts []struct {
				ID string `json:"id"`
			} `json:"accounts"`
		}
		decodeBody(t, rr, &got)
		if got.ID != id || got.Status != string(requisition.StatusLinked) {
			t.Errorf("GET %s: requisition = %+v", id, got)
		}
		if len(got.Accounts) != 1 || got.Accounts[0].ID != "acc-1" {
			t.Errorf("GET %s: accounts = %+v", id, got.Accounts)
		}
	}
}

func TestHandleSyncRequisition(t *testing.T) {
	tests := []struct {
		name           string
		result         *openbanking.CallbackResult
		err            error
		expectedStatus int
	}{
		{
			name:           "Linked",
			result:         &openbanking.CallbackResult{RequisitionID: "req-1", Status: requisition.StatusLinked, Synced: 2, TransactionsSynced: 40},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Not Linked",
			result:         &openbanking.CallbackResult{RequisitionID: "req-1", Status: requisition.StatusAwaitingAuthorization, Pending: true},
			expectedStatus: http.StatusOK,
		},
		{name: "Unknown", err: requisition.ErrRequisitionNotFound, expectedStatus: http.StatusNotFound},
		{name: "Failure", err: errors.New("boom"), expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resyncer := &MockResyncer{
				ResyncRequisitionFunc: func(ctx context.Context, id string) (*openbanking.CallbackResult, error) {
					return tt.result, tt.err
				},
			}
			h := NewRequisitionHandler(&MockRequisitionReader{}, &MockRequisitionAccounts{}, resyncer, zap.NewNop())

			req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/banking/requisitions/req-1/sync", nil), map[string]string{"id": "req-1"})
			rr := httptest.NewRecorder()
			h.HandleSyncRequisition(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if tt.result == nil {
				return
			}
			var got openbanking.CallbackResult
			decodeBody(t, rr, &got)
			if got.Status != tt.result.Status || got.Pending != tt.result.Pending || got.TransactionsSynced != tt.result.TransactionsSynced {
				t.Errorf("result = %+v, want %+v", got, tt.result)
			}
		})
	}
}
