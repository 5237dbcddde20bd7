package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tavola/internal/domain/account"
)

type AccountReader interface {
	GetAccount(ctx context.Context, accountID string) (*account.Account, error)
	ListAccounts(ctx context.Context) ([]*account.Account, error)
}

// AccountHandler serves the mirrored bank accounts.
type AccountHandler struct {
	accounts AccountReader
	logger   *zap.Logger
}

func NewAccountHandler(accounts AccountReader, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger.Named("accounts")}
}

// HandleListAccounts returns every mirrored account, most recently synced first.
func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, "failed to list accounts", err)
		return
	}
	if accounts == nil {
		accounts = []*account.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, h.logger, "failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}
