package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tavola/internal/domain/transaction"
)

// Pagination bounds for transaction listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

type TransactionReader interface {
	ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error)
	CountByAccountID(ctx context.Context, accountID string) (int64, error)
}

type TransactionHandler struct {
	accounts     AccountReader
	transactions TransactionReader
	logger       *zap.Logger
}

func NewTransactionHandler(accounts AccountReader, transactions TransactionReader, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		accounts:     accounts,
		transactions: transactions,
		logger:       logger.Named("transactions"),
	}
}

type TransactionPage struct {
	Transactions []*transaction.Transaction `json:"transactions"`
	Total        int64                      `json:"total"`
	Limit        int                        `json:"limit"`
	Offset       int                        `json:"offset"`
}

// HandleListTransactions returns one page of an account's transactions, newest first.
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	limit, offset, ok := parsePage(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "limit and offset must be non-negative integers")
		return
	}

	if _, err := h.accounts.GetAccount(r.Context(), accountID); err != nil {
		writeDomainError(w, h.logger, "failed to get account", err)
		return
	}

	txs, err := h.transactions.ListByAccountID(r.Context(), accountID, limit, offset)
	if err != nil {
		writeDomainError(w, h.logger, "failed to list transactions", err)
		return
	}
	total, err := h.transactions.CountByAccountID(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, h.logger, "failed to count transactions", err)
		return
	}
	if txs == nil {
		txs = []*transaction.Transaction{}
	}

	writeJSON(w, http.StatusOK, TransactionPage{Transactions: txs, Total: total, Limit: limit, Offset: offset})
}

// parsePage reads ?limit= and ?offset=. limit is clamped to MaxPageSize; zero or absent
// means DefaultPageSize.
func parsePage(r *http.Request) (limit, offset int, ok bool) {
	limit = DefaultPageSize
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		if n > 0 {
			limit = min(n, MaxPageSize)
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
