package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tavola/internal/domain/account"
	"tavola/internal/domain/openbanking"
	"tavola/internal/domain/requisition"
)

type RequisitionReader interface {
	GetByID(ctx context.Context, id string) (*requisition.Requisition, error)
}

type RequisitionAccounts interface {
	ListRequisitionAccounts(ctx context.Context, requisitionID string) ([]*account.Account, error)
}

type Resyncer interface {
	ResyncRequisition(ctx context.Context, requisitionID string) (*openbanking.CallbackResult, error)
}

type RequisitionHandler struct {
	requisitions RequisitionReader
	accounts     RequisitionAccounts
	resyncer     Resyncer
	logger       *zap.Logger
}

func NewRequisitionHandler(requisitions RequisitionReader, accounts RequisitionAccounts, resyncer Resyncer, logger *zap.Logger) *RequisitionHandler {
	return &RequisitionHandler{
		requisitions: requisitions,
		accounts:     accounts,
		resyncer:     resyncer,
		logger:       logger.Named("requisitions"),
	}
}

// RequisitionView is a stored requisition with the accounts mirrored through it.
type RequisitionView struct {
	*requisition.Requisition
	Accounts []*account.Account `json:"accounts"`
}

func (h *RequisitionHandler) HandleGetRequisition(w http.ResponseWriter, r *http.Request) {
	req, err := h.requisitions.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, h.logger, "failed to get requisition", err)
		return
	}

	accounts, err := h.accounts.ListRequisitionAccounts(r.Context(), req.ID)
	if err != nil {
		writeDomainError(w, h.logger, "failed to list requisition accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, RequisitionView{Requisition: req, Accounts: accounts})
}

// HandleSyncRequisition re-reads the requisition from the provider and, when it is
// linked, resynchronizes its accounts and transactions.
func (h *RequisitionHandler) HandleSyncRequisition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result, err := h.resyncer.ResyncRequisition(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, "failed to sync requisition", err)
		return
	}

	h.logger.Info("requisition synced on demand",
		zap.String("requisition_id", id),
		zap.String("status", string(result.Status)),
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed),
	)
	writeJSON(w, http.StatusOK, result)
}
