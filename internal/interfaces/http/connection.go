package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"tavola/internal/domain/openbanking"
)

const maxBodyBytes = 1 << 20

type ConnectionCreator interface {
	CreateConnection(ctx context.Context, institutionID string) (*openbanking.Connection, error)
}

type ConnectionHandler struct {
	creator ConnectionCreator
	logger  *zap.Logger
}

func NewConnectionHandler(creator ConnectionCreator, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{creator: creator, logger: logger.Named("connections")}
}

type CreateConnectionRequest struct {
	InstitutionID string `json:"institutionId"`
}

// HandleCreateConnection starts a bank link and returns the URL the user must visit.
func (h *ConnectionHandler) HandleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.InstitutionID) == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "institutionId is required")
		return
	}

	conn, err := h.creator.CreateConnection(r.Context(), req.InstitutionID)
	if err != nil {
		writeDomainError(w, h.logger, "failed to create connection", err)
		return
	}

	writeJSON(w, http.StatusCreated, conn)
}
