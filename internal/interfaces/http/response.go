// Package http exposes the bank-linking flow and the mirrored data over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"tavola/internal/domain/account"
	"tavola/internal/domain/institution"
	"tavola/internal/domain/openbanking"
	"tavola/internal/domain/requisition"
	"tavola/internal/domain/transaction"
	ofclient "tavola/internal/infrastructure/openbanking"
)

// Error codes returned in the error envelope.
const (
	CodeInvalidRequest        = "invalid_request"
	CodeNotFound              = "not_found"
	CodeProviderNotConfigured = "provider_not_configured"
	CodeProviderUnavailable   = "provider_unavailable"
	CodeTimeout               = "timeout"
	CodeInternal              = "internal"
)

type Response struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Error: &Error{Code: code, Message: message}})
}

// classify maps a domain or provider error to a status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, openbanking.ErrConfigMissing):
		return http.StatusServiceUnavailable, CodeProviderNotConfigured
	case errors.Is(err, institution.ErrInvalidInstitution),
		errors.Is(err, account.ErrInvalidInput),
		errors.Is(err, openbanking.ErrEmptyReference):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, account.ErrAccountNotFound),
		errors.Is(err, institution.ErrInstitutionNotFound),
		errors.Is(err, requisition.ErrRequisitionNotFound),
		errors.Is(err, transaction.ErrTransactionNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	case errors.Is(err, ofclient.ErrProviderUnavailable), errors.Is(err, ofclient.ErrMalformedResponse):
		return http.StatusBadGateway, CodeProviderUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

var serverMessages = map[string]string{
	CodeProviderNotConfigured: "bank provider is not configured",
	CodeProviderUnavailable:   "bank provider is unavailable",
	CodeTimeout:               "bank provider did not respond in time",
	CodeInternal:              "internal server error",
}

// writeDomainError writes err in the error envelope. Client errors carry the error text;
// server errors carry a fixed message and are logged instead.
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	status, code := classify(err)
	if status < http.StatusInternalServerError {
		writeError(w, status, code, err.Error())
		return
	}

	fields := []zap.Field{zap.Error(err), zap.String("code", code)}
	var stepErr *openbanking.StepError
	if errors.As(err, &stepErr) {
		fields = append(fields, zap.String("step", stepErr.Step))
	}
	logger.Error(msg, fields...)
	writeError(w, status, code, serverMessages[code])
}
