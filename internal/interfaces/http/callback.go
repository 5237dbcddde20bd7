package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"tavola/internal/domain/openbanking"
	"tavola/internal/domain/requisition"
)

// Redirect outcomes of the bank callback.
const (
	CallbackSuccess = "success"
	CallbackPending = "pending"
	CallbackError   = "error"
)

// Messages shown on the settings page. Provider errors never reach the user.
const (
	msgCancelled       = "The bank connection was cancelled."
	msgMissingRef      = "The bank connection link is invalid."
	msgNotConfigured   = "Bank connections are temporarily unavailable."
	msgTimeout         = "The bank took too long to respond. Please try again."
	msgFailed          = "We could not confirm your bank connection. Please try again."
	msgRejected        = "The bank connection was rejected."
	msgExpired         = "The bank connection has expired. Please connect again."
	msgNoAccounts      = "Your bank was connected but no accounts could be imported."
	msgPartialAccounts = "Some accounts could not be imported."
)

type CallbackResolver interface {
	ResolveCallback(ctx context.Context, reference string) (*openbanking.CallbackResult, error)
}

// CallbackHandler receives the end user back from their bank. It always answers with a
// redirect to the settings page.
type CallbackHandler struct {
	resolver    CallbackResolver
	settingsURL string
	logger      *zap.Logger
}

func NewCallbackHandler(resolver CallbackResolver, settingsURL string, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		resolver:    resolver,
		settingsURL: settingsURL,
		logger:      logger.Named("bank_callback"),
	}
}

func (h *CallbackHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Info("bank returned an error",
			zap.String("error", providerErr),
			zap.String("details", q.Get("details")),
		)
		h.redirect(w, r, CallbackError, msgCancelled)
		return
	}

	ref := q.Get("ref")
	if ref == "" {
		h.redirect(w, r, CallbackError, msgMissingRef)
		return
	}

	result, err := h.resolver.ResolveCallback(r.Context(), ref)
	if err != nil {
		h.logger.Error("callback resolution failed", zap.String("reference", ref), zap.Error(err))
		h.redirect(w, r, CallbackError, errorMessage(err))
		return
	}

	status, message := outcome(result)
	h.redirect(w, r, status, message)
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, openbanking.ErrConfigMissing):
		return msgNotConfigured
	case errors.Is(err, openbanking.ErrEmptyReference):
		return msgMissingRef
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	default:
		return msgFailed
	}
}

func outcome(result *openbanking.CallbackResult) (status, message string) {
	if result.Pending {
		switch result.Status {
		case requisition.StatusRejected:
			return CallbackError, msgRejected
		case requisition.StatusExpired:
			return CallbackError, msgExpired
		default:
			return CallbackPending, ""
		}
	}

	switch {
	case result.Synced == 0 && result.Failed > 0:
		return CallbackError, msgNoAccounts
	case result.Failed > 0:
		return CallbackSuccess, msgPartialAccounts
	default:
		return CallbackSuccess, ""
	}
}

func (h *CallbackHandler) redirect(w http.ResponseWriter, r *http.Request, status, message string) {
	params := url.Values{"status": {status}}
	if message != "" {
		params.Set("message", message)
	}
	http.Redirect(w, r, withQuery(h.settingsURL, params), http.StatusFound)
}

// withQuery merges params into the query of base.
func withQuery(base string, params url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + params.Encode()
	}
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}
