package http

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"tavola/internal/domain/institution"
	"tavola/internal/domain/openbanking"
)

type InstitutionCatalogue interface {
	ListInstitutions(ctx context.Context, country string) ([]*institution.Institution, error)
	RefreshInstitutions(ctx context.Context, country string) (*openbanking.InstitutionSyncResult, error)
}

type InstitutionHandler struct {
	catalogue      InstitutionCatalogue
	defaultCountry string
	logger         *zap.Logger
}

// NewInstitutionHandler creates an institution handler. defaultCountry is refreshed when
// the request names no country.
func NewInstitutionHandler(catalogue InstitutionCatalogue, defaultCountry string, logger *zap.Logger) *InstitutionHandler {
	return &InstitutionHandler{
		catalogue:      catalogue,
		defaultCountry: defaultCountry,
		logger:         logger.Named("institutions"),
	}
}

// HandleListInstitutions reads the local catalogue, optionally filtered by ?country=.
func (h *InstitutionHandler) HandleListInstitutions(w http.ResponseWriter, r *http.Request) {
	insts, err := h.catalogue.ListInstitutions(r.Context(), r.URL.Query().Get("country"))
	if err != nil {
		writeDomainError(w, h.logger, "failed to list institutions", err)
		return
	}
	if insts == nil {
		insts = []*institution.Institution{}
	}
	writeJSON(w, http.StatusOK, insts)
}

// HandleRefreshInstitutions reloads the catalogue of one country from the provider.
func (h *InstitutionHandler) HandleRefreshInstitutions(w http.ResponseWriter, r *http.Request) {
	country := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("country")))
	if country == "" {
		country = h.defaultCountry
	}
	if len(country) != 2 {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "country must be an ISO 3166 alpha-2 code")
		return
	}

	result, err := h.catalogue.RefreshInstitutions(r.Context(), country)
	if err != nil {
		writeDomainError(w, h.logger, "failed to refresh institutions", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
