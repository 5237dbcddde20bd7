package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tavola/internal/shared/config"
	"tavola/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, logger *zap.Logger) http.Handler {
	r := mux.NewRouter()
	// Route templates name the spans, so tracing runs inside the router.
	r.Use(middleware.Telemetry(cfg.Telemetry.ServiceName))

	// Public
	r.HandleFunc("/health", deps.HealthHandler.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/bank-callback", deps.CallbackHandler.HandleCallback).Methods(http.MethodGet)

	// Operator API
	api := r.PathPrefix("/api/banking").Subrouter()
	api.Use(middleware.Auth(deps.JWT))

	api.HandleFunc("/connections", deps.ConnectionHandler.HandleCreateConnection).Methods(http.MethodPost)
	api.HandleFunc("/institutions", deps.InstitutionHandler.HandleListInstitutions).Methods(http.MethodGet)
	api.HandleFunc("/institutions/refresh", deps.InstitutionHandler.HandleRefreshInstitutions).Methods(http.MethodPost)
	api.HandleFunc("/accounts", deps.AccountHandler.HandleListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}", deps.AccountHandler.HandleGetAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/transactions", deps.TransactionHandler.HandleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/requisitions/{id}", deps.RequisitionHandler.HandleGetRequisition).Methods(http.MethodGet)
	api.HandleFunc("/requisitions/{id}/sync", deps.RequisitionHandler.HandleSyncRequisition).Methods(http.MethodPost)

	// Outside the router so that preflights and unmatched routes are still handled.
	handler := middleware.SecurityHeaders(r)
	handler = middleware.CORS(cfg.Server.AllowedHosts)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recover(logger)(handler)

	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		logger.Info("TLS security middleware enabled (HSTS)")
	}
	return handler
}
