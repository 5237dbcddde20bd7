package openbanking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tavola/internal/domain/institution"
	"tavola/internal/domain/requisition"
	ofclient "tavola/internal/infrastructure/openbanking"
)

// Fixed consent policy.
const (
	DefaultHistoricalDays = 90
	DefaultValidForDays   = 90
)

// ConsentConfig configures the agreement policy and the requisition redirect.
type ConsentConfig struct {
	RedirectURL       string
	UserLanguage      string
	MaxHistoricalDays int
	ValidForDays      int
}

// Connection is what a caller needs to send the user to their bank.
type Connection struct {
	AuthorizationURL string `json:"authorizationUrl"`
	RequisitionID    string `json:"requisitionId"`
	Reference        string `json:"reference"`
}

// ConsentOrchestrator creates the agreement and requisition for a new bank connection.
type ConsentOrchestrator struct {
	tokens       TokenSource
	client       ofclient.ClientInterface
	requisitions requisition.Repository
	institutions institution.Repository
	cfg          ConsentConfig
	logger       *zap.Logger
	now          func() time.Time
}

// NewConsentOrchestrator creates a new consent orchestrator. institutions may be nil, in
// which case the historical window is never capped.
func NewConsentOrchestrator(
	tokens TokenSource,
	client ofclient.ClientInterface,
	requisitions requisition.Repository,
	institutions institution.Repository,
	cfg ConsentConfig,
	logger *zap.Logger,
) *ConsentOrchestrator {
	if cfg.MaxHistoricalDays <= 0 {
		cfg.MaxHistoricalDays = DefaultHistoricalDays
	}
	if cfg.ValidForDays <= 0 {
		cfg.ValidForDays = DefaultValidForDays
	}
	return &ConsentOrchestrator{
		tokens:       tokens,
		client:       client,
		requisitions: requisitions,
		institutions: institutions,
		cfg:          cfg,
		logger:       logger.Named("consent"),
		now:          time.Now,
	}
}

// CreateConnection runs token -> agreement -> requisition -> persist. The agreement is
// stored as soon as it exists and is kept even if a later step fails.
func (o *ConsentOrchestrator) CreateConnection(ctx context.Context, institutionID string) (*Connection, error) {
	institutionID = strings.TrimSpace(institutionID)
	if institutionID == "" {
		return nil, fmt.Errorf("%w: institution id is required", institution.ErrInvalidInstitution)
	}

	ctx, span := syncTracer.Start(ctx, "consent.create_connection")
	defer span.End()

	log := o.logger.With(zap.String("institution_id", institutionID))

	token, err := o.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, &StepError{Step: StepToken, Err: err}
	}

	agreementReq := ofclient.AgreementRequest{
		InstitutionID:      institutionID,
		MaxHistoricalDays:  o.historicalDays(ctx, institutionID),
		AccessValidForDays: o.cfg.ValidForDays,
		AccessScope: []string{
			requisition.ScopeBalances,
			requisition.ScopeDetails,
			requisition.ScopeTransactions,
		},
	}
	agreement, err := o.client.CreateAgreement(ctx, token, agreementReq)
	if err != nil {
		log.Error("failed to create agreement", zap.Error(err))
		return nil, &StepError{Step: StepAgreement, Err: err}
	}

	err = o.requisitions.CreateAgreement(ctx, requisition.Agreement{
		ID:                agreement.ID,
		InstitutionID:     institutionID,
		MaxHistoricalDays: agreementReq.MaxHistoricalDays,
		ValidForDays:      agreementReq.AccessValidForDays,
		Scope:             agreementReq.AccessScope,
		Accepted:          agreement.IsAccepted(),
		CreatedAt:         o.now(),
	})
	if err != nil {
		return nil, &StepError{Step: StepPersist, Err: fmt.Errorf("failed to store agreement: %w", err)}
	}

	reference := newReference(o.now())
	req, err := o.client.CreateRequisition(ctx, token, ofclient.RequisitionRequest{
		Redirect:      o.cfg.RedirectURL,
		InstitutionID: institutionID,
		Agreement:     agreement.ID,
		Reference:     reference,
		UserLanguage:  o.cfg.UserLanguage,
	})
	if err != nil {
		log.Error("failed to create requisition, agreement kept",
			zap.String("agreement_id", agreement.ID), zap.Error(err))
		return nil, &StepError{Step: StepRequisition, Err: err}
	}

	now := o.now()
	err = o.requisitions.CreateRequisition(ctx, requisition.Requisition{
		ID:               req.ID,
		InstitutionID:    institutionID,
		AgreementID:      agreement.ID,
		Reference:        reference,
		Status:           requisition.StatusCreated,
		ProviderStatus:   req.Status,
		AuthorizationURL: req.Link,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, &StepError{Step: StepPersist, Err: fmt.Errorf("failed to store requisition: %w", err)}
	}

	log.Info("connection created",
		zap.String("requisition_id", req.ID),
		zap.String("agreement_id", agreement.ID),
		zap.String("reference", reference),
	)

	return &Connection{
		AuthorizationURL: req.Link,
		RequisitionID:    req.ID,
		Reference:        reference,
	}, nil
}

// historicalDays caps the configured window at what the institution can serve.
func (o *ConsentOrchestrator) historicalDays(ctx context.Context, institutionID string) int {
	days := o.cfg.MaxHistoricalDays
	if o.institutions == nil {
		return days
	}

	inst, err := o.institutions.GetByID(ctx, institutionID)
	if err != nil {
		if !errors.Is(err, institution.ErrInstitutionNotFound) {
			o.logger.Warn("institution lookup failed", zap.String("institution_id", institutionID), zap.Error(err))
		}
		return days
	}
	if inst.HistoricalDaysSupported > 0 && inst.HistoricalDaysSupported < days {
		return inst.HistoricalDaysSupported
	}
	return days
}

// newReference builds a reference unique per attempt: unix millis plus a random suffix.
func newReference(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
