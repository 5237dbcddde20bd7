package openbanking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tavola/internal/domain/requisition"
	ofclient "tavola/internal/infrastructure/openbanking"
)

// DefaultCallbackTimeout bounds one callback resolution.
const DefaultCallbackTimeout = 25 * time.Second

// ErrEmptyReference is returned when a callback carries no reference.
var ErrEmptyReference = errors.New("requisition reference is required")

// CallbackConfig configures the callback resolver.
type CallbackConfig struct {
	Timeout time.Duration
	Workers int
}

// CallbackResult is the outcome of one callback resolution. A requisition that is not
// linked yet produces Pending=true and no writes.
type CallbackResult struct {
	RequisitionID      string             `json:"requisitionId"`
	Status             requisition.Status `json:"status"`
	Pending            bool               `json:"pending"`
	Accounts           []AccountOutcome   `json:"-"`
	Synced             int                `json:"synced"`
	Failed             int                `json:"failed"`
	TransactionsSynced int                `json:"transactionsSynced"`
}

// CallbackResolver resolves the redirect back from the bank and, once linked, synchronizes
// the requisition's accounts and transactions.
type CallbackResolver struct {
	tokens       TokenSource
	client       ofclient.ClientInterface
	requisitions requisition.Repository
	accounts     *AccountSynchronizer
	transactions *TransactionSynchronizer
	cfg          CallbackConfig
	logger       *zap.Logger
}

func NewCallbackResolver(
	tokens TokenSource,
	client ofclient.ClientInterface,
	requisitions requisition.Repository,
	accounts *AccountSynchronizer,
	transactions *TransactionSynchronizer,
	cfg CallbackConfig,
	logger *zap.Logger,
) *CallbackResolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallbackTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultAccountWorkers
	}
	return &CallbackResolver{
		tokens:       tokens,
		client:       client,
		requisitions: requisitions,
		accounts:     accounts,
		transactions: transactions,
		cfg:          cfg,
		logger:       logger.Named("callback"),
	}
}

// ResolveCallback looks the reference up locally (as a reference, then as an id) and
// falls back to treating it as the provider requisition id.
// Only a failure to obtain a token or fetch the requisition is returned as an error;
// per-account failures are reported in the result.
func (r *CallbackResolver) ResolveCallback(ctx context.Context, reference string) (*CallbackResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrEmptyReference
	}

	local, err := r.lookup(ctx, reference)
	if err != nil {
		r.logger.Warn("local requisition lookup failed", zap.String("reference", reference), zap.Error(err))
	}

	providerID := reference
	if local != nil {
		providerID = local.ID
	}
	return r.resolve(ctx, local, providerID)
}

// ResyncRequisition re-runs resolution for a stored requisition.
func (r *CallbackResolver) ResyncRequisition(ctx context.Context, requisitionID string) (*CallbackResult, error) {
	local, err := r.requisitions.GetByID(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, local, local.ID)
}

func (r *CallbackResolver) lookup(ctx context.Context, reference string) (*requisition.Requisition, error) {
	req, err := r.requisitions.GetByReference(ctx, reference)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, requisition.ErrRequisitionNotFound) {
		return nil, err
	}

	req, err = r.requisitions.GetByID(ctx, reference)
	if errors.Is(err, requisition.ErrRequisitionNotFound) {
		return nil, nil
	}
	return req, err
}

func (r *CallbackResolver) resolve(ctx context.Context, local *requisition.Requisition, providerID string) (*CallbackResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	ctx, span := syncTracer.Start(ctx, "callback.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("requisition.id", providerID))

	log := r.logger.With(zap.String("requisition_id", providerID))

	token, err := r.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain token: %w", err)
	}

	remote, err := r.client.GetRequisition(ctx, token, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requisition: %w", err)
	}

	status := requisition.FromProvider(remote.Status)
	req := local
	if req == nil {
		req = &requisition.Requisition{ID: remote.ID, InstitutionID: remote.InstitutionID, Reference: remote.Reference}
		if req.ID == "" {
			req.ID = providerID
		}
	}

	if local != nil && !local.Status.CanTransitionTo(status) {
		log.Warn("ignoring provider status transition",
			zap.String("from", string(local.Status)),
			zap.String("to", string(status)),
			zap.String("provider_status", remote.Status),
		)
		status = local.Status
	} else if local != nil {
		if err := r.requisitions.UpdateStatus(ctx, local.ID, status, remote.Status, remote.Accounts); err != nil {
			log.Error("failed to store requisition status", zap.Error(err))
		}
	} else {
		log.Warn("requisition not stored locally, status not persisted", zap.String("status", string(status)))
	}
	span.SetAttributes(attribute.String("requisition.status", string(status)))

	result := &CallbackResult{RequisitionID: req.ID, Status: status}
	if status != requisition.StatusLinked {
		result.Pending = true
		log.Info("requisition not linked yet", zap.String("status", string(status)), zap.String("provider_status", remote.Status))
		return result, nil
	}

	req.Status = status
	req.LinkedAccountIDs = remote.Accounts
	result.Accounts = r.accounts.SyncAccounts(ctx, token, req, remote.Accounts)
	r.syncTransactions(ctx, token, result.Accounts)

	for _, o := range result.Accounts {
		if o.OK() {
			result.Synced++
			result.TransactionsSynced += o.Transactions.Synced()
		} else {
			result.Failed++
		}
	}

	log.Info("requisition synchronized",
		zap.Int("accounts", len(result.Accounts)),
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed),
		zap.Int("transactions", result.TransactionsSynced),
	)
	return result, nil
}

// syncTransactions runs the transaction synchronizer for every account that synchronized.
func (r *CallbackResolver) syncTransactions(ctx context.Context, token string, outcomes []AccountOutcome) {
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for i := range outcomes {
		if !outcomes[i].OK() {
			continue
		}
		g.Go(func() error {
			id := outcomes[i].AccountID
			if ctx.Err() != nil {
				r.logger.Warn("transaction sync deferred", zap.String("account_id", id), zap.Error(ctx.Err()))
				return nil
			}
			res, err := r.transactions.SyncTransactions(ctx, id, token)
			if err != nil {
				r.logger.Error("transaction sync failed", zap.String("account_id", id), zap.Error(err))
				return nil
			}
			outcomes[i].Transactions = res
			return nil
		})
	}
	_ = g.Wait()
}
