package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tavola/internal/domain/openbanking"
	"tavola/internal/domain/requisition"
)

// Resyncer re-runs the account and transaction sync of a requisition.
type Resyncer interface {
	ResyncRequisition(ctx context.Context, requisitionID string) (*openbanking.CallbackResult, error)
}

// InstitutionRefresher reloads the institution catalogue of a country.
type InstitutionRefresher interface {
	RefreshInstitutions(ctx context.Context, country string) (*openbanking.InstitutionSyncResult, error)
}

// RequisitionLister lists requisitions by status.
type RequisitionLister interface {
	ListByStatus(ctx context.Context, status requisition.Status) ([]*requisition.Requisition, error)
}

// RequisitionSyncJob resyncs one linked requisition.
type RequisitionSyncJob struct {
	requisitionID string
	resyncer      Resyncer
	logger        *zap.Logger
}

func NewRequisitionSyncJob(requisitionID string, resyncer Resyncer, logger *zap.Logger) *RequisitionSyncJob {
	return &RequisitionSyncJob{requisitionID: requisitionID, resyncer: resyncer, logger: logger}
}

// Execute fails when any account of the requisition failed, so the pool records an error.
func (j *RequisitionSyncJob) Execute(ctx context.Context) error {
	result, err := j.resyncer.ResyncRequisition(ctx, j.requisitionID)
	if err != nil {
		return fmt.Errorf("resync failed: %w", err)
	}

	fields := []zap.Field{
		zap.String("requisition_id", j.requisitionID),
		zap.String("status", string(result.Status)),
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed),
		zap.Int("transactions", result.TransactionsSynced),
	}
	if result.Pending {
		j.logger.Info("requisition no longer linked", fields...)
		return nil
	}
	if result.Failed > 0 {
		j.logger.Warn("requisition resync completed with errors", fields...)
		return fmt.Errorf("resync completed with %d failed accounts", result.Failed)
	}
	j.logger.Info("requisition resync completed", fields...)
	return nil
}

func (j *RequisitionSyncJob) Key() string {
	return j.requisitionID
}

func (j *RequisitionSyncJob) Description() string {
	return fmt.Sprintf("Resync requisition %s", j.requisitionID)
}

// InstitutionRefreshJob reloads the institution catalogue for one country.
type InstitutionRefreshJob struct {
	country   string
	refresher InstitutionRefresher
	logger    *zap.Logger
}

func NewInstitutionRefreshJob(country string, refresher InstitutionRefresher, logger *zap.Logger) *InstitutionRefreshJob {
	return &InstitutionRefreshJob{country: country, refresher: refresher, logger: logger}
}

func (j *InstitutionRefreshJob) Execute(ctx context.Context) error {
	result, err := j.refresher.RefreshInstitutions(ctx, j.country)
	if err != nil {
		return fmt.Errorf("institution refresh failed: %w", err)
	}
	j.logger.Info("institutions refreshed",
		zap.String("country", result.Country),
		zap.Int("found", result.Found),
		zap.Int("upserted", result.Upserted),
		zap.Int("failed", result.Failed),
	)
	return nil
}

func (j *InstitutionRefreshJob) Key() string {
	return "institutions:" + j.country
}

func (j *InstitutionRefreshJob) Description() string {
	return fmt.Sprintf("Refresh institutions for %s", j.country)
}

// NewJobProvider returns the batch run at each scheduled time: one refresh of the
// country's institution catalogue, then a resync of every linked requisition.
func NewJobProvider(country string, requisitions RequisitionLister, refresher InstitutionRefresher, resyncer Resyncer, logger *zap.Logger) func(context.Context) ([]Job, error) {
	return func(ctx context.Context) ([]Job, error) {
		var jobs []Job
		if country != "" && refresher != nil {
			jobs = append(jobs, NewInstitutionRefreshJob(country, refresher, logger))
		}

		linked, err := requisitions.ListByStatus(ctx, requisition.StatusLinked)
		if err != nil {
			return nil, fmt.Errorf("failed to list linked requisitions: %w", err)
		}
		for _, req := range linked {
			jobs = append(jobs, NewRequisitionSyncJob(req.ID, resyncer, logger))
		}
		return jobs, nil
	}
}
