package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tavola/internal/domain/requisition"
)

// RequisitionRepository implements requisition.Repository for PostgreSQL
type RequisitionRepository struct {
	db *DB
}

func NewRequisitionRepository(db *DB) *RequisitionRepository {
	return &RequisitionRepository{db: db}
}

// CreateAgreement stores an end-user agreement
func (r *RequisitionRepository) CreateAgreement(ctx context.Context, a requisition.Agreement) error {
	query := `
		INSERT INTO agreements (id, institution_id, max_historical_days, valid_for_days, scope, accepted)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.InstitutionID, a.MaxHistoricalDays, a.ValidForDays, pq.Array(nonNil(a.Scope)), a.Accepted,
	)
	if err != nil {
		return fmt.Errorf("failed to create agreement: %w", err)
	}
	return nil
}

// CreateRequisition stores a new requisition. Its agreement must already exist.
func (r *RequisitionRepository) CreateRequisition(ctx context.Context, req requisition.Requisition) error {
	query := `
		INSERT INTO requisitions (id, institution_id, agreement_id, reference, status, provider_status, authorization_url, accounts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.InstitutionID, req.AgreementID, req.Reference, string(req.Status),
		req.ProviderStatus, req.AuthorizationURL, pq.Array(nonNil(req.LinkedAccountIDs)),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to create requisition: duplicate id or reference: %w", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create requisition: %w", err)
	}
	return nil
}

const requisitionColumns = `id, institution_id, agreement_id, reference, status, provider_status,
	authorization_url, accounts, created_at, updated_at`

// GetByID retrieves a requisition by its provider id
func (r *RequisitionRepository) GetByID(ctx context.Context, id string) (*requisition.Requisition, error) {
	return r.get(ctx, `SELECT `+requisitionColumns+` FROM requisitions WHERE id = $1`, id)
}

// GetByReference retrieves a requisition by the reference echoed back on callback
func (r *RequisitionRepository) GetByReference(ctx context.Context, reference string) (*requisition.Requisition, error) {
	return r.get(ctx, `SELECT `+requisitionColumns+` FROM requisitions WHERE reference = $1`, reference)
}

// ListByStatus lists requisitions in one status, oldest first
func (r *RequisitionRepository) ListByStatus(ctx context.Context, status requisition.Status) ([]*requisition.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisitions WHERE status = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list requisitions: %w", err)
	}
	defer rows.Close()

	var list []*requisition.Requisition
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan requisition: %w", err)
		}
		list = append(list, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requisitions: %w", err)
	}
	return list, nil
}

func (r *RequisitionRepository) get(ctx context.Context, query, arg string) (*requisition.Requisition, error) {
	req, err := scanRequisition(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, requisition.ErrRequisitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get requisition: %w", err)
	}
	return req, nil
}

func scanRequisition(row rowScanner) (*requisition.Requisition, error) {
	var req requisition.Requisition
	var status string
	err := row.Scan(
		&req.ID, &req.InstitutionID, &req.AgreementID, &req.Reference, &status, &req.ProviderStatus,
		&req.AuthorizationURL, pq.Array(&req.LinkedAccountIDs), &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Status = requisition.Status(status)
	return &req, nil
}

// UpdateStatus stores the latest provider state of a requisition
func (r *RequisitionRepository) UpdateStatus(ctx context.Context, id string, status requisition.Status, providerStatus string, accountIDs []string) error {
	query := `
		UPDATE requisitions
		SET status = $2, provider_status = $3, accounts = $4, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, string(status), providerStatus, pq.Array(nonNil(accountIDs)))
	if err != nil {
		return fmt.Errorf("failed to update requisition status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return requisition.ErrRequisitionNotFound
	}
	return nil
}
