package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tavola/internal/domain/account"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, institution_id, requisition_id, name, iban, currency, balance, status,
	last_synced_at, created_at, updated_at`

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	acc, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// List retrieves all accounts, most recently synced first
func (r *AccountRepository) List(ctx context.Context) ([]*account.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY last_synced_at DESC NULLS LAST, id`)
}

// ListByRequisitionID retrieves the accounts linked by one requisition
func (r *AccountRepository) ListByRequisitionID(ctx context.Context, requisitionID string) ([]*account.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE requisition_id = $1 ORDER BY id`, requisitionID)
}

func (r *AccountRepository) list(ctx context.Context, query string, args ...any) ([]*account.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// Upsert creates or refreshes an account keyed by its provider id
func (r *AccountRepository) Upsert(ctx context.Context, params account.UpsertParams) (*account.Account, error) {
	query := `
		INSERT INTO accounts (id, institution_id, requisition_id, name, iban, currency, balance, status, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			institution_id = EXCLUDED.institution_id,
			requisition_id = EXCLUDED.requisition_id,
			name = EXCLUDED.name,
			iban = EXCLUDED.iban,
			currency = EXCLUDED.currency,
			balance = EXCLUDED.balance,
			status = EXCLUDED.status,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = NOW()
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query,
		params.ID, params.InstitutionID, params.RequisitionID, params.Name, params.IBAN,
		params.Currency, params.Balance, params.Status, nullTime(params.LastSyncedAt),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}
	return acc, nil
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var acc account.Account
	var lastSynced sql.NullTime
	err := row.Scan(
		&acc.ID, &acc.InstitutionID, &acc.RequisitionID, &acc.Name, &acc.IBAN,
		&acc.Currency, &acc.Balance, &acc.Status,
		&lastSynced, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		acc.LastSyncedAt = lastSynced.Time
	}
	return &acc, nil
}
