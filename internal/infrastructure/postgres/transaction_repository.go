package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tavola/internal/domain/transaction"
)

// TransactionRepository implements transaction.Repository for PostgreSQL
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, account_id, amount, currency, description, booking_date, value_date,
	counterparty_name, type, status, raw_payload, created_at, updated_at`

// Upsert inserts a transaction, or refreshes only the status of an existing one.
// xmax is zero for rows created by this statement.
func (r *TransactionRepository) Upsert(ctx context.Context, params transaction.UpsertTransactionParams) (bool, error) {
	query := `
		INSERT INTO transactions (id, account_id, amount, currency, description, booking_date, value_date,
			counterparty_name, type, status, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING (xmax = 0)
	`

	status := params.Status
	if status == "" {
		status = transaction.StatusBooked
	}

	var created bool
	err := r.db.QueryRowContext(ctx, query,
		params.ID, params.AccountID, params.Amount, params.Currency, params.Description,
		params.BookingDate, nullDate(params.ValueDate), params.CounterpartyName, params.Type, status,
		rawPayload(params.RawPayload),
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return created, nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// ListByAccountID lists an account's transactions, newest booking date first
func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY booking_date DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// CountByAccountID counts an account's stored transactions
func (r *TransactionRepository) CountByAccountID(ctx context.Context, accountID string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

func scanTransaction(row rowScanner) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	var valueDate sql.NullTime
	var raw []byte
	err := row.Scan(
		&tx.ID, &tx.AccountID, &tx.Amount, &tx.Currency, &tx.Description, &tx.BookingDate, &valueDate,
		&tx.CounterpartyName, &tx.Type, &tx.Status, &raw, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if valueDate.Valid {
		t := valueDate.Time
		tx.ValueDate = &t
	}
	tx.RawPayload = raw
	return &tx, nil
}

// rawPayload passes JSON as text; lib/pq would send []byte as bytea.
func rawPayload(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
