package transaction

import "context"

// Repository defines the interface for transaction data access
type Repository interface {
	// Upsert inserts the transaction or, when the id already exists, refreshes only its
	// status fields. created reports whether a new row was written.
	Upsert(ctx context.Context, params UpsertTransactionParams) (created bool, err error)

	GetByID(ctx context.Context, id string) (*Transaction, error)

	// ListByAccountID lists transactions newest booking date first
	ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, error)

	CountByAccountID(ctx context.Context, accountID string) (int64, error)
}
