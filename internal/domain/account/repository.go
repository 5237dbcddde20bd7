package account

import "context"

// Repository defines the interface for account data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// GetByID retrieves an account by its ID
	GetByID(ctx context.Context, id string) (*Account, error)

	// List retrieves every mirrored account, most recently synced first
	List(ctx context.Context) ([]*Account, error)

	// ListByRequisitionID retrieves the accounts linked through one requisition
	ListByRequisitionID(ctx context.Context, requisitionID string) ([]*Account, error)

	// Upsert creates or updates an account based on its ID
	Upsert(ctx context.Context, params UpsertParams) (*Account, error)
}
