package requisition

import "context"

// Repository persists agreements and requisitions. Neither is ever deleted.
type Repository interface {
	CreateAgreement(ctx context.Context, a Agreement) error
	CreateRequisition(ctx context.Context, r Requisition) error

	// GetByID and GetByReference return ErrRequisitionNotFound when nothing matches.
	GetByID(ctx context.Context, id string) (*Requisition, error)
	GetByReference(ctx context.Context, reference string) (*Requisition, error)

	// ListByStatus returns requisitions in the given status, oldest first.
	ListByStatus(ctx context.Context, status Status) ([]*Requisition, error)

	// UpdateStatus stores the latest status and linked account ids.
	UpdateStatus(ctx context.Context, id string, status Status, providerStatus string, accountIDs []string) error
}
