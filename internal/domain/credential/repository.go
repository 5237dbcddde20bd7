package credential

import "context"

// Repository persists provider credentials.
type Repository interface {
	// GetActive returns the active credential or ErrNoActiveCredential.
	GetActive(ctx context.Context) (*Credential, error)

	// Rotate atomically deactivates the credential identified by previousID (0 when there was
	// none) and stores next as the only active credential.
	// If another writer already replaced previousID with a credential that is still valid,
	// Rotate leaves it in place and returns it instead of next.
	Rotate(ctx context.Context, previousID int64, next Credential) (*Credential, error)
}
