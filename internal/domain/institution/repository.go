package institution

import "context"

// Repository persists the institution catalogue.
type Repository interface {
	// Upsert inserts or fully replaces an institution keyed by ID.
	Upsert(ctx context.Context, inst Institution) error

	// GetByID returns ErrInstitutionNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*Institution, error)

	// ListByCountry returns institutions serving the ISO 3166 country code, ordered by name.
	// An empty country lists everything.
	ListByCountry(ctx context.Context, country string) ([]*Institution, error)
}
