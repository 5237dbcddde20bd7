package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"tavola/internal/domain/institution"
)

// InstitutionRepository implements institution.Repository for PostgreSQL
type InstitutionRepository struct {
	db *DB
}

func NewInstitutionRepository(db *DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

const institutionColumns = `id, name, bic, logo_url, countries, supported_features, supported_payments,
	historical_days_supported, updated_at`

// Upsert inserts or replaces an institution
func (r *InstitutionRepository) Upsert(ctx context.Context, inst institution.Institution) error {
	query := `
		INSERT INTO institutions (id, name, bic, logo_url, countries, supported_features, supported_payments, historical_days_supported)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			bic = EXCLUDED.bic,
			logo_url = EXCLUDED.logo_url,
			countries = EXCLUDED.countries,
			supported_features = EXCLUDED.supported_features,
			supported_payments = EXCLUDED.supported_payments,
			historical_days_supported = EXCLUDED.historical_days_supported,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		inst.ID, inst.Name, inst.BIC, inst.LogoURL,
		pq.Array(nonNil(inst.Countries)), pq.Array(nonNil(inst.SupportedFeatures)), pq.Array(nonNil(inst.SupportedPayments)),
		inst.HistoricalDaysSupported,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert institution: %w", err)
	}
	return nil
}

// GetByID retrieves an institution by its provider id
func (r *InstitutionRepository) GetByID(ctx context.Context, id string) (*institution.Institution, error) {
	inst, err := scanInstitution(r.db.QueryRowContext(ctx, `SELECT `+institutionColumns+` FROM institutions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, institution.ErrInstitutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get institution: %w", err)
	}
	return inst, nil
}

// ListByCountry lists the institutions serving a country, or all when country is empty
func (r *InstitutionRepository) ListByCountry(ctx context.Context, country string) ([]*institution.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions`
	var args []any
	if country != "" {
		query += ` WHERE $1 = ANY(countries)`
		args = append(args, strings.ToUpper(country))
	}
	query += ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list institutions: %w", err)
	}
	defer rows.Close()

	var list []*institution.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan institution: %w", err)
		}
		list = append(list, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate institutions: %w", err)
	}
	return list, nil
}

func scanInstitution(row rowScanner) (*institution.Institution, error) {
	var inst institution.Institution
	err := row.Scan(
		&inst.ID, &inst.Name, &inst.BIC, &inst.LogoURL,
		pq.Array(&inst.Countries), pq.Array(&inst.SupportedFeatures), pq.Array(&inst.SupportedPayments),
		&inst.HistoricalDaysSupported, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
