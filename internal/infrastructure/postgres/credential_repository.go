package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tavola/internal/domain/credential"
)

// credentialLockKey serializes credential rotation across processes.
const credentialLockKey int64 = 0x7461766f6c61

// Sealer encrypts tokens at rest.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// CredentialRepository implements credential.Repository for PostgreSQL. Tokens are sealed
// before they are written.
type CredentialRepository struct {
	db     *DB
	sealer Sealer
}

func NewCredentialRepository(db *DB, sealer Sealer) *CredentialRepository {
	return &CredentialRepository{db: db, sealer: sealer}
}

const selectActiveCredential = `
	SELECT id, access_token, refresh_token, issued_at, expires_at, refresh_expires_at, active
	FROM credentials
	WHERE active
`

// GetActive returns the active credential or credential.ErrNoActiveCredential.
func (r *CredentialRepository) GetActive(ctx context.Context) (*credential.Credential, error) {
	return r.scan(r.db.QueryRowContext(ctx, selectActiveCredential))
}

// Rotate replaces the active credential under an advisory lock. A credential that another
// writer stored after previousID and that has not expired wins over next.
func (r *CredentialRepository) Rotate(ctx context.Context, previousID int64, next credential.Credential) (*credential.Credential, error) {
	access, err := r.sealer.Encrypt(next.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal access token: %w", err)
	}
	refresh, err := r.sealer.Encrypt(next.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal refresh token: %w", err)
	}

	var result *credential.Credential
	err = r.db.WithTx(ctx, "credential.rotate", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, credentialLockKey); err != nil {
			return fmt.Errorf("failed to lock credentials: %w", err)
		}

		var currentID int64
		var stillValid bool
		err := tx.QueryRowContext(ctx,
			`SELECT id, expires_at > NOW() FROM credentials WHERE active FOR UPDATE`,
		).Scan(&currentID, &stillValid)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to read active credential: %w", err)
		case currentID != previousID && stillValid:
			current, err := r.scan(tx.QueryRowContext(ctx, selectActiveCredential))
			if err != nil {
				return err
			}
			result = current
			return nil
		default:
			if _, err := tx.ExecContext(ctx, `UPDATE credentials SET active = FALSE WHERE id = $1`, currentID); err != nil {
				return fmt.Errorf("failed to deactivate credential: %w", err)
			}
		}

		stored := next
		stored.Active = true
		err = tx.QueryRowContext(ctx, `
			INSERT INTO credentials (access_token, refresh_token, issued_at, expires_at, refresh_expires_at, active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			RETURNING id
		`, access, refresh, next.IssuedAt, next.ExpiresAt, next.RefreshExpiresAt).Scan(&stored.ID)
		if err != nil {
			return fmt.Errorf("failed to insert credential: %w", err)
		}
		result = &stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *CredentialRepository) scan(row rowScanner) (*credential.Credential, error) {
	var c credential.Credential
	var access, refresh string
	err := row.Scan(&c.ID, &access, &refresh, &c.IssuedAt, &c.ExpiresAt, &c.RefreshExpiresAt, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, credential.ErrNoActiveCredential
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if c.AccessToken, err = r.sealer.Decrypt(access); err != nil {
		return nil, fmt.Errorf("failed to open access token: %w", err)
	}
	if c.RefreshToken, err = r.sealer.Decrypt(refresh); err != nil {
		return nil, fmt.Errorf("failed to open refresh token: %w", err)
	}
	return &c, nil
}
