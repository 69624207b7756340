package compliance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shimishnaByAndy/clinicalvault/internal/common"
	"github.com/shimishnaByAndy/clinicalvault/internal/dbx"
)

// CredentialDirectory answers whether an actor currently holds a valid
// professional credential.
type CredentialDirectory interface {
	Valid(ctx context.Context, actorID string) (bool, error)
}

// SQLiteCredentialDirectory keeps credentials in the vault database.
type SQLiteCredentialDirectory struct {
	db dbx.DBTX
}

func NewSQLiteCredentialDirectory(db dbx.DBTX) *SQLiteCredentialDirectory {
	return &SQLiteCredentialDirectory{db: db}
}

// Register inserts or replaces a credential for an actor.
func (d *SQLiteCredentialDirectory) Register(ctx context.Context, actorID, licenseNo, organization string, expiresAt time.Time) error {
	_, err := d.db.ExecContext(ctx, `INSERT INTO practitioner_credentials
		(actor_id, license_no, organization, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(actor_id) DO UPDATE SET
			license_no = excluded.license_no,
			organization = excluded.organization,
			expires_at = excluded.expires_at`,
		actorID, licenseNo, organization, expiresAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("%w: failed to register credential: %v", common.ErrStorageFailure, err)
	}
	return nil
}

// Valid reports whether the actor has a credential that has not expired.
// Unknown actors are simply not valid, not an error.
func (d *SQLiteCredentialDirectory) Valid(ctx context.Context, actorID string) (bool, error) {
	var expiresAt string
	err := d.db.QueryRowContext(ctx,
		`SELECT expires_at FROM practitioner_credentials WHERE actor_id = ?`,
		actorID).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: failed to select credential: %v", common.ErrStorageFailure, err)
	}

	t, err := time.Parse(timeLayout, expiresAt)
	if err != nil {
		return false, fmt.Errorf("%w: parse expires_at: %v", common.ErrStorageFailure, err)
	}
	return t.After(time.Now()), nil
}
