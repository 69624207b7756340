package records

import (
	"context"

	"github.com/shimishnaByAndy/clinicalvault/internal/models"
)

// Repository describes persistence operations for encrypted note records.
// Implementations are backed by the local SQLite database.
type Repository interface {
	// Upsert inserts a new record or replaces an existing one by ID.
	Upsert(ctx context.Context, rec *models.EncryptedRecord) error

	// GetByID returns a record, or nil when the ID does not exist.
	GetByID(ctx context.Context, id string) (*models.EncryptedRecord, error)

	// ListByPatient returns records for one patient, newest first.
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]models.EncryptedRecord, error)

	// ListByStatus returns records in the given sync status.
	ListByStatus(ctx context.Context, status models.SyncStatus) ([]models.EncryptedRecord, error)

	// SetSyncState updates sync status and version for one record.
	SetSyncState(ctx context.Context, id string, status models.SyncStatus, version int64) error

	// Delete removes a record row. Missing ID reports common.ErrNotFound.
	Delete(ctx context.Context, id string) error
}
