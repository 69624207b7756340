package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shimishnaByAndy/clinicalvault/internal/common"
	"github.com/shimishnaByAndy/clinicalvault/internal/dbx"
	"github.com/shimishnaByAndy/clinicalvault/internal/models"
	auditrepo "github.com/shimishnaByAndy/clinicalvault/internal/store/repositories/audit"
	"github.com/shimishnaByAndy/clinicalvault/internal/store/repositories/metadata"
	"github.com/shimishnaByAndy/clinicalvault/internal/store/repositories/records"
)

// Sync-facing surface. Used only by the sync coordinator, which works on
// encrypted rows directly: plaintext never passes through the sync path.

// RecordCompliance is the clear-text compliance state of an encrypted row.
type RecordCompliance struct {
	ConsentObtained bool
	RegionalConsent bool
}

// ParseRecordCompliance extracts the consent flags stored alongside a
// ciphertext row, readable without decryption.
func ParseRecordCompliance(rec *models.EncryptedRecord) (RecordCompliance, error) {
	var sc storedCompliance
	if err := json.Unmarshal(rec.ComplianceJSON, &sc); err != nil {
		return RecordCompliance{}, fmt.Errorf("%w: compliance metadata: %v", common.ErrStorageFailure, err)
	}
	return RecordCompliance{
		ConsentObtained: sc.ConsentObtained,
		RegionalConsent: sc.RegionalConsent,
	}, nil
}

// ListByStatus returns encrypted rows in the given sync status.
func (s *Store) ListByStatus(ctx context.Context, status models.SyncStatus) ([]models.EncryptedRecord, error) {
	return records.NewSQLiteRepository(s.db).ListByStatus(ctx, status)
}

// GetRecord returns one raw encrypted row, or nil when absent.
func (s *Store) GetRecord(ctx context.Context, id string) (*models.EncryptedRecord, error) {
	return records.NewSQLiteRepository(s.db).GetByID(ctx, id)
}

// SetSyncState updates the sync status and version of one record.
func (s *Store) SetSyncState(ctx context.Context, id string, status models.SyncStatus, version int64) error {
	return records.NewSQLiteRepository(s.db).SetSyncState(ctx, id, status, version)
}

// PutRemoteRecord stores a record downloaded from the sync peer, marked
// Synced, together with an audit entry naming the sync actor. The ciphertext
// is stored as received; it was sealed under the same vault key on the
// originating device.
func (s *Store) PutRemoteRecord(ctx context.Context, rec *models.EncryptedRecord, actorID string) error {
	rec.SyncStatus = models.SyncStatusSynced
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recRepo := records.NewSQLiteRepository(tx)

		existing, err := recRepo.GetByID(ctx, rec.ID)
		if err != nil {
			return err
		}
		action := models.AuditActionCreate
		if existing != nil {
			action = models.AuditActionUpdate
		}

		if err := recRepo.Upsert(ctx, rec); err != nil {
			return err
		}
		return auditrepo.NewSQLiteRepository(tx).Insert(ctx,
			newAuditEntry(rec.ID, action, actorID, true, "remote download"))
	})
}

// LastSyncAt returns the persisted timestamp of the last fully successful
// sync cycle; the zero time means no cycle has completed yet.
func (s *Store) LastSyncAt(ctx context.Context) (time.Time, error) {
	value, err := metadata.NewSQLiteRepository(s.db).Get(ctx, metaKeyLastSync)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", common.ErrStorageFailure, err)
	}
	if value == nil {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, string(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parse last sync: %v", common.ErrStorageFailure, err)
	}
	return t, nil
}

// SetLastSyncAt persists the last successful sync timestamp so a restarted
// process resumes its download window instead of refetching history.
func (s *Store) SetLastSyncAt(ctx context.Context, t time.Time) error {
	return metadata.NewSQLiteRepository(s.db).Set(ctx, metaKeyLastSync,
		[]byte(t.UTC().Format(time.RFC3339Nano)))
}
