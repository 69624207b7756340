package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shimishnaByAndy/clinicalvault/internal/common"
	"github.com/shimishnaByAndy/clinicalvault/internal/dbx"
	"github.com/shimishnaByAndy/clinicalvault/internal/models"
)

// Timestamps are persisted as fixed-width RFC 3339 text: lexicographic
// ordering then matches chronological ordering, which the created_at
// indexes rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.EncryptedRecord) error {
	query := `INSERT INTO records
			(id, patient_id, template_type, ciphertext, nonce, checksum, key_id,
			 content_hash, compliance, sync_status, version, created_at, modified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				patient_id = excluded.patient_id,
				template_type = excluded.template_type,
				ciphertext = excluded.ciphertext,
				nonce = excluded.nonce,
				checksum = excluded.checksum,
				key_id = excluded.key_id,
				content_hash = excluded.content_hash,
				compliance = excluded.compliance,
				sync_status = excluded.sync_status,
				version = excluded.version,
				modified_at = excluded.modified_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.PatientID, rec.TemplateType, rec.Ciphertext, rec.Nonce,
		rec.Checksum, rec.KeyID, rec.ContentHash, string(rec.ComplianceJSON),
		string(rec.SyncStatus), rec.Version,
		rec.CreatedAt.UTC().Format(timeLayout), rec.ModifiedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("%w: failed to upsert record: %v", common.ErrStorageFailure, err)
	}
	return nil
}

const selectColumns = `id, patient_id, template_type, ciphertext, nonce, checksum,
	key_id, content_hash, compliance, sync_status, version, created_at, modified_at`

func scanRecord(scan func(dest ...any) error) (*models.EncryptedRecord, error) {
	rec := &models.EncryptedRecord{}
	var compliance, status, createdAt, modifiedAt string
	err := scan(&rec.ID, &rec.PatientID, &rec.TemplateType, &rec.Ciphertext,
		&rec.Nonce, &rec.Checksum, &rec.KeyID, &rec.ContentHash, &compliance,
		&status, &rec.Version, &createdAt, &modifiedAt)
	if err != nil {
		return nil, err
	}
	rec.ComplianceJSON = []byte(compliance)
	rec.SyncStatus = models.SyncStatus(status)
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.ModifiedAt, err = time.Parse(timeLayout, modifiedAt); err != nil {
		return nil, fmt.Errorf("parse modified_at: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.EncryptedRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM records WHERE id = ?`, id)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select record: %v", common.ErrStorageFailure, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.EncryptedRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select records: %v", common.ErrStorageFailure, err)
	}
	defer rows.Close()

	var result []models.EncryptedRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan record: %v", common.ErrStorageFailure, err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageFailure, err)
	}
	return result, nil
}

func (r *SQLiteRepository) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]models.EncryptedRecord, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM records
		WHERE patient_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		patientID, limit, offset)
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, status models.SyncStatus) ([]models.EncryptedRecord, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM records
		WHERE sync_status = ? ORDER BY modified_at ASC`, string(status))
}

func (r *SQLiteRepository) SetSyncState(ctx context.Context, id string, status models.SyncStatus, version int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET sync_status = ?, version = ? WHERE id = ?`,
		string(status), version, id)
	if err != nil {
		return fmt.Errorf("%w: failed to update sync state: %v", common.ErrStorageFailure, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected: %v", common.ErrStorageFailure, err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete record: %v", common.ErrStorageFailure, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected: %v", common.ErrStorageFailure, err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}
