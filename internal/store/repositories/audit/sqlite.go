package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/shimishnaByAndy/clinicalvault/internal/common"
	"github.com/shimishnaByAndy/clinicalvault/internal/dbx"
	"github.com/shimishnaByAndy/clinicalvault/internal/models"
)

// Fixed-width RFC 3339 so lexicographic ordering on created_at matches
// chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, e *models.AuditEntry) error {
	query := `INSERT INTO note_audit
			(id, note_id, action, actor, protected, context, retention_days, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.NoteID, e.Action, e.Actor, e.ProtectedContent, e.Context,
		e.RetentionDays, e.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("%w: failed to insert audit entry: %v", common.ErrStorageFailure, err)
	}
	return nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select audit entries: %v", common.ErrStorageFailure, err)
	}
	defer rows.Close()

	var result []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.NoteID, &e.Action, &e.Actor,
			&e.ProtectedContent, &e.Context, &e.RetentionDays, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan audit entry: %v", common.ErrStorageFailure, err)
		}
		if e.Timestamp, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("%w: parse timestamp: %v", common.ErrStorageFailure, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageFailure, err)
	}
	return result, nil
}

const selectColumns = `id, note_id, action, actor, protected, context, retention_days, created_at`

func (r *SQLiteRepository) ListByNote(ctx context.Context, noteID string, limit int) ([]models.AuditEntry, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM note_audit
		WHERE note_id = ? ORDER BY created_at DESC LIMIT ?`, noteID, limit)
}

func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM note_audit
		ORDER BY created_at DESC LIMIT ?`, limit)
}

func (r *SQLiteRepository) CountByNote(ctx context.Context, noteID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM note_audit WHERE note_id = ?`, noteID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count audit entries: %v", common.ErrStorageFailure, err)
	}
	return count, nil
}
