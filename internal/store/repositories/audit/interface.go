package audit

import (
	"context"

	"github.com/shimishnaByAndy/clinicalvault/internal/models"
)

// Repository persists per-note audit entries. The table is append-only:
// there are deliberately no update or delete operations.
type Repository interface {
	// Insert appends one entry.
	Insert(ctx context.Context, e *models.AuditEntry) error

	// ListByNote returns entries for one note, newest first.
	ListByNote(ctx context.Context, noteID string, limit int) ([]models.AuditEntry, error)

	// ListRecent returns the most recent entries across all notes.
	ListRecent(ctx context.Context, limit int) ([]models.AuditEntry, error)

	// CountByNote returns the number of entries recorded for one note.
	CountByNote(ctx context.Context, noteID string) (int, error)
}
