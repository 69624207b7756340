package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimishnaByAndy/clinicalvault/internal/common"
	"github.com/shimishnaByAndy/clinicalvault/internal/cryptox"
	"github.com/shimishnaByAndy/clinicalvault/internal/logging"
	"github.com/shimishnaByAndy/clinicalvault/internal/models"
	auditrepo "github.com/shimishnaByAndy/clinicalvault/internal/store/repositories/audit"
)

// fast argon2 parameters so every test open stays cheap
var testArgon2 = &cryptox.Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 32}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func openTestStoreAt(t *testing.T, path string, passphrase string) (*Store, error) {
	t.Helper()
	return Open(context.Background(), OpenConfig{
		Path:       path,
		Passphrase: []byte(passphrase),
		Argon2:     testArgon2,
	}, testLogger())
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := openTestStoreAt(t, filepath.Join(t.TempDir(), "vault.db"), "pass")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testNote(patientID string) *models.ClinicalNote {
	n := models.NewNoteWithDefaults(patientID, "progress")
	n.Content = "patient reports improved sleep"
	return n
}

func auditCount(t *testing.T, s *Store, noteID string) int {
	t.Helper()
	n, err := auditrepo.NewSQLiteRepository(s.DB()).CountByNote(context.Background(), noteID)
	require.NoError(t, err)
	return n
}

func TestSaveNote_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	note := testNote("p1")
	id, err := s.SaveNote(ctx, note, "dr-a")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, int64(1), note.Version)
	assert.Equal(t, models.SyncStatusPending, note.SyncStatus)
	assert.True(t, note.Encrypted)

	got, err := s.GetNote(ctx, id, "dr-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "patient reports improved sleep", got.Content)
	assert.Equal(t, "p1", got.PatientID)
	assert.Equal(t, "progress", got.TemplateType)
	assert.True(t, got.ConsentObtained)
	assert.Equal(t, models.DefaultRetentionDays, got.Compliance.RetentionDays)
}

func TestSaveNote_ContentNotStoredInClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	note := testNote("p1")
	id, err := s.SaveNote(ctx, note, "dr-a")
	require.NoError(t, err)

	rec, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotContains(t, string(rec.Ciphertext), "improved sleep")
	assert.Equal(t, cryptox.Checksum(rec.Ciphertext), rec.Checksum)
	assert.Equal(t, s.KeyID(), rec.KeyID)
}

func TestSaveNote_ComplianceGate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.ClinicalNote)
	}{
		{"missing consent", func(n *models.ClinicalNote) { n.ConsentObtained = false }},
		{"missing data minimization", func(n *models.ClinicalNote) { n.Compliance.DataMinimization = false }},
		{"missing retention", func(n *models.ClinicalNote) { n.Compliance.RetentionDays = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			ctx := context.Background()

			note := testNote("p1")
			note.ID = "fixed-id"
			tt.mutate(note)

			_, err := s.SaveNote(ctx, note, "dr-a")
			assert.ErrorIs(t, err, common.ErrComplianceViolation)

			// a rejected note leaves neither a record nor an audit entry
			rec, err := s.GetRecord(ctx, "fixed-id")
			require.NoError(t, err)
			assert.Nil(t, rec)
			assert.Equal(t, 0, auditCount(t, s, "fixed-id"))
		})
	}
}

func TestSaveNote_UpdateBumpsVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	note := testNote("p1")
	id, err := s.SaveNote(ctx, note, "dr-a")
	require.NoError(t, err)
	created := note.CreatedAt

	note.Content = "updated observations"
	_, err = s.SaveNote(ctx, note, "dr-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), note.Version)

	got, err := s.GetNote(ctx, id, "dr-a")
	require.NoError(t, err)
	assert.Equal(t, "updated observations", got.Content)
	assert.Equal(t, int64(2), got.Version)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestAuditTrail_OnePerOperation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	note := testNote("p1")
	id, err := s.SaveNote(ctx, note, "dr-a")
	require.NoError(t, err)
	assert.Equal(t, 1, auditCount(t, s, id))

	_, err = s.GetNote(ctx, id, "dr-b")
	require.NoError(t, err)
	assert.Equal(t, 2, auditCount(t, s, id))

	note.Content = "more"
	_, err = s.SaveNote(ctx, note, "dr-a")
	require.NoError(t, err)
	assert.Equal(t, 3, auditCount(t, s, id))

	entries, err := s.AuditTrail(ctx, id, "dr-a", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, models.AuditActionUpdate, entries[0].Action)
	assert.Equal(t, models.AuditActionRead, entries[1].Action)
	assert.Equal(t, models.AuditActionCreate, entries[2].Action)
	for _, e := range entries {
		assert.True(t, e.ProtectedContent)
		assert.Equal(t, models.AuditRetentionProtectedDays, e.RetentionDays)
	}

	// trail access is itself audited, with short retention
	assert.Equal(t, 4, auditCount(t, s, id))
	entries, err = s.AuditTrail(ctx, id, "dr-a", 10)
	require.NoError(t, err)
	assert.Equal(t, models.AuditActionAuditAccess, entries[0].Action)
	assert.False(t, entries[0].ProtectedContent)
	assert.Equal(t, models.AuditRetentionDefaultDays, entries[0].RetentionDays)
}

func TestGetNote_Absent(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetNote(context.Background(), "missing", "dr-a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetNote_TamperedCiphertext(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveNote(ctx, testNote("p1"), "dr-a")
	require.NoError(t, err)

	_, err = s.DB().ExecContext(ctx, `UPDATE records SET ciphertext = ? WHERE id = ?`,
		[]byte("tampered"), id)
	require.NoError(t, err)

	_, err = s.GetNote(ctx, id, "dr-a")
	assert.ErrorIs(t, err, common.ErrChecksumMismatch)
}

func TestGetNote_TamperedWithFixedChecksum(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveNote(ctx, testNote("p1"), "dr-a")
	require.NoError(t, err)

	tampered := []byte("tampered")
	_, err = s.DB().ExecContext(ctx, `UPDATE records SET ciphertext = ?, checksum = ? WHERE id = ?`,
		tampered, cryptox.Checksum(tampered), id)
	require.NoError(t, err)

	_, err = s.GetNote(ctx, id, "dr-a")
	assert.ErrorIs(t, err, common.ErrDecryptionFailure)
}

func TestListNotesForPatient_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, content := range []string{"first", "second", "third"} {
		n := testNote("p1")
		n.Content = content
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := s.SaveNote(ctx, n, "dr-a")
		require.NoError(t, err)
	}
	other := testNote("p2")
	_, err := s.SaveNote(ctx, other, "dr-a")
	require.NoError(t, err)

	notes, err := s.ListNotesForPatient(ctx, "p1", "dr-a", 10, 0)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, "third", notes[0].Content)
	assert.Equal(t, "second", notes[1].Content)
	assert.Equal(t, "first", notes[2].Content)

	page, err := s.ListNotesForPatient(ctx, "p1", "dr-a", 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "second", page[0].Content)
}

func TestDeleteNote(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveNote(ctx, testNote("p1"), "dr-a")
	require.NoError(t, err)

	require.NoError(t, s.DeleteNote(ctx, id, "dr-a"))

	got, err := s.GetNote(ctx, id, "dr-a")
	require.NoError(t, err)
	assert.Nil(t, got)

	// the deletion itself stays on record
	entries, err := s.AuditTrail(ctx, id, "dr-a", 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, models.AuditActionDelete, entries[0].Action)
}

func TestDeleteNote_MissingLeavesNoAudit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.DeleteNote(ctx, "missing", "dr-a")
	assert.ErrorIs(t, err, common.ErrNotFound)
	// rolled back together with the audit entry
	assert.Equal(t, 0, auditCount(t, s, "missing"))
}

func TestOpen_WrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")

	s, err := openTestStoreAt(t, path, "correct")
	require.NoError(t, err)
	_, err = s.SaveNote(context.Background(), testNote("p1"), "dr-a")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = openTestStoreAt(t, path, "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrEncryptionFailure)
}

func TestOpen_ReopenWithSamePassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")

	s, err := openTestStoreAt(t, path, "pass")
	require.NoError(t, err)
	id, err := s.SaveNote(context.Background(), testNote("p1"), "dr-a")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := openTestStoreAt(t, path, "pass")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })

	got, err := s2.GetNote(context.Background(), id, "dr-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "patient reports improved sleep", got.Content)
}
