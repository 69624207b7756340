// Package store implements the encrypted record store: durable,
// encrypted-at-rest persistence of clinical notes and their audit trail in
// an embedded SQLite database.
//
// Every operation that writes a note row also writes exactly one audit entry
// in the same transaction, so neither can exist without the other.
package store

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/shimishnaByAndy/clinicalvault/internal/common"
	"github.com/shimishnaByAndy/clinicalvault/internal/cryptox"
	"github.com/shimishnaByAndy/clinicalvault/internal/dbx"
	"github.com/shimishnaByAndy/clinicalvault/internal/logging"
	"github.com/shimishnaByAndy/clinicalvault/internal/models"
	"github.com/shimishnaByAndy/clinicalvault/internal/store/migrations"
	auditrepo "github.com/shimishnaByAndy/clinicalvault/internal/store/repositories/audit"
	"github.com/shimishnaByAndy/clinicalvault/internal/store/repositories/metadata"
	"github.com/shimishnaByAndy/clinicalvault/internal/store/repositories/records"
)

// appSalt is the fixed application salt mixed into passphrase key derivation.
// The same passphrase therefore always yields the same key across restarts,
// which is what lets an existing vault be reopened. There is no key-rotation
// path.
var appSalt = []byte("clinicalvault/records/v1")

const (
	metaKeyVerifier = "key_verifier"
	metaKeyLastSync = "last_sync_at"
)

// contentEnvelope is what actually gets sealed into a record's ciphertext.
type contentEnvelope struct {
	Content string `json:"content"`
}

// storedCompliance is the clear-text compliance column. Consent flags must be
// readable without decryption so the sync coordinator can run its pre-upload
// check on ciphertext rows.
type storedCompliance struct {
	ConsentObtained bool `json:"consent_obtained"`
	Deidentified    bool `json:"deidentified"`
	models.ComplianceMetadata
}

// OpenConfig carries the parameters for opening a vault.
type OpenConfig struct {
	// Path is the SQLite DSN, e.g. a file path or ":memory:".
	Path string
	// Passphrase is the caller-supplied secret. The store derives its key
	// from it and does not retain it.
	Passphrase []byte
	// Argon2 overrides the key-derivation parameters; nil means defaults.
	Argon2 *cryptox.Argon2Params
}

// Store is the encrypted record store. All operations are single short-lived
// transactions; it is safe to use concurrently with an in-progress sync cycle.
type Store struct {
	db    *sql.DB
	key   []byte
	keyID string
	log   logging.Logger
}

// Open derives the vault key from the passphrase, opens (creating if absent)
// the on-disk schema, and verifies that the passphrase matches the one the
// vault was created with.
func Open(ctx context.Context, cfg OpenConfig, log logging.Logger) (*Store, error) {
	key := cryptox.DeriveKey(cfg.Passphrase, appSalt, cfg.Argon2)

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", common.ErrStorageFailure, err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrations: %v", common.ErrStorageFailure, err)
	}

	s := &Store{db: db, key: key, keyID: cryptox.KeyID(key), log: log}

	if err := s.checkVerifier(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info(ctx, "vault opened", "key_id", s.keyID)
	return s, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// checkVerifier stores a key verifier on first open and compares it on every
// later open, so a wrong passphrase fails fast instead of producing
// per-record decryption errors.
func (s *Store) checkVerifier(ctx context.Context) error {
	repo := metadata.NewSQLiteRepository(s.db)

	saved, err := repo.Get(ctx, metaKeyVerifier)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorageFailure, err)
	}

	verifier := cryptox.MakeVerifier(s.key)
	if saved == nil {
		return repo.Set(ctx, metaKeyVerifier, verifier)
	}
	if subtle.ConstantTimeCompare(saved, verifier) != 1 {
		return fmt.Errorf("%w: passphrase does not match existing vault", common.ErrEncryptionFailure)
	}
	return nil
}

// Close releases the database handle and wipes the derived key.
func (s *Store) Close() error {
	common.WipeByteArray(s.key)
	return s.db.Close()
}

// DB exposes the underlying handle so sibling components (the compliance
// tracker) can share the same database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// KeyID returns the identifier of the active derived key.
func (s *Store) KeyID() string {
	return s.keyID
}

func validateCompliance(note *models.ClinicalNote) error {
	if !note.ConsentObtained {
		return fmt.Errorf("%w: missing consent", common.ErrComplianceViolation)
	}
	if !note.Compliance.DataMinimization {
		return fmt.Errorf("%w: missing data-minimization flag", common.ErrComplianceViolation)
	}
	if note.Compliance.RetentionDays <= 0 {
		return fmt.Errorf("%w: missing retention period", common.ErrComplianceViolation)
	}
	return nil
}

func newAuditEntry(noteID, action, actor string, protected bool, context string) *models.AuditEntry {
	return &models.AuditEntry{
		ID:               uuid.NewString(),
		NoteID:           noteID,
		Timestamp:        time.Now().UTC(),
		Action:           action,
		Actor:            actor,
		ProtectedContent: protected,
		Context:          context,
		RetentionDays:    models.AuditRetention(protected),
	}
}

// SaveNote validates the compliance invariant, encrypts the note content and
// upserts the record together with one audit entry, atomically. A failure at
// any step leaves the store unchanged. Returns the note ID.
func (s *Store) SaveNote(ctx context.Context, note *models.ClinicalNote, actorID string) (string, error) {
	if err := validateCompliance(note); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.ModifiedAt = now

	ciphertext, nonce, err := cryptox.EncryptJSON(contentEnvelope{Content: note.Content}, s.key)
	if err != nil {
		return "", err
	}

	note.Encrypted = true
	note.Deidentified = true

	complianceJSON, err := json.Marshal(storedCompliance{
		ConsentObtained:    note.ConsentObtained,
		Deidentified:       note.Deidentified,
		ComplianceMetadata: note.Compliance,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal compliance: %v", common.ErrStorageFailure, err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recRepo := records.NewSQLiteRepository(tx)

		existing, err := recRepo.GetByID(ctx, note.ID)
		if err != nil {
			return err
		}

		action := models.AuditActionCreate
		version := int64(1)
		if existing != nil {
			action = models.AuditActionUpdate
			version = existing.Version + 1
			note.CreatedAt = existing.CreatedAt
		}
		note.Version = version
		note.SyncStatus = models.SyncStatusPending

		rec := &models.EncryptedRecord{
			ID:             note.ID,
			PatientID:      note.PatientID,
			TemplateType:   note.TemplateType,
			Ciphertext:     ciphertext,
			Nonce:          nonce,
			Checksum:       cryptox.Checksum(ciphertext),
			KeyID:          s.keyID,
			ContentHash:    cryptox.HashText(note.Content),
			ComplianceJSON: complianceJSON,
			SyncStatus:     note.SyncStatus,
			Version:        version,
			CreatedAt:      note.CreatedAt,
			ModifiedAt:     note.ModifiedAt,
		}
		if err := recRepo.Upsert(ctx, rec); err != nil {
			return err
		}

		return auditrepo.NewSQLiteRepository(tx).Insert(ctx,
			newAuditEntry(note.ID, action, actorID, true, ""))
	})
	if err != nil {
		return "", err
	}

	s.log.Debug(ctx, "note saved", "note_id", note.ID, "version", note.Version)
	return note.ID, nil
}

// decryptRecord verifies the checksum and key, decrypts and rebuilds the
// in-memory note. Corrupted rows fail before decryption is attempted.
func (s *Store) decryptRecord(rec *models.EncryptedRecord) (*models.ClinicalNote, error) {
	if cryptox.Checksum(rec.Ciphertext) != rec.Checksum {
		return nil, fmt.Errorf("%w: record %s", common.ErrChecksumMismatch, rec.ID)
	}
	if rec.KeyID != s.keyID {
		return nil, fmt.Errorf("%w: record %s sealed under key %s", common.ErrDecryptionFailure, rec.ID, rec.KeyID)
	}

	var env contentEnvelope
	if err := cryptox.DecryptJSON(rec.Ciphertext, rec.Nonce, s.key, &env); err != nil {
		return nil, err
	}

	var sc storedCompliance
	if err := json.Unmarshal(rec.ComplianceJSON, &sc); err != nil {
		return nil, fmt.Errorf("%w: compliance metadata: %v", common.ErrStorageFailure, err)
	}

	return &models.ClinicalNote{
		ID:              rec.ID,
		PatientID:       rec.PatientID,
		TemplateType:    rec.TemplateType,
		Content:         env.Content,
		CreatedAt:       rec.CreatedAt,
		ModifiedAt:      rec.ModifiedAt,
		ConsentObtained: sc.ConsentObtained,
		Deidentified:    sc.Deidentified,
		Encrypted:       true,
		SyncStatus:      rec.SyncStatus,
		Version:         rec.Version,
		Compliance:      sc.ComplianceMetadata,
	}, nil
}

// GetNote returns the decrypted note, or (nil, nil) when the ID does not
// exist. Retrieval is audited; a checksum mismatch or decryption failure is a
// hard error, never silently ignored.
func (s *Store) GetNote(ctx context.Context, id, actorID string) (*models.ClinicalNote, error) {
	rec, err := records.NewSQLiteRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	note, err := s.decryptRecord(rec)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return auditrepo.NewSQLiteRepository(tx).Insert(ctx,
			newAuditEntry(id, models.AuditActionRead, actorID, true, ""))
	})
	if err != nil {
		return nil, err
	}

	return note, nil
}

// ListNotesForPatient returns decrypted notes for one patient ordered by
// creation time descending. The listing is audited with a single aggregated
// entry, not one per note.
func (s *Store) ListNotesForPatient(ctx context.Context, patientID, actorID string, limit, offset int) ([]models.ClinicalNote, error) {
	recs, err := records.NewSQLiteRepository(s.db).ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, err
	}

	notes := make([]models.ClinicalNote, 0, len(recs))
	for i := range recs {
		note, err := s.decryptRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		notes = append(notes, *note)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return auditrepo.NewSQLiteRepository(tx).Insert(ctx,
			newAuditEntry("", models.AuditActionList, actorID, true,
				fmt.Sprintf("patient=%s returned=%d offset=%d", patientID, len(notes), offset)))
	})
	if err != nil {
		return nil, err
	}

	return notes, nil
}

// DeleteNote removes a note row. The audit entry is written before the row
// is removed, inside the same transaction, so a deletion is always provably
// logged. Missing IDs report common.ErrNotFound.
func (s *Store) DeleteNote(ctx context.Context, id, actorID string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := auditrepo.NewSQLiteRepository(tx).Insert(ctx,
			newAuditEntry(id, models.AuditActionDelete, actorID, true, "")); err != nil {
			return err
		}
		return records.NewSQLiteRepository(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.Debug(ctx, "note deleted", "note_id", id)
	return nil
}

// AuditTrail returns audit entries for one note (newest first), or the most
// recent entries across all notes when noteID is empty. The trail access is
// itself audited.
func (s *Store) AuditTrail(ctx context.Context, noteID, actorID string, limit int) ([]models.AuditEntry, error) {
	repo := auditrepo.NewSQLiteRepository(s.db)

	var entries []models.AuditEntry
	var err error
	if noteID == "" {
		entries, err = repo.ListRecent(ctx, limit)
	} else {
		entries, err = repo.ListByNote(ctx, noteID, limit)
	}
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return auditrepo.NewSQLiteRepository(tx).Insert(ctx,
			newAuditEntry(noteID, models.AuditActionAuditAccess, actorID, false, ""))
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}
