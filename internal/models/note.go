// Package models defines the clinical-record data types shared by the store,
// the compliance tracker and the sync coordinator.
package models

import "time"

// SyncStatus governs how the sync coordinator treats a note.
type SyncStatus string

const (
	// SyncStatusLocal marks a note that has never left this device.
	SyncStatusLocal SyncStatus = "local"
	// SyncStatusPending marks a note with local edits awaiting upload.
	SyncStatusPending SyncStatus = "pending"
	// SyncStatusSynced marks a note identical to the remote copy.
	SyncStatusSynced SyncStatus = "synced"
	// SyncStatusConflict marks a note whose local and remote versions diverged
	// (or whose upload failed) and which needs resolution before further sync.
	SyncStatusConflict SyncStatus = "conflict"
)

// ComplianceMetadata captures the consent and retention state a note must
// carry before it may be persisted.
type ComplianceMetadata struct {
	// ExplicitConsent records that the subject's consent covers this note.
	ExplicitConsent bool `json:"explicit_consent"`

	// RegionalConsent records consent under the stricter regional privacy
	// regime; re-checked before any upload.
	RegionalConsent bool `json:"regional_consent"`

	// DataMinimization asserts the note holds no more data than needed.
	DataMinimization bool `json:"data_minimization"`

	// RetentionDays is the minimum retention period; must be > 0.
	RetentionDays int `json:"retention_days"`

	// OrganizationRef optionally references the professional order or license
	// under which the note was produced.
	OrganizationRef string `json:"organization_ref,omitempty"`

	// AuditTrail embeds the entries recorded for this note when the caller
	// asks for them alongside the note itself.
	AuditTrail []AuditEntry `json:"audit_trail,omitempty"`
}

// ClinicalNote is a single free-text clinical record. Content only ever
// exists in memory; the store persists it encrypted.
type ClinicalNote struct {
	// ID is a globally unique identifier, generated at creation if absent.
	ID string `json:"id"`

	// PatientID and TemplateType are classification/grouping keys.
	PatientID    string `json:"patient_id"`
	TemplateType string `json:"template_type"`

	// Content is the plaintext note body. Never persisted unencrypted.
	Content string `json:"content"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`

	// ConsentObtained must be true before the note can be stored.
	ConsentObtained bool `json:"consent_obtained"`

	// Deidentified and Encrypted are status flags, always true once the
	// store has persisted the note.
	Deidentified bool `json:"deidentified"`
	Encrypted    bool `json:"encrypted"`

	SyncStatus SyncStatus `json:"sync_status"`

	// Version is a monotonic counter used for sync/merge decisions.
	Version int64 `json:"version"`

	Compliance ComplianceMetadata `json:"compliance"`
}

// DefaultRetentionDays is applied to new notes: clinical records are kept
// seven years.
const DefaultRetentionDays = 2555

// NewNoteWithDefaults returns a Local note pre-filled with compliant
// defaults for the given patient and template.
func NewNoteWithDefaults(patientID, templateType string) *ClinicalNote {
	now := time.Now().UTC()
	return &ClinicalNote{
		PatientID:       patientID,
		TemplateType:    templateType,
		CreatedAt:       now,
		ModifiedAt:      now,
		ConsentObtained: true,
		SyncStatus:      SyncStatusLocal,
		Compliance: ComplianceMetadata{
			ExplicitConsent:  true,
			RegionalConsent:  true,
			DataMinimization: true,
			RetentionDays:    DefaultRetentionDays,
		},
	}
}
