package models

import "time"

// ConflictKind classifies how a conflict came to be.
type ConflictKind string

const (
	// ConflictKindDivergent means both sides changed since the last sync.
	ConflictKindDivergent ConflictKind = "divergent"
	// ConflictKindUploadFailed means the upload of a pending note failed.
	ConflictKindUploadFailed ConflictKind = "upload_failed"
	// ConflictKindNoncompliant means the note failed its pre-upload
	// compliance re-check and was withheld from transmission.
	ConflictKindNoncompliant ConflictKind = "noncompliant"
)

// SyncConflict pairs the local and remote versions of a note whose histories
// diverged. Created by the sync coordinator, destroyed when resolved.
type SyncConflict struct {
	NoteID string `json:"note_id"`

	Kind ConflictKind `json:"kind"`

	LocalVersion  int64 `json:"local_version"`
	RemoteVersion int64 `json:"remote_version"`

	LocalModifiedAt  time.Time `json:"local_modified_at"`
	RemoteModifiedAt time.Time `json:"remote_modified_at"`

	// Detail carries a human-readable reason, e.g. the upload error.
	Detail string `json:"detail,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}
