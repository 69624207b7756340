package models

import "time"

// Audit action verbs recorded by the store.
const (
	AuditActionCreate      = "create"
	AuditActionRead        = "read"
	AuditActionUpdate      = "update"
	AuditActionDelete      = "delete"
	AuditActionList        = "list"
	AuditActionAuditAccess = "audit_access"
)

// AuditEntry is one append-only access record. Entries are created once per
// operation and never mutated or deleted before their retention period ends.
type AuditEntry struct {
	ID string `json:"id"`

	// NoteID references the record the entry is about; empty for aggregate
	// operations such as trail access across all notes.
	NoteID string `json:"note_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Action is one of the AuditAction verbs.
	Action string `json:"action"`

	// Actor is the caller identity supplied by the session layer.
	Actor string `json:"actor"`

	// ProtectedContent marks whether the operation touched protected content.
	ProtectedContent bool `json:"protected_content"`

	// Context optionally carries network/session context.
	Context string `json:"context,omitempty"`

	// RetentionDays is how long this entry must be kept.
	RetentionDays int `json:"retention_days"`
}

// Audit retention defaults: seven years when protected content is involved,
// one year otherwise.
const (
	AuditRetentionProtectedDays = 2555
	AuditRetentionDefaultDays   = 365
)

// AuditRetention returns the retention period for an entry.
func AuditRetention(protectedContent bool) int {
	if protectedContent {
		return AuditRetentionProtectedDays
	}
	return AuditRetentionDefaultDays
}
