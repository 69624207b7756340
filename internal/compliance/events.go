// Package compliance implements the audit tracker: structured compliance
// events with enforced minimum retention, aggregate reporting, and the
// note-creation validation contract.
package compliance

import "time"

// EventType tags a structured compliance event.
type EventType string

const (
	EventNoteCreated        EventType = "note_created"
	EventNoteAccessed       EventType = "note_accessed"
	EventNoteUpdated        EventType = "note_updated"
	EventNoteDeleted        EventType = "note_deleted"
	EventConsentRecorded    EventType = "consent_recorded"
	EventConsentWithdrawn   EventType = "consent_withdrawn"
	EventDataSubjectRequest EventType = "data_subject_request"
	EventBreachDetected     EventType = "breach_detected"
	EventDataDeidentified   EventType = "data_deidentified"
	EventAuditAccessed      EventType = "audit_trail_accessed"
)

// ResourceClinicalNote always gets long retention, whether or not the event
// is flagged as touching protected content.
const ResourceClinicalNote = "clinical_note"

// Retention periods in days.
const (
	RetentionLongDays  = 2555 // seven years
	RetentionShortDays = 365
)

// Event is one compliance event to record.
type Event struct {
	Type EventType

	// Payload is serialized to JSON and stored verbatim.
	Payload any

	ActorID   string
	SubjectID string

	ResourceType string
	ResourceID   string

	// Action is the verb of the underlying operation, e.g. "create".
	Action string

	// ProtectedContent marks events that touched protected content.
	ProtectedContent bool
}

// EventContext carries optional network/session context for an event.
type EventContext struct {
	IPAddress string `json:"ip_address,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// StoredEvent is an event as read back from the audit table.
type StoredEvent struct {
	ID            string
	Type          EventType
	Payload       []byte
	ActorID       string
	SubjectID     string
	ResourceType  string
	ResourceID    string
	Action        string
	Protected     bool
	RetentionDays int
	CreatedAt     time.Time
}

// retentionFor computes the retention period of an event: long whenever
// protected content is involved or the resource is a clinical note.
func retentionFor(ev Event) int {
	if ev.ProtectedContent || ev.ResourceType == ResourceClinicalNote {
		return RetentionLongDays
	}
	return RetentionShortDays
}
