package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shimishnaByAndy/clinicalvault/internal/common"
	"github.com/shimishnaByAndy/clinicalvault/internal/logging"
)

// Fixed-width RFC 3339 so lexicographic comparisons on created_at match
// chronological ones.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Tracker records compliance events in the shared vault database. Events are
// append-only; nothing here updates or deletes a stored row.
type Tracker struct {
	db    *sql.DB
	creds CredentialDirectory
	log   logging.Logger
}

// NewTracker returns a Tracker writing to the compliance_events table of db.
func NewTracker(db *sql.DB, creds CredentialDirectory, log logging.Logger) *Tracker {
	return &Tracker{db: db, creds: creds, log: log}
}

// storedPayload wraps the caller payload with the optional session context
// so both land in a single JSON column.
type storedPayload struct {
	Event   any           `json:"event"`
	Context *EventContext `json:"context,omitempty"`
}

// LogEvent maps the event deterministically onto an audit row and appends
// it. Returns the generated audit ID.
func (t *Tracker) LogEvent(ctx context.Context, ev Event, evCtx *EventContext) (string, error) {
	payload, err := json.Marshal(storedPayload{Event: ev.Payload, Context: evCtx})
	if err != nil {
		return "", fmt.Errorf("%w: marshal event payload: %v", common.ErrStorageFailure, err)
	}

	id := uuid.NewString()
	_, err = t.db.ExecContext(ctx, `INSERT INTO compliance_events
		(id, event_type, payload, actor_id, subject_id, resource_type,
		 resource_id, action, protected, retention_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(ev.Type), string(payload), ev.ActorID, ev.SubjectID,
		ev.ResourceType, ev.ResourceID, ev.Action, ev.ProtectedContent,
		retentionFor(ev), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("%w: failed to insert compliance event: %v", common.ErrStorageFailure, err)
	}

	t.log.Debug(ctx, "compliance event recorded", "type", string(ev.Type), "audit_id", id)
	return id, nil
}

// Trail returns events for one resource, newest first.
func (t *Tracker) Trail(ctx context.Context, resourceType, resourceID string, limit int) ([]StoredEvent, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT
		id, event_type, payload, actor_id, subject_id, resource_type,
		resource_id, action, protected, retention_days, created_at
		FROM compliance_events
		WHERE resource_type = ? AND resource_id = ?
		ORDER BY created_at DESC LIMIT ?`,
		resourceType, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select compliance events: %v", common.ErrStorageFailure, err)
	}
	defer rows.Close()

	var result []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var eventType, payload, createdAt string
		if err := rows.Scan(&e.ID, &eventType, &payload, &e.ActorID, &e.SubjectID,
			&e.ResourceType, &e.ResourceID, &e.Action, &e.Protected,
			&e.RetentionDays, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan compliance event: %v", common.ErrStorageFailure, err)
		}
		e.Type = EventType(eventType)
		e.Payload = []byte(payload)
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("%w: parse created_at: %v", common.ErrStorageFailure, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageFailure, err)
	}
	return result, nil
}

// Report aggregates compliance events inside [from, to].
type Report struct {
	From time.Time
	To   time.Time

	// EventCounts maps event type to occurrence count.
	EventCounts map[EventType]int

	// ProtectedAccessCount counts events that touched protected content.
	ProtectedAccessCount int

	// ViolationCount counts breach-detected events.
	ViolationCount int

	// RetentionBuckets maps retention period (days) to event count.
	RetentionBuckets map[int]int
}

// GenerateReport produces the aggregate compliance report for a period.
func (t *Tracker) GenerateReport(ctx context.Context, from, to time.Time) (*Report, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT event_type, protected, retention_days
		FROM compliance_events WHERE created_at >= ? AND created_at <= ?`,
		from.UTC().Format(timeLayout), to.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select compliance events: %v", common.ErrStorageFailure, err)
	}
	defer rows.Close()

	report := &Report{
		From:             from,
		To:               to,
		EventCounts:      make(map[EventType]int),
		RetentionBuckets: make(map[int]int),
	}

	for rows.Next() {
		var eventType string
		var protected bool
		var retention int
		if err := rows.Scan(&eventType, &protected, &retention); err != nil {
			return nil, fmt.Errorf("%w: failed to scan compliance event: %v", common.ErrStorageFailure, err)
		}

		report.EventCounts[EventType(eventType)]++
		report.RetentionBuckets[retention]++
		if protected {
			report.ProtectedAccessCount++
		}
		if EventType(eventType) == EventBreachDetected {
			report.ViolationCount++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageFailure, err)
	}

	return report, nil
}
