package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimishnaByAndy/clinicalvault/internal/logging"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE compliance_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  payload TEXT NOT NULL,
  actor_id TEXT NOT NULL DEFAULT '',
  subject_id TEXT NOT NULL DEFAULT '',
  resource_type TEXT NOT NULL DEFAULT '',
  resource_id TEXT NOT NULL DEFAULT '',
  action TEXT NOT NULL DEFAULT '',
  protected INTEGER NOT NULL DEFAULT 0,
  retention_days INTEGER NOT NULL,
  created_at TEXT NOT NULL
);
CREATE TABLE practitioner_credentials (
  actor_id TEXT PRIMARY KEY,
  license_no TEXT NOT NULL,
  organization TEXT NOT NULL DEFAULT '',
  expires_at TEXT NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestTracker(t *testing.T) (*Tracker, *sql.DB) {
	t.Helper()
	db := setupDB(t)
	creds := NewSQLiteCredentialDirectory(db)
	return NewTracker(db, creds, testLogger()), db
}

func TestLogEvent_RetentionRules(t *testing.T) {
	tracker, db := newTestTracker(t)
	ctx := context.Background()

	tests := []struct {
		name string
		ev   Event
		want int
	}{
		{
			name: "protected content gets long retention",
			ev:   Event{Type: EventNoteAccessed, ProtectedContent: true},
			want: RetentionLongDays,
		},
		{
			name: "clinical note resource gets long retention even when unprotected",
			ev:   Event{Type: EventAuditAccessed, ResourceType: ResourceClinicalNote},
			want: RetentionLongDays,
		},
		{
			name: "everything else gets short retention",
			ev:   Event{Type: EventConsentRecorded},
			want: RetentionShortDays,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := tracker.LogEvent(ctx, tt.ev, nil)
			require.NoError(t, err)

			var got int
			require.NoError(t, db.QueryRow(
				`SELECT retention_days FROM compliance_events WHERE id = ?`, id).Scan(&got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogEvent_PayloadAndContextStored(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.LogEvent(ctx, Event{
		Type:         EventNoteCreated,
		ActorID:      "dr-a",
		SubjectID:    "p1",
		ResourceType: ResourceClinicalNote,
		ResourceID:   "n1",
		Action:       "create",
		Payload:      map[string]string{"template": "progress"},
	}, &EventContext{SessionID: "sess-9"})
	require.NoError(t, err)

	events, err := tracker.Trail(ctx, ResourceClinicalNote, "n1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, EventNoteCreated, e.Type)
	assert.Equal(t, "dr-a", e.ActorID)
	assert.Equal(t, "p1", e.SubjectID)
	assert.Equal(t, "create", e.Action)

	var payload storedPayload
	require.NoError(t, json.Unmarshal(e.Payload, &payload))
	require.NotNil(t, payload.Context)
	assert.Equal(t, "sess-9", payload.Context.SessionID)
}

func TestTrail_NewestFirstScopedToResource(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	for _, ev := range []Event{
		{Type: EventNoteCreated, ResourceType: ResourceClinicalNote, ResourceID: "n1"},
		{Type: EventNoteAccessed, ResourceType: ResourceClinicalNote, ResourceID: "n1"},
		{Type: EventNoteCreated, ResourceType: ResourceClinicalNote, ResourceID: "n2"},
	} {
		_, err := tracker.LogEvent(ctx, ev, nil)
		require.NoError(t, err)
	}

	events, err := tracker.Trail(ctx, ResourceClinicalNote, "n1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventNoteAccessed, events[0].Type)
	assert.Equal(t, EventNoteCreated, events[1].Type)
}

func TestGenerateReport(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	for _, ev := range []Event{
		{Type: EventNoteCreated, ResourceType: ResourceClinicalNote, ResourceID: "n1", ProtectedContent: true},
		{Type: EventNoteAccessed, ResourceType: ResourceClinicalNote, ResourceID: "n1", ProtectedContent: true},
		{Type: EventNoteAccessed, ResourceType: ResourceClinicalNote, ResourceID: "n2", ProtectedContent: true},
		{Type: EventBreachDetected, ResourceID: "n2"},
		{Type: EventConsentRecorded, SubjectID: "p1"},
	} {
		_, err := tracker.LogEvent(ctx, ev, nil)
		require.NoError(t, err)
	}

	report, err := tracker.GenerateReport(ctx,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, report.EventCounts[EventNoteCreated])
	assert.Equal(t, 2, report.EventCounts[EventNoteAccessed])
	assert.Equal(t, 1, report.EventCounts[EventBreachDetected])
	assert.Equal(t, 3, report.ProtectedAccessCount)
	assert.Equal(t, 1, report.ViolationCount)
	assert.Equal(t, 3, report.RetentionBuckets[RetentionLongDays])
	assert.Equal(t, 2, report.RetentionBuckets[RetentionShortDays])
}

func TestGenerateReport_WindowExcludesOutsideEvents(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.LogEvent(ctx, Event{Type: EventNoteCreated}, nil)
	require.NoError(t, err)

	report, err := tracker.GenerateReport(ctx,
		time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, report.EventCounts)
}
