package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shimishnaByAndy/clinicalvault/internal/common"
	"github.com/shimishnaByAndy/clinicalvault/internal/compliance"
	"github.com/shimishnaByAndy/clinicalvault/internal/deident"
	"github.com/shimishnaByAndy/clinicalvault/internal/models"
)

// Add creates a note with compliant defaults, runs the content through the
// regional de-identification tier, and stores it.
func (a *App) Add(ctx context.Context) {
	patientID, err := GetSimpleText(a.reader, "Patient ID", os.Stdout)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	templateType, err := GetSimpleText(a.reader, "Template type", os.Stdout)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	content, err := GetSimpleText(a.reader, "Note text", os.Stdout)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	result, err := deident.Deidentify(content, deident.LevelRegional)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	note := models.NewNoteWithDefaults(patientID, templateType)
	note.Content = result.CleanedText

	id, err := a.store.SaveNote(ctx, note, a.actor)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	_, _ = a.tracker.LogEvent(ctx, compliance.Event{
		Type:             compliance.EventNoteCreated,
		ActorID:          a.actor,
		SubjectID:        patientID,
		ResourceType:     compliance.ResourceClinicalNote,
		ResourceID:       id,
		Action:           models.AuditActionCreate,
		ProtectedContent: true,
	}, nil)

	fmt.Printf("saved note %s (%d identifiers removed)\n", id, len(result.RemovedEntities))
}

func (a *App) Get(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: get <note-id>")
		return
	}

	note, err := a.store.GetNote(ctx, args[0], a.actor)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if note == nil {
		fmt.Println("note not found")
		return
	}

	fmt.Printf("id: %s\npatient: %s\ntemplate: %s\nstatus: %s\nmodified: %s\n\n%s\n",
		note.ID, note.PatientID, note.TemplateType, note.SyncStatus,
		note.ModifiedAt.Format("2006-01-02 15:04"), note.Content)
}

func (a *App) List(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: list <patient-id>")
		return
	}

	notes, err := a.store.ListNotesForPatient(ctx, args[0], a.actor, 50, 0)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	for _, note := range notes {
		fmt.Printf("%s  %-16s %s  v%d\n", note.ID, note.TemplateType,
			note.CreatedAt.Format("2006-01-02"), note.Version)
	}
	fmt.Printf("%d note(s)\n", len(notes))
}

func (a *App) Delete(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: delete <note-id>")
		return
	}

	err := a.store.DeleteNote(ctx, args[0], a.actor)
	if errors.Is(err, common.ErrNotFound) {
		fmt.Println("note not found")
		return
	}
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	_, _ = a.tracker.LogEvent(ctx, compliance.Event{
		Type:             compliance.EventNoteDeleted,
		ActorID:          a.actor,
		ResourceType:     compliance.ResourceClinicalNote,
		ResourceID:       args[0],
		Action:           models.AuditActionDelete,
		ProtectedContent: true,
	}, nil)

	fmt.Println("deleted")
}

// Audit prints the audit trail of one note, or the most recent entries
// across the vault when no ID is given.
func (a *App) Audit(ctx context.Context, args []string) {
	noteID := ""
	if len(args) > 0 {
		noteID = args[0]
	}

	entries, err := a.store.AuditTrail(ctx, noteID, a.actor, 50)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	for _, e := range entries {
		fmt.Printf("%s  %-12s %-12s note=%s retention=%dd\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.Actor,
			e.NoteID, e.RetentionDays)
	}
}

func (a *App) readLevel() (deident.Level, string, bool) {
	text, err := GetSimpleText(a.reader, "Text", os.Stdout)
	if err != nil {
		fmt.Println("error:", err)
		return 0, "", false
	}
	name, err := GetSimpleText(a.reader, "Level (minimal/federal/regional/full_anonymous)", os.Stdout)
	if err != nil {
		fmt.Println("error:", err)
		return 0, "", false
	}
	level, err := deident.ParseLevel(name)
	if err != nil {
		fmt.Println("error:", err)
		return 0, "", false
	}
	return level, text, true
}

func (a *App) Deidentify(ctx context.Context) {
	level, text, ok := a.readLevel()
	if !ok {
		return
	}

	result, err := deident.Deidentify(text, level)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	_, _ = a.tracker.LogEvent(ctx, compliance.Event{
		Type:    compliance.EventDataDeidentified,
		ActorID: a.actor,
		Action:  "deidentify",
		Payload: map[string]any{"level": result.Level, "removed": len(result.RemovedEntities)},
	}, nil)

	fmt.Println(result.CleanedText)
	for _, e := range result.RemovedEntities {
		fmt.Printf("  %-16s %-24q -> %s (%.2f)\n", e.Category, e.Original, e.Replacement, e.Confidence)
	}
}

func (a *App) Verify(ctx context.Context) {
	level, text, ok := a.readLevel()
	if !ok {
		return
	}

	if deident.VerifyCompliance(text, level) {
		fmt.Println("clean: no targeted identifiers detected")
	} else {
		fmt.Println("NOT clean: targeted identifiers still present")
	}
}

func (a *App) Validate(ctx context.Context, args []string) {
	if len(args) < 2 || len(args) > 3 {
		fmt.Println("usage: validate <patient-id> <template> [consent-id]")
		return
	}
	consentID := ""
	if len(args) == 3 {
		consentID = args[2]
	}

	result, err := a.tracker.ValidateNoteCreation(ctx, a.actor, args[0], args[1], consentID)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Printf("compliant: %v\n", result.IsCompliant)
	for _, v := range result.Violations {
		fmt.Println("  violation:", v)
	}
	for _, w := range result.Warnings {
		fmt.Println("  warning:", w)
	}
	for _, r := range result.Recommendations {
		fmt.Println("  recommendation:", r)
	}
}

func (a *App) Sync(ctx context.Context) {
	report, err := a.coordinator.PerformSync(ctx)
	if err != nil {
		fmt.Println("sync failed:", err)
		return
	}
	fmt.Printf("uploaded=%d downloaded=%d conflicts=%d resolved=%d\n",
		report.Uploaded, report.Downloaded, report.Conflicts, report.Resolved)
}

func (a *App) SyncStatus() {
	status := a.coordinator.Status()
	last := "never"
	if !status.LastSyncAt.IsZero() {
		last = status.LastSyncAt.Format("2006-01-02 15:04:05")
	}
	fmt.Printf("last sync: %s, conflicts: %d, running: %v\n", last, status.Conflicts, status.Running)
}

func (a *App) Conflicts() {
	conflicts := a.coordinator.Conflicts()
	for _, c := range conflicts {
		fmt.Printf("%s  %-14s local=v%d remote=v%d  %s\n",
			c.NoteID, c.Kind, c.LocalVersion, c.RemoteVersion, c.Detail)
	}
	fmt.Printf("%d conflict(s)\n", len(conflicts))
}

// Resolve applies caller-supplied reconciled content to a conflicted note.
func (a *App) Resolve(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: resolve <note-id>")
		return
	}

	content, err := GetSimpleText(a.reader, "Reconciled note text", os.Stdout)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if strings.TrimSpace(content) == "" {
		fmt.Println("reconciled content must not be empty")
		return
	}

	err = a.coordinator.ResolveConflictManually(ctx, args[0], content, a.actor)
	if errors.Is(err, common.ErrConflictNotFound) {
		fmt.Println("no such conflict")
		return
	}
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("resolved, queued for upload")
}
