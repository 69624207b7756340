package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shimishnaByAndy/clinicalvault/internal/common"
	"github.com/shimishnaByAndy/clinicalvault/internal/compliance"
	"github.com/shimishnaByAndy/clinicalvault/internal/cryptox"
	"github.com/shimishnaByAndy/clinicalvault/internal/logging"
	"github.com/shimishnaByAndy/clinicalvault/internal/models"
	"github.com/shimishnaByAndy/clinicalvault/internal/store"
)

// ErrCycleInProgress is returned when PerformSync is called while another
// cycle is still running.
var ErrCycleInProgress = errors.New("sync cycle already in progress")

// Options configures a Coordinator. Zero values fall back to defaults.
type Options struct {
	// Collection is the remote collection name. Default "clinical_notes".
	Collection string
	// Interval is the background sync period. Default 5 minutes.
	Interval time.Duration
	// Lookback bounds the download window of the very first sync.
	// Default 30 days.
	Lookback time.Duration
	// Resolver is the automatic conflict-resolution strategy.
	// Default ManualReview, which resolves nothing automatically.
	Resolver Resolver
	// Actor is the identity stamped on audit entries the coordinator writes.
	// Default "sync".
	Actor string
}

func (o *Options) withDefaults() {
	if o.Collection == "" {
		o.Collection = "clinical_notes"
	}
	if o.Interval <= 0 {
		o.Interval = 5 * time.Minute
	}
	if o.Lookback <= 0 {
		o.Lookback = 30 * 24 * time.Hour
	}
	if o.Resolver == nil {
		o.Resolver = ManualReview{}
	}
	if o.Actor == "" {
		o.Actor = "sync"
	}
}

// Report summarizes one sync cycle.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Uploaded   int
	Downloaded int
	Conflicts  int
	Resolved   int
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	LastSyncAt time.Time
	Conflicts  int
	Running    bool
}

// Coordinator reconciles the local encrypted store against the remote
// document store. All per-note state lives in the store; the coordinator
// itself only holds the last-sync timestamp and the in-memory conflict list
// as instance fields, so independent coordinators never interfere.
type Coordinator struct {
	store   *store.Store
	remote  Client
	tracker *compliance.Tracker
	log     logging.Logger
	opts    Options

	mu        sync.Mutex
	running   bool
	lastSync  time.Time
	loaded    bool
	conflicts map[string]*models.SyncConflict
}

// New returns a Coordinator. tracker may be nil when compliance event
// recording is not wanted (tests).
func New(s *store.Store, remote Client, tracker *compliance.Tracker, log logging.Logger, opts Options) *Coordinator {
	opts.withDefaults()
	return &Coordinator{
		store:     s,
		remote:    remote,
		tracker:   tracker,
		log:       log,
		opts:      opts,
		conflicts: make(map[string]*models.SyncConflict),
	}
}

func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrCycleInProgress
	}
	c.running = true
	return nil
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Coordinator) addConflict(conflict *models.SyncConflict) {
	c.mu.Lock()
	c.conflicts[conflict.NoteID] = conflict
	c.mu.Unlock()
}

func (c *Coordinator) removeConflict(noteID string) {
	c.mu.Lock()
	delete(c.conflicts, noteID)
	c.mu.Unlock()
}

// lastSyncAt lazily restores the persisted last-sync timestamp on first use.
func (c *Coordinator) lastSyncAt(ctx context.Context) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		t, err := c.store.LastSyncAt(ctx)
		if err != nil {
			return time.Time{}, err
		}
		c.lastSync = t
		c.loaded = true
	}
	return c.lastSync, nil
}

// checkUploadable runs the pre-upload compliance check on a ciphertext row:
// consent and regional consent must both be present. A note failing the
// check is never transmitted.
func checkUploadable(rec *models.EncryptedRecord) error {
	comp, err := store.ParseRecordCompliance(rec)
	if err != nil {
		return err
	}
	if !comp.ConsentObtained {
		return fmt.Errorf("%w: missing consent", common.ErrComplianceViolation)
	}
	if !comp.RegionalConsent {
		return fmt.Errorf("%w: missing regional consent", common.ErrComplianceViolation)
	}
	return nil
}

// PerformSync runs one full cycle: upload pending, download remote changes,
// attempt automatic conflict resolution, then advance the last-sync
// timestamp. Each phase completes fully before the next starts, and no store
// access is held across a network call.
func (c *Coordinator) PerformSync(ctx context.Context) (*Report, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	report := &Report{StartedAt: time.Now().UTC()}

	since, err := c.lastSyncAt(ctx)
	if err != nil {
		return report, err
	}
	if since.IsZero() {
		since = report.StartedAt.Add(-c.opts.Lookback)
	}

	if err := c.uploadPending(ctx, report); err != nil {
		return report, err
	}
	if err := c.downloadChanges(ctx, since, report); err != nil {
		return report, err
	}
	if err := c.resolveConflicts(ctx, report); err != nil {
		return report, err
	}

	// Phases 1-3 finished without a fatal error; advance the window to the
	// cycle start so documents modified mid-cycle are picked up next time.
	if err := c.store.SetLastSyncAt(ctx, report.StartedAt); err != nil {
		return report, err
	}
	c.mu.Lock()
	c.lastSync = report.StartedAt
	report.Conflicts = len(c.conflicts)
	c.mu.Unlock()

	report.FinishedAt = time.Now().UTC()
	c.log.Info(ctx, "sync cycle finished",
		"uploaded", report.Uploaded, "downloaded", report.Downloaded,
		"conflicts", report.Conflicts, "resolved", report.Resolved)
	return report, nil
}

// uploadPending is phase 1: every pending note is either uploaded and marked
// Synced, or marked Conflict. Nothing is silently dropped.
func (c *Coordinator) uploadPending(ctx context.Context, report *Report) error {
	pending, err := c.store.ListByStatus(ctx, models.SyncStatusPending)
	if err != nil {
		return err
	}

	for i := range pending {
		rec := &pending[i]

		if err := checkUploadable(rec); err != nil {
			c.log.Warn(ctx, "pending note withheld from upload", "note_id", rec.ID, "error", err)
			if err := c.store.SetSyncState(ctx, rec.ID, models.SyncStatusConflict, rec.Version); err != nil {
				return err
			}
			c.addConflict(&models.SyncConflict{
				NoteID:          rec.ID,
				Kind:            models.ConflictKindNoncompliant,
				LocalVersion:    rec.Version,
				LocalModifiedAt: rec.ModifiedAt,
				Detail:          err.Error(),
				DetectedAt:      time.Now().UTC(),
			})
			continue
		}

		// Check the remote version first: a pending local edit is based on
		// rec.Version-1, so a remote copy at rec.Version or above means both
		// sides changed and neither may clobber the other.
		remoteDoc, err := c.remote.Get(ctx, c.opts.Collection, rec.ID)
		if err != nil {
			c.log.Warn(ctx, "remote version check failed", "note_id", rec.ID, "error", err)
			if err := c.store.SetSyncState(ctx, rec.ID, models.SyncStatusConflict, rec.Version); err != nil {
				return err
			}
			c.addConflict(&models.SyncConflict{
				NoteID:          rec.ID,
				Kind:            models.ConflictKindUploadFailed,
				LocalVersion:    rec.Version,
				LocalModifiedAt: rec.ModifiedAt,
				Detail:          err.Error(),
				DetectedAt:      time.Now().UTC(),
			})
			continue
		}
		if remoteDoc != nil && remoteDoc.Version >= rec.Version {
			c.log.Warn(ctx, "remote changed underneath pending note", "note_id", rec.ID,
				"local_version", rec.Version, "remote_version", remoteDoc.Version)
			if err := c.store.SetSyncState(ctx, rec.ID, models.SyncStatusConflict, rec.Version); err != nil {
				return err
			}
			c.addConflict(&models.SyncConflict{
				NoteID:           rec.ID,
				Kind:             models.ConflictKindDivergent,
				LocalVersion:     rec.Version,
				RemoteVersion:    remoteDoc.Version,
				LocalModifiedAt:  rec.ModifiedAt,
				RemoteModifiedAt: remoteDoc.ModifiedAt,
				DetectedAt:       time.Now().UTC(),
			})
			continue
		}

		if err := c.remote.Put(ctx, c.opts.Collection, docFromRecord(rec)); err != nil {
			c.log.Warn(ctx, "upload failed", "note_id", rec.ID, "error", err)
			if err := c.store.SetSyncState(ctx, rec.ID, models.SyncStatusConflict, rec.Version); err != nil {
				return err
			}
			c.addConflict(&models.SyncConflict{
				NoteID:          rec.ID,
				Kind:            models.ConflictKindUploadFailed,
				LocalVersion:    rec.Version,
				LocalModifiedAt: rec.ModifiedAt,
				Detail:          err.Error(),
				DetectedAt:      time.Now().UTC(),
			})
			continue
		}

		if err := c.store.SetSyncState(ctx, rec.ID, models.SyncStatusSynced, rec.Version); err != nil {
			return err
		}
		c.removeConflict(rec.ID)
		report.Uploaded++
	}
	return nil
}

// downloadChanges is phase 2: remote documents modified since the window
// start are inserted, used to overwrite unmodified local copies, or turned
// into conflicts when the local copy has uncommitted edits.
func (c *Coordinator) downloadChanges(ctx context.Context, since time.Time, report *Report) error {
	docs, err := c.remote.ListModifiedSince(ctx, c.opts.Collection, since)
	if err != nil {
		return err
	}

	for i := range docs {
		doc := &docs[i]

		// Reject silently corrupted transfers before they reach the store.
		if cryptox.Checksum(doc.Ciphertext) != doc.Checksum {
			c.log.Error(ctx, "downloaded document failed checksum", "note_id", doc.ID)
			if c.tracker != nil {
				_, _ = c.tracker.LogEvent(ctx, compliance.Event{
					Type:         compliance.EventBreachDetected,
					ActorID:      c.opts.Actor,
					ResourceType: compliance.ResourceClinicalNote,
					ResourceID:   doc.ID,
					Action:       "download",
					Payload:      map[string]string{"reason": "checksum mismatch"},
				}, nil)
			}
			continue
		}

		local, err := c.store.GetRecord(ctx, doc.ID)
		if err != nil {
			return err
		}

		switch {
		case local == nil:
			if err := c.store.PutRemoteRecord(ctx, recordFromDoc(doc), c.opts.Actor); err != nil {
				return err
			}
			report.Downloaded++

		case local.SyncStatus == models.SyncStatusPending:
			// An older remote copy is just the echo of an earlier upload
			// from this device; a fresh local edit on top of it is not a
			// conflict.
			if doc.Version < local.Version {
				continue
			}
			// Both sides changed: surface the conflict, overwrite neither.
			if err := c.store.SetSyncState(ctx, local.ID, models.SyncStatusConflict, local.Version); err != nil {
				return err
			}
			c.addConflict(&models.SyncConflict{
				NoteID:           doc.ID,
				Kind:             models.ConflictKindDivergent,
				LocalVersion:     local.Version,
				RemoteVersion:    doc.Version,
				LocalModifiedAt:  local.ModifiedAt,
				RemoteModifiedAt: doc.ModifiedAt,
				DetectedAt:       time.Now().UTC(),
			})

		case local.SyncStatus == models.SyncStatusConflict:
			// Already awaiting resolution; the newer remote version stays
			// remote until the conflict is resolved.

		default:
			// Local copy has no uncommitted edits: take the remote version
			// unless we already hold it.
			if doc.Version <= local.Version {
				continue
			}
			if err := c.store.PutRemoteRecord(ctx, recordFromDoc(doc), c.opts.Actor); err != nil {
				return err
			}
			report.Downloaded++
		}
	}
	return nil
}

// supersedeVersion returns the version a locally resolved note must carry so
// that its upload wins over the remote copy the conflict was detected
// against.
func supersedeVersion(conflict *models.SyncConflict, localVersion int64) int64 {
	if conflict.RemoteVersion >= localVersion {
		return conflict.RemoteVersion + 1
	}
	return localVersion
}

// resolveConflicts is phase 3: each registered conflict is offered to the
// resolver strategy. Manual outcomes keep the conflict; nothing is resolved
// destructively.
func (c *Coordinator) resolveConflicts(ctx context.Context, report *Report) error {
	for _, conflict := range c.Conflicts() {
		outcome, err := c.opts.Resolver.Resolve(ctx, conflict)
		if err != nil {
			c.log.Warn(ctx, "conflict resolution failed", "note_id", conflict.NoteID, "error", err)
			continue
		}

		switch outcome {
		case OutcomeUseLocal:
			if err := c.store.SetSyncState(ctx, conflict.NoteID, models.SyncStatusPending,
				supersedeVersion(conflict, conflict.LocalVersion)); err != nil {
				return err
			}
			c.removeConflict(conflict.NoteID)
			report.Resolved++

		case OutcomeUseRemote:
			doc, err := c.remote.Get(ctx, c.opts.Collection, conflict.NoteID)
			if err != nil {
				c.log.Warn(ctx, "could not fetch remote version", "note_id", conflict.NoteID, "error", err)
				continue
			}
			if doc == nil {
				// Nothing remote to take; leave for manual review.
				continue
			}
			if err := c.store.PutRemoteRecord(ctx, recordFromDoc(doc), c.opts.Actor); err != nil {
				return err
			}
			c.removeConflict(conflict.NoteID)
			report.Resolved++

		case OutcomeManual:
			// Keep the conflict.
		}
	}
	return nil
}

// ForceSyncNote pushes a single note outside the periodic schedule. The same
// pre-upload compliance check applies.
func (c *Coordinator) ForceSyncNote(ctx context.Context, id string) error {
	rec, err := c.store.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return common.ErrNotFound
	}

	if err := checkUploadable(rec); err != nil {
		if stateErr := c.store.SetSyncState(ctx, id, models.SyncStatusConflict, rec.Version); stateErr != nil {
			return stateErr
		}
		c.addConflict(&models.SyncConflict{
			NoteID:          id,
			Kind:            models.ConflictKindNoncompliant,
			LocalVersion:    rec.Version,
			LocalModifiedAt: rec.ModifiedAt,
			Detail:          err.Error(),
			DetectedAt:      time.Now().UTC(),
		})
		return err
	}

	remoteDoc, err := c.remote.Get(ctx, c.opts.Collection, id)
	if err == nil && remoteDoc != nil && remoteDoc.Version >= rec.Version {
		if stateErr := c.store.SetSyncState(ctx, id, models.SyncStatusConflict, rec.Version); stateErr != nil {
			return stateErr
		}
		conflict := &models.SyncConflict{
			NoteID:           id,
			Kind:             models.ConflictKindDivergent,
			LocalVersion:     rec.Version,
			RemoteVersion:    remoteDoc.Version,
			LocalModifiedAt:  rec.ModifiedAt,
			RemoteModifiedAt: remoteDoc.ModifiedAt,
			DetectedAt:       time.Now().UTC(),
		}
		c.addConflict(conflict)
		return fmt.Errorf("%w: remote at version %d", common.ErrManualResolutionRequired, remoteDoc.Version)
	}

	if err := c.remote.Put(ctx, c.opts.Collection, docFromRecord(rec)); err != nil {
		if stateErr := c.store.SetSyncState(ctx, id, models.SyncStatusConflict, rec.Version); stateErr != nil {
			return stateErr
		}
		c.addConflict(&models.SyncConflict{
			NoteID:          id,
			Kind:            models.ConflictKindUploadFailed,
			LocalVersion:    rec.Version,
			LocalModifiedAt: rec.ModifiedAt,
			Detail:          err.Error(),
			DetectedAt:      time.Now().UTC(),
		})
		return err
	}

	if err := c.store.SetSyncState(ctx, id, models.SyncStatusSynced, rec.Version); err != nil {
		return err
	}
	c.removeConflict(id)
	return nil
}

// ResolveConflictManually applies caller-supplied reconciled content to a
// conflicted note and re-queues it for upload. The caller must supply the
// merged content explicitly; there is no implicit winner.
func (c *Coordinator) ResolveConflictManually(ctx context.Context, noteID, mergedContent, actorID string) error {
	c.mu.Lock()
	conflict, ok := c.conflicts[noteID]
	c.mu.Unlock()
	if !ok {
		return common.ErrConflictNotFound
	}

	note, err := c.store.GetNote(ctx, noteID, actorID)
	if err != nil {
		return err
	}
	if note == nil {
		return common.ErrNotFound
	}

	note.Content = mergedContent
	if _, err := c.store.SaveNote(ctx, note, actorID); err != nil {
		return err
	}

	// The resolved note must carry a version above the remote copy the
	// conflict was detected against, or the next upload version check
	// would flag it as divergent all over again.
	if v := supersedeVersion(conflict, note.Version); v != note.Version {
		if err := c.store.SetSyncState(ctx, noteID, models.SyncStatusPending, v); err != nil {
			return err
		}
	}

	c.removeConflict(noteID)
	c.log.Info(ctx, "conflict resolved manually", "note_id", noteID)
	return nil
}

// Conflicts returns a stable snapshot of unresolved conflicts.
func (c *Coordinator) Conflicts() []*models.SyncConflict {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]*models.SyncConflict, 0, len(c.conflicts))
	for _, conflict := range c.conflicts {
		result = append(result, conflict)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NoteID < result[j].NoteID })
	return result
}

// Status reports the coordinator state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{LastSyncAt: c.lastSync, Conflicts: len(c.conflicts), Running: c.running}
}

// Run executes PerformSync on a ticker until ctx is cancelled. A failed
// cycle is logged and retried on the next tick; it never stops the loop.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := c.PerformSync(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
				c.log.Error(ctx, "sync cycle failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
