package syncer

import (
	"context"

	"github.com/shimishnaByAndy/clinicalvault/internal/models"
)

// Outcome is the decision a Resolver returns for one conflict.
type Outcome int

const (
	// OutcomeManual leaves the conflict for manual resolution.
	OutcomeManual Outcome = iota
	// OutcomeUseLocal re-queues the local version for upload.
	OutcomeUseLocal
	// OutcomeUseRemote overwrites the local version with the remote one.
	OutcomeUseRemote
)

// Resolver decides how a detected conflict should be resolved during the
// automatic-resolution phase of a sync cycle.
type Resolver interface {
	Resolve(ctx context.Context, conflict *models.SyncConflict) (Outcome, error)
}

// ManualReview is the safe default: it never resolves automatically.
type ManualReview struct{}

func (ManualReview) Resolve(ctx context.Context, conflict *models.SyncConflict) (Outcome, error) {
	return OutcomeManual, nil
}

// UseLocal always keeps the local version.
type UseLocal struct{}

func (UseLocal) Resolve(ctx context.Context, conflict *models.SyncConflict) (Outcome, error) {
	return OutcomeUseLocal, nil
}

// UseRemote always takes the remote version.
type UseRemote struct{}

func (UseRemote) Resolve(ctx context.Context, conflict *models.SyncConflict) (Outcome, error) {
	return OutcomeUseRemote, nil
}

// Merge is an extension point for content-aware merging. No merge semantics
// are defined yet, so it defers every conflict to manual review rather than
// guessing.
type Merge struct{}

func (Merge) Resolve(ctx context.Context, conflict *models.SyncConflict) (Outcome, error) {
	return OutcomeManual, nil
}
