package services

import (
	"context"
	"log/slog"

	"go-gatewatch/internal/detector/models"
)

const maxArchiveAttempts = 5

// Archiver moves closed sessions from the engine's drain queue into MongoDB.
// Failed writes are requeued for the next flush rather than lost.
type Archiver struct {
	engine     *Engine
	repository *Repository

	pending []*archiveItem
}

type archiveItem struct {
	snapshot *models.CrewSnapshot
	attempts int
}

// NewArchiver creates an archiver for the given engine and repository. A nil
// repository (no MongoDB configured) makes Flush a drain-and-drop.
func NewArchiver(engine *Engine, repository *Repository) *Archiver {
	return &Archiver{
		engine:     engine,
		repository: repository,
	}
}

// Flush drains the engine's archive queue and persists each session. It
// returns the number of sessions written.
func (a *Archiver) Flush(ctx context.Context) int {
	for _, snap := range a.engine.DrainArchive() {
		a.pending = append(a.pending, &archiveItem{snapshot: snap})
	}
	if len(a.pending) == 0 {
		return 0
	}

	if a.repository == nil {
		dropped := len(a.pending)
		a.pending = nil
		return dropped
	}

	written := 0
	var retry []*archiveItem
	for _, item := range a.pending {
		if err := a.repository.SaveSession(ctx, item.snapshot); err != nil {
			item.attempts++
			if item.attempts >= maxArchiveAttempts {
				slog.Error("Dropping session after repeated archive failures",
					"session_id", item.snapshot.ID,
					"attempts", item.attempts,
					"error", err)
				continue
			}
			slog.Warn("Failed to archive session, will retry",
				"session_id", item.snapshot.ID,
				"attempts", item.attempts,
				"error", err)
			retry = append(retry, item)
			continue
		}
		written++
	}
	a.pending = retry

	if written > 0 {
		slog.Info("Archived closed sessions", "written", written, "pending_retries", len(a.pending))
	}
	return written
}

// PendingCount reports sessions waiting on a retry.
func (a *Archiver) PendingCount() int {
	return len(a.pending)
}
