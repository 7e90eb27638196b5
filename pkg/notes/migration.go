package notes

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/stratum/pkg/core"
)

// MigrationResult reports a migration run. Failed notes are not lost: they
// remain in the local store for a later attempt.
type MigrationResult struct {
	Migrated int `json:"migrated"`
	Failed   int `json:"failed"`
}

// Migrator transfers local notes into the remote store after a fresh
// sign-in. It runs at most once per session: token refreshes never trigger
// it, and a second call before Reset is a no-op.
//
// Migration never fails the overall login. Notes the remote store rejects
// stay local; only the remaining (failed) notes are persisted back,
// replacing the prior full list.
type Migrator struct {
	local  core.LocalStore
	remote core.RemoteStore
	logger *slog.Logger
	done   atomic.Bool
}

// NewMigrator creates a migration coordinator over the two layers.
func NewMigrator(local core.LocalStore, remote core.RemoteStore, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{local: local, remote: remote, logger: logger}
}

// Run migrates all local notes, tagging each with the now-known identity.
// Safe to call redundantly; only the first call per session does work.
func (m *Migrator) Run(ctx context.Context, identity core.Identity) MigrationResult {
	if m.remote == nil || identity.IsZero() {
		return MigrationResult{}
	}
	if !m.done.CompareAndSwap(false, true) {
		return MigrationResult{}
	}

	all, err := m.local.Notes(ctx)
	if err != nil {
		m.logger.Warn("migration skipped: local store read failed", "error", err)
		return MigrationResult{}
	}
	if len(all) == 0 {
		return MigrationResult{}
	}

	var result MigrationResult
	remaining := make([]core.Note, 0, len(all))
	for _, n := range all {
		candidate := n
		candidate.OwnerID = identity.ID
		candidate.OwnerEmail = identity.Email
		candidate.UpdatedAt = time.Now().UTC()
		if _, err := m.remote.Create(ctx, candidate); err != nil {
			m.logger.Warn("note migration failed, keeping local copy", "note", n.ID, "error", err)
			remaining = append(remaining, n)
			result.Failed++
			continue
		}
		result.Migrated++
	}

	if err := m.local.ReplaceNotes(ctx, remaining); err != nil {
		m.logger.Warn("migration could not rewrite local note list", "error", err)
	}

	m.logger.Info("local note migration finished",
		"migrated", result.Migrated, "failed", result.Failed)
	return result
}

// Reset re-arms the coordinator for the next fresh sign-in (called on
// sign-out, or when the identity changes).
func (m *Migrator) Reset() {
	m.done.Store(false)
}
