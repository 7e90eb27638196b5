// Package shared computes unread counts for notes shared with the current
// identity and keeps the toolbar badge in sync through a single
// process-wide subscription.
package shared

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/aretw0/stratum/pkg/core"
	"github.com/aretw0/stratum/pkg/subscribe"
)

// BadgeColor is the background color applied when the unread badge is shown.
const BadgeColor = "#e8555a"

// Tracker diffs the remote shared-note set against the identity's seen
// markers. Unread computation degrades to zero, never an error, when
// unauthenticated or the remote store is unavailable.
type Tracker struct {
	local    core.LocalStore
	remote   core.RemoteStore
	identity core.IdentityProvider
	badge    core.Badge
	registry *subscribe.Registry
	logger   *slog.Logger

	// mu serializes the global take/subscribe/set sequence so concurrent
	// sign-ins cannot both install a subscription and leak a teardown.
	mu sync.Mutex
}

// NewTracker wires the tracker. badge may be nil (headless tests).
func NewTracker(local core.LocalStore, remote core.RemoteStore, identity core.IdentityProvider, badge core.Badge, registry *subscribe.Registry, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		local:    local,
		remote:   remote,
		identity: identity,
		badge:    badge,
		registry: registry,
		logger:   logger,
	}
}

// UnreadNotes returns the shared notes the identity has not read yet.
// Unauthenticated or remote-unavailable states yield an empty list.
func (t *Tracker) UnreadNotes(ctx context.Context) ([]core.Note, error) {
	id, ok := t.identity.Current(ctx)
	if !ok || t.remote == nil {
		return []core.Note{}, nil
	}
	shared, err := t.remote.QuerySharedWith(ctx, id.Email)
	if err != nil {
		t.logger.Warn("shared-notes query failed, reporting none unread", "error", err)
		return []core.Note{}, nil
	}
	seen, err := t.local.SeenNotes(ctx, id.ID)
	if err != nil {
		t.logger.Warn("seen markers unreadable, reporting none unread", "error", err)
		return []core.Note{}, nil
	}
	seenSet := make(map[string]struct{}, len(seen))
	for _, noteID := range seen {
		seenSet[noteID] = struct{}{}
	}
	unread := make([]core.Note, 0, len(shared))
	for _, n := range shared {
		if n.OwnerID == id.ID {
			continue // own notes are never "unread shared"
		}
		if _, ok := seenSet[n.ID]; !ok {
			unread = append(unread, n)
		}
	}
	return unread, nil
}

// UnreadCount returns the cardinality of the unread shared-note set.
func (t *Tracker) UnreadCount(ctx context.Context) (int, error) {
	unread, err := t.UnreadNotes(ctx)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// MarkRead idempotently adds noteID to the identity's seen markers.
// Seen markers are append-only; the core never removes entries.
func (t *Tracker) MarkRead(ctx context.Context, noteID string) error {
	if noteID == "" {
		return fmt.Errorf("%w: note id is required", core.ErrInvalidInput)
	}
	id, ok := t.identity.Current(ctx)
	if !ok {
		return core.ErrNotAuthenticated
	}
	return t.local.MarkSeen(ctx, id.ID, noteID)
}

// SubscribeGlobal installs the single process-wide shared-notes
// subscription, recomputing the badge on every change. A prior global
// subscription is torn down first.
func (t *Tracker) SubscribeGlobal(ctx context.Context) error {
	id, ok := t.identity.Current(ctx)
	if !ok {
		return fmt.Errorf("cannot watch shared notes: %w", core.ErrNotAuthenticated)
	}
	if t.remote == nil {
		return fmt.Errorf("cannot watch shared notes: %w", core.ErrNotConfigured)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.registry.TakeGlobal(); ok {
		old()
	}

	teardown, err := t.remote.Subscribe(ctx, core.NoteQuery{SharedWith: id.Email},
		func([]core.Note) {
			t.refreshBadge(context.Background())
		},
		func(subErr error) {
			t.logger.Warn("shared-notes subscription error", "error", subErr)
		})
	if err != nil {
		return err
	}
	t.registry.SetGlobal(teardown)
	t.refreshBadge(ctx)
	return nil
}

// UnsubscribeGlobal tears down the global subscription and clears the
// badge. Safe to call when no subscription is active.
func (t *Tracker) UnsubscribeGlobal(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if teardown, ok := t.registry.TakeGlobal(); ok {
		teardown()
	}
	t.setBadge(ctx, 0)
}

// RefreshBadge recomputes the unread count and repaints the badge.
func (t *Tracker) RefreshBadge(ctx context.Context) {
	t.refreshBadge(ctx)
}

func (t *Tracker) refreshBadge(ctx context.Context) {
	count, _ := t.UnreadCount(ctx)
	t.setBadge(ctx, count)
}

// setBadge paints the count, clearing the badge when it is zero.
func (t *Tracker) setBadge(ctx context.Context, count int) {
	if t.badge == nil {
		return
	}
	text := ""
	if count > 0 {
		text = strconv.Itoa(count)
	}
	if err := t.badge.SetText(ctx, text); err != nil {
		t.logger.Debug("badge text update failed", "error", err)
		return
	}
	if count > 0 {
		if err := t.badge.SetColor(ctx, BadgeColor); err != nil {
			t.logger.Debug("badge color update failed", "error", err)
		}
	}
}
