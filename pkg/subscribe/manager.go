package subscribe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/stratum/pkg/core"
	"github.com/aretw0/stratum/pkg/notes"
)

// Manager drives the per-key subscription state machine:
//
//	absent → subscribe → active(teardown) → subscribe again | unsubscribe → absent
//
// Installing a subscription for a key that already holds one tears the old
// one down first, exactly once, so re-subscribing is idempotent. Updates and
// subscription-scoped errors are delivered to the originating (tab, frame)
// only, never broadcast.
type Manager struct {
	registry *Registry
	remote   core.RemoteStore
	identity core.IdentityProvider
	sender   core.Sender
	logger   *slog.Logger

	// mu guards the lock table only. The teardown-then-install sequence
	// holds its key's own lock across the remote call, so a slow subscribe
	// for one viewer never stalls an unrelated viewer's request.
	mu    sync.Mutex
	locks map[any]*sync.Mutex
}

// NewManager wires the subscription manager. The registry is injected so
// tests (and the platform factory) control its lifetime.
func NewManager(registry *Registry, remote core.RemoteStore, identity core.IdentityProvider, sender core.Sender, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: registry,
		remote:   remote,
		identity: identity,
		sender:   sender,
		logger:   logger,
		locks:    make(map[any]*sync.Mutex),
	}
}

// lockKey returns the mutex serializing subscribe/unsubscribe for one key.
// Entries are never reclaimed; the key space is bounded by open viewers.
func (m *Manager) lockKey(key any) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = new(sync.Mutex)
		m.locks[key] = l
	}
	return l
}

func (m *Manager) guard(ctx context.Context) (core.Identity, error) {
	id, ok := m.identity.Current(ctx)
	if !ok {
		return core.Identity{}, fmt.Errorf("cannot subscribe: %w", core.ErrNotAuthenticated)
	}
	if m.remote == nil {
		return core.Identity{}, fmt.Errorf("cannot subscribe: %w", core.ErrNotConfigured)
	}
	return id, nil
}

// SubscribeNotes installs a live note query for the viewer's URL. Requires
// an authenticated identity and a configured remote store; otherwise a
// descriptive error is returned.
func (m *Manager) SubscribeNotes(ctx context.Context, url string, v core.Viewer) error {
	if _, err := m.guard(ctx); err != nil {
		return err
	}
	target, err := notes.NormalizeURL(url)
	if err != nil {
		return fmt.Errorf("%w: malformed url %q", core.ErrInvalidInput, url)
	}

	key := NoteKey{TabID: v.TabID, FrameID: v.FrameID}
	l := m.lockKey(key)
	l.Lock()
	defer l.Unlock()

	if old, ok := m.registry.TakeNotes(key); ok {
		old()
	}

	teardown, err := m.remote.Subscribe(ctx, core.NoteQuery{URL: target},
		func(updated []core.Note) {
			m.push(v, core.PushMessage{Action: core.PushNotesUpdated, Notes: updated})
		},
		func(subErr error) {
			m.push(v, core.PushMessage{
				Action: core.PushSubscriptionError,
				Type:   "notes",
				Error:  subErr.Error(),
			})
		})
	if err != nil {
		return err
	}
	m.registry.SetNotes(key, teardown)
	return nil
}

// UnsubscribeNotes tears down the viewer's note subscription if one exists.
// Always succeeds, even when no subscription is present.
func (m *Manager) UnsubscribeNotes(ctx context.Context, v core.Viewer) {
	key := NoteKey{TabID: v.TabID, FrameID: v.FrameID}
	l := m.lockKey(key)
	l.Lock()
	defer l.Unlock()
	if teardown, ok := m.registry.TakeNotes(key); ok {
		teardown()
	}
}

// SubscribeComments mirrors SubscribeNotes for a note's comment thread,
// keyed by (tab, note) since comments are tab-scoped.
func (m *Manager) SubscribeComments(ctx context.Context, noteID string, v core.Viewer) error {
	if _, err := m.guard(ctx); err != nil {
		return err
	}
	if noteID == "" {
		return fmt.Errorf("%w: note id is required", core.ErrInvalidInput)
	}

	key := CommentKey{TabID: v.TabID, NoteID: noteID}
	l := m.lockKey(key)
	l.Lock()
	defer l.Unlock()

	if old, ok := m.registry.TakeComments(key); ok {
		old()
	}

	teardown, err := m.remote.SubscribeComments(ctx, noteID,
		func(updated []core.Comment) {
			m.push(v, core.PushMessage{Action: core.PushCommentsUpdated, NoteID: noteID, Comments: updated})
		},
		func(subErr error) {
			m.push(v, core.PushMessage{
				Action: core.PushSubscriptionError,
				Type:   "comments",
				Error:  subErr.Error(),
			})
		})
	if err != nil {
		return err
	}
	m.registry.SetComments(key, teardown)
	return nil
}

// UnsubscribeComments tears down one comment subscription. Always succeeds.
func (m *Manager) UnsubscribeComments(ctx context.Context, noteID string, v core.Viewer) {
	key := CommentKey{TabID: v.TabID, NoteID: noteID}
	l := m.lockKey(key)
	l.Lock()
	defer l.Unlock()
	if teardown, ok := m.registry.TakeComments(key); ok {
		teardown()
	}
}

// push delivers to the originating viewer. Viewer teardown is not
// guaranteed to fire before the next change event, so delivery to a stale
// viewer fails silently.
func (m *Manager) push(v core.Viewer, msg core.PushMessage) {
	if m.sender == nil {
		return
	}
	if err := m.sender.Send(context.Background(), v, msg); err != nil {
		m.logger.Debug("push dropped, viewer gone", "tab", v.TabID, "frame", v.FrameID, "action", msg.Action)
	}
}
