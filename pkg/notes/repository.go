// Package notes implements the note repository: one CRUD/query surface over
// the local durable store and the remote synchronized store, with the
// transient-failure fallback policy, plus the one-shot migration coordinator.
package notes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/stratum/pkg/core"
)

// Repository unifies the two storage layers behind one interface.
//
// Policy: with an authenticated identity and a configured remote store,
// every operation attempts the remote layer first. A transient remote
// failure falls back transparently to the local store (logged at Warn, still
// reported as success); a permission or validation failure propagates
// directly with no fallback. Unauthenticated or remote-unconfigured
// operation works purely on the local store, tagging notes with the
// local-owner sentinel.
type Repository struct {
	local  core.LocalStore
	remote core.RemoteStore
	logger *slog.Logger

	mu     sync.RWMutex
	ignore *ignoreMatcher
}

// NewRepository creates a repository over the given layers. remote may be
// nil, which means "unconfigured": all operations stay local.
func NewRepository(local core.LocalStore, remote core.RemoteStore, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		local:  local,
		remote: remote,
		logger: logger,
		ignore: newIgnoreMatcher(nil),
	}
}

// SetIgnorePatterns replaces the set of URL glob patterns for which note
// capture is disabled. Hot-reloadable at runtime.
func (r *Repository) SetIgnorePatterns(patterns []string) {
	r.mu.Lock()
	r.ignore = newIgnoreMatcher(patterns)
	r.mu.Unlock()
}

func (r *Repository) ignored(url string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ignore.Ignored(url)
}

// remoteReady reports whether the remote-first path applies.
func (r *Repository) remoteReady(identity core.Identity) bool {
	return r.remote != nil && !identity.IsZero()
}

// fallback logs the transient failure and returns true when the local layer
// should take over.
func (r *Repository) fallback(op string, err error) bool {
	if !core.IsTransient(err) {
		return false
	}
	r.logger.Warn("remote store failed, falling back to local store", "op", op, "error", err)
	return true
}

// GetNotes returns the notes anchored at url. Fragment identifiers are
// ignored. A url without a query string matches every note on that page
// regardless of the stored query; a url carrying one must match it exactly.
// Malformed stored URLs are skipped, not raised.
func (r *Repository) GetNotes(ctx context.Context, url string, identity core.Identity) ([]core.Note, error) {
	if r.ignored(url) {
		return []core.Note{}, nil
	}
	target, err := NormalizeURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed url %q", core.ErrInvalidInput, url)
	}

	if r.remoteReady(identity) {
		remote, err := r.remote.QueryByURL(ctx, target)
		if err == nil {
			return remote, nil
		}
		if !r.fallback("queryByUrl", err) {
			return nil, err
		}
	}

	all, err := r.local.Notes(ctx)
	if err != nil {
		return nil, fmt.Errorf("local store read: %w", err)
	}
	matched := make([]core.Note, 0, len(all))
	for _, n := range all {
		if matchesURL(target, n.URL) {
			matched = append(matched, n)
		}
	}
	return matched, nil
}

// SaveNote persists a new note and returns it with its assigned identity.
func (r *Repository) SaveNote(ctx context.Context, draft core.Note, identity core.Identity) (core.Note, error) {
	if draft.URL == "" || draft.Content == "" {
		return core.Note{}, fmt.Errorf("%w: note url and content are required", core.ErrInvalidInput)
	}
	if r.ignored(draft.URL) {
		return core.Note{}, fmt.Errorf("%w: notes are disabled for this site", core.ErrInvalidInput)
	}

	now := time.Now().UTC()
	draft.CreatedAt = now
	draft.UpdatedAt = now

	if r.remoteReady(identity) {
		draft.OwnerID = identity.ID
		draft.OwnerEmail = identity.Email
		created, err := r.remote.Create(ctx, draft)
		if err == nil {
			return created, nil
		}
		if !r.fallback("create", err) {
			return core.Note{}, err
		}
	} else {
		draft.OwnerID = core.LocalOwnerID
		draft.OwnerEmail = ""
	}

	draft.ID = uuid.NewString()
	if err := r.appendLocal(ctx, draft); err != nil {
		return core.Note{}, err
	}
	return draft, nil
}

// UpdateNote mutates an existing note's content, selector or theme.
// Only the owner may update; recipients get read and leave rights only.
func (r *Repository) UpdateNote(ctx context.Context, draft core.Note, identity core.Identity) (core.Note, error) {
	if draft.ID == "" {
		return core.Note{}, fmt.Errorf("%w: note id is required", core.ErrInvalidInput)
	}
	draft.UpdatedAt = time.Now().UTC()

	if r.remoteReady(identity) {
		updated, err := r.remote.Update(ctx, draft)
		if err == nil {
			return updated, nil
		}
		if !r.fallback("update", err) {
			return core.Note{}, err
		}
	}

	return r.updateLocal(ctx, draft, identity)
}

// DeleteNote removes a note. Owner-only; the remote store re-validates
// ownership and its permission answer is propagated without fallback.
func (r *Repository) DeleteNote(ctx context.Context, id string, identity core.Identity) error {
	if id == "" {
		return fmt.Errorf("%w: note id is required", core.ErrInvalidInput)
	}

	if r.remoteReady(identity) {
		err := r.remote.Delete(ctx, id, identity)
		if err == nil {
			return nil
		}
		if !r.fallback("delete", err) {
			return err
		}
	}

	return r.deleteLocal(ctx, id, identity)
}

// GetAllNotes returns every note the identity owns (or, unauthenticated,
// the full local list).
func (r *Repository) GetAllNotes(ctx context.Context, identity core.Identity) ([]core.Note, error) {
	if r.remoteReady(identity) {
		owned, err := r.remote.QueryOwned(ctx, identity.ID)
		if err == nil {
			return owned, nil
		}
		if !r.fallback("queryOwned", err) {
			return nil, err
		}
	}
	all, err := r.local.Notes(ctx)
	if err != nil {
		return nil, fmt.Errorf("local store read: %w", err)
	}
	return all, nil
}

// DeleteAllNotes removes every note the identity owns. Individual remote
// delete failures are logged and skipped; the local list is always cleared.
func (r *Repository) DeleteAllNotes(ctx context.Context, identity core.Identity) error {
	if r.remoteReady(identity) {
		owned, err := r.remote.QueryOwned(ctx, identity.ID)
		if err != nil && !r.fallback("queryOwned", err) {
			return err
		}
		for _, n := range owned {
			if err := r.remote.Delete(ctx, n.ID, identity); err != nil {
				if !core.IsTransient(err) {
					return err
				}
				r.logger.Warn("remote delete failed during deleteAll", "note", n.ID, "error", err)
			}
		}
	}
	if err := r.local.ReplaceNotes(ctx, []core.Note{}); err != nil {
		return fmt.Errorf("local store write: %w", err)
	}
	return nil
}

// ShareNote grants a recipient read + leave rights. Remote-only: sharing a
// local-only note has no meaning, so there is no fallback path.
func (r *Repository) ShareNote(ctx context.Context, noteID, email string, identity core.Identity) (core.Note, error) {
	n, err := r.sharedTarget(ctx, noteID, identity)
	if err != nil {
		return core.Note{}, err
	}
	if n.SharedWithEmail(email) {
		return n, nil
	}
	n.SharedWith = append(n.SharedWith, email)
	n.UpdatedAt = time.Now().UTC()
	return r.remote.Update(ctx, n)
}

// UnshareNote revokes a recipient.
func (r *Repository) UnshareNote(ctx context.Context, noteID, email string, identity core.Identity) (core.Note, error) {
	n, err := r.sharedTarget(ctx, noteID, identity)
	if err != nil {
		return core.Note{}, err
	}
	kept := n.SharedWith[:0]
	for _, e := range n.SharedWith {
		if e != email {
			kept = append(kept, e)
		}
	}
	n.SharedWith = kept
	n.UpdatedAt = time.Now().UTC()
	return r.remote.Update(ctx, n)
}

// LeaveSharedNote removes the current identity from a note shared with it.
// This is the one mutation a non-owner may perform; the remote store permits
// it as the "leave" right.
func (r *Repository) LeaveSharedNote(ctx context.Context, noteID string, identity core.Identity) error {
	n, err := r.sharedTarget(ctx, noteID, identity)
	if err != nil {
		return err
	}
	if !n.SharedWithEmail(identity.Email) {
		return fmt.Errorf("%w: note is not shared with %s", core.ErrInvalidInput, identity.Email)
	}
	kept := n.SharedWith[:0]
	for _, e := range n.SharedWith {
		if e != identity.Email {
			kept = append(kept, e)
		}
	}
	n.SharedWith = kept
	_, err = r.remote.Update(ctx, n)
	return err
}

func (r *Repository) sharedTarget(ctx context.Context, noteID string, identity core.Identity) (core.Note, error) {
	if noteID == "" {
		return core.Note{}, fmt.Errorf("%w: note id is required", core.ErrInvalidInput)
	}
	if identity.IsZero() {
		return core.Note{}, core.ErrNotAuthenticated
	}
	if r.remote == nil {
		return core.Note{}, core.ErrNotConfigured
	}
	return r.remote.Get(ctx, noteID)
}

// --- Comments (always remote-backed, no local fallback) ---

// AddComment attaches a comment to a note on behalf of the identity.
func (r *Repository) AddComment(ctx context.Context, noteID, content string, identity core.Identity) (core.Comment, error) {
	if err := r.commentGuard(noteID, identity); err != nil {
		return core.Comment{}, err
	}
	if content == "" {
		return core.Comment{}, fmt.Errorf("%w: comment content is required", core.ErrInvalidInput)
	}
	return r.remote.CreateComment(ctx, core.Comment{
		NoteID:    noteID,
		AuthorID:  identity.ID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}

// EditComment rewrites a comment's content.
func (r *Repository) EditComment(ctx context.Context, noteID, commentID, content string, identity core.Identity) error {
	if err := r.commentGuard(noteID, identity); err != nil {
		return err
	}
	if commentID == "" {
		return fmt.Errorf("%w: comment id is required", core.ErrInvalidInput)
	}
	return r.remote.UpdateComment(ctx, noteID, commentID, content)
}

// DeleteComment removes a comment.
func (r *Repository) DeleteComment(ctx context.Context, noteID, commentID string, identity core.Identity) error {
	if err := r.commentGuard(noteID, identity); err != nil {
		return err
	}
	if commentID == "" {
		return fmt.Errorf("%w: comment id is required", core.ErrInvalidInput)
	}
	return r.remote.DeleteComment(ctx, noteID, commentID)
}

// GetComments lists a note's comments.
func (r *Repository) GetComments(ctx context.Context, noteID string, identity core.Identity) ([]core.Comment, error) {
	if err := r.commentGuard(noteID, identity); err != nil {
		return nil, err
	}
	return r.remote.QueryComments(ctx, noteID)
}

func (r *Repository) commentGuard(noteID string, identity core.Identity) error {
	if noteID == "" {
		return fmt.Errorf("%w: note id is required", core.ErrInvalidInput)
	}
	if identity.IsZero() {
		return core.ErrNotAuthenticated
	}
	if r.remote == nil {
		return fmt.Errorf("%w: comments need the remote store", core.ErrNotConfigured)
	}
	return nil
}

// --- Local layer helpers (full-list read-modify-write; last-writer-wins) ---

func (r *Repository) appendLocal(ctx context.Context, n core.Note) error {
	all, err := r.local.Notes(ctx)
	if err != nil {
		return fmt.Errorf("local store read: %w", err)
	}
	if err := r.local.ReplaceNotes(ctx, append(all, n)); err != nil {
		return fmt.Errorf("local store write: %w", err)
	}
	return nil
}

func (r *Repository) updateLocal(ctx context.Context, draft core.Note, identity core.Identity) (core.Note, error) {
	all, err := r.local.Notes(ctx)
	if err != nil {
		return core.Note{}, fmt.Errorf("local store read: %w", err)
	}
	for i, n := range all {
		if n.ID != draft.ID {
			continue
		}
		if !ownedBy(n, identity) {
			return core.Note{}, fmt.Errorf("%w: only the owner can update this note", core.ErrPermissionDenied)
		}
		n.Content = draft.Content
		n.Selector = draft.Selector
		n.Theme = draft.Theme
		n.UpdatedAt = draft.UpdatedAt
		all[i] = n
		if err := r.local.ReplaceNotes(ctx, all); err != nil {
			return core.Note{}, fmt.Errorf("local store write: %w", err)
		}
		return n, nil
	}
	return core.Note{}, fmt.Errorf("%w: note %s", core.ErrNotFound, draft.ID)
}

func (r *Repository) deleteLocal(ctx context.Context, id string, identity core.Identity) error {
	all, err := r.local.Notes(ctx)
	if err != nil {
		return fmt.Errorf("local store read: %w", err)
	}
	for i, n := range all {
		if n.ID != id {
			continue
		}
		if !ownedBy(n, identity) {
			return fmt.Errorf("%w: only the owner can delete this note", core.ErrPermissionDenied)
		}
		all = append(all[:i], all[i+1:]...)
		if err := r.local.ReplaceNotes(ctx, all); err != nil {
			return fmt.Errorf("local store write: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: note %s", core.ErrNotFound, id)
}

// ownedBy reports whether the identity may mutate a locally stored note.
// Local-sentinel notes belong to whoever holds the device.
func ownedBy(n core.Note, identity core.Identity) bool {
	return n.IsLocal() || n.OwnerID == identity.ID
}
