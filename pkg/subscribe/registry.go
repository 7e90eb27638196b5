// Package subscribe owns live push subscriptions: the per-viewer registry
// and the manager that installs, replaces and tears down remote-store
// subscriptions while routing updates to the originating viewer only.
package subscribe

import (
	"sync"

	"github.com/aretw0/stratum/pkg/core"
)

// NoteKey identifies a note subscription: one per (tab, frame), so multiple
// frames in one tab hold independent subscriptions.
type NoteKey struct {
	TabID   int
	FrameID int
}

// CommentKey identifies a comment subscription. Comments are tab-scoped
// rather than frame-scoped, so the key is (tab, note).
type CommentKey struct {
	TabID  int
	NoteID string
}

// Registry owns the process-wide subscription maps. It deliberately exposes
// only set/take/has so the teardown-then-install sequence stays in the
// manager, and it is injected rather than referenced as ambient global
// state; one instance per process.
//
// Invariant: at most one teardown per key. Set replaces silently; callers
// must Take (and invoke) the previous teardown first.
type Registry struct {
	mu       sync.Mutex
	notes    map[NoteKey]core.Unsubscribe
	comments map[CommentKey]core.Unsubscribe
	global   core.Unsubscribe
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		notes:    make(map[NoteKey]core.Unsubscribe),
		comments: make(map[CommentKey]core.Unsubscribe),
	}
}

// SetNotes stores the teardown for a note subscription key.
func (r *Registry) SetNotes(k NoteKey, teardown core.Unsubscribe) {
	r.mu.Lock()
	r.notes[k] = teardown
	r.mu.Unlock()
}

// TakeNotes removes and returns the teardown for k, if present.
func (r *Registry) TakeNotes(k NoteKey) (core.Unsubscribe, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	teardown, ok := r.notes[k]
	if ok {
		delete(r.notes, k)
	}
	return teardown, ok
}

// HasNotes reports whether a note subscription is active for k.
func (r *Registry) HasNotes(k NoteKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.notes[k]
	return ok
}

// SetComments stores the teardown for a comment subscription key.
func (r *Registry) SetComments(k CommentKey, teardown core.Unsubscribe) {
	r.mu.Lock()
	r.comments[k] = teardown
	r.mu.Unlock()
}

// TakeComments removes and returns the teardown for k, if present.
func (r *Registry) TakeComments(k CommentKey) (core.Unsubscribe, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	teardown, ok := r.comments[k]
	if ok {
		delete(r.comments, k)
	}
	return teardown, ok
}

// HasComments reports whether a comment subscription is active for k.
func (r *Registry) HasComments(k CommentKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.comments[k]
	return ok
}

// SetGlobal stores the single process-wide shared-notes teardown.
func (r *Registry) SetGlobal(teardown core.Unsubscribe) {
	r.mu.Lock()
	r.global = teardown
	r.mu.Unlock()
}

// TakeGlobal removes and returns the global teardown, if present.
func (r *Registry) TakeGlobal() (core.Unsubscribe, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	teardown := r.global
	r.global = nil
	return teardown, teardown != nil
}

// HasGlobal reports whether the global shared-notes subscription is active.
func (r *Registry) HasGlobal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.global != nil
}

func (r *Registry) counts() (notes, comments int, global bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes), len(r.comments), r.global != nil
}
