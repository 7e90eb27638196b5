package core

import "context"

// LocalStore is the on-device durable key-value layer. It holds the full
// note list plus per-identity seen markers, and is used either as the only
// store (unauthenticated) or as the fallback when the remote store fails.
//
// Read-modify-write sequences over the note list are not mutually exclusive
// across requests; concurrent writers race last-writer-wins.
type LocalStore interface {
	// Notes returns the full persisted note list.
	Notes(ctx context.Context) ([]Note, error)

	// ReplaceNotes overwrites the full persisted note list.
	ReplaceNotes(ctx context.Context, notes []Note) error

	// SeenNotes returns the note ids the identity has already read.
	SeenNotes(ctx context.Context, identityID string) ([]string, error)

	// MarkSeen adds a note id to the identity's seen set. Adding an id that
	// is already present is a no-op; entries are never removed.
	MarkSeen(ctx context.Context, identityID, noteID string) error

	// Close releases the underlying storage.
	Close() error
}

// NoteQuery selects notes on the remote store. Exactly one field is set.
type NoteQuery struct {
	// URL selects notes anchored at the given (fragment-stripped) URL.
	URL string
	// SharedWith selects notes shared with the given email address.
	SharedWith string
}

// Unsubscribe tears down a live query subscription. Safe to call once;
// the subscription manager guarantees it is never invoked twice.
type Unsubscribe func()

// RemoteStore is the network-backed document store offering CRUD plus
// query-based push subscriptions. Implementations classify failures using
// the core error taxonomy: ErrPermissionDenied and ErrInvalidInput propagate
// as-is, anything else is wrapped as a transient BackendError.
type RemoteStore interface {
	Create(ctx context.Context, n Note) (Note, error)
	Get(ctx context.Context, id string) (Note, error)
	Update(ctx context.Context, n Note) (Note, error)
	Delete(ctx context.Context, id string, identity Identity) error
	QueryByURL(ctx context.Context, url string) ([]Note, error)
	QueryOwned(ctx context.Context, ownerID string) ([]Note, error)
	QuerySharedWith(ctx context.Context, email string) ([]Note, error)

	// Subscribe installs a live query. onChange receives the full result set
	// on every change; onError receives subscription-scoped failures. The
	// returned Unsubscribe stops delivery.
	Subscribe(ctx context.Context, q NoteQuery, onChange func([]Note), onError func(error)) (Unsubscribe, error)

	CreateComment(ctx context.Context, c Comment) (Comment, error)
	UpdateComment(ctx context.Context, noteID, commentID, content string) error
	DeleteComment(ctx context.Context, noteID, commentID string) error
	QueryComments(ctx context.Context, noteID string) ([]Comment, error)
	SubscribeComments(ctx context.Context, noteID string, onChange func([]Comment), onError func(error)) (Unsubscribe, error)
}

// IdentityProvider resolves the current authenticated principal.
type IdentityProvider interface {
	// SignIn authenticates interactively or refreshes a cached session.
	SignIn(ctx context.Context) (Session, error)

	// SignOut drops the current session.
	SignOut(ctx context.Context) error

	// Current returns the signed-in identity, if any.
	Current(ctx context.Context) (Identity, bool)
}

// Badge drives the toolbar indicator. Text applies globally unless set for
// a specific tab.
type Badge interface {
	SetText(ctx context.Context, text string) error
	SetTabText(ctx context.Context, tabID int, text string) error
	SetColor(ctx context.Context, color string) error
}

// Sender delivers push messages to a single viewer. Delivery to a viewer
// whose tab or frame has gone away returns an error; callers log and drop,
// they never propagate it.
type Sender interface {
	Send(ctx context.Context, v Viewer, msg PushMessage) error
}

// Tabs resolves metadata about open tabs.
type Tabs interface {
	URL(ctx context.Context, tabID int) (string, error)
}
