package core

import "time"

// LocalOwnerID is the owner sentinel carried by notes created while
// unauthenticated. Such notes live only in the local store and are never
// pushed to the remote store silently; the migration coordinator re-tags
// them on a fresh sign-in.
const LocalOwnerID = "local"

// Note is the central entity of the domain.
// A note is anchored to a URL (plus a selector inside the page) and is
// owned by its creator; recipients listed in SharedWith get read and
// leave rights only.
type Note struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Selector   string    `json:"selector,omitempty"`
	Content    string    `json:"content"`
	Theme      string    `json:"theme,omitempty"`
	OwnerID    string    `json:"ownerId"`
	OwnerEmail string    `json:"ownerEmail,omitempty"`
	SharedWith []string  `json:"sharedWith,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsLocal reports whether the note was created without an identity and
// therefore only exists in the local store.
func (n Note) IsLocal() bool {
	return n.OwnerID == LocalOwnerID
}

// SharedWithEmail reports whether the note is shared with the given address.
func (n Note) SharedWithEmail(email string) bool {
	for _, e := range n.SharedWith {
		if e == email {
			return true
		}
	}
	return false
}

// Comment is a child of exactly one note. Comments are always remote-backed;
// there is no local fallback for them.
type Comment struct {
	ID         string    `json:"id"`
	NoteID     string    `json:"noteId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Content    string    `json:"content"`
	ParentID   string    `json:"parentId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Identity is the authenticated principal on whose behalf operations execute.
// The zero value means "unauthenticated".
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// IsZero reports whether no principal is signed in.
func (i Identity) IsZero() bool {
	return i.ID == ""
}

// Session is the outcome of a sign-in. Fresh distinguishes an interactive
// sign-in from a background token refresh; migration runs only on the former.
type Session struct {
	Identity Identity `json:"identity"`
	Fresh    bool     `json:"fresh"`
}

// Viewer identifies a single tab, or a frame within a tab, that issues
// requests and receives push messages. FrameID 0 is the top-level frame.
type Viewer struct {
	TabID   int `json:"tabId"`
	FrameID int `json:"frameId"`
}

// Push message actions delivered from the engine to a viewer.
const (
	PushNotesUpdated      = "notesUpdated"
	PushCommentsUpdated   = "commentsUpdated"
	PushSubscriptionError = "subscriptionError"
)

// PushMessage is an engine-to-viewer notification. Exactly one of Notes or
// Comments is set for update pushes; Type and Error are set for
// subscriptionError pushes.
type PushMessage struct {
	Action   string    `json:"action"`
	Notes    []Note    `json:"notes,omitempty"`
	NoteID   string    `json:"noteId,omitempty"`
	Comments []Comment `json:"comments,omitempty"`
	Type     string    `json:"type,omitempty"`
	Error    string    `json:"error,omitempty"`
}
