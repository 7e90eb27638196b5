package router

import (
	"github.com/aretw0/stratum/pkg/core"
	"github.com/aretw0/stratum/pkg/notes"
)

// Action enumerates every request a viewer can issue. The set is closed:
// the dispatcher matches it exhaustively and anything else is answered with
// a structured unknown-action error, never a panic.
type Action string

const (
	ActionLogin                   Action = "login"
	ActionLogout                  Action = "logout"
	ActionGetUser                 Action = "getUser"
	ActionGetNotes                Action = "getNotes"
	ActionSaveNote                Action = "saveNote"
	ActionUpdateNote              Action = "updateNote"
	ActionDeleteNote              Action = "deleteNote"
	ActionGetAllNotes             Action = "getAllNotes"
	ActionDeleteAllNotes          Action = "deleteAllNotes"
	ActionShareNote               Action = "shareNote"
	ActionUnshareNote             Action = "unshareNote"
	ActionLeaveSharedNote         Action = "leaveSharedNote"
	ActionAddComment              Action = "addComment"
	ActionEditComment             Action = "editComment"
	ActionDeleteComment           Action = "deleteComment"
	ActionGetComments             Action = "getComments"
	ActionSubscribeToNotes        Action = "subscribeToNotes"
	ActionUnsubscribeFromNotes    Action = "unsubscribeFromNotes"
	ActionSubscribeToComments     Action = "subscribeToComments"
	ActionUnsubscribeFromComments Action = "unsubscribeFromComments"
	ActionGetUnreadSharedNotes    Action = "getUnreadSharedNotes"
	ActionGetUnreadSharedCount    Action = "getUnreadSharedCount"
	ActionMarkSharedNoteRead      Action = "markSharedNoteRead"
	ActionUpdateOrphanedCount     Action = "updateOrphanedCount"
	ActionGetTabURL               Action = "getTabUrl"
)

// Request is the inbound envelope: an action plus the fields it needs.
// Unused fields stay at their zero value.
type Request struct {
	Action    Action     `json:"action"`
	URL       string     `json:"url,omitempty"`
	Note      *core.Note `json:"note,omitempty"`
	NoteID    string     `json:"noteId,omitempty"`
	Email     string     `json:"email,omitempty"`
	Comment   string     `json:"comment,omitempty"`
	CommentID string     `json:"commentId,omitempty"`
	Updates   string     `json:"updates,omitempty"`
	Count     int        `json:"count,omitempty"`
}

// Response is the outbound envelope. Every response carries Success; the
// data fields are flattened next to it so viewers read `resp.notes` etc.
type Response struct {
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	User      *core.Identity         `json:"user,omitempty"`
	Note      *core.Note             `json:"note,omitempty"`
	Notes     []core.Note            `json:"notes,omitempty"`
	Comment   *core.Comment          `json:"comment,omitempty"`
	Comments  []core.Comment         `json:"comments,omitempty"`
	Count     *int                   `json:"count,omitempty"`
	URL       string                 `json:"url,omitempty"`
	Migration *notes.MigrationResult `json:"migration,omitempty"`
}

func ok() Response {
	return Response{Success: true}
}

func fail(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

func withCount(n int) Response {
	return Response{Success: true, Count: &n}
}
