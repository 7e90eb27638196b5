package sync

import (
	"errors"
	"fmt"

	"github.com/aretw0/stratum/pkg/core"
)

// Wire operations understood by the sync gateway.
const (
	opNoteCreate      = "note.create"
	opNoteGet         = "note.get"
	opNoteUpdate      = "note.update"
	opNoteDelete      = "note.delete"
	opQueryByURL      = "note.queryByUrl"
	opQueryOwned      = "note.queryOwned"
	opQuerySharedWith = "note.querySharedWith"
	opCommentCreate   = "comment.create"
	opCommentUpdate   = "comment.update"
	opCommentDelete   = "comment.delete"
	opCommentQuery    = "comment.query"
	opSubscribeNotes  = "sub.notes"
	opSubscribeThread = "sub.comments"
	opUnsubscribe     = "unsub"
)

// Error codes the gateway attaches to failed replies. Anything without a
// code (or with an unknown one) is treated as transient.
const (
	codePermission = "permission"
	codeInvalid    = "invalid"
	codeNotFound   = "not_found"
)

// request is a client-to-gateway frame.
type request struct {
	ID        uint64        `json:"id"`
	Op        string        `json:"op"`
	Note      *core.Note    `json:"note,omitempty"`
	NoteID    string        `json:"noteId,omitempty"`
	OwnerID   string        `json:"ownerId,omitempty"`
	URL       string        `json:"url,omitempty"`
	Email     string        `json:"email,omitempty"`
	CommentID string        `json:"commentId,omitempty"`
	Content   string        `json:"content,omitempty"`
	Comment   *core.Comment `json:"comment,omitempty"`
	Sub       string        `json:"sub,omitempty"`
}

// reply is a gateway-to-client frame: either a correlated response
// (ID != 0) or a subscription push (Sub set, ID zero).
type reply struct {
	ID       uint64         `json:"id,omitempty"`
	OK       bool           `json:"ok,omitempty"`
	Code     string         `json:"code,omitempty"`
	Error    string         `json:"error,omitempty"`
	Sub      string         `json:"sub,omitempty"`
	Note     *core.Note     `json:"note,omitempty"`
	Notes    []core.Note    `json:"notes,omitempty"`
	Comment  *core.Comment  `json:"comment,omitempty"`
	Comments []core.Comment `json:"comments,omitempty"`
}

// replyError maps a failed reply onto the core error taxonomy.
func replyError(op string, r reply) error {
	switch r.Code {
	case codePermission:
		return fmt.Errorf("%w: %s", core.ErrPermissionDenied, r.Error)
	case codeInvalid:
		return fmt.Errorf("%w: %s", core.ErrInvalidInput, r.Error)
	case codeNotFound:
		return fmt.Errorf("%w: %s", core.ErrNotFound, r.Error)
	default:
		return core.Transient(op, errors.New(r.Error))
	}
}
