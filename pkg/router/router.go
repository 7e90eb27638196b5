// Package router dispatches viewer request envelopes to the engine's
// components and normalizes every outcome into a success/error response.
// It is the safety boundary: a malformed request or a panicking handler
// yields a structured error for that one viewer and nothing else.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/aretw0/stratum/pkg/core"
	"github.com/aretw0/stratum/pkg/notes"
	"github.com/aretw0/stratum/pkg/shared"
	"github.com/aretw0/stratum/pkg/subscribe"
)

// Router is the engine's single entry point for viewer requests.
type Router struct {
	repo     *notes.Repository
	migrator *notes.Migrator
	subs     *subscribe.Manager
	tracker  *shared.Tracker
	identity core.IdentityProvider
	tabs     core.Tabs
	badge    core.Badge
	logger   *slog.Logger
	validate *validator.Validate
}

// New wires the router. tabs and badge may be nil; the actions needing them
// then answer with a configuration error.
func New(repo *notes.Repository, migrator *notes.Migrator, subs *subscribe.Manager, tracker *shared.Tracker, identity core.IdentityProvider, tabs core.Tabs, badge core.Badge, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		repo:     repo,
		migrator: migrator,
		subs:     subs,
		tracker:  tracker,
		identity: identity,
		tabs:     tabs,
		badge:    badge,
		logger:   logger,
		validate: validator.New(),
	}
}

// Dispatch routes one envelope from the given viewer. Handler errors and
// panics are converted to {success:false, error} here; nothing escapes to
// the caller, so one bad request cannot take the dispatcher down.
func (r *Router) Dispatch(ctx context.Context, v core.Viewer, req Request) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panic", "action", req.Action, "panic", rec)
			resp = fail(fmt.Errorf("internal error handling %s", req.Action))
		}
	}()

	identity, _ := r.identity.Current(ctx)

	switch req.Action {
	case ActionLogin:
		return r.login(ctx)
	case ActionLogout:
		return r.logout(ctx)
	case ActionGetUser:
		if identity.IsZero() {
			return ok()
		}
		return Response{Success: true, User: &identity}

	case ActionGetNotes:
		found, err := r.repo.GetNotes(ctx, req.URL, identity)
		if err != nil {
			return fail(err)
		}
		return Response{Success: true, Notes: found}
	case ActionSaveNote:
		if req.Note == nil {
			return fail(fmt.Errorf("%w: note payload is required", core.ErrInvalidInput))
		}
		saved, err := r.repo.SaveNote(ctx, *req.Note, identity)
		if err != nil {
			return fail(err)
		}
		return Response{Success: true, Note: &saved}
	case ActionUpdateNote:
		if req.Note == nil {
			return fail(fmt.Errorf("%w: note payload is required", core.ErrInvalidInput))
		}
		updated, err := r.repo.UpdateNote(ctx, *req.Note, identity)
		if err != nil {
			return fail(err)
		}
		return Response{Success: true, Note: &updated}
	case ActionDeleteNote:
		if err := r.repo.DeleteNote(ctx, req.NoteID, identity); err != nil {
			return fail(err)
		}
		return ok()
	case ActionGetAllNotes:
		all, err := r.repo.GetAllNotes(ctx, identity)
		if err != nil {
			return fail(err)
		}
		return Response{Success: true, Notes: all}
	case ActionDeleteAllNotes:
		if err := r.repo.DeleteAllNotes(ctx, identity); err != nil {
			return fail(err)
		}
		return ok()

	case ActionShareNote:
		if err := r.validEmail(req.Email); err != nil {
			return fail(err)
		}
		granted, err := r.repo.ShareNote(ctx, req.NoteID, req.Email, identity)
		if err != nil {
			return fail(err)
		}
		return Response{Success: true, Note: &granted}
	case ActionUnshareNote:
		if err := r.validEmail(req.Email); err != nil {
			return fail(err)
		}
		unshared, err := r.repo.UnshareNote(ctx, req.NoteID, req.Email, identity)
		if err != nil {
			return fail(err)
		}
		return Response{Success: true, Note: &unshared}
	case ActionLeaveSharedNote:
		if err := r.repo.LeaveSharedNote(ctx, req.NoteID, identity); err != nil {
			return fail(err)
		}
		return ok()

	case ActionAddComment:
		added, err := r.repo.AddComment(ctx, req.NoteID, req.Comment, identity)
		if err != nil {
			return fail(err)
		}
		return Response{Success: true, Comment: &added}
	case ActionEditComment:
		if err := r.repo.EditComment(ctx, req.NoteID, req.CommentID, req.Updates, identity); err != nil {
			return fail(err)
		}
		return ok()
	case ActionDeleteComment:
		if err := r.repo.DeleteComment(ctx, req.NoteID, req.CommentID, identity); err != nil {
			return fail(err)
		}
		return ok()
	case ActionGetComments:
		comments, err := r.repo.GetComments(ctx, req.NoteID, identity)
		if err != nil {
			return fail(err)
		}
		return Response{Success: true, Comments: comments}

	case ActionSubscribeToNotes:
		if err := r.subs.SubscribeNotes(ctx, req.URL, v); err != nil {
			return fail(err)
		}
		return ok()
	case ActionUnsubscribeFromNotes:
		r.subs.UnsubscribeNotes(ctx, v)
		return ok()
	case ActionSubscribeToComments:
		if err := r.subs.SubscribeComments(ctx, req.NoteID, v); err != nil {
			return fail(err)
		}
		return ok()
	case ActionUnsubscribeFromComments:
		r.subs.UnsubscribeComments(ctx, req.NoteID, v)
		return ok()

	case ActionGetUnreadSharedNotes:
		unread, err := r.tracker.UnreadNotes(ctx)
		if err != nil {
			return fail(err)
		}
		return Response{Success: true, Notes: unread}
	case ActionGetUnreadSharedCount:
		count, err := r.tracker.UnreadCount(ctx)
		if err != nil {
			return fail(err)
		}
		return withCount(count)
	case ActionMarkSharedNoteRead:
		if err := r.tracker.MarkRead(ctx, req.NoteID); err != nil {
			return fail(err)
		}
		r.tracker.RefreshBadge(ctx)
		return ok()

	case ActionUpdateOrphanedCount:
		return r.updateOrphanedCount(ctx, v, req.Count)
	case ActionGetTabURL:
		if r.tabs == nil {
			return fail(fmt.Errorf("%w: no tab resolver available", core.ErrNotConfigured))
		}
		url, err := r.tabs.URL(ctx, v.TabID)
		if err != nil {
			return fail(err)
		}
		return Response{Success: true, URL: url}

	default:
		return fail(fmt.Errorf("%w: %q", core.ErrUnknownAction, req.Action))
	}
}

// login signs in, runs the one-shot migration on a fresh sign-in only, and
// arms the global shared-notes subscription. Migration failures never fail
// the login.
func (r *Router) login(ctx context.Context) Response {
	session, err := r.identity.SignIn(ctx)
	if err != nil {
		return fail(err)
	}
	resp := Response{Success: true, User: &session.Identity}
	if session.Fresh {
		result := r.migrator.Run(ctx, session.Identity)
		resp.Migration = &result
	}
	if err := r.tracker.SubscribeGlobal(ctx); err != nil {
		r.logger.Warn("shared-notes watch not started", "error", err)
	}
	return resp
}

func (r *Router) logout(ctx context.Context) Response {
	r.tracker.UnsubscribeGlobal(ctx)
	r.migrator.Reset()
	if err := r.identity.SignOut(ctx); err != nil {
		return fail(err)
	}
	return ok()
}

// updateOrphanedCount drives the independent per-tab badge showing notes
// whose anchors no longer resolve on the page.
func (r *Router) updateOrphanedCount(ctx context.Context, v core.Viewer, count int) Response {
	if r.badge == nil {
		return fail(fmt.Errorf("%w: no badge available", core.ErrNotConfigured))
	}
	text := ""
	if count > 0 {
		text = strconv.Itoa(count)
	}
	if err := r.badge.SetTabText(ctx, v.TabID, text); err != nil {
		return fail(err)
	}
	return ok()
}

func (r *Router) validEmail(email string) error {
	if err := r.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: malformed email %q", core.ErrInvalidInput, email)
	}
	return nil
}
