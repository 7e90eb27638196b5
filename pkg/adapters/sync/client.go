// Package sync implements the remote synchronized store as a websocket
// client against a sync gateway: request/response CRUD with correlation
// ids, plus query-based push subscriptions that survive reconnects.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/gorilla/websocket"

	"github.com/aretw0/stratum/pkg/core"
)

const reconnectDelay = 5 * time.Second

// Options configures the client.
type Options struct {
	// URL is the gateway websocket endpoint (ws:// or wss://).
	URL string

	// Token is sent as a bearer credential during the handshake.
	Token string

	// Logger for connection lifecycle events. Nil uses slog.Default.
	Logger *slog.Logger

	// Reconnect enables redialing (with re-subscribe) after a dropped
	// connection. Tests usually leave it off.
	Reconnect bool
}

// subscription remembers enough to replay a live query after a reconnect.
type subscription struct {
	serverID   string
	query      core.NoteQuery
	noteID     string // set for comment subscriptions
	onNotes    func([]core.Note)
	onComments func([]core.Comment)
	onError    func(error)
}

// Client implements core.RemoteStore over one multiplexed websocket.
type Client struct {
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  uint64
	pending map[uint64]chan reply
	subs    map[string]*subscription // keyed by server subscription id
	closed  bool
	retry   time.Duration
}

// Dial connects to the gateway and starts the read loop.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: gateway url is empty", core.ErrNotConfigured)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		opts:    opts,
		logger:  logger,
		ctx:     runCtx,
		cancel:  cancel,
		pending: make(map[uint64]chan reply),
		subs:    make(map[string]*subscription),
		retry:   reconnectDelay,
	}
	conn, err := c.dial(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	c.conn = conn
	c.startReadLoop(conn)
	return c, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		return nil, core.Transient("dial", err)
	}
	return conn, nil
}

// startReadLoop launches a tracked goroutine draining the connection.
func (c *Client) startReadLoop(conn *websocket.Conn) {
	lifecycle.Go(c.ctx, func(ctx context.Context) error {
		c.readLoop(ctx, conn)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		c.logger.Error("sync read loop panic", "error", err)
	}))
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f reply
		if err := conn.ReadJSON(&f); err != nil {
			c.handleDisconnect(ctx, conn, err)
			return
		}
		if f.ID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			if ok {
				delete(c.pending, f.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- f
			}
			continue
		}
		if f.Sub != "" {
			c.dispatchPush(f)
		}
	}
}

func (c *Client) dispatchPush(f reply) {
	c.mu.Lock()
	sub, ok := c.subs[f.Sub]
	c.mu.Unlock()
	if !ok {
		return // raced with an unsubscribe; drop
	}
	switch {
	case f.Error != "":
		if sub.onError != nil {
			sub.onError(errors.New(f.Error))
		}
	case sub.onComments != nil:
		sub.onComments(f.Comments)
	case sub.onNotes != nil:
		sub.onNotes(f.Notes)
	}
}

// handleDisconnect fails every in-flight call, then either stops (closed or
// reconnect disabled) or redials until it can replay the active
// subscriptions.
func (c *Client) handleDisconnect(ctx context.Context, conn *websocket.Conn, cause error) {
	_ = conn.Close()

	c.mu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- reply{Code: "", Error: cause.Error()}
	}
	closed := c.closed
	retry := c.retry
	c.mu.Unlock()

	if closed || !c.opts.Reconnect || ctx.Err() != nil {
		return
	}

	c.logger.Warn("sync gateway connection lost, reconnecting", "error", cause)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
		next, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("sync gateway redial failed", "error", err)
			continue
		}
		c.mu.Lock()
		c.conn = next
		c.mu.Unlock()
		c.startReadLoop(next)
		c.resubscribe(ctx)
		return
	}
}

// resubscribe replays every live query on the fresh connection. Server
// subscription ids change across connections, so the map is rekeyed.
func (c *Client) resubscribe(ctx context.Context) {
	c.mu.Lock()
	stale := c.subs
	c.subs = make(map[string]*subscription, len(stale))
	c.mu.Unlock()

	for _, sub := range stale {
		req := request{Op: opSubscribeNotes, URL: sub.query.URL, Email: sub.query.SharedWith}
		if sub.noteID != "" {
			req = request{Op: opSubscribeThread, NoteID: sub.noteID}
		}
		resp, err := c.call(ctx, req)
		if err != nil {
			if sub.onError != nil {
				sub.onError(err)
			}
			continue
		}
		c.mu.Lock()
		sub.serverID = resp.Sub
		c.subs[resp.Sub] = sub
		c.mu.Unlock()
	}
}

// call sends one correlated request and waits for its reply.
func (c *Client) call(ctx context.Context, req request) (reply, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return reply{}, core.Transient(req.Op, errors.New("client closed"))
	}
	c.nextID++
	req.ID = c.nextID
	ch := make(chan reply, 1)
	c.pending[req.ID] = ch
	conn := c.conn
	err := conn.WriteJSON(req)
	if err != nil {
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return reply{}, core.Transient(req.Op, err)
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return reply{}, core.Transient(req.Op, ctx.Err())
	case resp := <-ch:
		if resp.ID == 0 && resp.Error != "" {
			// injected by handleDisconnect
			return reply{}, core.Transient(req.Op, errors.New(resp.Error))
		}
		if !resp.OK {
			return reply{}, replyError(req.Op, resp)
		}
		return resp, nil
	}
}

// Close tears the connection down. In-flight calls fail transiently.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	c.cancel()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// --- core.RemoteStore ---

func (c *Client) Create(ctx context.Context, n core.Note) (core.Note, error) {
	resp, err := c.call(ctx, request{Op: opNoteCreate, Note: &n})
	if err != nil {
		return core.Note{}, err
	}
	return deref(resp.Note), nil
}

func (c *Client) Get(ctx context.Context, id string) (core.Note, error) {
	resp, err := c.call(ctx, request{Op: opNoteGet, NoteID: id})
	if err != nil {
		return core.Note{}, err
	}
	return deref(resp.Note), nil
}

func (c *Client) Update(ctx context.Context, n core.Note) (core.Note, error) {
	resp, err := c.call(ctx, request{Op: opNoteUpdate, Note: &n})
	if err != nil {
		return core.Note{}, err
	}
	return deref(resp.Note), nil
}

func (c *Client) Delete(ctx context.Context, id string, identity core.Identity) error {
	_, err := c.call(ctx, request{Op: opNoteDelete, NoteID: id, OwnerID: identity.ID})
	return err
}

func (c *Client) QueryByURL(ctx context.Context, url string) ([]core.Note, error) {
	resp, err := c.call(ctx, request{Op: opQueryByURL, URL: url})
	if err != nil {
		return nil, err
	}
	return resp.Notes, nil
}

func (c *Client) QueryOwned(ctx context.Context, ownerID string) ([]core.Note, error) {
	resp, err := c.call(ctx, request{Op: opQueryOwned, OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	return resp.Notes, nil
}

func (c *Client) QuerySharedWith(ctx context.Context, email string) ([]core.Note, error) {
	resp, err := c.call(ctx, request{Op: opQuerySharedWith, Email: email})
	if err != nil {
		return nil, err
	}
	return resp.Notes, nil
}

func (c *Client) Subscribe(ctx context.Context, q core.NoteQuery, onChange func([]core.Note), onError func(error)) (core.Unsubscribe, error) {
	resp, err := c.call(ctx, request{Op: opSubscribeNotes, URL: q.URL, Email: q.SharedWith})
	if err != nil {
		return nil, err
	}
	sub := &subscription{serverID: resp.Sub, query: q, onNotes: onChange, onError: onError}
	return c.install(sub), nil
}

func (c *Client) SubscribeComments(ctx context.Context, noteID string, onChange func([]core.Comment), onError func(error)) (core.Unsubscribe, error) {
	resp, err := c.call(ctx, request{Op: opSubscribeThread, NoteID: noteID})
	if err != nil {
		return nil, err
	}
	sub := &subscription{serverID: resp.Sub, noteID: noteID, onComments: onChange, onError: onError}
	return c.install(sub), nil
}

// install registers the subscription and returns its teardown. Teardown is
// best-effort on the wire: a dead connection just drops the registration.
func (c *Client) install(sub *subscription) core.Unsubscribe {
	c.mu.Lock()
	c.subs[sub.serverID] = sub
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		current := sub.serverID
		delete(c.subs, current)
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed || conn == nil {
			return
		}
		if err := conn.WriteJSON(request{Op: opUnsubscribe, Sub: current}); err != nil {
			c.logger.Debug("unsubscribe frame not delivered", "sub", current, "error", err)
		}
	}
}

func (c *Client) CreateComment(ctx context.Context, comment core.Comment) (core.Comment, error) {
	resp, err := c.call(ctx, request{Op: opCommentCreate, Comment: &comment})
	if err != nil {
		return core.Comment{}, err
	}
	if resp.Comment == nil {
		return core.Comment{}, nil
	}
	return *resp.Comment, nil
}

func (c *Client) UpdateComment(ctx context.Context, noteID, commentID, content string) error {
	_, err := c.call(ctx, request{Op: opCommentUpdate, NoteID: noteID, CommentID: commentID, Content: content})
	return err
}

func (c *Client) DeleteComment(ctx context.Context, noteID, commentID string) error {
	_, err := c.call(ctx, request{Op: opCommentDelete, NoteID: noteID, CommentID: commentID})
	return err
}

func (c *Client) QueryComments(ctx context.Context, noteID string) ([]core.Comment, error) {
	resp, err := c.call(ctx, request{Op: opCommentQuery, NoteID: noteID})
	if err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

func deref(n *core.Note) core.Note {
	if n == nil {
		return core.Note{}
	}
	return *n
}

var _ core.RemoteStore = (*Client)(nil)
