// Package gateway exposes the engine to viewers over websockets. Each
// viewer (one page frame) keeps a single connection, sends request
// envelopes, and receives correlated responses plus asynchronous pushes on
// the same socket.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aretw0/stratum/pkg/core"
	"github.com/aretw0/stratum/pkg/router"
	"github.com/aretw0/stratum/pkg/subscribe"
)

// Dispatcher routes one viewer envelope. *router.Router satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, v core.Viewer, req router.Request) router.Response
}

// frame is the inbound wire envelope: a correlation id plus the request.
type frame struct {
	ID int64 `json:"id"`
	router.Request
}

// result is the outbound reply to one frame. Pushes go out separately as
// bare core.PushMessage values, distinguished by their action field.
type result struct {
	ID int64 `json:"id"`
	router.Response
}

// conn is one live viewer connection. Writes are serialized: responses and
// pushes interleave on the same socket.
type conn struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	threads map[string]struct{} // note ids with open comment subscriptions
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Hub upgrades viewer connections, pumps their requests through the
// dispatcher, and delivers pushes back to the right viewer. It is the
// engine's core.Sender.
type Hub struct {
	dispatch Dispatcher
	subs     *subscribe.Manager
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[core.Viewer]*conn
}

// NewHub wires the hub. The subscribe manager is used only for cleanup
// when a viewer disconnects without unsubscribing.
func NewHub(dispatch Dispatcher, subs *subscribe.Manager, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		dispatch: dispatch,
		subs:     subs,
		logger:   logger,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		conns:    make(map[core.Viewer]*conn),
	}
}

// ServeHTTP upgrades the request and runs the connection until the viewer
// goes away. The viewer identifies itself with tab and frame query params.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v, err := viewerFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.serve(r.Context(), v, ws)
}

func viewerFromRequest(r *http.Request) (core.Viewer, error) {
	q := r.URL.Query()
	tab, err := strconv.Atoi(q.Get("tab"))
	if err != nil {
		return core.Viewer{}, fmt.Errorf("%w: tab query param: %v", core.ErrInvalidInput, err)
	}
	frame, _ := strconv.Atoi(q.Get("frame"))
	return core.Viewer{TabID: tab, FrameID: frame}, nil
}

func (h *Hub) serve(ctx context.Context, v core.Viewer, ws *websocket.Conn) {
	c := &conn{ws: ws, threads: make(map[string]struct{})}

	h.mu.Lock()
	if prev, ok := h.conns[v]; ok {
		// A reloaded frame reconnects before the old socket times out.
		_ = prev.ws.Close()
	}
	h.conns[v] = c
	h.mu.Unlock()

	h.logger.Debug("viewer connected", "tab", v.TabID, "frame", v.FrameID)
	defer h.drop(v, c)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			h.logger.Debug("unreadable frame dropped", "tab", v.TabID, "error", err)
			continue
		}
		resp := h.dispatch.Dispatch(ctx, v, f.Request)
		h.track(c, f.Request, resp)
		if err := c.writeJSON(result{ID: f.ID, Response: resp}); err != nil {
			return
		}
	}
}

// track records which comment threads this connection holds open so a
// disconnect can release them. Note subscriptions need no bookkeeping: the
// viewer key alone identifies them.
func (h *Hub) track(c *conn, req router.Request, resp router.Response) {
	if !resp.Success {
		return
	}
	switch req.Action {
	case router.ActionSubscribeToComments:
		c.mu.Lock()
		c.threads[req.NoteID] = struct{}{}
		c.mu.Unlock()
	case router.ActionUnsubscribeFromComments:
		c.mu.Lock()
		delete(c.threads, req.NoteID)
		c.mu.Unlock()
	}
}

// drop releases everything the viewer held: its socket registration, its
// note subscription, and any comment threads it left open.
func (h *Hub) drop(v core.Viewer, c *conn) {
	h.mu.Lock()
	if h.conns[v] == c {
		delete(h.conns, v)
	}
	h.mu.Unlock()
	_ = c.ws.Close()

	ctx := context.Background()
	h.subs.UnsubscribeNotes(ctx, v)
	c.mu.Lock()
	threads := make([]string, 0, len(c.threads))
	for id := range c.threads {
		threads = append(threads, id)
	}
	c.mu.Unlock()
	for _, id := range threads {
		h.subs.UnsubscribeComments(ctx, id, v)
	}
	h.logger.Debug("viewer disconnected", "tab", v.TabID, "frame", v.FrameID)
}

// Send delivers one push to a single viewer. A missing or dead connection
// is an error; callers treat it as a stale viewer and drop the message.
func (h *Hub) Send(ctx context.Context, v core.Viewer, msg core.PushMessage) error {
	h.mu.RLock()
	c, ok := h.conns[v]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("viewer %d/%d not connected", v.TabID, v.FrameID)
	}
	if err := c.writeJSON(msg); err != nil {
		return fmt.Errorf("push to viewer %d/%d: %w", v.TabID, v.FrameID, err)
	}
	return nil
}

var _ core.Sender = (*Hub)(nil)
var _ http.Handler = (*Hub)(nil)
