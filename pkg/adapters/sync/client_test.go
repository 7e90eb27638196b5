package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stratum/pkg/core"
)

// testGateway is a scripted websocket peer: handle is invoked per inbound
// frame and its replies are written back with the request id filled in.
// A handler may return extra frames (e.g. a push after a sub ack).
type testGateway struct {
	server *httptest.Server

	mu   sync.Mutex
	conn *websocket.Conn
	seen []request

	handle func(req request) []reply
}

func newTestGateway(t *testing.T, handle func(req request) []reply) *testGateway {
	t.Helper()
	g := &testGateway{handle: handle}
	upgrader := websocket.Upgrader{}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.conn = conn
		g.mu.Unlock()
		for {
			var req request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			g.mu.Lock()
			g.seen = append(g.seen, req)
			g.mu.Unlock()
			for _, resp := range g.handle(req) {
				if resp.ID == 1 { // marker: correlate with the request
					resp.ID = req.ID
				}
				g.mu.Lock()
				err := conn.WriteJSON(resp)
				g.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *testGateway) url() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

// push writes an uncorrelated frame, as the gateway does for live queries.
func (g *testGateway) push(t *testing.T, f reply) {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotNil(t, g.conn, "no client connected yet")
	require.NoError(t, g.conn.WriteJSON(f))
}

// dropClient severs the current connection from the server side.
func (g *testGateway) dropClient(t *testing.T) {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotNil(t, g.conn, "no client connected yet")
	_ = g.conn.Close()
	g.conn = nil
}

func (g *testGateway) requests() []request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]request(nil), g.seen...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ack is a correlated success reply; the ID marker 1 is rewritten by the
// gateway to the actual request id.
func ack(mutate func(*reply)) []reply {
	r := reply{ID: 1, OK: true}
	if mutate != nil {
		mutate(&r)
	}
	return []reply{r}
}

func dialTest(t *testing.T, g *testGateway) *Client {
	t.Helper()
	c, err := Dial(context.Background(), Options{URL: g.url(), Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCreateRoundTrip(t *testing.T) {
	g := newTestGateway(t, func(req request) []reply {
		require.Equal(t, opNoteCreate, req.Op)
		require.NotNil(t, req.Note)
		return ack(func(r *reply) {
			n := *req.Note
			n.ID = "r-1"
			r.Note = &n
		})
	})
	c := dialTest(t, g)

	created, err := c.Create(context.Background(), core.Note{URL: "https://a.test/p", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "r-1", created.ID)
	assert.Equal(t, "hi", created.Content)
}

func TestErrorCodeMapping(t *testing.T) {
	cases := []struct {
		code     string
		sentinel error
	}{
		{codePermission, core.ErrPermissionDenied},
		{codeInvalid, core.ErrInvalidInput},
		{codeNotFound, core.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			g := newTestGateway(t, func(req request) []reply {
				return []reply{{ID: 1, OK: false, Code: tc.code, Error: "nope"}}
			})
			c := dialTest(t, g)

			_, err := c.Get(context.Background(), "n-1")
			require.ErrorIs(t, err, tc.sentinel)
			assert.False(t, core.IsTransient(err), "coded failures are deliberate answers")
		})
	}
}

func TestUncodedFailureIsTransient(t *testing.T) {
	g := newTestGateway(t, func(req request) []reply {
		return []reply{{ID: 1, OK: false, Error: "shard unavailable"}}
	})
	c := dialTest(t, g)

	_, err := c.QueryByURL(context.Background(), "https://a.test/p")
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))
}

func TestSubscribePushesRouteToCallback(t *testing.T) {
	g := newTestGateway(t, func(req request) []reply {
		switch req.Op {
		case opSubscribeNotes:
			return ack(func(r *reply) { r.Sub = "s-1" })
		case opUnsubscribe:
			return nil
		default:
			t.Errorf("unexpected op %q", req.Op)
			return nil
		}
	})
	c := dialTest(t, g)

	got := make(chan []core.Note, 1)
	teardown, err := c.Subscribe(context.Background(), core.NoteQuery{URL: "https://a.test/p"},
		func(notes []core.Note) { got <- notes },
		func(error) {},
	)
	require.NoError(t, err)

	g.push(t, reply{Sub: "s-1", Notes: []core.Note{{ID: "n-1"}, {ID: "n-2"}}})
	select {
	case notes := <-got:
		assert.Len(t, notes, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("push never reached the callback")
	}

	teardown()
	require.Eventually(t, func() bool {
		for _, req := range g.requests() {
			if req.Op == opUnsubscribe && req.Sub == "s-1" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "teardown never sent the unsub frame")

	// Pushes after teardown are dropped, not delivered.
	g.push(t, reply{Sub: "s-1", Notes: []core.Note{{ID: "n-3"}}})
	select {
	case notes := <-got:
		t.Fatalf("unexpected delivery after teardown: %v", notes)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriptionErrorFrame(t *testing.T) {
	g := newTestGateway(t, func(req request) []reply {
		return ack(func(r *reply) { r.Sub = "s-9" })
	})
	c := dialTest(t, g)

	errs := make(chan error, 1)
	_, err := c.SubscribeComments(context.Background(), "n-1",
		func([]core.Comment) {},
		func(e error) { errs <- e },
	)
	require.NoError(t, err)

	g.push(t, reply{Sub: "s-9", Error: "stream reset"})
	select {
	case e := <-errs:
		assert.Contains(t, e.Error(), "stream reset")
	case <-time.After(2 * time.Second):
		t.Fatal("error frame never reached the callback")
	}
}

func TestReconnectReplaysSubscriptionWithFreshID(t *testing.T) {
	var acks atomic.Int32
	g := newTestGateway(t, func(req request) []reply {
		switch req.Op {
		case opSubscribeNotes:
			n := acks.Add(1)
			return ack(func(r *reply) { r.Sub = fmt.Sprintf("s-%d", n) })
		case opUnsubscribe:
			return nil
		default:
			return ack(nil)
		}
	})

	c, err := Dial(context.Background(), Options{URL: g.url(), Logger: quietLogger(), Reconnect: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	c.mu.Lock()
	c.retry = 20 * time.Millisecond
	c.mu.Unlock()

	got := make(chan []core.Note, 1)
	teardown, err := c.Subscribe(context.Background(), core.NoteQuery{URL: "https://a.test/p"},
		func(notes []core.Note) { got <- notes },
		func(error) {},
	)
	require.NoError(t, err)

	g.dropClient(t)

	require.Eventually(t, func() bool {
		count := 0
		for _, req := range g.requests() {
			if req.Op == opSubscribeNotes {
				count++
			}
		}
		return count == 2
	}, 5*time.Second, 10*time.Millisecond, "live query never replayed after reconnect")

	// Pushes under the fresh server id reach the original callback.
	g.push(t, reply{Sub: "s-2", Notes: []core.Note{{ID: "n-1"}}})
	select {
	case notes := <-got:
		assert.Len(t, notes, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("push on the replayed subscription never arrived")
	}

	// Teardown after the reconnect must reference the rekeyed id.
	teardown()
	require.Eventually(t, func() bool {
		for _, req := range g.requests() {
			if req.Op == opUnsubscribe && req.Sub == "s-2" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "unsubscribe did not carry the replayed id")
}

func TestCallAfterCloseFailsTransiently(t *testing.T) {
	g := newTestGateway(t, func(req request) []reply { return ack(nil) })
	c := dialTest(t, g)
	require.NoError(t, c.Close())

	_, err := c.Get(context.Background(), "n-1")
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))
}

func TestDialFailureIsTransient(t *testing.T) {
	_, err := Dial(context.Background(), Options{URL: "ws://127.0.0.1:1/ws", Logger: quietLogger()})
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))
}

func TestDialRequiresURL(t *testing.T) {
	_, err := Dial(context.Background(), Options{})
	require.ErrorIs(t, err, core.ErrNotConfigured)
}
