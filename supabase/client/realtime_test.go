package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sabora/client_layer/pkg/logger"
)

type wsMessage struct {
	Topic   string         `json:"topic"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
	Ref     string         `json:"ref"`
}

// wsServer is a minimal realtime endpoint: it records client messages and
// lets the test push change events down the socket.
type wsServer struct {
	srv      *httptest.Server
	incoming chan wsMessage
	conns    chan *websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ws := &wsServer{
		incoming: make(chan wsMessage, 16),
		conns:    make(chan *websocket.Conn, 1),
	}
	ws.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		ws.conns <- conn
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			ws.incoming <- msg
		}
	}))
	t.Cleanup(ws.srv.Close)
	return ws
}

func (ws *wsServer) waitMessage(t *testing.T) wsMessage {
	t.Helper()
	select {
	case msg := <-ws.incoming:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for client message")
		return wsMessage{}
	}
}

func (ws *wsServer) push(t *testing.T, v any) {
	t.Helper()
	select {
	case conn := <-ws.conns:
		ws.conns <- conn
		if err := conn.WriteJSON(v); err != nil {
			t.Fatalf("push: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no connection to push to")
	}
}

func TestRealtime_SubscribeReceivesChanges(t *testing.T) {
	ws := newWSServer(t)
	rt := NewRealtime(ws.srv.URL, "anon-key", logger.Discard())
	if err := rt.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rt.Close()

	events := make(chan ChangeEvent, 1)
	sub, err := rt.Subscribe(context.Background(), ChangesConfig{
		Event:  "UPDATE",
		Table:  "orders",
		Filter: "customer_email=eq.ana@example.com",
	}, func(ev ChangeEvent) {
		events <- ev
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	join := ws.waitMessage(t)
	if join.Event != "phx_join" {
		t.Fatalf("event = %s, want phx_join", join.Event)
	}
	if !strings.Contains(join.Topic, "orders") || !strings.Contains(join.Topic, "customer_email=eq.ana@example.com") {
		t.Fatalf("topic = %s", join.Topic)
	}
	cfg, _ := json.Marshal(join.Payload)
	if !strings.Contains(string(cfg), `"postgres_changes"`) {
		t.Fatalf("join payload lacks postgres_changes config: %s", cfg)
	}

	ws.push(t, map[string]any{
		"topic": join.Topic,
		"event": "postgres_changes",
		"payload": map[string]any{
			"data": map[string]any{
				"type":       "UPDATE",
				"table":      "orders",
				"record":     map[string]any{"id": "o1", "status": "preparing"},
				"old_record": map[string]any{"id": "o1", "status": "confirmed"},
			},
		},
	})

	select {
	case ev := <-events:
		if ev.Event != "UPDATE" || ev.Table != "orders" {
			t.Fatalf("unexpected event: %+v", ev)
		}
		var rec map[string]any
		if err := json.Unmarshal(ev.Record, &rec); err != nil {
			t.Fatalf("record: %v", err)
		}
		if rec["status"] != "preparing" {
			t.Fatalf("record status = %v", rec["status"])
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler never received the change")
	}

	if err := sub.Unsubscribe(context.Background()); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	leave := ws.waitMessage(t)
	if leave.Event != "phx_leave" {
		t.Fatalf("event = %s, want phx_leave", leave.Event)
	}
}

func TestRealtime_UnsubscribeIsIdempotent(t *testing.T) {
	ws := newWSServer(t)
	rt := NewRealtime(ws.srv.URL, "anon-key", logger.Discard())
	if err := rt.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rt.Close()

	sub, err := rt.Subscribe(context.Background(), ChangesConfig{Table: "orders"}, func(ChangeEvent) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	ws.waitMessage(t) // join

	if err := sub.Unsubscribe(context.Background()); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := sub.Unsubscribe(context.Background()); err != nil {
		t.Fatalf("second unsubscribe: %v", err)
	}

	ws.waitMessage(t) // single leave
	select {
	case msg := <-ws.incoming:
		t.Fatalf("unexpected extra message: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRealtime_SubscribeRequiresConnection(t *testing.T) {
	rt := NewRealtime("http://localhost:0", "anon-key", logger.Discard())
	if _, err := rt.Subscribe(context.Background(), ChangesConfig{Table: "orders"}, nil); err == nil {
		t.Fatalf("expected error when not connected")
	}
}

func TestRealtime_DoneClosesOnConnectionLoss(t *testing.T) {
	ws := newWSServer(t)
	rt := NewRealtime(ws.srv.URL, "anon-key", logger.Discard())
	if err := rt.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	done := rt.Done()
	rt.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("done channel not closed after Close")
	}
}
