package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/sabora/client_layer/internal/app/metrics"
	"github.com/sabora/client_layer/pkg/logger"
)

const heartbeatInterval = 30 * time.Second

// ChangeEvent is one row-level change received from the change feed.
type ChangeEvent struct {
	Table     string
	Event     string // INSERT, UPDATE or DELETE
	Record    []byte // new row, raw JSON
	OldRecord []byte // previous row, raw JSON; may be partial
	At        time.Time
}

// ChangeHandler consumes change events. Handlers run on the connection's
// reader goroutine and must not block.
type ChangeHandler func(ChangeEvent)

// ChangesConfig selects which row changes a subscription receives.
type ChangesConfig struct {
	Event  string // INSERT, UPDATE, DELETE or *; default *
	Schema string // default public
	Table  string
	Filter string // optional column filter, e.g. "customer_email=eq.ana@example.com"
}

// RealtimeClient multiplexes change-feed subscriptions over one WebSocket
// connection to the backend's realtime server.
type RealtimeClient struct {
	mu     sync.Mutex
	wsURL  string
	conn   *websocket.Conn
	subs   map[string]*Subscription // keyed by topic
	ref    int
	done   chan struct{}
	closed bool
	log    *logger.Logger
}

// Subscription is a live change-feed subscription. It is owned by whoever
// created it; exactly one Unsubscribe must be issued on teardown.
type Subscription struct {
	ID      string
	topic   string
	joinRef string
	client  *RealtimeClient
	handler ChangeHandler
	once    sync.Once
}

// NewRealtime creates a realtime client for the given project.
func NewRealtime(projectURL, apiKey string, log *logger.Logger) *RealtimeClient {
	wsURL := strings.TrimSuffix(projectURL, "/")
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/realtime/v1/websocket?apikey=" + apiKey + "&vsn=1.0.0"

	if log == nil {
		log = logger.NewDefault("realtime")
	}
	return &RealtimeClient{
		wsURL: wsURL,
		subs:  make(map[string]*Subscription),
		log:   log,
	}
}

// Connect establishes the WebSocket connection and starts the reader and
// heartbeat loops. Connecting twice is a no-op.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.wsURL, nil)
	if err != nil {
		return fmt.Errorf("realtime dial: %w", err)
	}

	r.conn = conn
	r.done = make(chan struct{})
	r.closed = false

	go r.read(conn)
	go r.heartbeat()
	return nil
}

// Done is closed when the connection's reader exits, whether through Close or
// a transport error. Owners may use it to resubscribe after reconnecting.
func (r *RealtimeClient) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Close tears the connection down. Subscriptions are dropped; the server
// forgets them with the socket.
func (r *RealtimeClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.closed {
		return nil
	}
	r.closed = true

	r.conn.WriteMessage( //nolint:errcheck
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	err := r.conn.Close()
	r.conn = nil
	r.subs = make(map[string]*Subscription)
	return err
}

// Subscribe opens a postgres_changes subscription and registers handler for
// its events.
func (r *RealtimeClient) Subscribe(ctx context.Context, cfg ChangesConfig, handler ChangeHandler) (*Subscription, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("table is required")
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Event == "" {
		cfg.Event = "*"
	}

	topic := "realtime:" + cfg.Schema + ":" + cfg.Table
	if cfg.Filter != "" {
		topic += ":" + cfg.Filter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil, fmt.Errorf("realtime not connected")
	}
	if _, exists := r.subs[topic]; exists {
		return nil, fmt.Errorf("already subscribed to %s", topic)
	}

	r.ref++
	ref := fmt.Sprintf("%d", r.ref)
	join := map[string]any{
		"topic": topic,
		"event": "phx_join",
		"payload": map[string]any{
			"config": map[string]any{
				"postgres_changes": []map[string]any{{
					"event":  cfg.Event,
					"schema": cfg.Schema,
					"table":  cfg.Table,
					"filter": cfg.Filter,
				}},
			},
		},
		"ref":      ref,
		"join_ref": ref,
	}
	if err := r.conn.WriteJSON(join); err != nil {
		return nil, fmt.Errorf("send join: %w", err)
	}

	sub := &Subscription{
		ID:      uuid.NewString(),
		topic:   topic,
		joinRef: ref,
		client:  r,
		handler: handler,
	}
	r.subs[topic] = sub
	return sub, nil
}

// Unsubscribe leaves the channel. It is idempotent; only the first call
// reaches the server.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		r := s.client
		r.mu.Lock()
		defer r.mu.Unlock()

		delete(r.subs, s.topic)
		if r.conn == nil {
			return
		}
		r.ref++
		leave := map[string]any{
			"topic":    s.topic,
			"event":    "phx_leave",
			"payload":  map[string]any{},
			"ref":      fmt.Sprintf("%d", r.ref),
			"join_ref": s.joinRef,
		}
		if werr := r.conn.WriteJSON(leave); werr != nil {
			err = fmt.Errorf("send leave: %w", werr)
		}
	})
	return err
}

func (r *RealtimeClient) read(conn *websocket.Conn) {
	defer func() {
		r.mu.Lock()
		done := r.done
		r.mu.Unlock()
		close(done)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if !closed {
				r.log.WithError(err).Warn("realtime connection lost")
			}
			return
		}
		r.dispatch(message)
	}
}

func (r *RealtimeClient) dispatch(message []byte) {
	event := gjson.GetBytes(message, "event").String()
	if event != "postgres_changes" {
		return
	}
	topic := gjson.GetBytes(message, "topic").String()
	data := gjson.GetBytes(message, "payload.data")
	if !data.Exists() {
		return
	}

	change := ChangeEvent{
		Table:     data.Get("table").String(),
		Event:     data.Get("type").String(),
		Record:    []byte(data.Get("record").Raw),
		OldRecord: []byte(data.Get("old_record").Raw),
		At:        time.Now(),
	}
	metrics.RecordRealtimeEvent(change.Table, change.Event)

	r.mu.Lock()
	sub := r.subs[topic]
	r.mu.Unlock()

	if sub != nil && sub.handler != nil {
		sub.handler(change)
	}
}

func (r *RealtimeClient) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.conn != nil {
				r.ref++
				beat := map[string]any{
					"topic":   "phoenix",
					"event":   "heartbeat",
					"payload": map[string]any{},
					"ref":     fmt.Sprintf("%d", r.ref),
				}
				r.conn.WriteJSON(beat) //nolint:errcheck
			}
			r.mu.Unlock()
		}
	}
}
