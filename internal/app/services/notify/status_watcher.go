package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sabora/client_layer/internal/app/domain/order"
	"github.com/sabora/client_layer/internal/app/metrics"
	"github.com/sabora/client_layer/pkg/logger"
	"github.com/sabora/client_layer/supabase/client"
)

// Subscription is a live change-feed subscription owned by the watcher.
type Subscription interface {
	Unsubscribe(ctx context.Context) error
}

// ChangeFeed delivers row changes on the customer's orders.
type ChangeFeed interface {
	// OrderChanges subscribes to UPDATE events on the customer's order rows.
	// The handler runs on the feed's reader goroutine and must not block.
	OrderChanges(ctx context.Context, customerEmail string, h client.ChangeHandler) (Subscription, error)
}

// RealtimeFeed adapts the realtime client to the ChangeFeed interface.
type RealtimeFeed struct {
	rt *client.RealtimeClient
}

// NewRealtimeFeed wraps an already-connected realtime client.
func NewRealtimeFeed(rt *client.RealtimeClient) *RealtimeFeed {
	return &RealtimeFeed{rt: rt}
}

func (f *RealtimeFeed) OrderChanges(ctx context.Context, customerEmail string, h client.ChangeHandler) (Subscription, error) {
	return f.rt.Subscribe(ctx, client.ChangesConfig{
		Event:  "UPDATE",
		Table:  "orders",
		Filter: "customer_email=eq." + customerEmail,
	}, h)
}

// StatusWatcher notifies the customer whenever one of their orders changes
// status. It subscribes to the backend change feed on Start and sends one
// notification per observed transition.
type StatusWatcher struct {
	feed     ChangeFeed
	notifier Notifier
	email    string
	log      *logger.Logger
	now      func() time.Time

	// OnDelivered, if set before Start, is invoked whenever an order
	// transitions to delivered. The review prompter hooks in here.
	OnDelivered func(order.Order)

	mu         sync.Mutex
	sub        Subscription
	permission Permission
	lastStatus map[string]order.Status
}

// NewStatusWatcher creates a watcher for one customer's orders. now may be
// nil, in which case the wall clock is used.
func NewStatusWatcher(feed ChangeFeed, notifier Notifier, customerEmail string, log *logger.Logger, now func() time.Time) *StatusWatcher {
	if log == nil {
		log = logger.NewDefault("status-watcher")
	}
	if now == nil {
		now = time.Now
	}
	return &StatusWatcher{
		feed:       feed,
		notifier:   notifier,
		email:      customerEmail,
		log:        log,
		now:        now,
		permission: PermissionDefault,
		lastStatus: make(map[string]order.Status),
	}
}

// Name implements system.Service.
func (w *StatusWatcher) Name() string { return "status-watcher" }

// Start requests notification permission once and subscribes to the order
// change feed. A denied permission does not stop the watcher; transitions are
// still tracked so the review prompter keeps working.
func (w *StatusWatcher) Start(ctx context.Context) error {
	perm, err := w.notifier.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request notification permission: %w", err)
	}
	if perm == PermissionDenied {
		w.log.Warn("notification permission denied, status updates will not be shown")
	}

	sub, err := w.feed.OrderChanges(ctx, w.email, w.handle)
	if err != nil {
		return fmt.Errorf("subscribe to order changes: %w", err)
	}

	w.mu.Lock()
	w.permission = perm
	w.sub = sub
	w.mu.Unlock()

	w.log.WithField("customer", w.email).Info("watching order status changes")
	return nil
}

// Stop tears the subscription down. Stopping twice is a no-op.
func (w *StatusWatcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	sub := w.sub
	w.sub = nil
	w.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Unsubscribe(ctx)
}

func (w *StatusWatcher) handle(ev client.ChangeEvent) {
	var o order.Order
	if err := json.Unmarshal(ev.Record, &o); err != nil {
		w.log.WithError(err).Warn("dropping malformed order change")
		return
	}
	if o.ID == "" {
		return
	}

	// The old row may arrive partial; fall back to the last status we saw.
	old := order.Status(gjson.GetBytes(ev.OldRecord, "status").String())
	w.mu.Lock()
	if old == "" {
		old = w.lastStatus[o.ID]
	}
	w.lastStatus[o.ID] = o.Status
	perm := w.permission
	w.mu.Unlock()

	if o.Status == old {
		return
	}

	metrics.RecordNotification(string(o.Status))
	w.log.WithField("order", o.OrderNumber).
		WithField("status", string(o.Status)).
		Info("order status changed")

	if perm == PermissionGranted {
		title, body := statusMessage(o.OrderNumber, o.Status)
		n := newNotification(title, body, "order-"+o.ID, w.now())
		if err := w.notifier.Send(context.Background(), n); err != nil {
			w.log.WithError(err).Warn("failed to show status notification")
		}
	}

	if o.Status == order.StatusDelivered && w.OnDelivered != nil {
		w.OnDelivered(o)
	}
}
