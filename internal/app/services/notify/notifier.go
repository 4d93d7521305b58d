// Package notify turns backend order events into user-facing notifications:
// live status updates while an order is in flight and review prompts once it
// has been delivered.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sabora/client_layer/pkg/logger"
)

// Permission is the user's notification permission state. It is requested at
// most once per process; a denial is remembered and never re-prompted.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// autoDismissAfter is how long a notification stays up before it is
// dismissed on the user's behalf.
const autoDismissAfter = 10 * time.Second

// Notification is one message shown to the user.
type Notification struct {
	ID           string
	Title        string
	Body         string
	Tag          string // replaces an earlier notification with the same tag
	CreatedAt    time.Time
	DismissAfter time.Duration
}

// Notifier delivers notifications to whatever surface the host provides.
type Notifier interface {
	// RequestPermission asks the user for permission if it has not been
	// decided yet, and returns the resulting state.
	RequestPermission(ctx context.Context) (Permission, error)

	// Send shows a notification. Implementations honor DismissAfter.
	Send(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. It is the delivery surface for
// headless deployments and stands in for a platform notifier.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a notifier that logs every message at info level.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) RequestPermission(context.Context) (Permission, error) {
	return PermissionGranted, nil
}

func (n *LogNotifier) Send(_ context.Context, msg Notification) error {
	n.log.WithField("tag", msg.Tag).Infof("%s: %s", msg.Title, msg.Body)
	return nil
}

// MemoryNotifier records notifications for inspection. Tests use it in place
// of a real delivery surface.
type MemoryNotifier struct {
	mu         sync.Mutex
	permission Permission
	requests   int
	sent       []Notification
}

// NewMemoryNotifier creates a notifier that will report the given permission
// on request.
func NewMemoryNotifier(permission Permission) *MemoryNotifier {
	return &MemoryNotifier{permission: permission}
}

func (n *MemoryNotifier) RequestPermission(context.Context) (Permission, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests++
	return n.permission, nil
}

func (n *MemoryNotifier) Send(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

// PermissionRequests returns how many times permission was requested.
func (n *MemoryNotifier) PermissionRequests() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.requests
}

// Sent returns a snapshot of everything sent so far.
func (n *MemoryNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

func newNotification(title, body, tag string, now time.Time) Notification {
	return Notification{
		ID:           uuid.NewString(),
		Title:        title,
		Body:         body,
		Tag:          tag,
		CreatedAt:    now,
		DismissAfter: autoDismissAfter,
	}
}
