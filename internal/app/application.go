package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sabora/client_layer/internal/app/services/delivery"
	"github.com/sabora/client_layer/internal/app/services/notify"
	"github.com/sabora/client_layer/internal/app/storage"
	"github.com/sabora/client_layer/internal/app/storage/memory"
	"github.com/sabora/client_layer/internal/app/system"
	"github.com/sabora/client_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Orders      storage.OrderStore
	Reviews     storage.ReviewStore
	Restaurants storage.RestaurantStore
	Coupons     storage.CouponStore
}

// Config carries the per-customer wiring for the application.
type Config struct {
	CustomerEmail string

	ReviewPollInterval  time.Duration
	ReviewAfter         time.Duration
	ReviewCouponPercent int
}

// Application ties the customer-facing services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Watcher   *notify.StatusWatcher
	Prompter  *notify.ReviewPrompter
	Estimator *delivery.Estimator
}

// New builds a fully initialised application. feed and notifier are required;
// nil stores fall back to a shared in-memory store.
func New(cfg Config, stores Stores, feed notify.ChangeFeed, notifier notify.Notifier, log *logger.Logger) (*Application, error) {
	if cfg.CustomerEmail == "" {
		return nil, fmt.Errorf("customer email is required")
	}
	if feed == nil {
		return nil, fmt.Errorf("change feed is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Orders == nil {
		stores.Orders = mem
	}
	if stores.Reviews == nil {
		stores.Reviews = mem
	}
	if stores.Restaurants == nil {
		stores.Restaurants = mem
	}
	if stores.Coupons == nil {
		stores.Coupons = mem
	}

	manager := system.NewManager()

	prompter := notify.NewReviewPrompter(notify.ReviewPrompterConfig{
		CustomerEmail: cfg.CustomerEmail,
		PollInterval:  cfg.ReviewPollInterval,
		ReviewAfter:   cfg.ReviewAfter,
		CouponPercent: cfg.ReviewCouponPercent,
	}, stores.Orders, stores.Reviews, stores.Coupons, notifier, log.WithField("component", "review-prompter"), nil)

	watcher := notify.NewStatusWatcher(feed, notifier, cfg.CustomerEmail, log.WithField("component", "status-watcher"), nil)
	watcher.OnDelivered = prompter.HandleDelivered

	for _, svc := range []system.Service{watcher, prompter} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		Watcher:   watcher,
		Prompter:  prompter,
		Estimator: delivery.NewEstimator(nil),
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
