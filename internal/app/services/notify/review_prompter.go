package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/sabora/client_layer/internal/app/domain/order"
	"github.com/sabora/client_layer/internal/app/domain/review"
	"github.com/sabora/client_layer/internal/app/metrics"
	"github.com/sabora/client_layer/internal/app/storage"
	"github.com/sabora/client_layer/pkg/logger"
)

const (
	defaultPollInterval   = 10 * time.Minute
	defaultReviewAfter    = time.Hour
	defaultCouponPercent  = 10
	defaultCouponValidity = 30 * 24 * time.Hour
	reconcileTimeout      = 30 * time.Second
)

// defaultFollowUpDelays are the extra polls scheduled after a live delivery
// event, so a fresh delivery is prompted shortly after it becomes eligible
// instead of waiting for the next interval poll.
var defaultFollowUpDelays = []time.Duration{30 * time.Second, time.Hour}

// ReviewPrompterConfig configures the review prompter. Zero values fall back
// to defaults; CustomerEmail is required.
type ReviewPrompterConfig struct {
	CustomerEmail  string
	PollInterval   time.Duration
	ReviewAfter    time.Duration
	FollowUpDelays []time.Duration
	CouponPercent  int
	CouponValidity time.Duration
}

func (c *ReviewPrompterConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.ReviewAfter <= 0 {
		c.ReviewAfter = defaultReviewAfter
	}
	if c.FollowUpDelays == nil {
		c.FollowUpDelays = defaultFollowUpDelays
	}
	if c.CouponPercent <= 0 {
		c.CouponPercent = defaultCouponPercent
	}
	if c.CouponValidity <= 0 {
		c.CouponValidity = defaultCouponValidity
	}
}

// ReviewPrompter asks the customer to review delivered orders. It polls the
// backend for orders delivered more than ReviewAfter ago that have no review
// yet, and keeps at most one prompt active at a time. Completing or skipping
// the active prompt promotes the next eligible order.
type ReviewPrompter struct {
	cfg      ReviewPrompterConfig
	orders   storage.OrderStore
	reviews  storage.ReviewStore
	coupons  storage.CouponStore
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time

	cron *cron.Cron

	// pollMu serializes reconciles so overlapping triggers collapse into
	// sequential idempotent passes.
	pollMu sync.Mutex

	mu        sync.Mutex
	active    *review.Pending
	dismissed map[string]bool
	completed map[string]bool
	timers    []*time.Timer
	stopped   bool
}

// NewReviewPrompter wires a prompter against the given stores. now may be
// nil, in which case the wall clock is used.
func NewReviewPrompter(cfg ReviewPrompterConfig, orders storage.OrderStore, reviews storage.ReviewStore, coupons storage.CouponStore, notifier Notifier, log *logger.Logger, now func() time.Time) *ReviewPrompter {
	cfg.applyDefaults()
	if log == nil {
		log = logger.NewDefault("review-prompter")
	}
	if now == nil {
		now = time.Now
	}
	return &ReviewPrompter{
		cfg:       cfg,
		orders:    orders,
		reviews:   reviews,
		coupons:   coupons,
		notifier:  notifier,
		log:       log,
		now:       now,
		dismissed: make(map[string]bool),
		completed: make(map[string]bool),
	}
}

// Name implements system.Service.
func (p *ReviewPrompter) Name() string { return "review-prompter" }

// Start runs one immediate poll and then schedules interval polls.
func (p *ReviewPrompter) Start(ctx context.Context) error {
	if p.cfg.CustomerEmail == "" {
		return fmt.Errorf("customer email is required")
	}

	if err := p.Reconcile(ctx, "startup"); err != nil {
		// The interval poll will catch up; startup must not fail on a
		// transient backend error.
		p.log.WithError(err).Warn("initial review poll failed")
	}

	p.cron = cron.New()
	if _, err := p.cron.AddFunc(fmt.Sprintf("@every %s", p.cfg.PollInterval), func() {
		p.reconcileDetached("interval")
	}); err != nil {
		return fmt.Errorf("schedule review poll: %w", err)
	}
	p.cron.Start()

	p.log.WithField("interval", p.cfg.PollInterval.String()).Info("review polling started")
	return nil
}

// Stop cancels the interval poll and any pending follow-up timers.
func (p *ReviewPrompter) Stop(ctx context.Context) error {
	if p.cron != nil {
		stopCtx := p.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	p.stopped = true
	timers := p.timers
	p.timers = nil
	p.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	return nil
}

// HandleDelivered schedules follow-up polls after a live delivery event, so
// the fresh order is prompted as soon as it crosses the review threshold.
// Wire it as the status watcher's OnDelivered hook.
func (p *ReviewPrompter) HandleDelivered(o order.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.log.WithField("order", o.OrderNumber).Info("delivery observed, scheduling review follow-ups")
	for _, delay := range p.cfg.FollowUpDelays {
		t := time.AfterFunc(delay, func() {
			p.reconcileDetached("follow-up")
		})
		p.timers = append(p.timers, t)
	}
}

// Candidate returns a copy of the active review prompt, or nil when there is
// nothing to review.
func (p *ReviewPrompter) Candidate() *review.Pending {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		return nil
	}
	c := *p.active
	return &c
}

// Complete submits a review for the active candidate and issues a thank-you
// coupon. Coupon creation is fire and forget; its failure never surfaces.
func (p *ReviewPrompter) Complete(ctx context.Context, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", rating)
	}

	p.mu.Lock()
	c := p.active
	p.mu.Unlock()
	if c == nil {
		return fmt.Errorf("no review prompt is active")
	}

	r := review.Review{
		OrderID:      c.ID,
		RestaurantID: c.RestaurantID,
		Rating:       rating,
		Comment:      comment,
	}
	if _, err := p.reviews.CreateReview(ctx, r); err != nil {
		return fmt.Errorf("submit review: %w", err)
	}

	p.mu.Lock()
	p.completed[c.ID] = true
	p.active = nil
	p.mu.Unlock()

	p.issueCoupon(ctx, c.RestaurantID)

	if err := p.Reconcile(ctx, "promote"); err != nil {
		p.log.WithError(err).Warn("failed to promote next review candidate")
	}
	return nil
}

// Skip dismisses the active candidate for the rest of the session and
// promotes the next eligible order.
func (p *ReviewPrompter) Skip(ctx context.Context) {
	p.mu.Lock()
	c := p.active
	if c != nil {
		p.dismissed[c.ID] = true
		p.active = nil
	}
	p.mu.Unlock()

	if c == nil {
		return
	}
	if err := p.Reconcile(ctx, "promote"); err != nil {
		p.log.WithError(err).Warn("failed to promote next review candidate")
	}
}

func (p *ReviewPrompter) reconcileDetached(trigger string) {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()
	if err := p.Reconcile(ctx, trigger); err != nil {
		p.log.WithError(err).WithField("trigger", trigger).Warn("review poll failed")
	}
}

// Reconcile runs one idempotent poll. All triggers funnel through here: the
// startup poll, the interval poll, delivery follow-ups and candidate
// promotion after Complete or Skip. With an active candidate it does nothing.
func (p *ReviewPrompter) Reconcile(ctx context.Context, trigger string) error {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	metrics.RecordReviewPoll(trigger)

	p.mu.Lock()
	busy := p.active != nil
	p.mu.Unlock()
	if busy {
		return nil
	}

	cutoff := p.now().Add(-p.cfg.ReviewAfter)
	delivered, err := p.orders.ListDeliveredBefore(ctx, p.cfg.CustomerEmail, cutoff)
	if err != nil {
		return fmt.Errorf("list delivered orders: %w", err)
	}
	if len(delivered) == 0 {
		return nil
	}

	ids := make([]string, 0, len(delivered))
	for _, o := range delivered {
		ids = append(ids, o.ID)
	}
	reviewed, err := p.reviews.ReviewedOrderIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("look up existing reviews: %w", err)
	}

	p.mu.Lock()
	var next *review.Pending
	for _, o := range delivered {
		if reviewed[o.ID] || p.dismissed[o.ID] || p.completed[o.ID] {
			continue
		}
		next = &review.Pending{
			ID:           o.ID,
			OrderNumber:  o.OrderNumber,
			RestaurantID: o.RestaurantID,
			CustomerName: o.CustomerName,
			Total:        o.Total,
			DeliveredAt:  o.UpdatedAt,
		}
		break
	}
	p.active = next
	p.mu.Unlock()

	if next == nil {
		return nil
	}

	p.log.WithField("order", next.OrderNumber).Info("review prompt activated")
	n := newNotification(
		"How was your order?",
		fmt.Sprintf("Rate order %s and earn a discount on your next one.", next.OrderNumber),
		"review-"+next.ID,
		p.now(),
	)
	if err := p.notifier.Send(ctx, n); err != nil {
		p.log.WithError(err).Warn("failed to show review prompt")
	}
	return nil
}

func (p *ReviewPrompter) issueCoupon(ctx context.Context, restaurantID string) {
	code := "THANKS-" + strings.ToUpper(uuid.NewString()[:8])
	c := review.Coupon{
		Code:            code,
		RestaurantID:    restaurantID,
		DiscountPercent: p.cfg.CouponPercent,
		ExpiresAt:       p.now().Add(p.cfg.CouponValidity),
	}
	if err := p.coupons.CreateCoupon(ctx, c); err != nil {
		p.log.WithError(err).Warn("failed to issue thank-you coupon")
		return
	}
	p.log.WithField("code", code).Info("thank-you coupon issued")
}
