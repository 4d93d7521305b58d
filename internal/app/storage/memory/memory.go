// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sabora/client_layer/internal/app/domain/order"
	"github.com/sabora/client_layer/internal/app/domain/restaurant"
	"github.com/sabora/client_layer/internal/app/domain/review"
	"github.com/sabora/client_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	orders      map[string]order.Order
	reviews     map[string]review.Review
	restaurants map[string]restaurant.Restaurant
	coupons     []review.Coupon
}

var _ storage.OrderStore = (*Store)(nil)
var _ storage.ReviewStore = (*Store)(nil)
var _ storage.RestaurantStore = (*Store)(nil)
var _ storage.CouponStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:      1,
		orders:      make(map[string]order.Order),
		reviews:     make(map[string]review.Review),
		restaurants: make(map[string]restaurant.Restaurant),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// PutOrder inserts or replaces an order row. It stands in for the backend's
// order pipeline, which this layer never writes to in production.
func (s *Store) PutOrder(o order.Order) order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = s.nextIDLocked()
	}
	s.orders[o.ID] = o
	return o
}

// PutRestaurant inserts or replaces a restaurant row.
func (s *Store) PutRestaurant(r restaurant.Restaurant) restaurant.Restaurant {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = s.nextIDLocked()
	}
	s.restaurants[r.ID] = r
	return r
}

// Coupons returns a snapshot of all coupons created so far.
func (s *Store) Coupons() []review.Coupon {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]review.Coupon, len(s.coupons))
	copy(out, s.coupons)
	return out
}

// OrderStore implementation ---------------------------------------------------

func (s *Store) GetOrder(_ context.Context, id string) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, fmt.Errorf("order %s: %w", id, storage.ErrNotFound)
	}
	return o, nil
}

func (s *Store) ListOrdersByCustomer(_ context.Context, email string) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []order.Order
	for _, o := range s.orders {
		if o.CustomerEmail == email {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ListDeliveredBefore(_ context.Context, email string, cutoff time.Time) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []order.Order
	for _, o := range s.orders {
		if o.CustomerEmail != email || o.Status != order.StatusDelivered {
			continue
		}
		if o.UpdatedAt.After(cutoff) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

// ReviewStore implementation --------------------------------------------------

func (s *Store) CreateReview(_ context.Context, r review.Review) (review.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = s.nextIDLocked()
	} else if _, exists := s.reviews[r.ID]; exists {
		return review.Review{}, fmt.Errorf("review %s already exists", r.ID)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	s.reviews[r.ID] = r
	return r, nil
}

func (s *Store) ReviewedOrderIDs(_ context.Context, orderIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(orderIDs))
	for _, id := range orderIDs {
		wanted[id] = true
	}

	out := make(map[string]bool)
	for _, r := range s.reviews {
		if wanted[r.OrderID] {
			out[r.OrderID] = true
		}
	}
	return out, nil
}

// RestaurantStore implementation ----------------------------------------------

func (s *Store) GetRestaurant(_ context.Context, id string) (restaurant.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.restaurants[id]
	if !ok {
		return restaurant.Restaurant{}, fmt.Errorf("restaurant %s: %w", id, storage.ErrNotFound)
	}
	return r, nil
}

// CouponStore implementation --------------------------------------------------

func (s *Store) CreateCoupon(_ context.Context, c review.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.coupons = append(s.coupons, c)
	return nil
}
