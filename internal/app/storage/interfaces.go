package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sabora/client_layer/internal/app/domain/order"
	"github.com/sabora/client_layer/internal/app/domain/restaurant"
	"github.com/sabora/client_layer/internal/app/domain/review"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// OrderStore reads customer orders. The backend owns all writes to orders;
// this layer only observes them.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (order.Order, error)

	// ListOrdersByCustomer returns all orders for one customer email,
	// newest first.
	ListOrdersByCustomer(ctx context.Context, email string) ([]order.Order, error)

	// ListDeliveredBefore returns the customer's delivered orders whose last
	// update is at or before cutoff.
	ListDeliveredBefore(ctx context.Context, email string, cutoff time.Time) ([]order.Order, error)
}

// ReviewStore persists order reviews.
type ReviewStore interface {
	CreateReview(ctx context.Context, r review.Review) (review.Review, error)

	// ReviewedOrderIDs reports which of the given order ids already carry a
	// review.
	ReviewedOrderIDs(ctx context.Context, orderIDs []string) (map[string]bool, error)
}

// RestaurantStore reads restaurant configuration.
type RestaurantStore interface {
	GetRestaurant(ctx context.Context, id string) (restaurant.Restaurant, error)
}

// CouponStore writes thank-you coupons.
type CouponStore interface {
	CreateCoupon(ctx context.Context, c review.Coupon) error
}
