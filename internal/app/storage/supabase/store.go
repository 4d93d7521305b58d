// Package supabase implements the storage interfaces against the backend's
// PostgREST API. Every read goes through the request governor so bursts of
// lookups queue instead of hammering the backend.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sabora/client_layer/internal/app/domain/order"
	"github.com/sabora/client_layer/internal/app/domain/restaurant"
	"github.com/sabora/client_layer/internal/app/domain/review"
	"github.com/sabora/client_layer/internal/app/services/governor"
	"github.com/sabora/client_layer/internal/app/storage"
	"github.com/sabora/client_layer/supabase/client"
)

// Store implements the storage interfaces backed by the hosted database.
type Store struct {
	c   *client.Client
	gov *governor.Governor
}

var _ storage.OrderStore = (*Store)(nil)
var _ storage.ReviewStore = (*Store)(nil)
var _ storage.RestaurantStore = (*Store)(nil)
var _ storage.CouponStore = (*Store)(nil)

// New creates a Store using the provided backend client. gov may be nil, in
// which case reads run ungoverned.
func New(c *client.Client, gov *governor.Governor) *Store {
	return &Store{c: c, gov: gov}
}

// governed runs fn through the governor under the given endpoint key, or
// directly when no governor is configured.
func governed[T any](s *Store, ctx context.Context, endpoint string, fn func(ctx context.Context) (T, error)) (T, error) {
	if s.gov == nil {
		return fn(ctx)
	}
	return governor.Run(s.gov, ctx, endpoint, fn)
}

func mapErr(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", apiErr.Message, storage.ErrNotFound)
	}
	return err
}

// --- OrderStore -------------------------------------------------------------

func (s *Store) GetOrder(ctx context.Context, id string) (order.Order, error) {
	return governed(s, ctx, "orders/select", func(ctx context.Context) (order.Order, error) {
		resp, err := s.c.From("orders").Select("*").Eq("id", id).Single().Execute(ctx)
		if err != nil {
			return order.Order{}, err
		}
		if err := resp.Err(); err != nil {
			return order.Order{}, mapErr(err)
		}
		var o order.Order
		if err := resp.JSON(&o); err != nil {
			return order.Order{}, err
		}
		return o, nil
	})
}

func (s *Store) ListOrdersByCustomer(ctx context.Context, email string) ([]order.Order, error) {
	return governed(s, ctx, "orders/select", func(ctx context.Context) ([]order.Order, error) {
		resp, err := s.c.From("orders").
			Select("*").
			Eq("customer_email", email).
			Order("created_at", false).
			Execute(ctx)
		if err != nil {
			return nil, err
		}
		if err := resp.Err(); err != nil {
			return nil, mapErr(err)
		}
		var out []order.Order
		if err := resp.JSON(&out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (s *Store) ListDeliveredBefore(ctx context.Context, email string, cutoff time.Time) ([]order.Order, error) {
	return governed(s, ctx, "orders/select", func(ctx context.Context) ([]order.Order, error) {
		resp, err := s.c.From("orders").
			Select("*").
			Eq("customer_email", email).
			Eq("status", string(order.StatusDelivered)).
			Lte("updated_at", cutoff.UTC().Format(time.RFC3339)).
			Order("updated_at", true).
			Execute(ctx)
		if err != nil {
			return nil, err
		}
		if err := resp.Err(); err != nil {
			return nil, mapErr(err)
		}
		var out []order.Order
		if err := resp.JSON(&out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// --- ReviewStore ------------------------------------------------------------

func (s *Store) CreateReview(ctx context.Context, r review.Review) (review.Review, error) {
	resp, err := s.c.From("reviews").Insert(ctx, r)
	if err != nil {
		return review.Review{}, err
	}
	if err := resp.Err(); err != nil {
		return review.Review{}, mapErr(err)
	}

	// PostgREST returns the inserted rows as an array.
	var rows []review.Review
	if err := resp.JSON(&rows); err != nil {
		return review.Review{}, err
	}
	if len(rows) == 0 {
		return review.Review{}, fmt.Errorf("insert review: empty representation")
	}
	return rows[0], nil
}

func (s *Store) ReviewedOrderIDs(ctx context.Context, orderIDs []string) (map[string]bool, error) {
	if len(orderIDs) == 0 {
		return map[string]bool{}, nil
	}
	return governed(s, ctx, "reviews/select", func(ctx context.Context) (map[string]bool, error) {
		resp, err := s.c.From("reviews").
			Select("order_id").
			In("order_id", orderIDs).
			Execute(ctx)
		if err != nil {
			return nil, err
		}
		if err := resp.Err(); err != nil {
			return nil, mapErr(err)
		}
		var rows []struct {
			OrderID string `json:"order_id"`
		}
		if err := resp.JSON(&rows); err != nil {
			return nil, err
		}
		out := make(map[string]bool, len(rows))
		for _, row := range rows {
			out[row.OrderID] = true
		}
		return out, nil
	})
}

// --- RestaurantStore --------------------------------------------------------

func (s *Store) GetRestaurant(ctx context.Context, id string) (restaurant.Restaurant, error) {
	return governed(s, ctx, "restaurants/select", func(ctx context.Context) (restaurant.Restaurant, error) {
		resp, err := s.c.From("restaurants").Select("*").Eq("id", id).Single().Execute(ctx)
		if err != nil {
			return restaurant.Restaurant{}, err
		}
		if err := resp.Err(); err != nil {
			return restaurant.Restaurant{}, mapErr(err)
		}
		var r restaurant.Restaurant
		if err := resp.JSON(&r); err != nil {
			return restaurant.Restaurant{}, err
		}
		return r, nil
	})
}

// --- CouponStore ------------------------------------------------------------

func (s *Store) CreateCoupon(ctx context.Context, c review.Coupon) error {
	resp, err := s.c.From("coupons").Insert(ctx, c)
	if err != nil {
		return err
	}
	return mapErr(resp.Err())
}
