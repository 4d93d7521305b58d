package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sabora/client_layer/internal/app/domain/order"
	"github.com/sabora/client_layer/internal/app/domain/review"
	"github.com/sabora/client_layer/internal/app/storage"
)

func TestGetOrder_NotFound(t *testing.T) {
	s := New()
	if _, err := s.GetOrder(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListDeliveredBefore_FiltersAndSorts(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	recent := s.PutOrder(order.Order{CustomerEmail: "ana@example.com", Status: order.StatusDelivered, UpdatedAt: now})
	old := s.PutOrder(order.Order{CustomerEmail: "ana@example.com", Status: order.StatusDelivered, UpdatedAt: now.Add(-2 * time.Hour)})
	older := s.PutOrder(order.Order{CustomerEmail: "ana@example.com", Status: order.StatusDelivered, UpdatedAt: now.Add(-3 * time.Hour)})
	s.PutOrder(order.Order{CustomerEmail: "ana@example.com", Status: order.StatusPreparing, UpdatedAt: now.Add(-2 * time.Hour)})
	s.PutOrder(order.Order{CustomerEmail: "bob@example.com", Status: order.StatusDelivered, UpdatedAt: now.Add(-2 * time.Hour)})

	got, err := s.ListDeliveredBefore(context.Background(), "ana@example.com", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d orders, want 2", len(got))
	}
	if got[0].ID != older.ID || got[1].ID != old.ID {
		t.Fatalf("wrong order: %s, %s", got[0].ID, got[1].ID)
	}
	_ = recent
}

func TestReviewedOrderIDs(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateReview(ctx, review.Review{OrderID: "o1", Rating: 5}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateReview(ctx, review.Review{OrderID: "o2", Rating: 4}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.ReviewedOrderIDs(ctx, []string{"o1", "o3"})
	if err != nil {
		t.Fatalf("reviewed: %v", err)
	}
	if !got["o1"] || got["o2"] || got["o3"] {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestCreateCoupon_Accumulates(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateCoupon(ctx, review.Coupon{Code: "THANKS10", DiscountPercent: 10}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateCoupon(ctx, review.Coupon{Code: "THANKS15", DiscountPercent: 15}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := s.Coupons(); len(got) != 2 || got[0].Code != "THANKS10" {
		t.Fatalf("unexpected coupons: %+v", got)
	}
}
