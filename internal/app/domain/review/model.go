package review

import "time"

// Review is a customer review linked to a delivered order.
type Review struct {
	ID           string    `json:"id"`
	OrderID      string    `json:"order_id"`
	RestaurantID string    `json:"restaurant_id"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

// Pending is a projection of a delivered order that still lacks a review.
// It is rebuilt on every poll and never persisted locally.
type Pending struct {
	ID           string    `json:"id"`
	OrderNumber  string    `json:"order_number"`
	RestaurantID string    `json:"restaurant_id"`
	CustomerName string    `json:"customer_name"`
	Total        float64   `json:"total"`
	DeliveredAt  time.Time `json:"delivered_at"`
}

// Coupon is a thank-you coupon issued after a completed review. Creation is
// fire and forget: failures are logged, never surfaced.
type Coupon struct {
	Code            string    `json:"code"`
	RestaurantID    string    `json:"restaurant_id"`
	DiscountPercent int       `json:"discount_percent"`
	ExpiresAt       time.Time `json:"expires_at"`
}
