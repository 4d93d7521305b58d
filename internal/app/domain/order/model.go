package order

import "time"

// Status is an order lifecycle status. The backend owns all transitions; this
// layer only observes them.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// Terminal reports whether no further transition is expected from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Known reports whether s is one of the statuses this layer has a
// notification template for.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Order is a customer order as stored by the backend.
type Order struct {
	ID            string    `json:"id"`
	OrderNumber   string    `json:"order_number"`
	RestaurantID  string    `json:"restaurant_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	Total         float64   `json:"total"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StatusChange is an observed transition on a single order row.
type StatusChange struct {
	OrderID    string
	Old        Status
	New        Status
	ObservedAt time.Time
}
