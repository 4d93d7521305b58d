package notify

import (
	"fmt"

	"github.com/sabora/client_layer/internal/app/domain/order"
)

// statusTemplates maps each observable status to its notification copy. The
// %s placeholder is the order number.
var statusTemplates = map[order.Status]struct {
	title string
	body  string
}{
	order.StatusConfirmed: {
		title: "Order confirmed",
		body:  "Order %s has been confirmed by the restaurant.",
	},
	order.StatusPreparing: {
		title: "Your food is being prepared",
		body:  "The kitchen has started on order %s.",
	},
	order.StatusReady: {
		title: "Order ready",
		body:  "Order %s is ready and waiting for pickup.",
	},
	order.StatusOutForDelivery: {
		title: "Out for delivery",
		body:  "Order %s is on its way to you.",
	},
	order.StatusDelivered: {
		title: "Order delivered",
		body:  "Order %s has been delivered. Enjoy your meal!",
	},
	order.StatusCancelled: {
		title: "Order cancelled",
		body:  "Order %s has been cancelled. Contact the restaurant for details.",
	},
}

// statusMessage renders the notification copy for a status transition. Unknown
// statuses fall back to a generic update so a new backend status never goes
// silent.
func statusMessage(orderNumber string, status order.Status) (title, body string) {
	if tpl, ok := statusTemplates[status]; ok {
		return tpl.title, fmt.Sprintf(tpl.body, orderNumber)
	}
	return "Order update", fmt.Sprintf("Order %s status changed to %s.", orderNumber, status)
}
