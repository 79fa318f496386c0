package models

import "time"

// Event types
const (
	EventTypeNewOrder = "NEW_ORDER"
)

// NewOrderEvent is pushed to admin dashboards after a checkout succeeds.
// Items carries the cart exactly as submitted.
type NewOrderEvent struct {
	Type  string            `json:"type"`
	Order NewOrderEventBody `json:"order"`
}

// NewOrderEventBody flattens the order fields next to its customer
type NewOrderEventBody struct {
	ID            int64      `json:"id"`
	UserID        *int64     `json:"userId"`
	CustomerID    int64      `json:"customerId"`
	Subtotal      string     `json:"subtotal"`
	DeliveryFee   string     `json:"deliveryFee"`
	Total         string     `json:"total"`
	PaymentMethod string     `json:"paymentMethod"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	Customer      Customer   `json:"customer"`
	Items         []CartItem `json:"items"`
}

// NewOrderEventFor builds the dashboard notification for a freshly placed order.
func NewOrderEventFor(order *Order, customer *Customer, cart []CartItem) *NewOrderEvent {
	return &NewOrderEvent{
		Type: EventTypeNewOrder,
		Order: NewOrderEventBody{
			ID:            order.ID,
			UserID:        order.UserID,
			CustomerID:    order.CustomerID,
			Subtotal:      order.Subtotal.StringFixed(2),
			DeliveryFee:   order.DeliveryFee.StringFixed(2),
			Total:         order.Total.StringFixed(2),
			PaymentMethod: order.PaymentMethod,
			Status:        order.Status,
			CreatedAt:     order.CreatedAt,
			Customer:      *customer,
			Items:         cart,
		},
	}
}
