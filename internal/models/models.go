package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID        int64           `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Category  string          `db:"category" json:"category"`
	Unit      string          `db:"unit" json:"unit"`
	Image     *string         `db:"image" json:"image"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// Customer holds the delivery details captured at checkout. A new row is
// written for every order.
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"fullName"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	City      string    `db:"city" json:"city"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// User is a storefront account
type User struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Password  string    `db:"password" json:"-"`
	Name      string    `db:"name" json:"name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Address   *string   `db:"address" json:"address,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Admin is a dashboard account, separate from User
type Admin struct {
	ID       int64  `db:"id" json:"id"`
	Email    string `db:"email" json:"email"`
	Password string `db:"password" json:"-"`
}

// CartItem is one cart line as the storefront sends it
type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// CartSnapshot is the durable record of what was bought and at which price.
// It is stored as JSON text in orders.items.
type CartSnapshot []CartItem

// Value implements driver.Valuer
func (c CartSnapshot) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (c *CartSnapshot) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = CartSnapshot{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into CartSnapshot", src)
	}
	var items []CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("invalid cart snapshot: %w", err)
	}
	*c = items
	return nil
}

// Order represents a placed order
type Order struct {
	ID            int64           `db:"id" json:"id"`
	UserID        *int64          `db:"user_id" json:"userId"`
	CustomerID    int64           `db:"customer_id" json:"customerId"`
	Items         CartSnapshot    `db:"items" json:"items"`
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	DeliveryFee   decimal.Decimal `db:"delivery_fee" json:"deliveryFee"`
	Total         decimal.Decimal `db:"total" json:"total"`
	PaymentMethod string          `db:"payment_method" json:"paymentMethod"`
	Status        string          `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// OrderWithCustomer is an order enriched with its customer record
type OrderWithCustomer struct {
	Order
	Customer *Customer `json:"customer"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
)

var statusRank = map[string]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusCompleted:  2,
}

// IsValidOrderStatus reports whether s is one of the known statuses.
func IsValidOrderStatus(s string) bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether an order may move from one status to another.
// Statuses only move forward; staying put is allowed.
func CanTransition(from, to string) bool {
	f, ok := statusRank[from]
	if !ok {
		return false
	}
	t, ok := statusRank[to]
	if !ok {
		return false
	}
	return t >= f
}

// Payment methods
const (
	PaymentMethodCOD      = "cod"
	PaymentMethodJazzCash = "jazzcash"
	PaymentMethodOnline   = "online"
)

// IsValidPaymentMethod reports whether m is accepted at checkout.
func IsValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodJazzCash, PaymentMethodOnline:
		return true
	}
	return false
}

// IsOnlinePayment reports whether m must go through the payment simulator.
func IsOnlinePayment(m string) bool {
	return m == PaymentMethodJazzCash || m == PaymentMethodOnline
}

// DeliveryFee is charged once per order
var DeliveryFee = decimal.RequireFromString("2.99")

// AdminStats is the dashboard summary
type AdminStats struct {
	Products  int             `db:"products" json:"products"`
	Orders    int             `db:"orders" json:"orders"`
	Revenue   decimal.Decimal `db:"revenue" json:"revenue"`
	Customers int             `db:"customers" json:"customers"`
}
