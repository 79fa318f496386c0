package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartSnapshotScanKeepsPrices(t *testing.T) {
	var snap CartSnapshot
	raw := `[{"product":{"id":1,"name":"Organic Bananas","price":"2.99","category":"Fruits","unit":"per kg","image":null,"createdAt":"2024-01-01T00:00:00Z"},"quantity":2}]`

	require.NoError(t, snap.Scan([]byte(raw)))
	require.Len(t, snap, 1)
	assert.Equal(t, "Organic Bananas", snap[0].Product.Name)
	assert.True(t, decimal.RequireFromString("2.99").Equal(snap[0].Product.Price))
	assert.Equal(t, 2, snap[0].Quantity)

	v, err := snap.Value()
	require.NoError(t, err)
	assert.JSONEq(t, raw, v.(string))
}

func TestCartSnapshotScanRejectsUnknownType(t *testing.T) {
	var snap CartSnapshot
	assert.Error(t, snap.Scan(42))
	assert.Error(t, snap.Scan("not json"))
}

func TestCartSnapshotNilValue(t *testing.T) {
	var snap CartSnapshot
	v, err := snap.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusProcessing))
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusCompleted))
	assert.True(t, CanTransition(OrderStatusProcessing, OrderStatusProcessing))
	assert.False(t, CanTransition(OrderStatusCompleted, OrderStatusPending))
	assert.False(t, CanTransition(OrderStatusPending, "shipped"))
}

func TestPaymentMethods(t *testing.T) {
	assert.True(t, IsValidPaymentMethod("cod"))
	assert.True(t, IsValidPaymentMethod("jazzcash"))
	assert.True(t, IsValidPaymentMethod("online"))
	assert.False(t, IsValidPaymentMethod("card"))

	assert.False(t, IsOnlinePayment(PaymentMethodCOD))
	assert.True(t, IsOnlinePayment(PaymentMethodJazzCash))
	assert.True(t, IsOnlinePayment(PaymentMethodOnline))
}

func TestNewOrderEventFor(t *testing.T) {
	userID := int64(7)
	order := &Order{
		ID:            11,
		UserID:        &userID,
		CustomerID:    3,
		Subtotal:      decimal.RequireFromString("9.47"),
		DeliveryFee:   DeliveryFee,
		Total:         decimal.RequireFromString("12.46"),
		PaymentMethod: PaymentMethodCOD,
		Status:        OrderStatusPending,
	}
	customer := &Customer{ID: 3, FullName: "Ayesha Khan", Phone: "0300", Address: "1 Mall Rd", City: "Lahore"}
	cart := []CartItem{{Product: Product{ID: 1, Price: decimal.RequireFromString("2.99")}, Quantity: 2}}

	ev := NewOrderEventFor(order, customer, cart)

	b, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "NEW_ORDER", decoded["type"])

	body := decoded["order"].(map[string]interface{})
	assert.Equal(t, float64(11), body["id"])
	assert.Equal(t, "12.46", body["total"])
	assert.Equal(t, "2.99", body["deliveryFee"])
	assert.Equal(t, "Ayesha Khan", body["customer"].(map[string]interface{})["fullName"])
	assert.Len(t, body["items"], 1)
}
