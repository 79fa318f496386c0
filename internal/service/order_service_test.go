package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"grocery-mart/internal/models"
	"grocery-mart/internal/store/storetest"
	"grocery-mart/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) AttemptPayment(ctx context.Context, amount decimal.Decimal) PaymentResult {
	args := m.Called(ctx, amount)
	return args.Get(0).(PaymentResult)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyNewOrder(ctx context.Context, event *models.NewOrderEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type fakeIdempotency struct {
	mu     sync.Mutex
	orders map[string]int64
	locks  map[string]bool

	getErr  error
	lockErr error
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{orders: map[string]int64{}, locks: map[string]bool{}}
}

func (f *fakeIdempotency) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return false, f.lockErr
	}
	if f.locks[key] {
		return false, nil
	}
	f.locks[key] = true
	return true, nil
}

func (f *fakeIdempotency) ReleaseLock(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, key)
	return nil
}

func (f *fakeIdempotency) GetOrderIDForKey(ctx context.Context, key string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return 0, false, f.getErr
	}
	id, ok := f.orders[key]
	return id, ok, nil
}

func (f *fakeIdempotency) SetOrderIDForKey(ctx context.Context, key string, id int64, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[key] = id
	return nil
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleCheckout(method string) *CheckoutRequest {
	return &CheckoutRequest{
		Customer: CustomerDetails{
			FullName: "Ali Khan",
			Phone:    "0300-1234567",
			Address:  "12 Mall Road",
			City:     "Lahore",
		},
		PaymentMethod: method,
		Cart: []models.CartItem{
			{Product: models.Product{ID: 1, Name: "Fresh Milk", Price: price("2.99")}, Quantity: 2},
			{Product: models.Product{ID: 2, Name: "Whole Wheat Bread", Price: price("3.49")}, Quantity: 1},
		},
	}
}

func approved() PaymentResult {
	return PaymentResult{Success: true, TransactionID: "JC1"}
}

func declined() PaymentResult {
	return PaymentResult{Success: false, Reason: "JazzCash payment could not be processed"}
}

func TestPlaceOrderCODComputesTotalsAndNotifiesOnce(t *testing.T) {
	mem := storetest.NewMemory()
	gw := &mockGateway{}
	n := &mockNotifier{}

	var event *models.NewOrderEvent
	n.On("NotifyNewOrder", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { event = args.Get(1).(*models.NewOrderEvent) }).
		Return(nil).Once()

	svc := NewOrderService(mem, mem, gw, n)
	res, err := svc.PlaceOrder(context.Background(), sampleCheckout(models.PaymentMethodCOD))
	require.NoError(t, err)

	assert.True(t, res.Order.Subtotal.Equal(price("9.47")), res.Order.Subtotal.String())
	assert.True(t, res.Order.DeliveryFee.Equal(price("2.99")))
	assert.True(t, res.Order.Total.Equal(price("12.46")), res.Order.Total.String())
	assert.Equal(t, models.OrderStatusPending, res.Order.Status)
	assert.Equal(t, res.Customer.ID, res.Order.CustomerID)
	assert.Nil(t, res.Order.UserID)
	assert.False(t, res.Replayed)

	gw.AssertNotCalled(t, "AttemptPayment", mock.Anything, mock.Anything)
	n.AssertExpectations(t)
	require.NotNil(t, event)
	assert.Equal(t, models.EventTypeNewOrder, event.Type)
	assert.Equal(t, res.Order.ID, event.Order.ID)
	assert.Equal(t, "Lahore", event.Order.Customer.City)
	assert.Equal(t, "12.46", event.Order.Total)
	assert.Len(t, event.Order.Items, 2)

	stored, err := mem.GetOrderByID(context.Background(), res.Order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "Fresh Milk", stored.Items[0].Product.Name)
	assert.Equal(t, 2, stored.Items[0].Quantity)
}

func TestPlaceOrderSubtotalRoundsToCents(t *testing.T) {
	mem := storetest.NewMemory()
	svc := NewOrderService(mem, mem, &mockGateway{}, nil)

	req := sampleCheckout(models.PaymentMethodCOD)
	req.Cart = []models.CartItem{{Product: models.Product{Price: price("0.333")}, Quantity: 3}}

	res, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "1.00", res.Order.Subtotal.StringFixed(2))
	assert.True(t, res.Order.Subtotal.Add(res.Order.DeliveryFee).Equal(res.Order.Total))
}

func TestPlaceOrderOnlinePaymentChargesTotal(t *testing.T) {
	for _, method := range []string{models.PaymentMethodJazzCash, models.PaymentMethodOnline} {
		t.Run(method, func(t *testing.T) {
			mem := storetest.NewMemory()
			gw := &mockGateway{}
			gw.On("AttemptPayment", mock.Anything, mock.MatchedBy(func(d decimal.Decimal) bool {
				return d.Equal(price("12.46"))
			})).Return(approved()).Once()

			svc := NewOrderService(mem, mem, gw, nil)
			res, err := svc.PlaceOrder(context.Background(), sampleCheckout(method))
			require.NoError(t, err)

			assert.Equal(t, method, res.Order.PaymentMethod)
			assert.Equal(t, 1, mem.OrderCount())
			gw.AssertExpectations(t)
		})
	}
}

func TestPlaceOrderPaymentDeclinedAtomicLeavesNothing(t *testing.T) {
	mem := storetest.NewMemory()
	gw := &mockGateway{}
	gw.On("AttemptPayment", mock.Anything, mock.Anything).Return(declined()).Once()
	n := &mockNotifier{}

	svc := NewOrderService(mem, mem, gw, n)
	_, err := svc.PlaceOrder(context.Background(), sampleCheckout(models.PaymentMethodJazzCash))

	require.ErrorIs(t, err, ErrPaymentFailed)
	assert.Contains(t, err.Error(), "JazzCash payment could not be processed")
	assert.Zero(t, mem.OrderCount())
	assert.Zero(t, mem.CustomerCount())
	n.AssertNotCalled(t, "NotifyNewOrder", mock.Anything, mock.Anything)
}

func TestPlaceOrderPaymentDeclinedNonAtomicKeepsCustomer(t *testing.T) {
	mem := storetest.NewMemory()
	gw := &mockGateway{}
	gw.On("AttemptPayment", mock.Anything, mock.Anything).Return(declined()).Once()

	svc := NewOrderService(mem, mem, gw, nil, WithNonAtomicCheckout())
	_, err := svc.PlaceOrder(context.Background(), sampleCheckout(models.PaymentMethodOnline))

	require.ErrorIs(t, err, ErrPaymentFailed)
	assert.Zero(t, mem.OrderCount())
	assert.Equal(t, 1, mem.CustomerCount())
	assert.Zero(t, mem.TxCount)
}

func TestPlaceOrderStoreFailureRollsBackCustomer(t *testing.T) {
	mem := storetest.NewMemory()
	mem.CreateOrderErr = errors.New("connection reset")

	svc := NewOrderService(mem, mem, &mockGateway{}, nil)
	_, err := svc.PlaceOrder(context.Background(), sampleCheckout(models.PaymentMethodCOD))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrPaymentFailed)
	assert.Zero(t, mem.CustomerCount())
}

func TestPlaceOrderNotifierErrorDoesNotFailCheckout(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	prev := util.GetLogger()
	util.SetLogger(zap.New(core))
	t.Cleanup(func() { util.SetLogger(prev) })

	mem := storetest.NewMemory()
	n := &mockNotifier{}
	n.On("NotifyNewOrder", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	svc := NewOrderService(mem, mem, &mockGateway{}, n)
	res, err := svc.PlaceOrder(context.Background(), sampleCheckout(models.PaymentMethodCOD))

	require.NoError(t, err)
	assert.NotZero(t, res.Order.ID)
	assert.Equal(t, 1, mem.OrderCount())
	n.AssertExpectations(t)

	warned := logs.FilterMessage("Failed to notify admins of new order").All()
	require.Len(t, warned, 1)
	assert.Equal(t, res.Order.ID, warned[0].ContextMap()["order_id"])
}

func TestPlaceOrderValidationHasNoSideEffects(t *testing.T) {
	cases := map[string]func(r *CheckoutRequest){
		"blank name":         func(r *CheckoutRequest) { r.Customer.FullName = "   " },
		"missing phone":      func(r *CheckoutRequest) { r.Customer.Phone = "" },
		"missing address":    func(r *CheckoutRequest) { r.Customer.Address = "" },
		"missing city":       func(r *CheckoutRequest) { r.Customer.City = "" },
		"unknown method":     func(r *CheckoutRequest) { r.PaymentMethod = "card" },
		"empty cart":         func(r *CheckoutRequest) { r.Cart = nil },
		"zero quantity":      func(r *CheckoutRequest) { r.Cart[0].Quantity = 0 },
		"negative price":     func(r *CheckoutRequest) { r.Cart[1].Product.Price = price("-1") },
		"uppercase cod code": func(r *CheckoutRequest) { r.PaymentMethod = "COD" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			mem := storetest.NewMemory()
			gw := &mockGateway{}
			n := &mockNotifier{}
			svc := NewOrderService(mem, mem, gw, n)

			req := sampleCheckout(models.PaymentMethodJazzCash)
			mutate(req)
			_, err := svc.PlaceOrder(context.Background(), req)

			require.ErrorIs(t, err, ErrValidation)
			assert.Zero(t, mem.CustomerCount())
			assert.Zero(t, mem.OrderCount())
			gw.AssertNotCalled(t, "AttemptPayment", mock.Anything, mock.Anything)
			n.AssertNotCalled(t, "NotifyNewOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestPlaceOrderLinksUser(t *testing.T) {
	mem := storetest.NewMemory()
	svc := NewOrderService(mem, mem, &mockGateway{}, nil)

	userID := int64(9)
	req := sampleCheckout(models.PaymentMethodCOD)
	req.UserID = &userID
	_, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(context.Background(), sampleCheckout(models.PaymentMethodCOD))
	require.NoError(t, err)

	orders, err := svc.GetOrdersForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, userID, *orders[0].UserID)
}

func TestPlaceOrderEveryCheckoutCreatesNewCustomer(t *testing.T) {
	mem := storetest.NewMemory()
	svc := NewOrderService(mem, mem, &mockGateway{}, nil)

	a, err := svc.PlaceOrder(context.Background(), sampleCheckout(models.PaymentMethodCOD))
	require.NoError(t, err)
	b, err := svc.PlaceOrder(context.Background(), sampleCheckout(models.PaymentMethodCOD))
	require.NoError(t, err)

	assert.NotEqual(t, a.Customer.ID, b.Customer.ID)
	assert.Equal(t, 2, mem.CustomerCount())
}

func TestPlaceOrderIdempotentReplay(t *testing.T) {
	mem := storetest.NewMemory()
	n := &mockNotifier{}
	n.On("NotifyNewOrder", mock.Anything, mock.Anything).Return(nil).Once()
	svc := NewOrderService(mem, mem, &mockGateway{}, n, WithIdempotency(newFakeIdempotency(), time.Hour))

	req := sampleCheckout(models.PaymentMethodCOD)
	req.IdempotencyKey = "k-1"

	first, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, first.Customer.ID, second.Customer.ID)
	assert.Equal(t, 1, mem.OrderCount())
	n.AssertNumberOfCalls(t, "NotifyNewOrder", 1)
}

func TestPlaceOrderIdempotencyKeyInFlight(t *testing.T) {
	mem := storetest.NewMemory()
	idem := newFakeIdempotency()
	idem.locks["checkout:k-2"] = true
	svc := NewOrderService(mem, mem, &mockGateway{}, nil, WithIdempotency(idem, time.Hour))

	req := sampleCheckout(models.PaymentMethodCOD)
	req.IdempotencyKey = "k-2"
	_, err := svc.PlaceOrder(context.Background(), req)

	require.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Zero(t, mem.OrderCount())
}

func TestPlaceOrderIdempotencyStoreDownDegrades(t *testing.T) {
	mem := storetest.NewMemory()
	idem := newFakeIdempotency()
	idem.getErr = errors.New("redis: connection refused")
	svc := NewOrderService(mem, mem, &mockGateway{}, nil, WithIdempotency(idem, time.Hour))

	req := sampleCheckout(models.PaymentMethodCOD)
	req.IdempotencyKey = "k-3"
	_, err := svc.PlaceOrder(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 1, mem.OrderCount())
}

func TestPlaceOrderReleasesLockAfterFailure(t *testing.T) {
	mem := storetest.NewMemory()
	idem := newFakeIdempotency()
	gw := &mockGateway{}
	gw.On("AttemptPayment", mock.Anything, mock.Anything).Return(declined()).Once()
	gw.On("AttemptPayment", mock.Anything, mock.Anything).Return(approved()).Once()
	svc := NewOrderService(mem, mem, gw, nil, WithIdempotency(idem, time.Hour))

	req := sampleCheckout(models.PaymentMethodJazzCash)
	req.IdempotencyKey = "k-4"

	_, err := svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrPaymentFailed)

	res, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Empty(t, idem.locks)
}

func TestPlaceOrderConcurrentCheckoutsGetDistinctOrders(t *testing.T) {
	mem := storetest.NewMemory()
	n := &mockNotifier{}
	n.On("NotifyNewOrder", mock.Anything, mock.Anything).Return(nil)
	svc := NewOrderService(mem, mem, &mockGateway{}, n)

	const workers = 50
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.PlaceOrder(context.Background(), sampleCheckout(models.PaymentMethodCOD))
			if assert.NoError(t, err) {
				ids <- res.Order.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, seen, workers)
	n.AssertNumberOfCalls(t, "NotifyNewOrder", workers)
}

func TestOnlineCheckoutSuccessRateIsAboutNinetyPercent(t *testing.T) {
	mem := storetest.NewMemory()
	sim := NewPaymentSimulatorWithSource(DefaultPaymentSuccessRate, rand.NewSource(42))
	svc := NewOrderService(mem, mem, sim, nil)

	failures := 0
	for i := 0; i < 1000; i++ {
		_, err := svc.PlaceOrder(context.Background(), sampleCheckout(models.PaymentMethodJazzCash))
		if err != nil {
			require.ErrorIs(t, err, ErrPaymentFailed)
			failures++
		}
	}

	assert.InDelta(t, 900, mem.OrderCount(), 50)
	assert.Equal(t, 1000-failures, mem.OrderCount())
	assert.Equal(t, mem.OrderCount(), mem.CustomerCount())
}

func placeOne(t *testing.T, svc *OrderService) int64 {
	t.Helper()
	res, err := svc.PlaceOrder(context.Background(), sampleCheckout(models.PaymentMethodCOD))
	require.NoError(t, err)
	return res.Order.ID
}

func TestUpdateOrderStatusForwardOnly(t *testing.T) {
	mem := storetest.NewMemory()
	svc := NewOrderService(mem, mem, &mockGateway{}, nil)
	ctx := context.Background()
	id := placeOne(t, svc)

	order, err := svc.UpdateOrderStatus(ctx, id, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, order.Status)

	order, err = svc.UpdateOrderStatus(ctx, id, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, order.Status)

	_, err = svc.UpdateOrderStatus(ctx, id, models.OrderStatusPending)
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, err := svc.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, got.Status)

	order, err = svc.UpdateOrderStatus(ctx, id, models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
}

func TestUpdateOrderStatusRejectsUnknownStatus(t *testing.T) {
	mem := storetest.NewMemory()
	svc := NewOrderService(mem, mem, &mockGateway{}, nil)
	ctx := context.Background()
	id := placeOne(t, svc)

	for _, s := range []string{"shipped", "", "PENDING"} {
		_, err := svc.UpdateOrderStatus(ctx, id, s)
		require.ErrorIs(t, err, ErrInvalidStatus)
	}

	got, err := svc.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestUpdateOrderStatusMissingOrder(t *testing.T) {
	mem := storetest.NewMemory()
	svc := NewOrderService(mem, mem, &mockGateway{}, nil)

	_, err := svc.UpdateOrderStatus(context.Background(), 404, models.OrderStatusCompleted)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteOrder(t *testing.T) {
	mem := storetest.NewMemory()
	svc := NewOrderService(mem, mem, &mockGateway{}, nil)
	ctx := context.Background()
	id := placeOne(t, svc)
	placeOne(t, svc)

	err := svc.DeleteOrder(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, mem.OrderCount())

	require.NoError(t, svc.DeleteOrder(ctx, id))
	assert.Equal(t, 1, mem.OrderCount())

	_, err = svc.GetOrder(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersEnrichesCustomers(t *testing.T) {
	mem := storetest.NewMemory()
	svc := NewOrderService(mem, mem, &mockGateway{}, nil)
	placeOne(t, svc)
	placeOne(t, svc)

	orders, err := svc.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		require.NotNil(t, o.Customer)
		assert.Equal(t, o.CustomerID, o.Customer.ID)
	}
	assert.Greater(t, orders[0].ID, orders[1].ID)
}

func TestListOrdersStoreError(t *testing.T) {
	mem := storetest.NewMemory()
	mem.ListOrdersErr = errors.New("db down")
	svc := NewOrderService(mem, mem, &mockGateway{}, nil)

	_, err := svc.ListOrders(context.Background())
	assert.ErrorContains(t, err, "db down")
}
