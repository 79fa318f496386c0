package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"grocery-mart/internal/models"
	"grocery-mart/internal/store"
	"grocery-mart/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderNotifier hands a NEW_ORDER event to whatever delivers it to admin
// dashboards: the in-process hub, or the broker relay.
type OrderNotifier interface {
	NotifyNewOrder(ctx context.Context, event *models.NewOrderEvent) error
}

// IdempotencyStore remembers which order an Idempotency-Key produced and
// guards a key while its checkout is running.
type IdempotencyStore interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
	GetOrderIDForKey(ctx context.Context, key string) (int64, bool, error)
	SetOrderIDForKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error
}

const checkoutLockTTL = 30 * time.Second

// OrderService handles order business logic
type OrderService struct {
	repo           store.OrderRepository
	tx             store.TxManager
	payments       PaymentGateway
	notifier       OrderNotifier
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	atomic         bool
	logger         *zap.Logger
}

type OrderServiceOption func(*OrderService)

// WithIdempotency enables Idempotency-Key replay backed by is
func WithIdempotency(is IdempotencyStore, ttl time.Duration) OrderServiceOption {
	return func(s *OrderService) {
		s.idempotency = is
		s.idempotencyTTL = ttl
	}
}

// WithNonAtomicCheckout writes the customer outside any transaction, so a
// declined payment leaves the customer row behind.
func WithNonAtomicCheckout() OrderServiceOption {
	return func(s *OrderService) {
		s.atomic = false
	}
}

// NewOrderService creates a new order service
func NewOrderService(
	repo store.OrderRepository,
	tx store.TxManager,
	payments PaymentGateway,
	notifier OrderNotifier,
	opts ...OrderServiceOption,
) *OrderService {
	s := &OrderService{
		repo:     repo,
		tx:       tx,
		payments: payments,
		notifier: notifier,
		atomic:   true,
		logger:   util.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CustomerDetails is the delivery information entered at checkout
type CustomerDetails struct {
	FullName string `json:"fullName" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Address  string `json:"address" binding:"required"`
	City     string `json:"city" binding:"required"`
}

// CheckoutRequest represents a request to place an order
type CheckoutRequest struct {
	Customer       CustomerDetails   `json:"customer"`
	PaymentMethod  string            `json:"paymentMethod" binding:"required"`
	Cart           []models.CartItem `json:"cart" binding:"required"`
	UserID         *int64            `json:"userId,omitempty"`
	IdempotencyKey string            `json:"idempotencyKey,omitempty"`
}

// CheckoutResult is what a successful checkout returns
type CheckoutResult struct {
	Order    *models.Order    `json:"order"`
	Customer *models.Customer `json:"customer"`
	// Replayed is set when the result came from an earlier request with the same idempotency key
	Replayed bool `json:"-"`
}

// PlaceOrder turns a cart into a persisted order and notifies admin dashboards.
func (s *OrderService) PlaceOrder(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder",
		attribute.String("payment_method", req.PaymentMethod),
		attribute.Int("cart_lines", len(req.Cart)))
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validateCheckout(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		replayed, release, err := s.claimIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("in_progress").Inc()
			return nil, err
		}
		if replayed != nil {
			util.OrdersReplayedTotal.Inc()
			return replayed, nil
		}
		defer release()
	}

	var (
		order    *models.Order
		customer *models.Customer
	)

	place := func(r store.OrderRepository) error {
		customer = &models.Customer{
			FullName: strings.TrimSpace(req.Customer.FullName),
			Phone:    strings.TrimSpace(req.Customer.Phone),
			Address:  strings.TrimSpace(req.Customer.Address),
			City:     strings.TrimSpace(req.Customer.City),
		}
		if err := r.CreateCustomer(ctx, customer); err != nil {
			return fmt.Errorf("failed to create customer: %w", err)
		}

		subtotal, total := s.calculateTotals(req.Cart)

		if models.IsOnlinePayment(req.PaymentMethod) {
			result := s.payments.AttemptPayment(ctx, total)
			if !result.Success {
				return fmt.Errorf("%w: %s", ErrPaymentFailed, result.Reason)
			}
		}

		order = &models.Order{
			UserID:        req.UserID,
			CustomerID:    customer.ID,
			Items:         models.CartSnapshot(req.Cart),
			Subtotal:      subtotal,
			DeliveryFee:   models.DeliveryFee,
			Total:         total,
			PaymentMethod: req.PaymentMethod,
			Status:        models.OrderStatusPending,
		}
		if err := r.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	}

	var err error
	if s.atomic {
		err = s.tx.WithinTx(ctx, place)
	} else {
		err = place(s.repo)
	}
	if err != nil {
		if errors.Is(err, ErrPaymentFailed) {
			util.OrdersFailedTotal.WithLabelValues("payment_failed").Inc()
			s.logger.Warn("Checkout payment declined",
				zap.String("payment_method", req.PaymentMethod),
				zap.Bool("atomic", s.atomic))
		} else {
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
			s.logger.Error("Checkout failed", zap.Error(err))
		}
		span.RecordError(err)
		return nil, err
	}

	util.OrdersCreatedTotal.WithLabelValues(req.PaymentMethod).Inc()
	span.SetAttributes(attribute.Int64("order_id", order.ID))
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", customer.ID),
		zap.String("total", order.Total.StringFixed(2)))

	s.notifyNewOrder(ctx, order, customer, req.Cart)

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.SetOrderIDForKey(ctx, req.IdempotencyKey, order.ID, s.idempotencyTTL); err != nil {
			s.logger.Warn("Failed to remember idempotency key",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(err))
		}
	}

	return &CheckoutResult{Order: order, Customer: customer}, nil
}

// calculateTotals prices the cart from its own snapshot, never from the catalog
func (s *OrderService) calculateTotals(cart []models.CartItem) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, item := range cart {
		subtotal = subtotal.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	subtotal = subtotal.Round(2)
	return subtotal, subtotal.Add(models.DeliveryFee)
}

// notifyNewOrder never fails the checkout; delivery problems are only logged
func (s *OrderService) notifyNewOrder(ctx context.Context, order *models.Order, customer *models.Customer, cart []models.CartItem) {
	if s.notifier == nil {
		return
	}

	event := models.NewOrderEventFor(order, customer, cart)
	if err := s.notifier.NotifyNewOrder(ctx, event); err != nil {
		util.NotifyFailedTotal.Inc()
		s.logger.Warn("Failed to notify admins of new order",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

// claimIdempotencyKey returns the earlier result for key if there is one.
// Otherwise it locks the key and returns the unlock func. Redis trouble
// degrades to running the checkout unguarded.
func (s *OrderService) claimIdempotencyKey(ctx context.Context, key string) (*CheckoutResult, func(), error) {
	noop := func() {}

	orderID, found, err := s.idempotency.GetOrderIDForKey(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed, continuing without guard",
			zap.String("idempotency_key", key), zap.Error(err))
		return nil, noop, nil
	}
	if found {
		order, err := s.repo.GetOrderByID(ctx, orderID)
		if err == nil {
			customer, err := s.repo.GetCustomerByID(ctx, order.CustomerID)
			if err == nil {
				s.logger.Info("Duplicate checkout detected",
					zap.String("idempotency_key", key),
					zap.Int64("order_id", orderID))
				return &CheckoutResult{Order: order, Customer: customer, Replayed: true}, noop, nil
			}
		}
		// the remembered order is gone; place a fresh one
	}

	lockKey := "checkout:" + key
	ok, err := s.idempotency.AcquireLock(ctx, lockKey, checkoutLockTTL)
	if err != nil {
		s.logger.Warn("Idempotency lock failed, continuing without guard",
			zap.String("idempotency_key", key), zap.Error(err))
		return nil, noop, nil
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrCheckoutInProgress, key)
	}

	return nil, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.idempotency.ReleaseLock(ctx, lockKey); err != nil {
			s.logger.Warn("Failed to release checkout lock", zap.String("lock", lockKey), zap.Error(err))
		}
	}, nil
}

func validateCheckout(req *CheckoutRequest) error {
	var errs fieldErrors

	c := req.Customer
	if strings.TrimSpace(c.FullName) == "" {
		errs.add("customer.fullName is required")
	}
	if strings.TrimSpace(c.Phone) == "" {
		errs.add("customer.phone is required")
	}
	if strings.TrimSpace(c.Address) == "" {
		errs.add("customer.address is required")
	}
	if strings.TrimSpace(c.City) == "" {
		errs.add("customer.city is required")
	}

	if !models.IsValidPaymentMethod(req.PaymentMethod) {
		errs.add("paymentMethod must be one of cod, jazzcash, online")
	}

	if len(req.Cart) == 0 {
		errs.add("cart must contain at least one item")
	}
	for i, item := range req.Cart {
		if item.Quantity < 1 {
			errs.add("cart[%d].quantity must be at least 1", i)
		}
		if item.Product.Price.IsNegative() {
			errs.add("cart[%d].product.price must not be negative", i)
		}
	}

	return errs.err()
}

// ListOrders returns all orders, each with its customer
func (s *OrderService) ListOrders(ctx context.Context) ([]models.OrderWithCustomer, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.CustomerID)
	}
	customers, err := s.repo.GetCustomersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}

	out := make([]models.OrderWithCustomer, 0, len(orders))
	for _, o := range orders {
		out = append(out, models.OrderWithCustomer{Order: o, Customer: customers[o.CustomerID]})
	}
	return out, nil
}

// GetOrder returns one order with its customer
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.OrderWithCustomer, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	customer, err := s.repo.GetCustomerByID(ctx, order.CustomerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	return &models.OrderWithCustomer{Order: *order, Customer: customer}, nil
}

// GetOrdersForUser returns the orders linked to a storefront user
func (s *OrderService) GetOrdersForUser(ctx context.Context, userID int64) ([]models.Order, error) {
	orders, err := s.repo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order forward through pending, processing, completed
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus",
		attribute.Int64("order_id", orderID),
		attribute.String("status", status))
	defer span.End()

	if !models.IsValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var updated *models.Order
	err := s.tx.WithinTx(ctx, func(r store.OrderRepository) error {
		current, err := r.GetOrderByIDForUpdate(ctx, orderID)
		if err != nil {
			return translateStoreErr(err)
		}
		if current.Status == status {
			updated = current
			return nil
		}
		if !models.CanTransition(current.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
		}
		updated, err = r.UpdateOrderStatus(ctx, orderID, status)
		if err != nil {
			return translateStoreErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.OrderStatusUpdatesTotal.WithLabelValues(status).Inc()
	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", status))
	return updated, nil
}

// DeleteOrder hard-deletes an order
func (s *OrderService) DeleteOrder(ctx context.Context, orderID int64) error {
	deleted, err := s.repo.DeleteOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if !deleted {
		return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}

	util.OrdersDeletedTotal.Inc()
	s.logger.Info("Order deleted", zap.Int64("order_id", orderID))
	return nil
}

func translateStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
