package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"grocery-mart/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, user_id, customer_id, items, subtotal, delivery_fee, total, payment_method, status, created_at`

// CreateCustomer inserts a new customer row
func (s *Store) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (full_name, phone, address, city)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return sqlx.GetContext(ctx, s.q, customer, query,
		customer.FullName, customer.Phone, customer.Address, customer.City)
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := sqlx.GetContext(ctx, s.q, &customer,
		"SELECT id, full_name, phone, address, city, created_at FROM customers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomersByIDs retrieves customers keyed by ID; missing IDs are absent from the map
func (s *Store) GetCustomersByIDs(ctx context.Context, ids []int64) (map[int64]*models.Customer, error) {
	out := make(map[int64]*models.Customer, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In("SELECT id, full_name, phone, address, city, created_at FROM customers WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.q.Rebind(query)

	var customers []models.Customer
	if err := sqlx.SelectContext(ctx, s.q, &customers, query, args...); err != nil {
		return nil, err
	}
	for i := range customers {
		out[customers[i].ID] = &customers[i]
	}
	return out, nil
}

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, customer_id, items, subtotal, delivery_fee, total, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return sqlx.GetContext(ctx, s.q, order, query,
		order.UserID, order.CustomerID, order.Items,
		order.Subtotal.StringFixed(2), order.DeliveryFee.StringFixed(2), order.Total.StringFixed(2),
		order.PaymentMethod, order.Status)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	return s.getOrder(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
}

// GetOrderByIDForUpdate retrieves an order and locks its row for the rest of the transaction
func (s *Store) GetOrderByIDForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return s.getOrder(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
}

func (s *Store) getOrder(ctx context.Context, query string, id int64) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, s.q, &order, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders retrieves every order, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	err := sqlx.SelectContext(ctx, s.q, &orders,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC, id DESC")
	return orders, err
}

// GetOrdersByUserID retrieves orders for a user
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := sqlx.SelectContext(ctx, s.q, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	return orders, err
}

// UpdateOrderStatus updates order status and returns the updated row
func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status string) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, s.q, &order,
		"UPDATE orders SET status = $1 WHERE id = $2 RETURNING "+orderColumns, status, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// DeleteOrder hard-deletes an order; false means no row matched
func (s *Store) DeleteOrder(ctx context.Context, id int64) (bool, error) {
	res, err := s.q.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetAdminStats summarizes the catalog and order book for the dashboard
func (s *Store) GetAdminStats(ctx context.Context) (*models.AdminStats, error) {
	var stats models.AdminStats
	err := sqlx.GetContext(ctx, s.q, &stats, `
		SELECT
			(SELECT COUNT(*) FROM products) AS products,
			(SELECT COUNT(*) FROM orders) AS orders,
			(SELECT COALESCE(SUM(total), 0) FROM orders) AS revenue,
			(SELECT COUNT(DISTINCT customer_id) FROM orders) AS customers`)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
