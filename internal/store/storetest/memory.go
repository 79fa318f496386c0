// Package storetest provides an in-memory implementation of the store
// repositories for unit tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"grocery-mart/internal/models"
	"grocery-mart/internal/store"

	"github.com/shopspring/decimal"
)

// Memory implements every store repository over maps. Transactions are
// serialized and roll back by restoring a snapshot.
type Memory struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID    int64
	customers map[int64]models.Customer
	orders    map[int64]models.Order
	products  map[int64]models.Product
	users     map[int64]models.User
	admins    map[int64]models.Admin

	// Injected failures
	CreateCustomerErr error
	CreateOrderErr    error
	ListOrdersErr     error

	TxCount int
}

// NewMemory returns an empty store
func NewMemory() *Memory {
	return &Memory{
		customers: map[int64]models.Customer{},
		orders:    map[int64]models.Order{},
		products:  map[int64]models.Product{},
		users:     map[int64]models.User{},
		admins:    map[int64]models.Admin{},
	}
}

var (
	_ store.OrderRepository   = (*Memory)(nil)
	_ store.TxManager         = (*Memory)(nil)
	_ store.CatalogRepository = (*Memory)(nil)
	_ store.AccountRepository = (*Memory)(nil)
	_ store.StatsRepository   = (*Memory)(nil)
)

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

type snapshot struct {
	nextID    int64
	customers map[int64]models.Customer
	orders    map[int64]models.Order
	products  map[int64]models.Product
	users     map[int64]models.User
	admins    map[int64]models.Admin
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *Memory) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot{
		nextID:    m.nextID,
		customers: copyMap(m.customers),
		orders:    copyMap(m.orders),
		products:  copyMap(m.products),
		users:     copyMap(m.users),
		admins:    copyMap(m.admins),
	}
}

func (m *Memory) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers = s.customers
	m.orders = s.orders
	m.products = s.products
	m.users = s.users
	m.admins = s.admins
	// ids stay monotonic across rollbacks, like a sequence
}

// WithinTx implements store.TxManager
func (m *Memory) WithinTx(ctx context.Context, fn func(r store.OrderRepository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	m.mu.Lock()
	m.TxCount++
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// Ping always succeeds
func (m *Memory) Ping(ctx context.Context) error { return nil }

// CustomerCount returns the number of stored customers
func (m *Memory) CustomerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.customers)
}

// OrderCount returns the number of stored orders
func (m *Memory) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *Memory) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateCustomerErr != nil {
		return m.CreateCustomerErr
	}
	customer.ID = m.id()
	customer.CreatedAt = time.Now()
	m.customers[customer.ID] = *customer
	return nil
}

func (m *Memory) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, store.ErrNotFound)
	}
	return &c, nil
}

func (m *Memory) GetCustomersByIDs(ctx context.Context, ids []int64) (map[int64]*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]*models.Customer, len(ids))
	for _, id := range ids {
		if c, ok := m.customers[id]; ok {
			c := c
			out[id] = &c
		}
	}
	return out, nil
}

func (m *Memory) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateOrderErr != nil {
		return m.CreateOrderErr
	}
	if _, ok := m.customers[order.CustomerID]; !ok {
		return fmt.Errorf("customer %d: foreign key violation", order.CustomerID)
	}
	order.ID = m.id()
	order.CreatedAt = time.Now()
	m.orders[order.ID] = *order
	return nil
}

func (m *Memory) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	return &o, nil
}

func (m *Memory) GetOrderByIDForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return m.GetOrderByID(ctx, id)
}

func (m *Memory) sortedOrders(keep func(models.Order) bool) []models.Order {
	out := []models.Order{}
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *Memory) ListOrders(ctx context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListOrdersErr != nil {
		return nil, m.ListOrdersErr
	}
	return m.sortedOrders(func(models.Order) bool { return true }), nil
}

func (m *Memory) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedOrders(func(o models.Order) bool { return o.UserID != nil && *o.UserID == userID }), nil
}

func (m *Memory) UpdateOrderStatus(ctx context.Context, id int64, status string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	o.Status = status
	m.orders[id] = o
	return &o, nil
}

func (m *Memory) DeleteOrder(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return false, nil
	}
	delete(m.orders, id)
	return true, nil
}

func (m *Memory) GetProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) CreateProduct(ctx context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	product.ID = m.id()
	product.CreatedAt = time.Now()
	m.products[product.ID] = *product
	return nil
}

func (m *Memory) UpdateProduct(ctx context.Context, id int64, upd store.ProductUpdate) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.Unit != nil {
		p.Unit = *upd.Unit
	}
	if upd.Image != nil {
		img := *upd.Image
		p.Image = &img
	}
	m.products[id] = p
	return &p, nil
}

func (m *Memory) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return false, nil
	}
	delete(m.products, id)
	return true, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, store.ErrNotFound)
}

func (m *Memory) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	return &u, nil
}

func (m *Memory) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("duplicate email %s", user.Email)
		}
	}
	user.ID = m.id()
	user.CreatedAt = time.Now()
	m.users[user.ID] = *user
	return nil
}

func (m *Memory) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if a.Email == email {
			a := a
			return &a, nil
		}
	}
	return nil, fmt.Errorf("admin %s: %w", email, store.ErrNotFound)
}

func (m *Memory) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	admin.ID = m.id()
	m.admins[admin.ID] = *admin
	return nil
}

func (m *Memory) GetAdminStats(ctx context.Context) (*models.AdminStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.AdminStats{
		Products: len(m.products),
		Orders:   len(m.orders),
		Revenue:  decimal.Zero,
	}
	customers := map[int64]struct{}{}
	for _, o := range m.orders {
		stats.Revenue = stats.Revenue.Add(o.Total)
		customers[o.CustomerID] = struct{}{}
	}
	stats.Customers = len(customers)
	return stats, nil
}
