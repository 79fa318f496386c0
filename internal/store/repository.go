package store

import (
	"context"

	"grocery-mart/internal/models"

	"github.com/shopspring/decimal"
)

// OrderRepository is the data access the checkout pipeline depends on
type OrderRepository interface {
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetCustomersByIDs(ctx context.Context, ids []int64) (map[int64]*models.Customer, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIDForUpdate(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (*models.Order, error)
	DeleteOrder(ctx context.Context, id int64) (bool, error)
}

// TxManager hides transaction begin/commit/rollback from the service layer
type TxManager interface {
	WithinTx(ctx context.Context, fn func(r OrderRepository) error) error
}

// ProductUpdate carries the fields of a partial product update; nil means unchanged
type ProductUpdate struct {
	Name     *string
	Price    *decimal.Decimal
	Category *string
	Unit     *string
	Image    *string
}

// Empty reports whether the update changes nothing
func (u ProductUpdate) Empty() bool {
	return u.Name == nil && u.Price == nil && u.Category == nil && u.Unit == nil && u.Image == nil
}

type CatalogRepository interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, id int64, upd ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) (bool, error)
}

type AccountRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
	CreateAdmin(ctx context.Context, admin *models.Admin) error
}

type StatsRepository interface {
	GetAdminStats(ctx context.Context) (*models.AdminStats, error)
}

var (
	_ OrderRepository   = (*Store)(nil)
	_ TxManager         = (*Store)(nil)
	_ CatalogRepository = (*Store)(nil)
	_ AccountRepository = (*Store)(nil)
	_ StatsRepository   = (*Store)(nil)
)
