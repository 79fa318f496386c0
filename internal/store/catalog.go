package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"grocery-mart/internal/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = `id, name, price, category, unit, image, created_at`

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := sqlx.SelectContext(ctx, s.q, &products, "SELECT "+productColumns+" FROM products ORDER BY id")
	return products, err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.q, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, price, category, unit, image)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return sqlx.GetContext(ctx, s.q, product, query,
		product.Name, product.Price.StringFixed(2), product.Category, product.Unit, product.Image)
}

// UpdateProduct applies the non-nil fields of upd
func (s *Store) UpdateProduct(ctx context.Context, id int64, upd ProductUpdate) (*models.Product, error) {
	if upd.Empty() {
		return s.GetProductByID(ctx, id)
	}

	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	add := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Price != nil {
		add("price", upd.Price.StringFixed(2))
	}
	if upd.Category != nil {
		add("category", *upd.Category)
	}
	if upd.Unit != nil {
		add("unit", *upd.Unit)
	}
	if upd.Image != nil {
		add("image", *upd.Image)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE products SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), productColumns)

	var product models.Product
	err := sqlx.GetContext(ctx, s.q, &product, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes a product; false means no row matched
func (s *Store) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	res, err := s.q.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, s.q, &user,
		"SELECT id, email, password, name, phone, address, created_at FROM users WHERE email = $1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, s.q, &user,
		"SELECT id, email, password, name, phone, address, created_at FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a user
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password, name, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return sqlx.GetContext(ctx, s.q, user, query,
		user.Email, user.Password, user.Name, user.Phone, user.Address)
}

// GetAdminByEmail retrieves an admin by email
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var admin models.Admin
	err := sqlx.GetContext(ctx, s.q, &admin, "SELECT id, email, password FROM admins WHERE email = $1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("admin %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// CreateAdmin inserts an admin
func (s *Store) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	return sqlx.GetContext(ctx, s.q, &admin.ID,
		"INSERT INTO admins (email, password) VALUES ($1, $2) RETURNING id",
		admin.Email, admin.Password)
}
