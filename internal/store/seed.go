package store

import (
	"context"
	"errors"
	"fmt"

	"grocery-mart/internal/models"

	"github.com/shopspring/decimal"
)

// Dashboard account created on first start
const (
	DefaultAdminEmail    = "admin@grocerymart.com"
	DefaultAdminPassword = "admin123"
)

var seedProducts = []struct {
	name, price, category, unit string
}{
	{"Organic Bananas", "2.99", "Fruits", "per kg"},
	{"Fresh Milk", "3.49", "Dairy", "per liter"},
	{"Whole Wheat Bread", "2.79", "Bakery", "per loaf"},
	{"Free Range Eggs", "4.99", "Dairy", "per dozen"},
	{"Organic Chicken Breast", "12.99", "Meat", "per kg"},
	{"Fresh Tomatoes", "1.99", "Vegetables", "per kg"},
	{"Basmati Rice", "5.99", "Pantry", "per kg"},
	{"Greek Yogurt", "3.99", "Dairy", "per container"},
	{"Salmon Fillet", "15.99", "Meat", "per kg"},
	{"Organic Apples", "4.49", "Fruits", "per kg"},
	{"Olive Oil", "8.99", "Pantry", "per bottle"},
	{"Fresh Spinach", "2.49", "Vegetables", "per bunch"},
}

// Seeder is the subset of repositories Seed writes through
type Seeder interface {
	CatalogRepository
	AccountRepository
}

// Seed fills an empty catalog and creates the default admin when missing.
// It reports what it created so the caller can log it.
func Seed(ctx context.Context, r Seeder) (productsCreated int, adminCreated bool, err error) {
	existing, err := r.GetProducts(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to list products: %w", err)
	}

	if len(existing) == 0 {
		for _, p := range seedProducts {
			product := &models.Product{
				Name:     p.name,
				Price:    decimal.RequireFromString(p.price),
				Category: p.category,
				Unit:     p.unit,
			}
			if err := r.CreateProduct(ctx, product); err != nil {
				return productsCreated, false, fmt.Errorf("failed to seed product %q: %w", p.name, err)
			}
			productsCreated++
		}
	}

	_, err = r.GetAdminByEmail(ctx, DefaultAdminEmail)
	switch {
	case errors.Is(err, ErrNotFound):
		admin := &models.Admin{Email: DefaultAdminEmail, Password: DefaultAdminPassword}
		if err := r.CreateAdmin(ctx, admin); err != nil {
			return productsCreated, false, fmt.Errorf("failed to seed admin: %w", err)
		}
		adminCreated = true
	case err != nil:
		return productsCreated, false, fmt.Errorf("failed to look up admin: %w", err)
	}

	return productsCreated, adminCreated, nil
}
