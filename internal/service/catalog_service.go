package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"grocery-mart/internal/imagestore"
	"grocery-mart/internal/models"
	"grocery-mart/internal/store"
	"grocery-mart/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService handles product CRUD and the admin dashboard summary
type CatalogService struct {
	products store.CatalogRepository
	stats    store.StatsRepository
	images   imagestore.Store
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(products store.CatalogRepository, stats store.StatsRepository, images imagestore.Store) *CatalogService {
	return &CatalogService{
		products: products,
		stats:    stats,
		images:   images,
		logger:   util.GetLogger(),
	}
}

// ImageUpload is an image file attached to a product form
type ImageUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// ProductInput holds product form fields; nil means the field was not sent
type ProductInput struct {
	Name     *string
	Price    *string
	Category *string
	Unit     *string
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.products.GetProducts(ctx)
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return p, nil
}

// CreateProduct validates the form, stores the image if any, and inserts the product
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput, image *ImageUpload) (*models.Product, error) {
	var errs fieldErrors
	product := &models.Product{}

	for _, f := range []struct {
		name string
		val  *string
		dst  *string
	}{
		{"name", in.Name, &product.Name},
		{"category", in.Category, &product.Category},
		{"unit", in.Unit, &product.Unit},
	} {
		if f.val == nil || strings.TrimSpace(*f.val) == "" {
			errs.add("%s is required", f.name)
			continue
		}
		*f.dst = strings.TrimSpace(*f.val)
	}

	if in.Price == nil {
		errs.add("price is required")
	} else if price, err := parsePrice(*in.Price); err != nil {
		errs.add("%s", err.Error())
	} else {
		product.Price = price
	}
	if image != nil && !isImage(image.ContentType) {
		errs.add("Only image files are allowed")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if image != nil {
		url, err := s.saveImage(ctx, image)
		if err != nil {
			return nil, err
		}
		product.Image = &url
	}

	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct applies the fields that were sent
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, in ProductInput, image *ImageUpload) (*models.Product, error) {
	var errs fieldErrors
	upd := store.ProductUpdate{}

	trimmed := func(field string, v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		if t == "" {
			errs.add("%s must not be empty", field)
			return nil
		}
		return &t
	}
	upd.Name = trimmed("name", in.Name)
	upd.Category = trimmed("category", in.Category)
	upd.Unit = trimmed("unit", in.Unit)

	if in.Price != nil {
		price, err := parsePrice(*in.Price)
		if err != nil {
			errs.add("%s", err.Error())
		} else {
			upd.Price = &price
		}
	}
	if image != nil && !isImage(image.ContentType) {
		errs.add("Only image files are allowed")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if image != nil {
		url, err := s.saveImage(ctx, image)
		if err != nil {
			return nil, err
		}
		upd.Image = &url
	}

	p, err := s.products.UpdateProduct(ctx, id, upd)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	deleted, err := s.products.DeleteProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if !deleted {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}

// AdminStats summarizes products, orders, revenue and distinct customers
func (s *CatalogService) AdminStats(ctx context.Context) (*models.AdminStats, error) {
	return s.stats.GetAdminStats(ctx)
}

func (s *CatalogService) saveImage(ctx context.Context, image *ImageUpload) (string, error) {
	if s.images == nil {
		return "", fmt.Errorf("image uploads are not configured")
	}
	url, err := s.images.Save(ctx, imagestore.UniqueName(image.Filename), image.ContentType, image.Body)
	if err != nil {
		return "", err
	}
	return url, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %q is not a number", raw)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("price must not be negative")
	}
	return price.Round(2), nil
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
