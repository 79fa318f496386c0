package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"grocery-mart/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const maxImageSize = 5 << 20

type productJSON struct {
	Name     *string          `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Category *string          `json:"category"`
	Unit     *string          `json:"unit"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalogService.ListProducts(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	product, err := h.catalogService.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "Product not found")
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	in, image, cleanup, err := productInput(c)
	if err != nil {
		bindError(c, "Invalid product data", err)
		return
	}
	defer cleanup()

	product, err := h.catalogService.CreateProduct(c.Request.Context(), in, image)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	in, image, cleanup, err := productInput(c)
	if err != nil {
		bindError(c, "Invalid product data", err)
		return
	}
	defer cleanup()

	product, err := h.catalogService.UpdateProduct(c.Request.Context(), id, in, image)
	if err != nil {
		h.writeError(c, err, "Product not found")
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.catalogService.DeleteProduct(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "Product not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) adminStats(c *gin.Context) {
	stats, err := h.catalogService.AdminStats(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// productInput reads product fields from a multipart/urlencoded form (with an
// optional "image" file) or from a JSON body. The returned cleanup closes the
// uploaded file.
func productInput(c *gin.Context) (service.ProductInput, *service.ImageUpload, func(), error) {
	noop := func() {}
	ct := c.ContentType()

	if ct != "multipart/form-data" && ct != "application/x-www-form-urlencoded" {
		var body productJSON
		if err := c.ShouldBindJSON(&body); err != nil {
			return service.ProductInput{}, nil, noop, err
		}
		in := service.ProductInput{Name: body.Name, Category: body.Category, Unit: body.Unit}
		if body.Price != nil {
			p := body.Price.String()
			in.Price = &p
		}
		return in, nil, noop, nil
	}

	formValue := func(key string) *string {
		if v, ok := c.GetPostForm(key); ok {
			return &v
		}
		return nil
	}
	in := service.ProductInput{
		Name:     formValue("name"),
		Price:    formValue("price"),
		Category: formValue("category"),
		Unit:     formValue("unit"),
	}

	if ct != "multipart/form-data" {
		return in, nil, noop, nil
	}

	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, noop, nil
	}
	if err != nil {
		return in, nil, noop, err
	}
	if fh.Size > maxImageSize {
		return in, nil, noop, fmt.Errorf("image must be at most %d MB", maxImageSize>>20)
	}

	f, err := fh.Open()
	if err != nil {
		return in, nil, noop, err
	}
	image := &service.ImageUpload{
		Filename:    fh.Filename,
		ContentType: strings.TrimSpace(fh.Header.Get("Content-Type")),
		Body:        f,
	}
	return in, image, func() { f.Close() }, nil
}

func (h *Handler) signup(c *gin.Context) {
	var req service.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "Invalid signup data", err)
		return
	}

	user, err := h.authService.Signup(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user": userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "Invalid login data", err)
		return
	}

	user, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}

func (h *Handler) adminLogin(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "Invalid login data", err)
		return
	}

	admin, err := h.authService.AdminLogin(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"admin":   gin.H{"id": admin.ID, "email": admin.Email},
	})
}
