package adminapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/webserver"
	"github.com/celenkdiyari/storefront/pkg/common"
)

type productPayload struct {
	Name        string            `json:"name" validate:"required,max=200"`
	Description string            `json:"description" validate:"required"`
	Price       float64           `json:"price" validate:"gt=0"`
	Category    string            `json:"category" validate:"required"`
	InStock     *bool             `json:"inStock"`
	Featured    bool              `json:"featured"`
	Images      []string          `json:"images"`
	Variants    []string          `json:"variants"`
	SEO         domain.ProductSEO `json:"seo"`
}

// registerProductRoutes registers product CRUD endpoints
func registerProductRoutes() {
	webserver.ApiGET("/products", listProducts)
	webserver.ApiGET("/products/categories", listProductCategories)
	webserver.ApiGET("/products/:id", getProduct)
	webserver.ApiPOST("/products", createProduct)
	webserver.ApiPUT("/products/:id", updateProduct)
	webserver.ApiPOST("/products/:id/toggle-stock", toggleProductStock)
	webserver.ApiDELETE("/products/:id", deleteProduct)
}

var productSortColumns = map[string]string{
	"id":        "id",
	"name":      "name",
	"price":     "price",
	"category":  "category",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.Product{})
	db = likeFilter(db, strings.TrimSpace(c.QueryParam("q")), "name")
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		db = db.Where("category = ?", category)
	}
	if v := c.QueryParam("inStock"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			db = db.Where("in_stock = ?", b)
		}
	}
	if v := c.QueryParam("featured"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			db = db.Where("featured = ?", b)
		}
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	var rows []domain.Product
	err := db.Order(sortOrder(c, productSortColumns, "created_at")).
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func listProductCategories(c echo.Context) error {
	return ok(c, webserver.GetAppContext(c).Settings().Categories(c.Request().Context()))
}

func getProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; isNotFound(err) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}
	return ok(c, p)
}

// readProductPayload binds, validates and normalizes the body
func readProductPayload(c echo.Context) (*productPayload, bool, error) {
	var payload productPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return nil, false, err
	}
	payload.Name = strings.TrimSpace(payload.Name)
	payload.Description = strings.TrimSpace(payload.Description)
	if payload.Name == "" || payload.Description == "" {
		return nil, false, fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed",
			map[string]string{"name": "required", "description": "required"})
	}
	categories := webserver.GetAppContext(c).Settings().Categories(c.Request().Context())
	if !common.InSlice(payload.Category, categories) {
		return nil, false, fail(c, http.StatusBadRequest, "INVALID_CATEGORY",
			fmt.Sprintf("Unknown category %q", payload.Category), categories)
	}
	if strings.TrimSpace(payload.SEO.Slug) == "" {
		payload.SEO.Slug = common.Slugify(payload.Name)
	} else {
		payload.SEO.Slug = common.Slugify(payload.SEO.Slug)
	}
	if payload.Images == nil {
		payload.Images = []string{}
	}
	if payload.Variants == nil {
		payload.Variants = []string{}
	}
	return &payload, true, nil
}

func createProduct(c echo.Context) error {
	payload, valid, err := readProductPayload(c)
	if !valid {
		return err
	}
	inStock := true
	if payload.InStock != nil {
		inStock = *payload.InStock
	}
	now := time.Now()
	p := domain.Product{
		ID:          common.UUIDint64(),
		Name:        payload.Name,
		Description: payload.Description,
		Price:       payload.Price,
		Category:    payload.Category,
		InStock:     inStock,
		Featured:    payload.Featured,
		Images:      payload.Images,
		Variants:    payload.Variants,
		SEO:         payload.SEO,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := GetDB(c).Create(&p).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create product", err.Error())
	}
	logOperation(c, "product.create", p.Name)
	return ok(c, p)
}

func updateProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; isNotFound(err) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}

	payload, valid, err := readProductPayload(c)
	if !valid {
		return err
	}
	p.Name = payload.Name
	p.Description = payload.Description
	p.Price = payload.Price
	p.Category = payload.Category
	if payload.InStock != nil {
		p.InStock = *payload.InStock
	}
	p.Featured = payload.Featured
	p.Images = payload.Images
	p.Variants = payload.Variants
	p.SEO = payload.SEO
	p.UpdatedAt = time.Now()

	if err := GetDB(c).Save(&p).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update product", err.Error())
	}
	logOperation(c, "product.update", p.Name)
	return ok(c, p)
}

func toggleProductStock(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; isNotFound(err) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}
	p.InStock = !p.InStock
	p.UpdatedAt = time.Now()
	err = GetDB(c).Model(&domain.Product{}).Where("id = ?", id).
		Updates(map[string]interface{}{"in_stock": p.InStock, "updated_at": p.UpdatedAt}).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update product", err.Error())
	}
	logOperation(c, "product.stock", fmt.Sprintf("%s inStock=%v", p.Name, p.InStock))
	return ok(c, p)
}

func deleteProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	res := GetDB(c).Where("id = ?", id).Delete(&domain.Product{})
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete product", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	logOperation(c, "product.delete", strconv.FormatInt(id, 10))
	return ok(c, echo.Map{"id": strconv.FormatInt(id, 10)})
}
