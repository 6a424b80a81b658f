package shopapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/settings"
	"github.com/celenkdiyari/storefront/internal/webserver"
	"github.com/celenkdiyari/storefront/pkg/common"
)

func registerCatalogRoutes() {
	webserver.ShopGET("/products", listProducts)
	webserver.ShopGET("/products/:id", getProduct)
	webserver.ShopGET("/categories", listCategories)
	webserver.ShopGET("/announcements", listAnnouncements)
	webserver.ShopGET("/settings", publicSettings)
}

var productSorts = map[string]string{
	"price":  "price",
	"name":   "name",
	"newest": "created_at",
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := getDB(c).Model(&domain.Product{})
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		db = db.Where("category = ?", category)
	}
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		cond := "LOWER(name) LIKE ?"
		if db.Dialector.Name() == "postgres" {
			cond = "name ILIKE ?"
		}
		var parts []string
		var args []interface{}
		for _, term := range common.SearchFolds(q) {
			parts = append(parts, cond)
			args = append(args, "%"+term+"%")
		}
		db = db.Where("("+strings.Join(parts, " OR ")+")", args...)
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
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", nil)
	}
	order := "featured DESC, created_at DESC"
	if col, found := productSorts[c.QueryParam("sort")]; found {
		dir := "ASC"
		if strings.EqualFold(c.QueryParam("order"), "desc") {
			dir = "DESC"
		}
		order = col + " " + dir
	}
	var rows []domain.Product
	if err := db.Order(order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows, "total": total, "page": page, "pageSize": pageSize})
}

func getProduct(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := getDB(c).Where("id = ?", id).First(&p).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	return ok(c, http.StatusOK, p)
}

func listCategories(c echo.Context) error {
	return ok(c, http.StatusOK, webserver.GetAppContext(c).Settings().Categories(c.Request().Context()))
}

// VisibleAnnouncements active ones inside their window, highest priority first
func VisibleAnnouncements(all []domain.Announcement, now time.Time) []domain.Announcement {
	out := make([]domain.Announcement, 0, len(all))
	for i := range all {
		if all[i].VisibleAt(now) {
			out = append(out, all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// listAnnouncements never fails the page: store errors yield an empty list
func listAnnouncements(c echo.Context) error {
	var rows []domain.Announcement
	err := getDB(c).Where("active = ?", true).Order("priority DESC, created_at DESC").Find(&rows).Error
	if err != nil {
		zap.L().Error("load announcements failed", zap.String("namespace", "shop"), zap.Error(err))
		return ok(c, http.StatusOK, []domain.Announcement{})
	}
	return ok(c, http.StatusOK, VisibleAnnouncements(rows, time.Now()))
}

func publicSettings(c echo.Context) error {
	st, err := webserver.GetAppContext(c).Settings().Get(c.Request().Context())
	if err != nil {
		zap.L().Error("load settings failed", zap.String("namespace", "shop"), zap.Error(err))
		defaults := settings.Defaults()
		st = &defaults
	}
	return ok(c, http.StatusOK, settings.Public(st))
}
