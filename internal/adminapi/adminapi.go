package adminapi

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/webserver"
	"github.com/celenkdiyari/storefront/pkg/common"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

// Init registers every admin route, call after webserver.Init
func Init() {
	registerAuthRoutes()
	registerProductRoutes()
	registerOrderRoutes()
	registerCustomerRoutes()
	registerUserRoutes()
	registerInventoryRoutes()
	registerAnnouncementRoutes()
	registerSettingsRoutes()
	registerAnalyticsRoutes()
	registerBackupRoutes()
	registerDbmsRoutes()
	registerOprLogRoutes()
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, echo.Map{"data": data})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, echo.Map{
		"data":     data,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	body := echo.Map{"code": code, "message": message}
	if details != nil {
		body["details"] = details
	}
	return c.JSON(status, echo.Map{"error": body})
}

// parsePagination accepts perPage, or the older pageSize
func parsePagination(c echo.Context) (int, int) {
	page := 1
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	pageSize := defaultPageSize
	raw := c.QueryParam("perPage")
	if raw == "" {
		raw = c.QueryParam("pageSize")
	}
	if ps, err := strconv.Atoi(raw); err == nil && ps > 0 {
		pageSize = ps
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

// GetDB request scoped database handle
func GetDB(c echo.Context) *gorm.DB {
	return webserver.GetAppContext(c).DB().WithContext(c.Request().Context())
}

func handleValidationError(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	}
	fields := map[string]string{}
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		if fe.Param() != "" {
			fields[ns] = fe.Tag() + "=" + fe.Param()
		} else {
			fields[ns] = fe.Tag()
		}
	}
	return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", fields)
}

// bindAndValidate binds the body then runs struct validation. When it
// reports false the error response is already written.
func bindAndValidate(c echo.Context, payload interface{}) (bool, error) {
	if err := c.Bind(payload); err != nil {
		return false, fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request body", err.Error())
	}
	if err := c.Validate(payload); err != nil {
		return false, handleValidationError(c, err)
	}
	return true, nil
}

// likeFilter case insensitive contains match on any of the columns
func likeFilter(db *gorm.DB, q string, columns ...string) *gorm.DB {
	if q == "" || len(columns) == 0 {
		return db
	}
	parts := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	op := "LOWER(%s) LIKE ?"
	if strings.EqualFold(db.Dialector.Name(), "postgres") {
		op = "%s ILIKE ?"
	}
	for _, term := range common.SearchFolds(q) {
		for _, col := range columns {
			parts = append(parts, fmt.Sprintf(op, col))
			args = append(args, "%"+term+"%")
		}
	}
	return db.Where("("+strings.Join(parts, " OR ")+")", args...)
}

// sortOrder whitelisted ORDER BY clause from sort and order params
func sortOrder(c echo.Context, allowed map[string]string, def string) string {
	col, found := allowed[strings.TrimSpace(c.QueryParam("sort"))]
	if !found {
		col = def
	}
	dir := strings.ToUpper(strings.TrimSpace(c.QueryParam("order")))
	if dir != "ASC" && dir != "DESC" {
		dir = "DESC"
	}
	return col + " " + dir
}

func isNotFound(err error) bool {
	return stderrors.Is(err, gorm.ErrRecordNotFound)
}

// logOperation records an admin write action
func logOperation(c echo.Context, action, desc string) {
	name := "anonymous"
	if op := webserver.GetOperator(c); op != nil {
		name = op.Username
	}
	entry := domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   name,
		OprIp:     c.RealIP(),
		OptAction: action,
		OptDesc:   desc,
		OptTime:   time.Now(),
	}
	if err := GetDB(c).Create(&entry).Error; err != nil {
		zap.L().Warn("adminapi: write operation log failed", zap.String("action", action), zap.Error(err))
	}
}
