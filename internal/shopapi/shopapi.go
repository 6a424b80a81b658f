// Package shopapi serves the public storefront endpoints: catalog, cart,
// checkout, order tracking and the PayTR bridge.
package shopapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/celenkdiyari/storefront/internal/webserver"
	"github.com/celenkdiyari/storefront/pkg/common"
)

const (
	sessionKeyID    = "sid"
	defaultPageSize = 24
	maxPageSize     = 100
)

// Init registers every storefront route, call after webserver.Init
func Init() {
	registerCatalogRoutes()
	registerCartRoutes()
	registerOrderRoutes()
	registerPaymentRoutes()
}

func ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"data": data})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	body := echo.Map{"code": code, "message": message}
	if details != nil {
		body["details"] = details
	}
	return c.JSON(status, echo.Map{"error": body})
}

func parsePagination(c echo.Context) (int, int) {
	page := 1
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	pageSize := defaultPageSize
	if ps, err := strconv.Atoi(c.QueryParam("perPage")); err == nil && ps > 0 {
		pageSize = ps
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func getDB(c echo.Context) *gorm.DB {
	return webserver.GetAppContext(c).DB().WithContext(c.Request().Context())
}

// sessionID returns the storefront session id, creating the cookie on first use
func sessionID(c echo.Context) (string, error) {
	sess, err := session.Get(webserver.SessionName, c)
	if err != nil {
		// unreadable cookie, e.g. after a key rotation: start over
		zap.L().Debug("storefront session reset", zap.String("namespace", "shop"), zap.Error(err))
	}
	if sess == nil {
		return "", err
	}
	if sid, found := sess.Values[sessionKeyID].(string); found && sid != "" {
		return sid, nil
	}
	sid := common.RandomHex(16)
	sess.Values[sessionKeyID] = sid
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return "", err
	}
	return sid, nil
}

func sessionError(c echo.Context, err error) error {
	return fail(c, http.StatusInternalServerError, "SESSION_ERROR", "Unable to establish a session", errString(err))
}

func errString(err error) interface{} {
	if err == nil {
		return nil
	}
	return err.Error()
}
