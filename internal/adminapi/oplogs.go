package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/webserver"
)

func registerOprLogRoutes() {
	webserver.ApiGET("/system/oplogs", listOprLogs, webserver.RequireRole(domain.RoleAdmin))
}

func listOprLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)
	base := GetDB(c).Model(&domain.SysOprLog{})
	if name := strings.TrimSpace(c.QueryParam("operator")); name != "" {
		base = base.Where("opr_name = ?", name)
	}
	if action := strings.TrimSpace(c.QueryParam("action")); action != "" {
		base = base.Where("opt_action LIKE ?", action+"%")
	}
	base = likeFilter(base, strings.TrimSpace(c.QueryParam("q")), "opt_desc")
	if raw := c.QueryParam("from"); raw != "" {
		if from, valid := parseDateParam(raw, false); valid {
			base = base.Where("opt_time >= ?", from)
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		if to, valid := parseDateParam(raw, true); valid {
			base = base.Where("opt_time <= ?", to)
		}
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operation logs", err.Error())
	}
	var rows []domain.SysOprLog
	if err := base.Order("opt_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operation logs", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}
