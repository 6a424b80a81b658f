package adminapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/settings"
	"github.com/celenkdiyari/storefront/internal/webserver"
)

func registerSettingsRoutes() {
	webserver.ApiGET("/settings", getSettings)
	webserver.ApiPUT("/settings", updateSettings)
	webserver.ApiPOST("/settings/reset", resetSettings, webserver.RequireRole(domain.RoleAdmin))
}

func getSettings(c echo.Context) error {
	st, err := webserver.GetAppContext(c).Settings().Get(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load settings", err.Error())
	}
	return ok(c, st)
}

// updateSettings accepts a partial document, nested blocks are merged key by key
func updateSettings(c echo.Context) error {
	patch := map[string]interface{}{}
	if err := c.Bind(&patch); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request body", err.Error())
	}
	svc := webserver.GetAppContext(c).Settings()
	current, err := svc.Get(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load settings", err.Error())
	}
	if _, err := settings.Merge(current, patch); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_SETTINGS", err.Error(), nil)
	}
	st, err := svc.Update(c.Request().Context(), patch)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save settings", err.Error())
	}
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	logOperation(c, "settings.update", "blocks: "+strings.Join(keys, ","))
	return ok(c, st)
}

func resetSettings(c echo.Context) error {
	st, err := webserver.GetAppContext(c).Settings().Reset(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to reset settings", err.Error())
	}
	logOperation(c, "settings.reset", "defaults restored")
	return ok(c, st)
}
