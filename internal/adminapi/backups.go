package adminapi

import (
	stderrors "errors"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/celenkdiyari/storefront/internal/backup"
	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/webserver"
)

func registerBackupRoutes() {
	adminOnly := webserver.RequireRole(domain.RoleAdmin)
	webserver.ApiGET("/backups", listBackups, adminOnly)
	webserver.ApiPOST("/backups", createBackup, adminOnly)
	webserver.ApiGET("/backups/:id", getBackup, adminOnly)
	webserver.ApiGET("/backups/:id/download", downloadBackup, adminOnly)
	webserver.ApiPOST("/backups/:id/restore", restoreBackup, adminOnly)
	webserver.ApiDELETE("/backups/:id", deleteBackup, adminOnly)
}

func backupError(c echo.Context, err error) error {
	switch {
	case stderrors.Is(err, backup.ErrNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Backup not found", nil)
	case stderrors.Is(err, backup.ErrNotRestorable):
		return fail(c, http.StatusConflict, "NOT_RESTORABLE", err.Error(), nil)
	}
	return fail(c, http.StatusInternalServerError, "BACKUP_ERROR", "Backup operation failed", err.Error())
}

func listBackups(c echo.Context) error {
	rows, err := webserver.GetAppContext(c).Backups().List(c.Request().Context())
	if err != nil {
		return backupError(c, err)
	}
	return ok(c, rows)
}

func createBackup(c echo.Context) error {
	b, err := webserver.GetAppContext(c).RunBackup(backup.TriggerManual)
	if err != nil {
		return backupError(c, err)
	}
	logOperation(c, "backup.create", b.Filename)
	return ok(c, b)
}

func getBackup(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid backup ID", nil)
	}
	b, err := webserver.GetAppContext(c).Backups().Get(c.Request().Context(), id)
	if err != nil {
		return backupError(c, err)
	}
	return ok(c, b)
}

func downloadBackup(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid backup ID", nil)
	}
	mgr := webserver.GetAppContext(c).Backups()
	b, err := mgr.Get(c.Request().Context(), id)
	if err != nil {
		return backupError(c, err)
	}
	path := mgr.Path(b)
	if _, err := os.Stat(path); err != nil {
		return fail(c, http.StatusNotFound, "FILE_MISSING", "Backup file is missing", nil)
	}
	return c.Attachment(path, b.Filename)
}

func restoreBackup(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid backup ID", nil)
	}
	counts, err := webserver.GetAppContext(c).Backups().Restore(c.Request().Context(), id)
	if err != nil {
		return backupError(c, err)
	}
	logOperation(c, "backup.restore", strconv.FormatInt(id, 10))
	return ok(c, echo.Map{"id": strconv.FormatInt(id, 10), "restored": counts})
}

func deleteBackup(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid backup ID", nil)
	}
	if err := webserver.GetAppContext(c).Backups().Delete(c.Request().Context(), id); err != nil {
		return backupError(c, err)
	}
	logOperation(c, "backup.delete", strconv.FormatInt(id, 10))
	return ok(c, echo.Map{"id": strconv.FormatInt(id, 10)})
}
