package webserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/celenkdiyari/storefront/config"
	"github.com/celenkdiyari/storefront/internal/app"
	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/pkg/common"
)

func setupServer(t *testing.T) *gorm.DB {
	cfg := config.DefaultAppConfig()
	cfg.System.Workdir = t.TempDir()
	cfg.Web.Secret = "test-secret"
	db, err := gorm.Open(sqlite.Open(filepath.Join(cfg.System.Workdir, "web.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	a := app.NewApplication(cfg)
	require.NoError(t, a.Setup(db))
	t.Cleanup(a.Release)

	Init(a)
	ApiGET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user": GetOperator(c).Username})
	})
	ApiPOST("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	ApiDELETE("/admin-only", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireRole(domain.RoleAdmin))
	return db
}

func do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)
	return rec
}

func createOperator(t *testing.T, db *gorm.DB, role string) *domain.SysUser {
	user := &domain.SysUser{ID: common.UUIDint64(), Username: "u-" + role, Role: role, Status: common.ENABLED}
	require.NoError(t, db.Create(user).Error)
	return user
}

func tokenFor(t *testing.T, db *gorm.DB, role string) string {
	tok, _, err := IssueToken(context.Background(), createOperator(t, db, role))
	require.NoError(t, err)
	return tok
}

func TestHealth(t *testing.T) {
	setupServer(t)
	rec := do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAdminRequiresToken(t *testing.T) {
	db := setupServer(t)
	rec := do(t, http.MethodGet, "/api/v1/admin/ping", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)

	rec = do(t, http.MethodGet, "/api/v1/admin/ping", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, http.MethodGet, "/api/v1/admin/ping", tokenFor(t, db, domain.RoleEditor))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "u-editor")
}

func TestRoleGuards(t *testing.T) {
	db := setupServer(t)
	viewer := tokenFor(t, db, domain.RoleViewer)
	editor := tokenFor(t, db, domain.RoleEditor)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, "/api/v1/admin/ping", viewer).Code)
	assert.Equal(t, http.StatusForbidden, do(t, http.MethodPost, "/api/v1/admin/ping", viewer).Code)
	assert.Equal(t, http.StatusNoContent, do(t, http.MethodPost, "/api/v1/admin/ping", editor).Code)

	assert.Equal(t, http.StatusForbidden, do(t, http.MethodDelete, "/api/v1/admin/admin-only", editor).Code)
	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, "/api/v1/admin/admin-only", tokenFor(t, db, domain.RoleAdmin)).Code)
}

func TestTokenFollowsStoredAccount(t *testing.T) {
	db := setupServer(t)
	user := createOperator(t, db, domain.RoleAdmin)
	tok, _, err := IssueToken(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, "/api/v1/admin/admin-only", tok).Code)

	require.NoError(t, db.Model(user).Update("role", domain.RoleViewer).Error)
	assert.Equal(t, http.StatusForbidden, do(t, http.MethodDelete, "/api/v1/admin/admin-only", tok).Code)
	assert.Equal(t, http.StatusForbidden, do(t, http.MethodPost, "/api/v1/admin/ping", tok).Code)

	require.NoError(t, db.Model(user).Update("status", common.DISABLED).Error)
	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, "/api/v1/admin/ping", tok).Code)

	require.NoError(t, db.Delete(user).Error)
	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, "/api/v1/admin/ping", tok).Code)
}

func TestTokenLifetimeFromSettings(t *testing.T) {
	db := setupServer(t)
	_, err := server.appCtx.Settings().Update(context.Background(), map[string]interface{}{
		"security": map[string]interface{}{"sessionTimeoutMinutes": 30},
	})
	require.NoError(t, err)

	before := time.Now()
	_, exp, err := IssueToken(context.Background(), createOperator(t, db, domain.RoleEditor))
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(30*time.Minute), exp, 5*time.Second)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	setupServer(t)
	rec := do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"error"`))
}
