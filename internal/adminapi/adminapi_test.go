package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
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
	"github.com/celenkdiyari/storefront/internal/order"
	"github.com/celenkdiyari/storefront/internal/webserver"
	"github.com/celenkdiyari/storefront/pkg/common"
)

const adminPassword = "bahar-2024"

type testEnv struct {
	app   *app.Application
	db    *gorm.DB
	token string
}

func setupAPI(t *testing.T) *testEnv {
	cfg := config.DefaultAppConfig()
	cfg.System.Workdir = t.TempDir()
	cfg.Web.Secret = "test-secret"
	cfg.Web.AdminPassword = adminPassword
	cfg.Backup.Keep = 0
	cfg.InitDirs()
	db, err := gorm.Open(sqlite.Open(filepath.Join(cfg.System.Workdir, "admin.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	a := app.NewApplication(cfg)
	require.NoError(t, a.Setup(db))
	t.Cleanup(a.Release)

	webserver.Init(a)
	Init()

	env := &testEnv{app: a, db: db}
	env.token = env.login(t, "admin", adminPassword)
	return env
}

func (env *testEnv) login(t *testing.T, username, password string) string {
	rec := env.call(t, http.MethodPost, "/login", "", echo.Map{"username": username, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data.Token
}

func (env *testEnv) call(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, "/api/v1/admin"+path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	webserver.Handler().ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) do(t *testing.T, method, path string, payload interface{}) *httptest.ResponseRecorder {
	return env.call(t, method, path, env.token, payload)
}

// tokenAs logs in as an operator with the given role, creating it on first use
func (env *testEnv) tokenAs(t *testing.T, role string) string {
	user := domain.SysUser{Username: "t" + role, Role: role, Status: common.ENABLED}
	require.NoError(t, env.db.Where("username = ?", user.Username).
		Attrs(domain.SysUser{ID: common.UUIDint64()}).FirstOrCreate(&user).Error)
	tok, _, err := webserver.IssueToken(context.Background(), &user)
	require.NoError(t, err)
	return tok
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	body := decode(t, rec)
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func data(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	d, _ := decode(t, rec)["data"].(map[string]interface{})
	return d
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func seedProduct(t *testing.T, db *gorm.DB, id int64, price float64) domain.Product {
	p := domain.Product{ID: id, Name: "Ürün", Description: "d", Price: price, Category: "Buket", InStock: true}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func placeOrder(t *testing.T, env *testEnv, productID int64, qty int) *domain.Order {
	o, err := env.app.Orders().Checkout(context.Background(), &order.CheckoutRequest{
		Customer: order.CustomerRequest{
			Name: "Ayşe Yılmaz", Email: "ayse@example.com", Phone: "05551112233", Address: "Kadıköy",
		},
		Items:         []order.LineRequest{{ProductID: productID, Quantity: qty}},
		PaymentMethod: domain.PaymentMethodCash,
	})
	require.NoError(t, err)
	return o
}

func TestLogin(t *testing.T) {
	env := setupAPI(t)
	assert.NotEmpty(t, env.token)

	rec := env.call(t, http.MethodPost, "/login", "", echo.Map{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", data(t, rec)["username"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestLoginLockout(t *testing.T) {
	env := setupAPI(t)
	for i := 0; i < 5; i++ {
		rec := env.call(t, http.MethodPost, "/login", "", echo.Map{"username": "ghost", "password": "x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.call(t, http.MethodPost, "/login", "", echo.Map{"username": "ghost", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "ACCOUNT_LOCKED", errorCode(t, rec))
}

func TestProductValidation(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPost, "/products", echo.Map{"name": "Gül Buketi", "price": 250, "category": "Buket"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/products", echo.Map{
		"name": "Gül Buketi", "description": "Kırmızı güller", "price": 250, "category": "Uzay Gemisi",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CATEGORY", errorCode(t, rec))

	var count int64
	env.db.Model(&domain.Product{}).Count(&count)
	assert.Zero(t, count)

	rec = env.do(t, http.MethodPost, "/products", echo.Map{
		"name": "Gül Buketi", "description": "Kırmızı güller", "price": 250, "category": "Buket",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := data(t, rec)
	assert.Equal(t, true, p["inStock"])
	assert.Equal(t, "gul-buketi", p["seo"].(map[string]interface{})["slug"])

	rec = env.do(t, http.MethodPost, "/products/"+p["id"].(string)+"/toggle-stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, data(t, rec)["inStock"])

	rec = env.do(t, http.MethodGet, "/products?q=GÜL", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])
}

func TestOrderStatusEndpoints(t *testing.T) {
	env := setupAPI(t)
	seedProduct(t, env.db, 501, 120)
	o := placeOrder(t, env, 501, 2)
	path := "/orders/" + idString(o.ID)

	rec := env.do(t, http.MethodPut, path+"/status", echo.Map{"status": "shipped"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "shipped", data(t, rec)["status"])

	rec = env.do(t, http.MethodPut, path+"/status", echo.Map{"status": "shipped"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, path+"/status", echo.Map{"status": "confirmed"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, rec))

	rec = env.do(t, http.MethodPut, path+"/status", echo.Map{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", data(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/orders/12345", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.call(t, http.MethodDelete, path, env.tokenAs(t, domain.RoleEditor), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListAndExportOrders(t *testing.T) {
	env := setupAPI(t)
	seedProduct(t, env.db, 601, 80)
	o := placeOrder(t, env, 601, 1)

	rec := env.do(t, http.MethodGet, "/orders?q=ayse&status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])

	rec = env.do(t, http.MethodGet, "/orders?from=2001-01-01&to=2001-01-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["total"])

	rec = env.do(t, http.MethodGet, "/orders?from=not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/orders/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	assert.Contains(t, rec.Body.String(), "Sipariş No")
	assert.Contains(t, rec.Body.String(), o.OrderNumber)

	rec = env.do(t, http.MethodGet, "/orders/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = env.do(t, http.MethodGet, "/orders/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "A", columnName(0))
	assert.Equal(t, "Z", columnName(25))
	assert.Equal(t, "AA", columnName(26))
	assert.Equal(t, "AZ", columnName(51))
	assert.Equal(t, "BA", columnName(52))
}

func TestCustomerUniqueEmail(t *testing.T) {
	env := setupAPI(t)
	payload := echo.Map{"name": "Mehmet", "email": "Mehmet@Example.com", "phone": "0555"}
	rec := env.do(t, http.MethodPost, "/customers", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "mehmet@example.com", data(t, rec)["email"])

	rec = env.do(t, http.MethodPost, "/customers", payload)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_EMAIL", errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/customers?q=mehm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])
}

func TestUserGuards(t *testing.T) {
	env := setupAPI(t)

	rec := env.call(t, http.MethodGet, "/users", env.tokenAs(t, domain.RoleEditor), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var admin domain.SysUser
	require.NoError(t, env.db.Where("username = ?", "admin").First(&admin).Error)

	rec = env.do(t, http.MethodDelete, "/users/"+idString(admin.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SELF_DELETE", errorCode(t, rec))

	rec = env.do(t, http.MethodPut, "/users/"+idString(admin.ID), echo.Map{"username": "admin", "role": "editor"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "LAST_ADMIN", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/users", echo.Map{"username": "editor1", "password": "123456", "role": "editor"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = env.do(t, http.MethodPost, "/users", echo.Map{"username": "editor1", "password": "123456", "role": "editor"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/users", echo.Map{"username": "root2", "password": "123456", "role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangedAccountAppliesToIssuedTokens(t *testing.T) {
	env := setupAPI(t)
	rec := env.do(t, http.MethodPost, "/users", echo.Map{"username": "manager1", "password": "123456", "role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	path := "/users/" + data(t, rec)["id"].(string)
	tok := env.login(t, "manager1", "123456")
	assert.Equal(t, http.StatusOK, env.call(t, http.MethodGet, "/users", tok, nil).Code)

	rec = env.do(t, http.MethodPut, path, echo.Map{"username": "manager1", "role": "viewer", "status": "enabled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusForbidden, env.call(t, http.MethodGet, "/users", tok, nil).Code)
	rec = env.call(t, http.MethodPost, "/products", tok, echo.Map{
		"name": "Gül Buketi", "description": "d", "price": 250, "category": "Buket",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, path, echo.Map{"username": "manager1", "role": "admin", "status": "disabled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, env.call(t, http.MethodGet, "/products", tok, nil).Code)

	rec = env.do(t, http.MethodPut, path, echo.Map{"username": "manager1", "role": "admin", "status": "enabled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusOK, env.call(t, http.MethodGet, "/users", tok, nil).Code)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.call(t, http.MethodPost, "/settings/reset", tok, nil).Code)
}

func TestSecuritySettingsApply(t *testing.T) {
	env := setupAPI(t)
	rec := env.do(t, http.MethodPut, "/settings", echo.Map{
		"security": echo.Map{"requireStrongPasswords": true, "sessionTimeoutMinutes": 60},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/users", echo.Map{"username": "editor2", "password": "123456", "role": "editor"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "WEAK_PASSWORD", errorCode(t, rec))
	rec = env.do(t, http.MethodPost, "/users", echo.Map{"username": "editor2", "password": "Lale2024x", "role": "editor"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/me/password", echo.Map{"oldPassword": adminPassword, "newPassword": "abcdef"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "WEAK_PASSWORD", errorCode(t, rec))

	before := time.Now()
	rec = env.call(t, http.MethodPost, "/login", "", echo.Map{"username": "editor2", "password": "Lale2024x"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	exp, err := time.Parse(time.RFC3339Nano, data(t, rec)["expiresAt"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(time.Hour), exp, 5*time.Second)
}

func TestLoginGuardForgetsStaleUsernames(t *testing.T) {
	g := newLoginGuard()
	start := time.Now()
	for i := 0; i < 100; i++ {
		g.fail("ghost"+strconv.Itoa(i), 5, start)
	}
	assert.Equal(t, 100, g.tracked())

	g.fail("locked", 1, start.Add(10*time.Minute))
	later := start.Add(loginLockout + 11*time.Minute)
	g.fail("fresh", 5, later)
	assert.Equal(t, 1, g.tracked())
	assert.False(t, g.locked("locked", later))

	g.fail("locked", 1, later)
	assert.True(t, g.locked("locked", later.Add(time.Minute)))
	assert.Equal(t, 2, g.tracked())
}

func TestSearchFoldsTurkishCase(t *testing.T) {
	env := setupAPI(t)
	seedProduct(t, env.db, 1, 100)
	seedProduct(t, env.db, 2, 100)
	require.NoError(t, env.db.Model(&domain.Product{}).Where("id = ?", 1).Update("name", "ışıltılı buket").Error)
	require.NoError(t, env.db.Model(&domain.Product{}).Where("id = ?", 2).Update("name", "Gün ışığı Buketi").Error)

	rec := env.do(t, http.MethodGet, "/products?q="+url.QueryEscape("IŞILTI"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])

	rec = env.do(t, http.MethodGet, "/products?q="+url.QueryEscape("IŞIĞI"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])
}

func TestViewerIsReadOnly(t *testing.T) {
	env := setupAPI(t)
	viewer := env.tokenAs(t, domain.RoleViewer)
	rec := env.call(t, http.MethodGet, "/products", viewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.call(t, http.MethodPost, "/announcements", viewer, echo.Map{"title": "x", "content": "y"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInventoryMovements(t *testing.T) {
	env := setupAPI(t)
	rec := env.do(t, http.MethodPost, "/inventory", echo.Map{"name": "Kurdele", "quantity": 10, "minStock": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := data(t, rec)["id"].(string)

	rec = env.do(t, http.MethodPost, "/inventory/"+id+"/movements", echo.Map{"type": "out", "quantity": 11})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/inventory/"+id+"/movements", echo.Map{"type": "out", "quantity": 8, "reason": "sipariş"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := data(t, rec)
	assert.EqualValues(t, 2, d["item"].(map[string]interface{})["quantity"])
	mv := d["movement"].(map[string]interface{})
	assert.EqualValues(t, 10, mv["before"])
	assert.EqualValues(t, 2, mv["after"])
	assert.Equal(t, "admin", mv["operator"])

	rec = env.do(t, http.MethodGet, "/inventory/low-stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 1)

	rec = env.do(t, http.MethodPost, "/inventory/"+id+"/movements", echo.Map{"type": "in", "quantity": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/inventory/"+id+"/movements", echo.Map{"type": "adjust", "quantity": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, data(t, rec)["item"].(map[string]interface{})["quantity"])

	rec = env.do(t, http.MethodGet, "/inventory/"+id+"/movements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec)["total"])
}

func TestApplyMovement(t *testing.T) {
	n, err := applyMovement(5, domain.MovementIn, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	_, err = applyMovement(5, domain.MovementOut, 6)
	assert.ErrorIs(t, err, errInsufficientStock)
	n, err = applyMovement(5, domain.MovementAdjust, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSettingsPatchAndReset(t *testing.T) {
	env := setupAPI(t)
	rec := env.do(t, http.MethodPut, "/settings", echo.Map{
		"contact":  echo.Map{"phone": "0212 000 00 00"},
		"business": echo.Map{"shippingFee": 45},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := data(t, rec)
	assert.Equal(t, "0212 000 00 00", d["contact"].(map[string]interface{})["phone"])
	business := d["business"].(map[string]interface{})
	assert.EqualValues(t, 45, business["shippingFee"])
	assert.Equal(t, "Çelenk Diyarı", business["name"])

	rec = env.do(t, http.MethodPut, "/settings", echo.Map{"contact": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.call(t, http.MethodPost, "/settings/reset", env.tokenAs(t, domain.RoleEditor), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodPost, "/settings/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, data(t, rec)["business"].(map[string]interface{})["shippingFee"])
}

func TestAnnouncementWindowValidation(t *testing.T) {
	env := setupAPI(t)
	rec := env.do(t, http.MethodPost, "/announcements", echo.Map{
		"title": "Anneler Günü", "content": "İndirim", "type": "promo",
		"startsAt": "2026-05-10T00:00:00Z", "endsAt": "2026-05-01T00:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/announcements", echo.Map{"title": "Anneler Günü", "content": "İndirim", "type": "promo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, data(t, rec)["active"])
}

func TestAnalyticsOverview(t *testing.T) {
	env := setupAPI(t)
	seedProduct(t, env.db, 701, 100)
	placeOrder(t, env, 701, 1)
	placeOrder(t, env, 701, 3)
	cancelled := placeOrder(t, env, 701, 5)
	_, err := env.app.Orders().Cancel(context.Background(), cancelled.ID)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/analytics/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := data(t, rec)
	assert.EqualValues(t, 400, d["revenue"])
	assert.EqualValues(t, 0, d["paidRevenue"])
	assert.EqualValues(t, 3, d["orderCount"])
	assert.EqualValues(t, 200, d["averageOrderValue"])
	assert.EqualValues(t, 1, d["ordersByStatus"].(map[string]interface{})["cancelled"])
	assert.EqualValues(t, 1, d["customerCount"])

	rec = env.do(t, http.MethodGet, "/analytics/top-products?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	top := decode(t, rec)["data"].([]interface{})
	require.Len(t, top, 1)
	assert.EqualValues(t, 4, top[0].(map[string]interface{})["quantity"])

	rec = env.do(t, http.MethodGet, "/analytics/revenue?months=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 3)

	rec = env.do(t, http.MethodGet, "/analytics/metrics?name=secret", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackupEndpoints(t *testing.T) {
	env := setupAPI(t)
	seedProduct(t, env.db, 801, 60)

	rec := env.call(t, http.MethodPost, "/backups", env.tokenAs(t, domain.RoleEditor), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/backups", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := data(t, rec)
	assert.Equal(t, "success", b["status"])
	id := b["id"].(string)

	rec = env.do(t, http.MethodGet, "/backups/"+id+"/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")

	require.NoError(t, env.db.Where("id = ?", 801).Delete(&domain.Product{}).Error)
	rec = env.do(t, http.MethodPost, "/backups/"+id+"/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var count int64
	env.db.Model(&domain.Product{}).Count(&count)
	assert.EqualValues(t, 1, count)

	rec = env.do(t, http.MethodDelete, "/backups/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/backups/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDatabaseInfoAndOprLogs(t *testing.T) {
	env := setupAPI(t)
	rec := env.do(t, http.MethodGet, "/system/database", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := data(t, rec)
	assert.Equal(t, "sqlite", d["databaseType"])
	assert.NotEmpty(t, d["tables"])

	env.do(t, http.MethodPost, "/announcements", echo.Map{"title": "Duyuru", "content": "x"})
	rec = env.do(t, http.MethodGet, "/system/oplogs?action=announcement", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])
}
