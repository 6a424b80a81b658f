package adminapi

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/order"
	"github.com/celenkdiyari/storefront/internal/webserver"
)

type orderStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed preparing shipped delivered cancelled"`
}

type paymentStatusPayload struct {
	PaymentStatus string `json:"paymentStatus" validate:"required,oneof=pending paid failed refunded"`
}

func registerOrderRoutes() {
	webserver.ApiGET("/orders", listOrders)
	webserver.ApiGET("/orders/export", exportOrders)
	webserver.ApiGET("/orders/:id", getOrder)
	webserver.ApiPUT("/orders/:id/status", updateOrderStatus)
	webserver.ApiPOST("/orders/:id/cancel", cancelOrder)
	webserver.ApiPUT("/orders/:id/payment-status", updateOrderPaymentStatus)
	webserver.ApiDELETE("/orders/:id", deleteOrder, webserver.RequireRole(domain.RoleAdmin))
}

var orderSortColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"total":       "total",
	"status":      "status",
	"orderNumber": "order_number",
}

// parseDateParam lenient date parsing. An end bound without a time part
// covers the whole day.
func parseDateParam(raw string, endOfDay bool) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseLocal(raw)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}

// orderQuery applies the list filters shared by list and export
func orderQuery(c echo.Context) (*gorm.DB, error) {
	db := GetDB(c).Model(&domain.Order{})
	if s := strings.TrimSpace(c.QueryParam("status")); s != "" {
		db = db.Where("status = ?", s)
	}
	if s := strings.TrimSpace(c.QueryParam("paymentStatus")); s != "" {
		db = db.Where("payment_status = ?", s)
	}
	if s := strings.TrimSpace(c.QueryParam("paymentMethod")); s != "" {
		db = db.Where("payment_method = ?", s)
	}
	db = likeFilter(db, strings.TrimSpace(c.QueryParam("q")), "order_number", "customer_name", "customer_email")
	if raw := c.QueryParam("from"); raw != "" {
		from, valid := parseDateParam(raw, false)
		if !valid {
			return nil, stderrors.New("invalid from date")
		}
		db = db.Where("created_at >= ?", from)
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, valid := parseDateParam(raw, true)
		if !valid {
			return nil, stderrors.New("invalid to date")
		}
		db = db.Where("created_at <= ?", to)
	}
	return db, nil
}

func listOrders(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db, err := orderQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILTER", err.Error(), nil)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}
	var rows []domain.Order
	err = db.Order(sortOrder(c, orderSortColumns, "created_at")).
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

// orderError maps order service errors to responses
func orderError(c echo.Context, err error) error {
	var te *order.TransitionError
	switch {
	case stderrors.Is(err, order.ErrNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Order not found", nil)
	case stderrors.As(err, &te):
		return fail(c, http.StatusConflict, "INVALID_TRANSITION", te.Error(),
			echo.Map{"from": te.From, "to": te.To})
	}
	if ve, isValidation := order.IsValidation(err); isValidation {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", ve.Fields)
	}
	return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Order operation failed", err.Error())
}

func getOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	o, err := webserver.GetAppContext(c).Orders().Get(c.Request().Context(), id)
	if err != nil {
		return orderError(c, err)
	}
	return ok(c, o)
}

func updateOrderStatus(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var payload orderStatusPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	o, err := webserver.GetAppContext(c).Orders().UpdateStatus(c.Request().Context(), id, domain.OrderStatus(payload.Status))
	if err != nil {
		return orderError(c, err)
	}
	logOperation(c, "order.status", o.OrderNumber+" -> "+payload.Status)
	return ok(c, o)
}

func cancelOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	o, err := webserver.GetAppContext(c).Orders().Cancel(c.Request().Context(), id)
	if err != nil {
		return orderError(c, err)
	}
	logOperation(c, "order.cancel", o.OrderNumber)
	return ok(c, o)
}

func updateOrderPaymentStatus(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var payload paymentStatusPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	o, err := webserver.GetAppContext(c).Orders().UpdatePaymentStatus(c.Request().Context(), id,
		domain.PaymentStatus(payload.PaymentStatus))
	if err != nil {
		return orderError(c, err)
	}
	logOperation(c, "order.payment", o.OrderNumber+" -> "+payload.PaymentStatus)
	return ok(c, o)
}

func deleteOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	if err := webserver.GetAppContext(c).Orders().Delete(c.Request().Context(), id); err != nil {
		return orderError(c, err)
	}
	logOperation(c, "order.delete", strconv.FormatInt(id, 10))
	return ok(c, echo.Map{"id": strconv.FormatInt(id, 10)})
}
