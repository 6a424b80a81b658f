package shopapi

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/order"
	"github.com/celenkdiyari/storefront/internal/paytr"
	"github.com/celenkdiyari/storefront/internal/webserver"
	"github.com/celenkdiyari/storefront/pkg/common"
	"github.com/celenkdiyari/storefront/pkg/metrics"
)

// Callback results kept on the payment log
const (
	resultApplied   = "applied"
	resultDuplicate = "duplicate"
	resultForged    = "forged"
	resultInvalid   = "invalid"
	resultUnknown   = "unknown_order"
	resultError     = "error"
)

type tokenPayload struct {
	OrderNumber string `json:"orderNumber" validate:"required"`
	Email       string `json:"email"`
}

func registerPaymentRoutes() {
	webserver.ShopPOST("/payments/paytr/token", paytrToken)
	webserver.ShopPOST("/payments/paytr/callback", paytrCallback)
}

func paytrToken(c echo.Context) error {
	appCtx := webserver.GetAppContext(c)
	client := appCtx.Payments()
	if client == nil || !client.Enabled() {
		return fail(c, http.StatusServiceUnavailable, "PAYMENT_DISABLED", "Online payment is not available", nil)
	}
	var payload tokenPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request body", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed",
			map[string]string{"orderNumber": "required"})
	}

	ctx := c.Request().Context()
	var (
		o   *domain.Order
		err error
	)
	if payload.Email != "" {
		o, err = appCtx.Orders().Track(ctx, payload.OrderNumber, payload.Email)
	} else {
		o, err = appCtx.Orders().GetByNumber(ctx, payload.OrderNumber)
	}
	if stderrors.Is(err, order.ErrNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Order not found", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query order", nil)
	}
	if o.PaymentStatus == domain.PaymentStatusPaid {
		return fail(c, http.StatusConflict, "ALREADY_PAID", "Order is already paid", nil)
	}
	if o.Status == domain.OrderStatusCancelled {
		return fail(c, http.StatusConflict, "ORDER_CANCELLED", "Order is cancelled", nil)
	}

	res, err := client.RequestToken(ctx, o, c.RealIP())
	var gwErr *paytr.GatewayError
	switch {
	case stderrors.As(err, &gwErr):
		zap.L().Warn("paytr refused token request", zap.String("namespace", "paytr"),
			zap.String("order_number", o.OrderNumber), zap.String("reason", gwErr.Reason))
		return fail(c, http.StatusBadGateway, "GATEWAY_REJECTED", gwErr.Reason, nil)
	case err != nil:
		zap.L().Error("paytr token request failed", zap.String("namespace", "paytr"),
			zap.String("order_number", o.OrderNumber), zap.Error(err))
		return fail(c, http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "Payment gateway is unreachable", nil)
	}
	return ok(c, http.StatusOK, res)
}

func writePaymentLog(c echo.Context, cb *paytr.Callback, valid bool, result string) {
	total, _ := strconv.ParseInt(cb.TotalAmount, 10, 64)
	entry := domain.PaymentLog{
		ID:          common.UUIDint64(),
		OrderNumber: cb.MerchantOid,
		Provider:    paytr.Provider,
		Status:      cb.Status,
		TotalAmount: total,
		HashValid:   valid,
		RemoteAddr:  c.RealIP(),
		Result:      result,
		Payload:     cb.Payload(),
		CreatedAt:   time.Now(),
	}
	if err := getDB(c).Create(&entry).Error; err != nil {
		zap.L().Error("write payment log failed", zap.String("namespace", "paytr"), zap.Error(err))
	}
}

// paytrCallback answers in plain text as the gateway expects. Anything but
// "OK" makes PayTR retry the notification.
func paytrCallback(c echo.Context) error {
	appCtx := webserver.GetAppContext(c)
	client := appCtx.Payments()
	if client == nil || !client.Enabled() {
		return c.String(http.StatusServiceUnavailable, "PAYTR disabled")
	}
	if !client.AllowedSource(c.RealIP()) {
		zap.L().Warn("paytr callback from unexpected address", zap.String("namespace", "paytr"),
			zap.String("ip", c.RealIP()))
		return c.String(http.StatusForbidden, "forbidden")
	}
	var cb paytr.Callback
	if err := c.Bind(&cb); err != nil {
		return c.String(http.StatusBadRequest, "bad request")
	}

	if !client.Verify(&cb) {
		metrics.Incr(metrics.PaymentsForged, 1)
		writePaymentLog(c, &cb, false, resultForged)
		zap.L().Warn("paytr callback hash mismatch", zap.String("namespace", "paytr"),
			zap.String("merchant_oid", cb.MerchantOid), zap.String("ip", c.RealIP()))
		return c.String(http.StatusBadRequest, "PAYTR notification failed: bad hash")
	}

	out, err := cb.Outcome(time.Now())
	if err != nil {
		writePaymentLog(c, &cb, true, resultInvalid)
		return c.String(http.StatusBadRequest, err.Error())
	}

	_, applied, err := appCtx.Orders().ApplyPayment(c.Request().Context(), out)
	switch {
	case stderrors.Is(err, order.ErrNotFound):
		// nothing to retry for
		writePaymentLog(c, &cb, true, resultUnknown)
		zap.L().Warn("paytr callback for unknown order", zap.String("namespace", "paytr"),
			zap.String("merchant_oid", cb.MerchantOid))
		return c.String(http.StatusOK, "OK")
	case err != nil:
		writePaymentLog(c, &cb, true, resultError)
		zap.L().Error("apply payment failed", zap.String("namespace", "paytr"),
			zap.String("merchant_oid", cb.MerchantOid), zap.Error(err))
		return c.String(http.StatusInternalServerError, "error")
	case !applied:
		writePaymentLog(c, &cb, true, resultDuplicate)
	default:
		writePaymentLog(c, &cb, true, resultApplied)
		zap.L().Info("paytr payment applied", zap.String("namespace", "paytr"),
			zap.String("merchant_oid", cb.MerchantOid), zap.String("status", cb.Status))
	}
	return c.String(http.StatusOK, "OK")
}
