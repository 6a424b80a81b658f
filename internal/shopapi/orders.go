package shopapi

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/celenkdiyari/storefront/internal/order"
	"github.com/celenkdiyari/storefront/internal/webserver"
)

func registerOrderRoutes() {
	webserver.ShopPOST("/orders", createOrder)
	webserver.ShopGET("/orders/:orderNumber", trackOrder)
}

// createOrder is the checkout submission; prices come from the catalog
func createOrder(c echo.Context) error {
	var req order.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request body", nil)
	}
	appCtx := webserver.GetAppContext(c)
	o, err := appCtx.Orders().Checkout(c.Request().Context(), &req)
	if ve, isValidation := order.IsValidation(err); isValidation {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Order validation failed", ve.Fields)
	}
	if err != nil {
		zap.L().Error("checkout failed", zap.String("namespace", "shop"), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "ORDER_FAILED", "Order could not be saved", nil)
	}

	if req.FromCart {
		if sid, err := sessionID(c); err == nil {
			if err := appCtx.Carts().Delete(sid); err != nil {
				zap.L().Warn("clear cart after checkout failed", zap.String("namespace", "shop"), zap.Error(err))
			}
		}
	}
	return ok(c, http.StatusCreated, o)
}

func trackOrder(c echo.Context) error {
	email := strings.TrimSpace(c.QueryParam("email"))
	if email == "" {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Email is required", map[string]string{"email": "required"})
	}
	o, err := webserver.GetAppContext(c).Orders().Track(c.Request().Context(), c.Param("orderNumber"), email)
	if stderrors.Is(err, order.ErrNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Order not found", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query order", nil)
	}
	return ok(c, http.StatusOK, o)
}
