package shopapi

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/celenkdiyari/storefront/internal/cart"
	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/webserver"
	"github.com/celenkdiyari/storefront/pkg/common"
)

type addItemPayload struct {
	ProductID int64  `json:"productId,string" validate:"required"`
	Variant   string `json:"variant"`
	Quantity  int    `json:"quantity" validate:"min=0,max=999"`
}

type quantityPayload struct {
	Quantity int `json:"quantity" validate:"max=999"`
}

// CartView what the storefront renders
type CartView struct {
	Items      []cart.Item `json:"items"`
	TotalPrice float64     `json:"totalPrice"`
	ItemCount  int         `json:"itemCount"`
}

func viewOf(ct *cart.Cart) CartView {
	items := ct.Items
	if items == nil {
		items = []cart.Item{}
	}
	return CartView{Items: items, TotalPrice: ct.TotalPrice(), ItemCount: ct.ItemCount()}
}

func registerCartRoutes() {
	webserver.ShopGET("/cart", getCart)
	webserver.ShopPOST("/cart/items", addCartItem)
	webserver.ShopPUT("/cart/items/:key", updateCartItem)
	webserver.ShopDELETE("/cart/items/:key", removeCartItem)
	webserver.ShopDELETE("/cart", clearCart)
}

func lineKeyParam(c echo.Context) string {
	key := c.Param("key")
	if unescaped, err := url.PathUnescape(key); err == nil {
		return unescaped
	}
	return key
}

// withCart loads the session cart, runs fn and saves the result when fn
// reports a change
func withCart(c echo.Context, fn func(ct *cart.Cart) (bool, error)) error {
	sid, err := sessionID(c)
	if err != nil {
		return sessionError(c, err)
	}
	store := webserver.GetAppContext(c).Carts()
	ct := store.Load(sid)
	changed, err := fn(ct)
	if err != nil {
		return err
	}
	if changed {
		if err := store.Save(sid, ct); err != nil {
			return fail(c, http.StatusInternalServerError, "CART_ERROR", "Failed to save cart", err.Error())
		}
	}
	if c.Response().Committed {
		return nil
	}
	return ok(c, http.StatusOK, viewOf(ct))
}

func getCart(c echo.Context) error {
	return withCart(c, func(*cart.Cart) (bool, error) { return false, nil })
}

// addCartItem prices the line from the catalog
func addCartItem(c echo.Context) error {
	var payload addItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request body", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", err.Error())
	}
	var p domain.Product
	if err := getDB(c).Where("id = ?", payload.ProductID).First(&p).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	if !p.InStock {
		return fail(c, http.StatusConflict, "OUT_OF_STOCK", "Product is out of stock", nil)
	}
	if payload.Variant != "" && len(p.Variants) > 0 && !common.InSlice(payload.Variant, p.Variants) {
		return fail(c, http.StatusBadRequest, "INVALID_VARIANT", "Unknown variant", p.Variants)
	}
	image := ""
	if len(p.Images) > 0 {
		image = p.Images[0]
	}
	return withCart(c, func(ct *cart.Cart) (bool, error) {
		ct.Add(cart.Item{
			ProductID: p.ID,
			Variant:   payload.Variant,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  payload.Quantity,
			Image:     image,
		})
		return true, nil
	})
}

func updateCartItem(c echo.Context) error {
	var payload quantityPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request body", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", err.Error())
	}
	key := lineKeyParam(c)
	return withCart(c, func(ct *cart.Cart) (bool, error) {
		if !ct.SetQuantity(key, payload.Quantity) {
			return false, fail(c, http.StatusNotFound, "NOT_FOUND", "Cart line not found", nil)
		}
		return true, nil
	})
}

func removeCartItem(c echo.Context) error {
	key := lineKeyParam(c)
	return withCart(c, func(ct *cart.Cart) (bool, error) {
		if !ct.Remove(key) {
			return false, fail(c, http.StatusNotFound, "NOT_FOUND", "Cart line not found", nil)
		}
		return true, nil
	})
}

func clearCart(c echo.Context) error {
	return withCart(c, func(ct *cart.Cart) (bool, error) {
		ct.Clear()
		return true, nil
	})
}
