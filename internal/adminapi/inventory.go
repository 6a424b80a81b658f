package adminapi

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/events"
	"github.com/celenkdiyari/storefront/internal/webserver"
	"github.com/celenkdiyari/storefront/pkg/common"
)

var errInsufficientStock = stderrors.New("insufficient stock")

type inventoryPayload struct {
	Name      string `json:"name" validate:"required,max=200"`
	Sku       string `json:"sku" validate:"max=64"`
	ProductID int64  `json:"productId,string"`
	Quantity  int    `json:"quantity" validate:"min=0"`
	MinStock  int    `json:"minStock" validate:"min=0"`
	Unit      string `json:"unit" validate:"max=20"`
	Location  string `json:"location" validate:"max=100"`
}

type movementPayload struct {
	Type     string `json:"type" validate:"required,oneof=in out adjust"`
	Quantity int    `json:"quantity" validate:"min=0"`
	Reason   string `json:"reason" validate:"max=500"`
}

func registerInventoryRoutes() {
	webserver.ApiGET("/inventory", listInventory)
	webserver.ApiGET("/inventory/low-stock", listLowStock)
	webserver.ApiGET("/inventory/:id", getInventoryItem)
	webserver.ApiPOST("/inventory", createInventoryItem)
	webserver.ApiPUT("/inventory/:id", updateInventoryItem)
	webserver.ApiDELETE("/inventory/:id", deleteInventoryItem)
	webserver.ApiGET("/inventory/:id/movements", listStockMovements)
	webserver.ApiPOST("/inventory/:id/movements", createStockMovement)
}

var inventorySortColumns = map[string]string{
	"name":      "name",
	"sku":       "sku",
	"quantity":  "quantity",
	"minStock":  "min_stock",
	"updatedAt": "updated_at",
}

func listInventory(c echo.Context) error {
	page, pageSize := parsePagination(c)
	base := GetDB(c).Model(&domain.InventoryItem{})
	base = likeFilter(base, strings.TrimSpace(c.QueryParam("q")), "name", "sku", "location")
	if low, err := strconv.ParseBool(c.QueryParam("low")); err == nil && low {
		base = base.Where("quantity <= min_stock")
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query inventory", err.Error())
	}
	var items []domain.InventoryItem
	err := base.Order(sortOrder(c, inventorySortColumns, "updated_at")).
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&items).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query inventory", err.Error())
	}
	return paged(c, items, total, page, pageSize)
}

func listLowStock(c echo.Context) error {
	var items []domain.InventoryItem
	err := GetDB(c).Where("quantity <= min_stock").Order("quantity ASC, name ASC").Find(&items).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query inventory", err.Error())
	}
	return ok(c, items)
}

func findInventoryItem(c echo.Context) (*domain.InventoryItem, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid inventory item ID", nil)
	}
	var item domain.InventoryItem
	if err := GetDB(c).Where("id = ?", id).First(&item).Error; isNotFound(err) {
		return nil, fail(c, http.StatusNotFound, "NOT_FOUND", "Inventory item not found", nil)
	} else if err != nil {
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query inventory item", err.Error())
	}
	return &item, nil
}

func getInventoryItem(c echo.Context) error {
	item, err := findInventoryItem(c)
	if item == nil {
		return err
	}
	return ok(c, item)
}

func createInventoryItem(c echo.Context) error {
	var payload inventoryPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	now := time.Now()
	item := domain.InventoryItem{
		ID:        common.UUIDint64(),
		Name:      strings.TrimSpace(payload.Name),
		Sku:       strings.TrimSpace(payload.Sku),
		ProductID: payload.ProductID,
		Quantity:  payload.Quantity,
		MinStock:  payload.MinStock,
		Unit:      common.IfEmptyStr(payload.Unit, "adet"),
		Location:  payload.Location,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := GetDB(c).Create(&item).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create inventory item", err.Error())
	}
	logOperation(c, "inventory.create", item.Name)
	return ok(c, item)
}

// updateInventoryItem edits the descriptive fields. Quantity only changes
// through movements so every change leaves a trail.
func updateInventoryItem(c echo.Context) error {
	item, err := findInventoryItem(c)
	if item == nil {
		return err
	}
	var payload inventoryPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	item.Name = strings.TrimSpace(payload.Name)
	item.Sku = strings.TrimSpace(payload.Sku)
	item.ProductID = payload.ProductID
	item.MinStock = payload.MinStock
	item.Unit = common.IfEmptyStr(payload.Unit, item.Unit)
	item.Location = payload.Location
	item.UpdatedAt = time.Now()
	err = GetDB(c).Model(item).Select("name", "sku", "product_id", "min_stock", "unit", "location", "updated_at").
		Updates(item).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update inventory item", err.Error())
	}
	logOperation(c, "inventory.update", item.Name)
	return ok(c, item)
}

func deleteInventoryItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid inventory item ID", nil)
	}
	var affected int64
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&domain.InventoryItem{})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return tx.Where("item_id = ?", id).Delete(&domain.StockMovement{}).Error
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete inventory item", err.Error())
	}
	if affected == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Inventory item not found", nil)
	}
	logOperation(c, "inventory.delete", strconv.FormatInt(id, 10))
	return ok(c, echo.Map{"id": strconv.FormatInt(id, 10)})
}

func listStockMovements(c echo.Context) error {
	item, err := findInventoryItem(c)
	if item == nil {
		return err
	}
	page, pageSize := parsePagination(c)
	base := GetDB(c).Model(&domain.StockMovement{}).Where("item_id = ?", item.ID)
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query movements", err.Error())
	}
	var rows []domain.StockMovement
	if err := base.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query movements", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

// applyMovement new quantity after a movement
func applyMovement(current int, kind string, qty int) (int, error) {
	switch kind {
	case domain.MovementIn:
		return current + qty, nil
	case domain.MovementOut:
		if qty > current {
			return current, errInsufficientStock
		}
		return current - qty, nil
	default:
		return qty, nil
	}
}

func createStockMovement(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid inventory item ID", nil)
	}
	var payload movementPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	if payload.Type != domain.MovementAdjust && payload.Quantity == 0 {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed",
			map[string]string{"quantity": "min=1"})
	}
	operator := ""
	if op := webserver.GetOperator(c); op != nil {
		operator = op.Username
	}

	var item domain.InventoryItem
	var mv domain.StockMovement
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.Where("id = ?", id).First(&item).Error; err != nil {
			return err
		}
		after, err := applyMovement(item.Quantity, payload.Type, payload.Quantity)
		if err != nil {
			return err
		}
		now := time.Now()
		mv = domain.StockMovement{
			ID:        common.UUIDint64(),
			ItemID:    item.ID,
			Type:      payload.Type,
			Quantity:  payload.Quantity,
			Before:    item.Quantity,
			After:     after,
			Reason:    strings.TrimSpace(payload.Reason),
			Operator:  operator,
			CreatedAt: now,
		}
		if err := tx.Create(&mv).Error; err != nil {
			return err
		}
		item.Quantity = after
		item.UpdatedAt = now
		return tx.Model(&item).Updates(map[string]interface{}{"quantity": after, "updated_at": now}).Error
	})
	switch {
	case isNotFound(err):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Inventory item not found", nil)
	case stderrors.Is(err, errInsufficientStock):
		return fail(c, http.StatusConflict, "INSUFFICIENT_STOCK", "Not enough stock for this movement",
			echo.Map{"available": item.Quantity, "requested": payload.Quantity})
	case err != nil:
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to record movement", err.Error())
	}

	if item.IsLow() && mv.Before > item.MinStock {
		webserver.GetAppContext(c).Events().Publish(events.TopicStockLow, &item)
		zap.L().Info("inventory item is low on stock", zap.String("namespace", "inventory"),
			zap.String("item", item.Name), zap.Int("quantity", item.Quantity))
	}
	logOperation(c, "inventory.movement", item.Name+" "+payload.Type+" "+strconv.Itoa(payload.Quantity))
	return ok(c, echo.Map{"item": item, "movement": mv})
}
