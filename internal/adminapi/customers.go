package adminapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/webserver"
	"github.com/celenkdiyari/storefront/pkg/common"
)

func registerCustomerRoutes() {
	webserver.ApiGET("/customers", listCustomers)
	webserver.ApiGET("/customers/:id", getCustomer)
	webserver.ApiGET("/customers/:id/orders", listCustomerOrders)
	webserver.ApiPOST("/customers", createCustomer)
	webserver.ApiPUT("/customers/:id", updateCustomer)
	webserver.ApiDELETE("/customers/:id", deleteCustomer)
}

type customerPayload struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Address  string `json:"address"`
	City     string `json:"city" validate:"max=64"`
	District string `json:"district" validate:"max=64"`
	Notes    string `json:"notes"`
}

var customerSortColumns = map[string]string{
	"name":        "name",
	"email":       "email",
	"orderCount":  "order_count",
	"totalSpent":  "total_spent",
	"lastOrderAt": "last_order_at",
	"createdAt":   "created_at",
}

func listCustomers(c echo.Context) error {
	page, pageSize := parsePagination(c)

	base := GetDB(c).Model(&domain.Customer{})
	base = likeFilter(base, strings.TrimSpace(c.QueryParam("q")), "name", "email", "phone")
	if city := strings.TrimSpace(c.QueryParam("city")); city != "" {
		base = base.Where("city = ?", city)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query customers", err.Error())
	}

	var customers []domain.Customer
	err := base.Order(sortOrder(c, customerSortColumns, "created_at")).
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&customers).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query customers", err.Error())
	}
	return paged(c, customers, total, page, pageSize)
}

func findCustomer(c echo.Context) (*domain.Customer, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid customer ID", nil)
	}
	var cust domain.Customer
	if err := GetDB(c).Where("id = ?", id).First(&cust).Error; isNotFound(err) {
		return nil, fail(c, http.StatusNotFound, "NOT_FOUND", "Customer not found", nil)
	} else if err != nil {
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query customer", err.Error())
	}
	return &cust, nil
}

func getCustomer(c echo.Context) error {
	cust, err := findCustomer(c)
	if cust == nil {
		return err
	}
	return ok(c, cust)
}

func listCustomerOrders(c echo.Context) error {
	cust, err := findCustomer(c)
	if cust == nil {
		return err
	}
	page, pageSize := parsePagination(c)
	base := GetDB(c).Model(&domain.Order{}).Where("customer_email = ?", cust.Email)
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}
	var orders []domain.Order
	if err := base.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&orders).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}
	return paged(c, orders, total, page, pageSize)
}

// emailTaken another customer already owns the address
func emailTaken(c echo.Context, email string, exceptID int64) (bool, error) {
	var count int64
	err := GetDB(c).Model(&domain.Customer{}).Where("email = ? AND id <> ?", email, exceptID).Count(&count).Error
	return count > 0, err
}

func readCustomerPayload(c echo.Context) (*customerPayload, bool, error) {
	var payload customerPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return nil, false, err
	}
	payload.Name = strings.TrimSpace(payload.Name)
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	return &payload, true, nil
}

func createCustomer(c echo.Context) error {
	payload, valid, err := readCustomerPayload(c)
	if !valid {
		return err
	}
	if taken, err := emailTaken(c, payload.Email, 0); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query customer", err.Error())
	} else if taken {
		return fail(c, http.StatusConflict, "DUPLICATE_EMAIL", "Customer with this email already exists", nil)
	}

	now := time.Now()
	cust := domain.Customer{
		ID:        common.UUIDint64(),
		Name:      payload.Name,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Address:   payload.Address,
		City:      payload.City,
		District:  payload.District,
		Notes:     payload.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := GetDB(c).Create(&cust).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create customer", err.Error())
	}
	logOperation(c, "customer.create", cust.Email)
	return ok(c, cust)
}

func updateCustomer(c echo.Context) error {
	cust, err := findCustomer(c)
	if cust == nil {
		return err
	}
	payload, valid, err := readCustomerPayload(c)
	if !valid {
		return err
	}
	if taken, err := emailTaken(c, payload.Email, cust.ID); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query customer", err.Error())
	} else if taken {
		return fail(c, http.StatusConflict, "DUPLICATE_EMAIL", "Another customer with this email already exists", nil)
	}

	cust.Name = payload.Name
	cust.Email = payload.Email
	cust.Phone = payload.Phone
	cust.Address = payload.Address
	cust.City = payload.City
	cust.District = payload.District
	cust.Notes = payload.Notes
	cust.UpdatedAt = time.Now()
	if err := GetDB(c).Save(cust).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update customer", err.Error())
	}
	logOperation(c, "customer.update", cust.Email)
	return ok(c, cust)
}

func deleteCustomer(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid customer ID", nil)
	}
	res := GetDB(c).Where("id = ?", id).Delete(&domain.Customer{})
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete customer", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Customer not found", nil)
	}
	logOperation(c, "customer.delete", strconv.FormatInt(id, 10))
	return ok(c, echo.Map{"id": strconv.FormatInt(id, 10)})
}
