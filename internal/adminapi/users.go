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

type userPayload struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Username string `json:"username" validate:"required,min=3,max=64,alphanum"`
	Password string `json:"password" validate:"omitempty,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin editor viewer"`
	Status   string `json:"status" validate:"omitempty,oneof=enabled disabled"`
}

func registerUserRoutes() {
	adminOnly := webserver.RequireRole(domain.RoleAdmin)
	webserver.ApiGET("/users", listUsers, adminOnly)
	webserver.ApiGET("/users/:id", getUser, adminOnly)
	webserver.ApiPOST("/users", createUser, adminOnly)
	webserver.ApiPUT("/users/:id", updateUser, adminOnly)
	webserver.ApiDELETE("/users/:id", deleteUser, adminOnly)
}

func listUsers(c echo.Context) error {
	page, pageSize := parsePagination(c)
	base := GetDB(c).Model(&domain.SysUser{})
	base = likeFilter(base, strings.TrimSpace(c.QueryParam("q")), "username", "name", "email")
	if role := c.QueryParam("role"); role != "" {
		base = base.Where("role = ?", role)
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query users", err.Error())
	}
	var users []domain.SysUser
	if err := base.Order("username ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query users", err.Error())
	}
	return paged(c, users, total, page, pageSize)
}

func findUser(c echo.Context) (*domain.SysUser, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID", nil)
	}
	var user domain.SysUser
	if err := GetDB(c).Where("id = ?", id).First(&user).Error; isNotFound(err) {
		return nil, fail(c, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
	} else if err != nil {
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query user", err.Error())
	}
	return &user, nil
}

func getUser(c echo.Context) error {
	user, err := findUser(c)
	if user == nil {
		return err
	}
	return ok(c, user)
}

// weakPassword reports whether the password fails the strong password policy,
// when the security settings enable it
func weakPassword(c echo.Context, password string) bool {
	st, err := webserver.GetAppContext(c).Settings().Get(c.Request().Context())
	if err != nil || !st.Security.RequireStrongPasswords {
		return false
	}
	return !common.StrongPassword(password)
}

func failWeakPassword(c echo.Context) error {
	return fail(c, http.StatusBadRequest, "WEAK_PASSWORD",
		"Password must be at least 8 characters and mix upper case, lower case and digits", nil)
}

// otherActiveAdmins enabled admins apart from id
func otherActiveAdmins(c echo.Context, id int64) (int64, error) {
	var count int64
	err := GetDB(c).Model(&domain.SysUser{}).
		Where("role = ? AND status = ? AND id <> ?", domain.RoleAdmin, common.ENABLED, id).
		Count(&count).Error
	return count, err
}

func createUser(c echo.Context) error {
	var payload userPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	if payload.Password == "" {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed",
			map[string]string{"password": "required"})
	}
	if weakPassword(c, payload.Password) {
		return failWeakPassword(c)
	}
	var count int64
	GetDB(c).Model(&domain.SysUser{}).Where("username = ?", payload.Username).Count(&count)
	if count > 0 {
		return fail(c, http.StatusConflict, "DUPLICATE_USERNAME", "Username already exists", nil)
	}
	hashed, err := common.HashPassword(payload.Password)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "HASH_ERROR", "Failed to hash password", err.Error())
	}
	now := time.Now()
	user := domain.SysUser{
		ID:        common.UUIDint64(),
		Name:      payload.Name,
		Email:     strings.ToLower(payload.Email),
		Username:  payload.Username,
		Password:  hashed,
		Role:      payload.Role,
		Status:    common.IfEmptyStr(payload.Status, common.ENABLED),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := GetDB(c).Create(&user).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create user", err.Error())
	}
	logOperation(c, "user.create", user.Username)
	return ok(c, user)
}

func updateUser(c echo.Context) error {
	user, err := findUser(c)
	if user == nil {
		return err
	}
	var payload userPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	if payload.Username != user.Username {
		var count int64
		GetDB(c).Model(&domain.SysUser{}).Where("username = ? AND id <> ?", payload.Username, user.ID).Count(&count)
		if count > 0 {
			return fail(c, http.StatusConflict, "DUPLICATE_USERNAME", "Username already exists", nil)
		}
	}
	status := common.IfEmptyStr(payload.Status, user.Status)
	demoted := user.Role == domain.RoleAdmin && (payload.Role != domain.RoleAdmin || status != common.ENABLED)
	if demoted {
		others, err := otherActiveAdmins(c, user.ID)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query users", err.Error())
		}
		if others == 0 {
			return fail(c, http.StatusConflict, "LAST_ADMIN", "At least one active admin is required", nil)
		}
	}

	user.Name = payload.Name
	user.Email = strings.ToLower(payload.Email)
	user.Username = payload.Username
	user.Role = payload.Role
	user.Status = status
	if payload.Password != "" {
		if weakPassword(c, payload.Password) {
			return failWeakPassword(c)
		}
		hashed, err := common.HashPassword(payload.Password)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "HASH_ERROR", "Failed to hash password", err.Error())
		}
		user.Password = hashed
	}
	user.UpdatedAt = time.Now()
	if err := GetDB(c).Save(user).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update user", err.Error())
	}
	logOperation(c, "user.update", user.Username)
	return ok(c, user)
}

func deleteUser(c echo.Context) error {
	user, err := findUser(c)
	if user == nil {
		return err
	}
	if user.ID == webserver.OperatorID(c) {
		return fail(c, http.StatusConflict, "SELF_DELETE", "You cannot delete your own account", nil)
	}
	if user.Role == domain.RoleAdmin {
		others, err := otherActiveAdmins(c, user.ID)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query users", err.Error())
		}
		if others == 0 {
			return fail(c, http.StatusConflict, "LAST_ADMIN", "At least one active admin is required", nil)
		}
	}
	if err := GetDB(c).Where("id = ?", user.ID).Delete(&domain.SysUser{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete user", err.Error())
	}
	logOperation(c, "user.delete", user.Username)
	return ok(c, echo.Map{"id": strconv.FormatInt(user.ID, 10)})
}
