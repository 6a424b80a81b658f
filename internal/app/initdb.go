package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/pkg/common"
)

const superUsername = "admin"

// checkSuper makes sure an enabled admin account exists. The password comes
// from web.admin_password, or is generated and logged once.
func (a *Application) checkSuper() {
	var user domain.SysUser
	err := a.gormDB.Where("username = ?", superUsername).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		password := a.appConfig.Web.AdminPassword
		generated := password == ""
		if generated {
			password = common.RandomHex(8)
		}
		hashed, err := common.HashPassword(password)
		if err != nil {
			zap.L().Error("failed to hash admin password", zap.Error(err))
			return
		}
		now := time.Now()
		if err := a.gormDB.Create(&domain.SysUser{
			ID:        common.UUIDint64(),
			Name:      "Yönetici",
			Username:  superUsername,
			Password:  hashed,
			Role:      domain.RoleAdmin,
			Status:    common.ENABLED,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error; err != nil {
			zap.L().Error("failed to create default admin", zap.Error(err))
			return
		}
		if generated {
			zap.L().Warn("initialized default admin account with a generated password, change it after login",
				zap.String("username", superUsername),
				zap.String("password", password))
		} else {
			zap.L().Info("initialized default admin account", zap.String("username", superUsername))
		}
		return
	case err != nil:
		zap.L().Error("failed to query admin account", zap.Error(err))
		return
	}

	resetRole := !strings.EqualFold(user.Role, domain.RoleAdmin)
	resetStatus := !strings.EqualFold(user.Status, common.ENABLED)
	if !resetRole && !resetStatus {
		return
	}
	updates := map[string]interface{}{
		"role":       domain.RoleAdmin,
		"status":     common.ENABLED,
		"updated_at": time.Now(),
	}
	if err := a.gormDB.Model(&domain.SysUser{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to repair admin account", zap.Error(err))
		return
	}
	zap.L().Warn("repaired default admin account",
		zap.String("username", superUsername),
		zap.Bool("roleReset", resetRole),
		zap.Bool("statusEnabled", resetStatus))
}

// checkSettings creates the settings document on first start
func (a *Application) checkSettings() {
	if _, err := a.settings.Get(context.Background()); err != nil {
		zap.L().Error("failed to initialize site settings", zap.Error(err))
	}
}
