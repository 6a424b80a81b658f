package app

import (
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/celenkdiyari/storefront/config"
	"github.com/celenkdiyari/storefront/internal/backup"
	"github.com/celenkdiyari/storefront/internal/cart"
	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/events"
	"github.com/celenkdiyari/storefront/internal/notify"
	"github.com/celenkdiyari/storefront/internal/order"
	"github.com/celenkdiyari/storefront/internal/paytr"
	"github.com/celenkdiyari/storefront/internal/settings"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// ServiceProvider gives handlers the domain services
type ServiceProvider interface {
	Events() *events.Bus
	Carts() *cart.Store
	Settings() *settings.Service
	Orders() *order.Service
	Backups() *backup.Manager
	Payments() *paytr.Client
	Notifier() *notify.Notifier
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	ServiceProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
	// RunBackup writes a backup archive and applies the retention policy
	RunBackup(trigger string) (*domain.Backup, error)
}
