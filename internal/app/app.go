package app

import (
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
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
	"github.com/celenkdiyari/storefront/pkg/metrics"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	sched     *cron.Cron
	bus       *events.Bus
	carts     *cart.Store
	settings  *settings.Service
	orders    *order.Service
	backups   *backup.Manager
	payments  *paytr.Client
	notifier  *notify.Notifier
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) Events() *events.Bus {
	return a.bus
}

func (a *Application) Carts() *cart.Store {
	return a.carts
}

func (a *Application) Settings() *settings.Service {
	return a.settings
}

func (a *Application) Orders() *order.Service {
	return a.orders
}

func (a *Application) Backups() *backup.Manager {
	return a.backups
}

func (a *Application) Payments() *paytr.Client {
	return a.payments
}

func (a *Application) Notifier() *notify.Notifier {
	return a.notifier
}

func (a *Application) initLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}
	zap.ReplaceGlobals(logger)
}

// Init configures logging, metrics and the database, then wires the services
// and starts the background jobs.
func (a *Application) Init(cfg *config.AppConfig) {
	a.appConfig = cfg
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	cfg.InitDirs()
	a.initLogger(cfg)

	if err := metrics.InitMetrics(cfg.System.Workdir); err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	db := getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.Setup(db); err != nil {
		zap.S().Fatalf("application setup failed: %v", err)
	}
	a.initJob()
}

// Setup wires every service on top of an opened database. It does not start
// cron jobs.
func (a *Application) Setup(db *gorm.DB) error {
	cfg := a.appConfig
	a.gormDB = db
	if err := a.MigrateDB(false); err != nil {
		return errors.Wrap(err, "migrate database")
	}

	if err := os.MkdirAll(cfg.GetDataDir(), 0o755); err != nil {
		return errors.Wrap(err, "create data dir")
	}
	carts, err := cart.OpenStore(cfg.GetCartDbFile())
	if err != nil {
		return err
	}
	a.carts = carts

	payments, err := paytr.NewClient(cfg.Paytr)
	if err != nil {
		return err
	}
	a.payments = payments
	if !payments.Enabled() {
		zap.L().Warn("paytr credentials missing, card payments disabled", zap.String("namespace", "paytr"))
	}

	a.notifier, err = notify.NewNotifier(cfg.Smtp)
	if err != nil {
		return errors.Wrap(err, "create notifier")
	}

	var uploader backup.Uploader
	if u := backup.NewSftpUploader(cfg.Backup.Sftp); u != nil {
		uploader = u
	}
	a.backups = backup.NewManager(db, cfg.GetBackupDir(), uploader)

	a.bus = events.NewBus()
	a.settings = settings.NewService(db)
	a.orders = order.NewService(db, a.settings, a.bus)

	a.checkSuper()
	a.checkSettings()
	a.subscribe()
	return nil
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	return db.Migrator().AutoMigrate(domain.Tables...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

// InitDb recreates every table and seeds the defaults again
func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
		return
	}
	a.checkSuper()
	a.checkSettings()
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if a.bus != nil {
		a.bus.Wait()
	}
	if a.notifier != nil {
		a.notifier.Release()
	}
	if a.carts != nil {
		_ = a.carts.Close()
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}
