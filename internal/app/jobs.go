package app

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"

	"github.com/celenkdiyari/storefront/internal/backup"
	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/events"
	"github.com/celenkdiyari/storefront/pkg/metrics"
)

const (
	oprLogRetention     = 365 * 24 * time.Hour
	paymentLogRetention = 365 * 24 * time.Hour
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedSystemMonitorTask()
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", a.SchedClearExpireData)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	if spec := a.appConfig.Backup.Schedule; spec != "" {
		_, err = a.sched.AddFunc(spec, func() {
			if _, err := a.RunBackup(backup.TriggerSchedule); err != nil {
				zap.L().Error("scheduled backup failed", zap.String("namespace", "backup"), zap.Error(err))
			}
		})
		if err != nil {
			zap.S().Errorf("init backup job error %s", err.Error())
		}
	}

	a.sched.Start()
}

// RunBackup writes an archive then drops the ones past the retention count
func (a *Application) RunBackup(trigger string) (*domain.Backup, error) {
	ctx := context.Background()
	b, err := a.backups.Create(ctx, trigger)
	if err != nil {
		return b, err
	}
	removed, err := a.backups.Prune(ctx, a.appConfig.Backup.Keep)
	if err != nil {
		zap.L().Error("backup prune failed", zap.String("namespace", "backup"), zap.Error(err))
	} else if removed > 0 {
		zap.L().Info("old backups removed", zap.String("namespace", "backup"), zap.Int("count", removed))
	}
	return b, nil
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	_cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(_cpuuse) > 0 {
		metrics.SetGauge(metrics.SystemCpuUse, int64(_cpuuse[0]*100)) // percentage * 100
	}

	_meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.SetGauge(metrics.SystemMemUse, int64(_meminfo.Used/1024/1024))
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge(metrics.ProcessCpuUse, int64(cpuuse*100))
	}

	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge(metrics.ProcessMemUse, int64(meminfo.RSS/1024/1024))
	}
}

// SchedClearExpireData drops old operation and payment logs
func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	now := time.Now()
	a.gormDB.Where("opt_time < ?", now.Add(-oprLogRetention)).Delete(&domain.SysOprLog{})
	a.gormDB.Where("created_at < ?", now.Add(-paymentLogRetention)).Delete(&domain.PaymentLog{})
}

// subscribe hooks the side effects of domain events
func (a *Application) subscribe() {
	currentSettings := func() *domain.SiteSettings {
		st, err := a.settings.Get(context.Background())
		if err != nil {
			zap.L().Error("load settings for notification failed", zap.Error(err))
			return nil
		}
		return st
	}
	a.bus.SubscribeAsync(events.TopicOrderCreated, func(o *domain.Order) {
		a.notifier.OrderCreated(currentSettings(), o)
	})
	a.bus.SubscribeAsync(events.TopicPaymentReceived, func(o *domain.Order) {
		a.notifier.PaymentReceived(currentSettings(), o)
	})
	a.bus.SubscribeAsync(events.TopicStockLow, func(item *domain.InventoryItem) {
		a.notifier.StockLow(currentSettings(), item)
	})
	a.bus.Subscribe(events.TopicOrderStatusChanged, func(o *domain.Order, from domain.OrderStatus) {
		zap.L().Debug("order status event",
			zap.String("namespace", "events"),
			zap.String("order_number", o.OrderNumber),
			zap.String("from", string(from)),
			zap.String("to", string(o.Status)))
	})
}
