package adminapi

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/webserver"
	"github.com/celenkdiyari/storefront/pkg/common"
	"github.com/celenkdiyari/storefront/pkg/metrics"
)

// Overview dashboard summary
type Overview struct {
	Revenue           float64          `json:"revenue"`
	PaidRevenue       float64          `json:"paidRevenue"`
	OrderCount        int64            `json:"orderCount"`
	OrdersByStatus    map[string]int64 `json:"ordersByStatus"`
	AverageOrderValue float64          `json:"averageOrderValue"`
	MedianOrderValue  float64          `json:"medianOrderValue"`
	CustomerCount     int64            `json:"customerCount"`
	ProductCount      int64            `json:"productCount"`
	LowStockCount     int64            `json:"lowStockCount"`
	TodayOrders       int64            `json:"todayOrders"`
}

// ProductSales units and revenue of one product across orders
type ProductSales struct {
	ProductID int64   `json:"productId,string"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Revenue   float64 `json:"revenue"`
	Orders    int     `json:"orders"`
}

// MonthRevenue one point of the monthly series
type MonthRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

var queryableMetrics = []string{
	metrics.OrdersCreated,
	metrics.PaymentsPaid,
	metrics.PaymentsFailed,
	metrics.PaymentsForged,
	metrics.BackupsCreated,
	metrics.SystemCpuUse,
	metrics.SystemMemUse,
	metrics.ProcessCpuUse,
	metrics.ProcessMemUse,
}

func registerAnalyticsRoutes() {
	webserver.ApiGET("/analytics/overview", analyticsOverview)
	webserver.ApiGET("/analytics/top-products", analyticsTopProducts)
	webserver.ApiGET("/analytics/revenue", analyticsRevenue)
	webserver.ApiGET("/analytics/metrics", analyticsMetrics)
}

type orderValue struct {
	Total         float64
	PaymentStatus string
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BuildOverview revenue counts non cancelled orders, paidRevenue only paid ones
func BuildOverview(ctx context.Context, db *gorm.DB, now time.Time) (*Overview, error) {
	ov := &Overview{OrdersByStatus: map[string]int64{}}
	var values []orderValue
	var statusRows []struct {
		Status string
		Count  int64
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return db.WithContext(gctx).Model(&domain.Order{}).
			Where("status <> ?", domain.OrderStatusCancelled).
			Select("total", "payment_status").Scan(&values).Error
	})
	g.Go(func() error {
		return db.WithContext(gctx).Model(&domain.Order{}).
			Select("status, COUNT(*) AS count").Group("status").Scan(&statusRows).Error
	})
	g.Go(func() error {
		return db.WithContext(gctx).Model(&domain.Customer{}).Count(&ov.CustomerCount).Error
	})
	g.Go(func() error {
		return db.WithContext(gctx).Model(&domain.Product{}).Count(&ov.ProductCount).Error
	})
	g.Go(func() error {
		return db.WithContext(gctx).Model(&domain.InventoryItem{}).
			Where("quantity <= min_stock").Count(&ov.LowStockCount).Error
	})
	g.Go(func() error {
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return db.WithContext(gctx).Model(&domain.Order{}).
			Where("created_at >= ?", start).Count(&ov.TodayOrders).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range domain.OrderStatuses {
		ov.OrdersByStatus[string(s)] = 0
	}
	for _, r := range statusRows {
		ov.OrdersByStatus[r.Status] = r.Count
		ov.OrderCount += r.Count
	}

	totals := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		totals = append(totals, v.Total)
		if v.PaymentStatus == string(domain.PaymentStatusPaid) {
			ov.PaidRevenue += v.Total
		}
	}
	if len(totals) > 0 {
		sum, _ := totals.Sum()
		mean, _ := totals.Mean()
		median, _ := totals.Median()
		ov.Revenue = round2(sum)
		ov.AverageOrderValue = round2(mean)
		ov.MedianOrderValue = round2(median)
	}
	ov.PaidRevenue = round2(ov.PaidRevenue)
	return ov, nil
}

func analyticsOverview(c echo.Context) error {
	ov, err := BuildOverview(c.Request().Context(), webserver.GetAppContext(c).DB(), time.Now())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to build overview", err.Error())
	}
	return ok(c, ov)
}

// TopProducts ranks products by units sold in non cancelled orders
func TopProducts(orders []domain.Order, limit int) []ProductSales {
	byID := map[int64]*ProductSales{}
	for _, o := range orders {
		seen := map[int64]bool{}
		for _, it := range o.Items {
			ps, found := byID[it.ProductID]
			if !found {
				ps = &ProductSales{ProductID: it.ProductID, Name: it.Name}
				byID[it.ProductID] = ps
			}
			ps.Quantity += it.Quantity
			ps.Revenue += it.Price * float64(it.Quantity)
			if !seen[it.ProductID] {
				ps.Orders++
				seen[it.ProductID] = true
			}
		}
	}
	result := make([]ProductSales, 0, len(byID))
	for _, ps := range byID {
		ps.Revenue = round2(ps.Revenue)
		result = append(result, *ps)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Quantity != result[j].Quantity {
			return result[i].Quantity > result[j].Quantity
		}
		if result[i].Revenue != result[j].Revenue {
			return result[i].Revenue > result[j].Revenue
		}
		return result[i].Name < result[j].Name
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func analyticsTopProducts(c echo.Context) error {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	var orders []domain.Order
	err = GetDB(c).Where("status <> ?", domain.OrderStatusCancelled).Select("id", "items").Find(&orders).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}
	return ok(c, TopProducts(orders, limit))
}

// MonthlyRevenue buckets orders by calendar month, months without orders are zero
func MonthlyRevenue(orders []domain.Order, months int, now time.Time) []MonthRevenue {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)
	series := make([]MonthRevenue, months)
	index := map[string]int{}
	for i := 0; i < months; i++ {
		key := first.AddDate(0, i, 0).Format("2006-01")
		series[i] = MonthRevenue{Month: key}
		index[key] = i
	}
	for _, o := range orders {
		i, found := index[o.CreatedAt.In(now.Location()).Format("2006-01")]
		if !found {
			continue
		}
		series[i].Revenue += o.Total
		series[i].Orders++
	}
	for i := range series {
		series[i].Revenue = round2(series[i].Revenue)
	}
	return series
}

func analyticsRevenue(c echo.Context) error {
	months, err := strconv.Atoi(c.QueryParam("months"))
	if err != nil || months <= 0 {
		months = 12
	}
	if months > 60 {
		months = 60
	}
	now := time.Now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)
	var orders []domain.Order
	err = GetDB(c).Where("status <> ? AND created_at >= ?", domain.OrderStatusCancelled, first).
		Select("id", "total", "created_at").Find(&orders).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}
	return ok(c, MonthlyRevenue(orders, months, now))
}

func analyticsMetrics(c echo.Context) error {
	name := c.QueryParam("name")
	if !common.InSlice(name, queryableMetrics) {
		return fail(c, http.StatusBadRequest, "INVALID_METRIC", "Unknown metric", queryableMetrics)
	}
	hours, err := strconv.Atoi(c.QueryParam("hours"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	if hours > 24*30 {
		hours = 24 * 30
	}
	end := time.Now()
	points, err := metrics.Query(name, end.Add(-time.Duration(hours)*time.Hour), end)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "METRICS_ERROR", "Failed to query metrics", err.Error())
	}
	return ok(c, echo.Map{"name": name, "points": points})
}
