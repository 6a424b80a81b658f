package metrics

import (
	"errors"
	"path"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

// Metric names written by the application
const (
	OrdersCreated  = "orders_created"
	PaymentsPaid   = "payments_paid"
	PaymentsFailed = "payments_failed"
	PaymentsForged = "payments_forged"
	BackupsCreated = "backups_created"
	SystemCpuUse   = "system_cpuuse"
	SystemMemUse   = "system_memuse"
	ProcessCpuUse  = "storefront_cpuuse"
	ProcessMemUse  = "storefront_memuse"
)

const defaultRetention = 30 * 24 * time.Hour

// Point is one sample of a metric
type Point struct {
	Timestamp int64   `json:"ts"`
	Value     float64 `json:"value"`
}

var (
	mu       sync.RWMutex
	storage  tstorage.Storage
	counters = map[string]int64{}
)

// InitMetrics opens the time-series store under <workdir>/data/metrics
func InitMetrics(workdir string) error {
	st, err := tstorage.NewStorage(
		tstorage.WithDataPath(path.Join(workdir, "data", "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithPartitionDuration(time.Hour),
		tstorage.WithRetention(defaultRetention),
	)
	if err != nil {
		return err
	}
	mu.Lock()
	old := storage
	storage = st
	counters = map[string]int64{}
	mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Close flushes and closes the store
func Close() error {
	mu.Lock()
	st := storage
	storage = nil
	mu.Unlock()
	if st == nil {
		return nil
	}
	return st.Close()
}

// SetGauge records the current value of a gauge
func SetGauge(name string, value int64) {
	insert(name, float64(value))
}

// Incr adds delta to a counter and records the new cumulative value
func Incr(name string, delta int64) {
	mu.Lock()
	counters[name] += delta
	v := counters[name]
	mu.Unlock()
	insert(name, float64(v))
}

// Counter returns the in-process value of a counter
func Counter(name string) int64 {
	mu.RLock()
	defer mu.RUnlock()
	return counters[name]
}

func insert(name string, value float64) {
	mu.RLock()
	st := storage
	mu.RUnlock()
	if st == nil {
		return
	}
	_ = st.InsertRows([]tstorage.Row{{
		Metric:    name,
		DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: value},
	}})
}

// Query returns the samples of a metric between start and end
func Query(name string, start, end time.Time) ([]Point, error) {
	mu.RLock()
	st := storage
	mu.RUnlock()
	if st == nil {
		return []Point{}, nil
	}
	points, err := st.Select(name, nil, start.Unix(), end.Unix())
	if errors.Is(err, tstorage.ErrNoDataPoints) {
		return []Point{}, nil
	}
	if err != nil {
		return nil, err
	}
	result := make([]Point, 0, len(points))
	for _, p := range points {
		result = append(result, Point{Timestamp: p.Timestamp, Value: p.Value})
	}
	return result, nil
}
