package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsWithoutStorage(t *testing.T) {
	require.NoError(t, Close())
	SetGauge(SystemCpuUse, 10)
	points, err := Query(SystemCpuUse, time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestCounterAndQuery(t *testing.T) {
	require.NoError(t, InitMetrics(t.TempDir()))
	t.Cleanup(func() { _ = Close() })

	Incr(OrdersCreated, 1)
	Incr(OrdersCreated, 2)
	assert.Equal(t, int64(3), Counter(OrdersCreated))

	points, err := Query(OrdersCreated, time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotEmpty(t, points)
	assert.Equal(t, float64(3), points[len(points)-1].Value)
}
