package adminapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/celenkdiyari/storefront/internal/domain"
)

func TestTopProducts(t *testing.T) {
	orders := []domain.Order{
		{Items: []domain.OrderItem{
			{ProductID: 1, Name: "Çelenk", Price: 500, Quantity: 1},
			{ProductID: 2, Name: "Buket", Price: 100, Quantity: 2},
		}},
		{Items: []domain.OrderItem{
			{ProductID: 2, Name: "Buket", Price: 100, Quantity: 1},
			{ProductID: 2, Name: "Buket", Variant: "Büyük", Price: 150, Quantity: 1},
		}},
	}
	top := TopProducts(orders, 10)
	assert.Len(t, top, 2)
	assert.EqualValues(t, 2, top[0].ProductID)
	assert.Equal(t, 4, top[0].Quantity)
	assert.Equal(t, 450.0, top[0].Revenue)
	assert.Equal(t, 2, top[0].Orders)

	assert.Len(t, TopProducts(orders, 1), 1)
}

func TestMonthlyRevenueFillsGaps(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		{Total: 100, CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		{Total: 50.5, CreatedAt: time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)},
		{Total: 999, CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
	}
	series := MonthlyRevenue(orders, 3, now)
	assert.Equal(t, []MonthRevenue{
		{Month: "2026-01", Revenue: 50.5, Orders: 1},
		{Month: "2026-02", Revenue: 0, Orders: 0},
		{Month: "2026-03", Revenue: 100, Orders: 1},
	}, series)
}
