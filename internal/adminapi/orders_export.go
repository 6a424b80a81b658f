package adminapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"

	"github.com/celenkdiyari/storefront/internal/domain"
)

const maxExportRows = 10000

type orderExportRow struct {
	OrderNumber    string  `csv:"Sipariş No"`
	CreatedAt      string  `csv:"Tarih"`
	CustomerName   string  `csv:"Müşteri"`
	CustomerEmail  string  `csv:"E-posta"`
	CustomerPhone  string  `csv:"Telefon"`
	Address        string  `csv:"Adres"`
	Items          string  `csv:"Ürünler"`
	ItemCount      int     `csv:"Adet"`
	Subtotal       float64 `csv:"Ara Toplam"`
	ShippingFee    float64 `csv:"Kargo"`
	Total          float64 `csv:"Toplam"`
	Status         string  `csv:"Durum"`
	PaymentStatus  string  `csv:"Ödeme Durumu"`
	PaymentMethod  string  `csv:"Ödeme Yöntemi"`
	DeliveryDate   string  `csv:"Teslimat Tarihi"`
	RecipientName  string  `csv:"Alıcı"`
	RecipientPhone string  `csv:"Alıcı Telefon"`
}

var orderExportHeader = []string{
	"Sipariş No", "Tarih", "Müşteri", "E-posta", "Telefon", "Adres", "Ürünler", "Adet",
	"Ara Toplam", "Kargo", "Toplam", "Durum", "Ödeme Durumu", "Ödeme Yöntemi",
	"Teslimat Tarihi", "Alıcı", "Alıcı Telefon",
}

func toExportRow(o *domain.Order) *orderExportRow {
	names := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		name := it.Name
		if it.Variant != "" {
			name += " (" + it.Variant + ")"
		}
		names = append(names, fmt.Sprintf("%s x%d", name, it.Quantity))
	}
	return &orderExportRow{
		OrderNumber:    o.OrderNumber,
		CreatedAt:      o.CreatedAt.Format("2006-01-02 15:04"),
		CustomerName:   o.Customer.Name,
		CustomerEmail:  o.Customer.Email,
		CustomerPhone:  o.Customer.Phone,
		Address:        strings.TrimSpace(strings.Join([]string{o.Customer.Address, o.Customer.District, o.Customer.City}, " ")),
		Items:          strings.Join(names, "; "),
		ItemCount:      o.ItemCount(),
		Subtotal:       o.Subtotal,
		ShippingFee:    o.ShippingFee,
		Total:          o.Total,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		PaymentMethod:  o.PaymentMethod,
		DeliveryDate:   strings.TrimSpace(o.DeliveryDate + " " + o.DeliveryTime),
		RecipientName:  o.Recipient.Name,
		RecipientPhone: o.Recipient.Phone,
	}
}

func (r *orderExportRow) values() []interface{} {
	return []interface{}{
		r.OrderNumber, r.CreatedAt, r.CustomerName, r.CustomerEmail, r.CustomerPhone, r.Address,
		r.Items, r.ItemCount, r.Subtotal, r.ShippingFee, r.Total, r.Status, r.PaymentStatus,
		r.PaymentMethod, r.DeliveryDate, r.RecipientName, r.RecipientPhone,
	}
}

// columnName 0 -> A, 25 -> Z, 26 -> AA
func columnName(i int) string {
	name := ""
	for i >= 0 {
		name = string(rune('A'+i%26)) + name
		i = i/26 - 1
	}
	return name
}

func exportOrders(c echo.Context) error {
	format := strings.ToLower(c.QueryParam("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		return fail(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be csv or xlsx", nil)
	}
	db, err := orderQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILTER", err.Error(), nil)
	}
	var orders []domain.Order
	if err := db.Order("created_at DESC").Limit(maxExportRows).Find(&orders).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}
	rows := make([]*orderExportRow, 0, len(orders))
	for i := range orders {
		rows = append(rows, toExportRow(&orders[i]))
	}

	filename := "siparisler-" + time.Now().Format("20060102-1504")
	if format == "csv" {
		var buf bytes.Buffer
		// BOM so spreadsheet apps detect utf-8
		buf.WriteString("\xEF\xBB\xBF")
		if err := gocsv.Marshal(&rows, &buf); err != nil {
			return fail(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to write csv", err.Error())
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s.csv", filename))
		return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	}

	const sheet = "Sheet1"
	xlsx := excelize.NewFile()
	for i, h := range orderExportHeader {
		xlsx.SetCellValue(sheet, columnName(i)+"1", h)
	}
	for r, row := range rows {
		for i, v := range row.values() {
			xlsx.SetCellValue(sheet, fmt.Sprintf("%s%d", columnName(i), r+2), v)
		}
	}
	var buf bytes.Buffer
	if err := xlsx.Write(&buf); err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to write xlsx", err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s.xlsx", filename))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
