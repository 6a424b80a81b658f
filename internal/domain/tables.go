package domain

var Tables = []interface{}{
	// System
	&SysUser{},
	&SysOprLog{},
	&Backup{},
	&SiteSettings{},
	// Catalog
	&Product{},
	&Announcement{},
	// Sales
	&Order{},
	&PaymentLog{},
	&Customer{},
	// Workshop
	&InventoryItem{},
	&StockMovement{},
}
