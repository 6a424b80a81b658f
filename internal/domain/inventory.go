package domain

import "time"

// InventoryItem stock kept in the workshop: ribbons, stands, flowers...
// ProductID is an optional loose reference to the catalog.
type InventoryItem struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:200;index"`
	Sku       string    `json:"sku" gorm:"size:64;index"`
	ProductID int64     `json:"productId,string"`
	Quantity  int       `json:"quantity"`
	MinStock  int       `json:"minStock"`
	Unit      string    `json:"unit" gorm:"size:20"`
	Location  string    `json:"location" gorm:"size:100"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (InventoryItem) TableName() string {
	return "inventory_items"
}

// IsLow quantity at or under the minimum
func (i *InventoryItem) IsLow() bool {
	return i.Quantity <= i.MinStock
}

const (
	MovementIn     = "in"
	MovementOut    = "out"
	MovementAdjust = "adjust"
)

// StockMovement a change of an inventory item's quantity
type StockMovement struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	ItemID    int64     `json:"itemId,string" gorm:"index"`
	Type      string    `json:"type" gorm:"size:20"`
	Quantity  int       `json:"quantity"`
	Before    int       `json:"before"`
	After     int       `json:"after"`
	Reason    string    `json:"reason"`
	Operator  string    `json:"operator" gorm:"size:64"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}

func (StockMovement) TableName() string {
	return "stock_movements"
}
