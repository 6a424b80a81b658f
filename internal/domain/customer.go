package domain

import "time"

// Customer shop customer, upserted by email at checkout or managed by admins
type Customer struct {
	ID          int64      `json:"id,string" gorm:"primaryKey"`
	Name        string     `json:"name" gorm:"size:200;index"`
	Email       string     `json:"email" gorm:"size:200;uniqueIndex"`
	Phone       string     `json:"phone" gorm:"size:32"`
	Address     string     `json:"address"`
	City        string     `json:"city" gorm:"size:64"`
	District    string     `json:"district" gorm:"size:64"`
	Notes       string     `json:"notes" gorm:"type:text"`
	OrderCount  int        `json:"orderCount"`
	TotalSpent  float64    `json:"totalSpent"`
	LastOrderAt *time.Time `json:"lastOrderAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Customer) TableName() string {
	return "customers"
}
