package domain

import "time"

// ProductSEO optional search engine fields of a product page
type ProductSEO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	Slug        string `json:"slug"`
}

// Product a catalog entry: wreath, bouquet, potted plant...
type Product struct {
	ID          int64      `json:"id,string" gorm:"primaryKey"`
	Name        string     `json:"name" gorm:"size:200;index"`
	Description string     `json:"description" gorm:"type:text"`
	Price       float64    `json:"price"`
	Category    string     `json:"category" gorm:"size:64;index"`
	InStock     bool       `json:"inStock" gorm:"index"`
	Featured    bool       `json:"featured"`
	Images      []string   `json:"images" gorm:"type:text;serializer:json"`
	Variants    []string   `json:"variants" gorm:"type:text;serializer:json"`
	SEO         ProductSEO `json:"seo" gorm:"type:text;serializer:json"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Product) TableName() string {
	return "products"
}

// DefaultCategories the fixed category list offered by the admin product form
var DefaultCategories = []string{
	"Açılış Çelengi",
	"Düğün Çelengi",
	"Cenaze Çelengi",
	"Ferforje",
	"Sepet Çiçek",
	"Buket",
	"Saksı Çiçeği",
	"Masa Çiçeği",
}
