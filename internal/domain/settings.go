package domain

import "time"

// SiteSettingsID the settings collection holds exactly one document
const SiteSettingsID int64 = 1

type ContactSettings struct {
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Address      string `json:"address"`
	Whatsapp     string `json:"whatsapp"`
	WorkingHours string `json:"workingHours"`
	MapURL       string `json:"mapUrl"`
}

type SocialSettings struct {
	Instagram string `json:"instagram"`
	Facebook  string `json:"facebook"`
	Twitter   string `json:"twitter"`
	Youtube   string `json:"youtube"`
}

type SeoSettings struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	OgImage     string `json:"ogImage"`
}

type ThemeSettings struct {
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	LogoURL        string `json:"logoUrl"`
	FaviconURL     string `json:"faviconUrl"`
}

type BusinessSettings struct {
	Name                  string   `json:"name"`
	TaxNumber             string   `json:"taxNumber"`
	Currency              string   `json:"currency"`
	ShippingFee           float64  `json:"shippingFee"`
	FreeShippingThreshold float64  `json:"freeShippingThreshold"`
	MinOrderAmount        float64  `json:"minOrderAmount"`
	Categories            []string `json:"categories"`
}

type NotificationSettings struct {
	EmailOnNewOrder bool   `json:"emailOnNewOrder"`
	EmailOnPayment  bool   `json:"emailOnPayment"`
	LowStockAlert   bool   `json:"lowStockAlert"`
	NotifyEmail     string `json:"notifyEmail"`
}

type SecuritySettings struct {
	MaxLoginAttempts       int  `json:"maxLoginAttempts"`
	SessionTimeoutMinutes  int  `json:"sessionTimeoutMinutes"`
	RequireStrongPasswords bool `json:"requireStrongPasswords"`
}

// SiteSettings singleton document with the shop owner's configuration
type SiteSettings struct {
	ID            int64                `json:"id,string" gorm:"primaryKey"`
	Contact       ContactSettings      `json:"contact" gorm:"type:text;serializer:json"`
	Social        SocialSettings       `json:"social" gorm:"type:text;serializer:json"`
	Seo           SeoSettings          `json:"seo" gorm:"type:text;serializer:json"`
	Theme         ThemeSettings        `json:"theme" gorm:"type:text;serializer:json"`
	Business      BusinessSettings     `json:"business" gorm:"type:text;serializer:json"`
	Notifications NotificationSettings `json:"notifications" gorm:"type:text;serializer:json"`
	Security      SecuritySettings     `json:"security" gorm:"type:text;serializer:json"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

func (SiteSettings) TableName() string {
	return "settings"
}

// ShippingFeeFor free shipping above the threshold
func (s *SiteSettings) ShippingFeeFor(subtotal float64) float64 {
	b := s.Business
	if b.FreeShippingThreshold > 0 && subtotal >= b.FreeShippingThreshold {
		return 0
	}
	return b.ShippingFee
}
