package domain

import "time"

const (
	AnnouncementInfo    = "info"
	AnnouncementWarning = "warning"
	AnnouncementSuccess = "success"
	AnnouncementPromo   = "promo"
)

// Announcement banner shown on the storefront
type Announcement struct {
	ID        int64      `json:"id,string" gorm:"primaryKey"`
	Title     string     `json:"title" gorm:"size:200"`
	Content   string     `json:"content" gorm:"type:text"`
	Type      string     `json:"type" gorm:"size:20"`
	Active    bool       `json:"active" gorm:"index"`
	Priority  int        `json:"priority"`
	StartsAt  *time.Time `json:"startsAt"`
	EndsAt    *time.Time `json:"endsAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (Announcement) TableName() string {
	return "announcements"
}

// VisibleAt active and inside its optional window
func (a *Announcement) VisibleAt(t time.Time) bool {
	if !a.Active {
		return false
	}
	if a.StartsAt != nil && t.Before(*a.StartsAt) {
		return false
	}
	if a.EndsAt != nil && t.After(*a.EndsAt) {
		return false
	}
	return true
}
