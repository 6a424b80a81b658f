// Package settings manages the singleton site settings document.
package settings

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/celenkdiyari/storefront/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Defaults the document written on first read
func Defaults() domain.SiteSettings {
	return domain.SiteSettings{
		ID: domain.SiteSettingsID,
		Contact: domain.ContactSettings{
			Phone:        "+90 212 000 00 00",
			Email:        "info@celenkdiyari.com",
			Address:      "İstanbul",
			WorkingHours: "09:00 - 21:00",
		},
		Seo: domain.SeoSettings{
			Title:       "Çelenk Diyarı",
			Description: "Açılış, düğün ve cenaze çelenkleri, aynı gün teslimat.",
			Keywords:    "çelenk, çiçek, açılış çelengi, cenaze çelengi",
		},
		Theme: domain.ThemeSettings{
			PrimaryColor:   "#16a34a",
			SecondaryColor: "#f59e0b",
		},
		Business: domain.BusinessSettings{
			Name:       "Çelenk Diyarı",
			Currency:   "TRY",
			Categories: append([]string(nil), domain.DefaultCategories...),
		},
		Notifications: domain.NotificationSettings{
			EmailOnNewOrder: true,
			EmailOnPayment:  true,
			LowStockAlert:   true,
		},
		Security: domain.SecuritySettings{
			MaxLoginAttempts:      5,
			SessionTimeoutMinutes: 720,
		},
	}
}

// Service reads and patches the settings document
type Service struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Get returns the settings, creating the default document when absent
func (s *Service) Get(ctx context.Context) (*domain.SiteSettings, error) {
	var st domain.SiteSettings
	err := s.db.WithContext(ctx).Where("id = ?", domain.SiteSettingsID).First(&st).Error
	if err == nil {
		return &st, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "query settings")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// another request may have created it meanwhile
	if err := s.db.WithContext(ctx).Where("id = ?", domain.SiteSettingsID).First(&st).Error; err == nil {
		return &st, nil
	}
	st = Defaults()
	st.CreatedAt = time.Now()
	st.UpdatedAt = st.CreatedAt
	if err := s.db.WithContext(ctx).Create(&st).Error; err != nil {
		return nil, errors.Wrap(err, "create default settings")
	}
	zap.L().Info("initialized default site settings", zap.String("namespace", "settings"))
	return &st, nil
}

// Update deep merges a partial nested patch into the current document
func (s *Service) Update(ctx context.Context, patch map[string]interface{}) (*domain.SiteSettings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	merged, err := Merge(current, patch)
	if err != nil {
		return nil, err
	}
	merged.ID = domain.SiteSettingsID
	merged.CreatedAt = current.CreatedAt
	merged.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(merged).Error; err != nil {
		return nil, errors.Wrap(err, "save settings")
	}
	return merged, nil
}

// Reset overwrites the document with the defaults
func (s *Service) Reset(ctx context.Context) (*domain.SiteSettings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	st := Defaults()
	st.CreatedAt = current.CreatedAt
	st.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(&st).Error; err != nil {
		return nil, errors.Wrap(err, "reset settings")
	}
	return &st, nil
}

// Categories the product categories admins may choose from
func (s *Service) Categories(ctx context.Context) []string {
	st, err := s.Get(ctx)
	if err != nil || len(st.Business.Categories) == 0 {
		return domain.DefaultCategories
	}
	return st.Business.Categories
}

// editable top level blocks; id and timestamps are never patched
var blocks = []string{"contact", "social", "seo", "theme", "business", "notifications", "security"}

// Merge applies patch over the settings and returns a new value
func Merge(current *domain.SiteSettings, patch map[string]interface{}) (*domain.SiteSettings, error) {
	raw, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	base := map[string]interface{}{}
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, err
	}
	for _, name := range blocks {
		v, ok := patch[name]
		if !ok || v == nil {
			continue
		}
		pv, err := cast.ToStringMapE(v)
		if err != nil {
			return nil, errors.Errorf("settings block %q must be an object", name)
		}
		bv := cast.ToStringMap(base[name])
		for k, val := range pv {
			bv[k] = val
		}
		base[name] = bv
	}

	var out domain.SiteSettings
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	delete(base, "createdAt")
	delete(base, "updatedAt")
	delete(base, "id")
	if err := decoder.Decode(base); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	return &out, nil
}

// Public the subset of settings exposed to the storefront
func Public(st *domain.SiteSettings) map[string]interface{} {
	return map[string]interface{}{
		"contact":  st.Contact,
		"social":   st.Social,
		"seo":      st.Seo,
		"theme":    st.Theme,
		"business": st.Business,
	}
}
