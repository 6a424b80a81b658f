package adminapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/webserver"
	"github.com/celenkdiyari/storefront/pkg/common"
)

type announcementPayload struct {
	Title    string     `json:"title" validate:"required,max=200"`
	Content  string     `json:"content" validate:"required"`
	Type     string     `json:"type" validate:"omitempty,oneof=info warning success promo"`
	Active   *bool      `json:"active"`
	Priority int        `json:"priority"`
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
}

func registerAnnouncementRoutes() {
	webserver.ApiGET("/announcements", listAnnouncements)
	webserver.ApiGET("/announcements/:id", getAnnouncement)
	webserver.ApiPOST("/announcements", createAnnouncement)
	webserver.ApiPUT("/announcements/:id", updateAnnouncement)
	webserver.ApiDELETE("/announcements/:id", deleteAnnouncement)
}

func listAnnouncements(c echo.Context) error {
	page, pageSize := parsePagination(c)
	base := GetDB(c).Model(&domain.Announcement{})
	if v := c.QueryParam("active"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			base = base.Where("active = ?", b)
		}
	}
	if t := c.QueryParam("type"); t != "" {
		base = base.Where("type = ?", t)
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query announcements", err.Error())
	}
	var rows []domain.Announcement
	if err := base.Order("priority DESC, created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query announcements", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func findAnnouncement(c echo.Context) (*domain.Announcement, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid announcement ID", nil)
	}
	var a domain.Announcement
	if err := GetDB(c).Where("id = ?", id).First(&a).Error; isNotFound(err) {
		return nil, fail(c, http.StatusNotFound, "NOT_FOUND", "Announcement not found", nil)
	} else if err != nil {
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query announcement", err.Error())
	}
	return &a, nil
}

func getAnnouncement(c echo.Context) error {
	a, err := findAnnouncement(c)
	if a == nil {
		return err
	}
	return ok(c, a)
}

func readAnnouncementPayload(c echo.Context) (*announcementPayload, bool, error) {
	var payload announcementPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return nil, false, err
	}
	if payload.StartsAt != nil && payload.EndsAt != nil && payload.EndsAt.Before(*payload.StartsAt) {
		return nil, false, fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed",
			map[string]string{"endsAt": "must be after startsAt"})
	}
	payload.Title = strings.TrimSpace(payload.Title)
	payload.Type = common.IfEmptyStr(payload.Type, domain.AnnouncementInfo)
	return &payload, true, nil
}

func createAnnouncement(c echo.Context) error {
	payload, valid, err := readAnnouncementPayload(c)
	if !valid {
		return err
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	now := time.Now()
	a := domain.Announcement{
		ID:        common.UUIDint64(),
		Title:     payload.Title,
		Content:   payload.Content,
		Type:      payload.Type,
		Active:    active,
		Priority:  payload.Priority,
		StartsAt:  payload.StartsAt,
		EndsAt:    payload.EndsAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := GetDB(c).Create(&a).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create announcement", err.Error())
	}
	logOperation(c, "announcement.create", a.Title)
	return ok(c, a)
}

func updateAnnouncement(c echo.Context) error {
	a, err := findAnnouncement(c)
	if a == nil {
		return err
	}
	payload, valid, err := readAnnouncementPayload(c)
	if !valid {
		return err
	}
	a.Title = payload.Title
	a.Content = payload.Content
	a.Type = payload.Type
	if payload.Active != nil {
		a.Active = *payload.Active
	}
	a.Priority = payload.Priority
	a.StartsAt = payload.StartsAt
	a.EndsAt = payload.EndsAt
	a.UpdatedAt = time.Now()
	if err := GetDB(c).Save(a).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update announcement", err.Error())
	}
	logOperation(c, "announcement.update", a.Title)
	return ok(c, a)
}

func deleteAnnouncement(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid announcement ID", nil)
	}
	res := GetDB(c).Where("id = ?", id).Delete(&domain.Announcement{})
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete announcement", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Announcement not found", nil)
	}
	logOperation(c, "announcement.delete", strconv.FormatInt(id, 10))
	return ok(c, echo.Map{"id": strconv.FormatInt(id, 10)})
}
