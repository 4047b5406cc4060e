package services

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	LocationID *uint  `json:"location_id,omitempty"`
	IP         string `json:"ip,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// SystemActor is used for scheduler-driven changes.
var SystemActor = &Actor{Username: "system", Role: "system"}

func (a *Actor) userIDPtr() *uint {
	if a == nil || a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

// PageRequest is embedded by list requests.
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=200"`
}

func (p *PageRequest) normalize() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.PageSize > 200 {
		p.PageSize = 200
	}
}

func (p *PageRequest) offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageResult mirrors response.Page with typed items.
type PageResult[T any] struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Items    []T   `json:"items"`
}

func paginate[T any](query *gorm.DB, page *PageRequest, order string) (*PageResult[T], error) {
	page.normalize()

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	items := make([]T, 0)
	if err := query.Order(order).Offset(page.offset()).Limit(page.PageSize).Find(&items).Error; err != nil {
		return nil, err
	}

	return &PageResult[T]{
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Items:    items,
	}, nil
}

func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

const dateLayout = "2006-01-02"

// parseDate reads YYYY-MM-DD and returns midnight UTC of that calendar day.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, response.NewBadRequest("invalid date " + s + ", expected YYYY-MM-DD")
	}
	return t, nil
}

// dateOf truncates t to its calendar day in loc, expressed as midnight UTC.
func dateOf(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
}

func toJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewNotFound(msg)
	}
	return err
}

func uintPtr(v uint) *uint { return &v }

func itoa(n int) string { return strconv.Itoa(n) }

// moveStatus flips a document's status only if it is still in one of from.
// A lost race or a wrong starting status answers 409.
func moveStatus(tx *gorm.DB, model interface{}, id uint, from []string, to string, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(model).Where("id = ? AND status IN ?", id, from).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return response.NewConflict("document is not in a state that allows moving to " + to)
	}
	return nil
}
