package services

import (
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
	"github.com/6tail/lunar-go/calendar"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/ie"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/nz"
	"github.com/rickar/cal/v2/us"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

// HolidayService answers "is this a working day" by combining weekends, a
// public holiday calendar for the configured country and company holidays.
type HolidayService struct {
	db        *gorm.DB
	calendars map[string]*cal.BusinessCalendar
	country   string
	loc       *time.Location
}

func NewHolidayService(db *gorm.DB, country string, loc *time.Location) *HolidayService {
	if loc == nil {
		loc = time.Local
	}
	if country == "" {
		country = "NONE"
	}
	s := &HolidayService{
		db:        db,
		calendars: make(map[string]*cal.BusinessCalendar),
		country:   country,
		loc:       loc,
	}
	s.initCalendars()
	return s
}

func (s *HolidayService) initCalendars() {
	s.calendars["US"] = s.createCalendar("United States", us.Holidays...)
	s.calendars["GB"] = s.createCalendar("United Kingdom", gb.Holidays...)
	s.calendars["DE"] = s.createCalendar("Germany", de.Holidays...)
	s.calendars["FR"] = s.createCalendar("France", fr.Holidays...)
	s.calendars["JP"] = s.createCalendar("Japan", jp.Holidays...)
	s.calendars["AU"] = s.createCalendar("Australia", au.HolidaysNSW...)
	s.calendars["CA"] = s.createCalendar("Canada", ca.Holidays...)
	s.calendars["NZ"] = s.createCalendar("New Zealand", nz.Holidays...)
	s.calendars["NL"] = s.createCalendar("Netherlands", nl.Holidays...)
	s.calendars["IE"] = s.createCalendar("Ireland", ie.Holidays...)
}

func (s *HolidayService) createCalendar(name string, holidays ...*cal.Holiday) *cal.BusinessCalendar {
	c := cal.NewBusinessCalendar()
	c.Name = name
	c.AddHoliday(holidays...)
	return c
}

// Location is the company timezone used for day boundaries.
func (s *HolidayService) Location() *time.Location { return s.loc }

// isCountryWorkday ignores company holidays.
func (s *HolidayService) isCountryWorkday(t time.Time) bool {
	switch s.country {
	case "CN":
		solar := calendar.NewSolarFromDate(t)
		holiday := HolidayUtil.GetHolidayByYmd(solar.GetYear(), solar.GetMonth(), solar.GetDay())
		if holiday != nil {
			return holiday.IsWork()
		}
		return !cal.IsWeekend(t)
	case "NONE":
		return !cal.IsWeekend(t)
	}

	c, ok := s.calendars[s.country]
	if !ok {
		return !cal.IsWeekend(t)
	}
	return c.IsWorkday(t)
}

// companyHolidays loads declared holidays in [from, to] for a location
// (nil location means company-wide only), keyed by YYYY-MM-DD.
func (s *HolidayService) companyHolidays(from, to time.Time, locationID *uint) map[string]bool {
	set := make(map[string]bool)
	if s.db == nil {
		return set
	}

	var rows []models.Holiday
	query := s.db.Where("date >= ? AND date <= ?", dateOf(from, s.loc), dateOf(to, s.loc))
	if locationID != nil {
		query = query.Where("location_id IS NULL OR location_id = ?", *locationID)
	} else {
		query = query.Where("location_id IS NULL")
	}
	if err := query.Find(&rows).Error; err != nil {
		return set
	}
	for _, h := range rows {
		set[h.Date.UTC().Format(dateLayout)] = true
	}
	return set
}

func (s *HolidayService) IsWorkingDay(t time.Time, locationID *uint) bool {
	if !s.isCountryWorkday(t.In(s.loc)) {
		return false
	}
	return !s.companyHolidays(t, t, locationID)[dateOf(t, s.loc).Format(dateLayout)]
}

// CountWorkingDays counts working days in the inclusive calendar range.
func (s *HolidayService) CountWorkingDays(from, to time.Time, locationID *uint) int {
	start := dateOf(from, s.loc)
	end := dateOf(to, s.loc)
	if end.Before(start) {
		return 0
	}

	holidays := s.companyHolidays(start, end, locationID)
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		local := time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, s.loc)
		if s.isCountryWorkday(local) && !holidays[d.Format(dateLayout)] {
			count++
		}
	}
	return count
}

// AddWorkingDuration moves start forward by d, letting the clock run only on
// working days. Whole non-working days are skipped.
func (s *HolidayService) AddWorkingDuration(start time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return start
	}

	cursor := start.In(s.loc)
	horizon := cursor.Add(d).AddDate(0, 0, 400)
	holidays := s.companyHolidays(cursor, horizon, nil)

	remaining := d
	for i := 0; i < 3660 && remaining > 0; i++ {
		dayStart := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 0, 0, 0, 0, s.loc)
		nextDay := dayStart.AddDate(0, 0, 1)

		working := s.isCountryWorkday(cursor) && !holidays[dateOf(cursor, s.loc).Format(dateLayout)]
		if !working {
			cursor = nextDay
			continue
		}

		avail := nextDay.Sub(cursor)
		if remaining <= avail {
			return cursor.Add(remaining)
		}
		remaining -= avail
		cursor = nextDay
	}
	return cursor
}

func (s *HolidayService) GetSupportedCountries() []CountryInfo {
	return []CountryInfo{
		{Code: "NONE", Name: "Weekdays Only (Mon-Fri)"},
		{Code: "CN", Name: "China"},
		{Code: "US", Name: "United States"},
		{Code: "GB", Name: "United Kingdom"},
		{Code: "DE", Name: "Germany"},
		{Code: "FR", Name: "France"},
		{Code: "JP", Name: "Japan"},
		{Code: "AU", Name: "Australia"},
		{Code: "CA", Name: "Canada"},
		{Code: "NZ", Name: "New Zealand"},
		{Code: "NL", Name: "Netherlands"},
		{Code: "IE", Name: "Ireland"},
	}
}

type CountryInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// --- company holiday CRUD ---

type HolidayRequest struct {
	Date       string `json:"date" binding:"required"`
	Name       string `json:"name" binding:"required,max=150"`
	LocationID *uint  `json:"location_id"`
}

type HolidayListRequest struct {
	Year       int   `form:"year"`
	LocationID *uint `form:"location_id"`
}

func (s *HolidayService) List(req *HolidayListRequest) ([]models.Holiday, error) {
	query := s.db.Model(&models.Holiday{})
	if req.Year > 0 {
		from := time.Date(req.Year, 1, 1, 0, 0, 0, 0, time.UTC)
		query = query.Where("date >= ? AND date < ?", from, from.AddDate(1, 0, 0))
	}
	if req.LocationID != nil {
		query = query.Where("location_id IS NULL OR location_id = ?", *req.LocationID)
	}
	var rows []models.Holiday
	if err := query.Order("date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *HolidayService) Create(req *HolidayRequest) (*models.Holiday, error) {
	d, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	var count int64
	q := s.db.Model(&models.Holiday{}).Where("date = ?", d)
	if req.LocationID != nil {
		q = q.Where("location_id = ?", *req.LocationID)
	} else {
		q = q.Where("location_id IS NULL")
	}
	q.Count(&count)
	if count > 0 {
		return nil, response.NewConflict("a holiday already exists on " + req.Date)
	}

	h := models.Holiday{Date: d, Name: req.Name, LocationID: req.LocationID}
	if err := s.db.Create(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *HolidayService) Update(id uint, req *HolidayRequest) (*models.Holiday, error) {
	var h models.Holiday
	if err := s.db.First(&h, id).Error; err != nil {
		return nil, notFoundOr(err, "holiday not found")
	}
	d, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(&h).Updates(map[string]interface{}{
		"date":        d,
		"name":        req.Name,
		"location_id": req.LocationID,
	}).Error; err != nil {
		return nil, err
	}
	s.db.First(&h, id)
	return &h, nil
}

func (s *HolidayService) Delete(id uint) error {
	res := s.db.Delete(&models.Holiday{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return response.NewNotFound("holiday not found")
	}
	return nil
}
