package domain

import (
	"strconv"
	"time"
)

// HolidayMap maps a YYYY-MM-DD date key to the holiday name
type HolidayMap map[string]string

// HolidayCacheEntry is the persisted holiday data for one year.
// Entries are only ever replaced whole.
type HolidayCacheEntry struct {
	Year     int        `json:"year"`
	Holidays HolidayMap `json:"holidays"`
	CachedAt time.Time  `json:"cachedAt"`
}

// IsValid reports whether the entry is younger than the expiry window
func (e *HolidayCacheEntry) IsValid(now time.Time, expiryDays int) bool {
	age := now.Sub(e.CachedAt)
	return age < time.Duration(expiryDays)*24*time.Hour
}

// HolidayCacheKey returns the key-value store key for a year
func HolidayCacheKey(year int) string {
	return "holidays_" + strconv.Itoa(year)
}

// RawHoliday is one item of the remote holiday document, before normalization
type RawHoliday struct {
	IsHoliday bool
	Locdate   string // compact YYYYMMDD
	Name      string
}
