package schedule

import (
	"strings"
	"sync"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/us"

	"github.com/lucvincent/photoloop/util/log"
)

// auHolidays combines the per-state Australian holiday sets; the
// library exposes no single national aggregate like its other
// countries.
var auHolidays = func() []*cal.Holiday {
	var all []*cal.Holiday
	for _, set := range [][]*cal.Holiday{
		au.HolidaysACT, au.HolidaysNSW, au.HolidaysNT, au.HolidaysQLD,
		au.HolidaysSA, au.HolidaysTAS, au.HolidaysVIC, au.HolidaysWA,
	} {
		all = append(all, set...)
	}
	return all
}()

// countryHolidays maps ISO country codes to their public holiday sets.
var countryHolidays = map[string][]*cal.Holiday{
	"US": us.Holidays,
	"CA": ca.Holidays,
	"GB": gb.Holidays,
	"FR": fr.Holidays,
	"DE": de.Holidays,
	"ES": es.Holidays,
	"IT": it.Holidays,
	"NL": nl.Holidays,
	"AU": auHolidays,
	"JP": jp.Holidays,
}

// holidayChecker answers "is this date a holiday in any configured
// country", with a per-day cache since the tick loop asks constantly.
type holidayChecker struct {
	calendars []*cal.Calendar

	mu    sync.Mutex
	cache map[string]bool
}

func newHolidayChecker(countries []string) *holidayChecker {
	h := &holidayChecker{cache: make(map[string]bool)}
	for _, code := range countries {
		holidays, ok := countryHolidays[strings.ToUpper(code)]
		if !ok {
			log.Printf("No holiday calendar for country %q", code)
			continue
		}
		c := &cal.Calendar{Name: strings.ToUpper(code)}
		c.AddHoliday(holidays...)
		h.calendars = append(h.calendars, c)
	}
	return h
}

func (h *holidayChecker) isHoliday(day time.Time) bool {
	if len(h.calendars) == 0 {
		return false
	}
	key := day.Format("2006-01-02")

	h.mu.Lock()
	if v, ok := h.cache[key]; ok {
		h.mu.Unlock()
		return v
	}
	h.mu.Unlock()

	result := false
	for _, c := range h.calendars {
		actual, observed, _ := c.IsHoliday(day)
		if actual || observed {
			result = true
			break
		}
	}

	h.mu.Lock()
	h.cache[key] = result
	h.mu.Unlock()
	return result
}
