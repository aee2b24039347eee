package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucvincent/photoloop/config"
)

func weekdaySchedule() config.ScheduleConfig {
	return config.ScheduleConfig{
		Enabled: true,
		Weekday: []config.EventConfig{
			{StartTime: "00:00", EndTime: "07:00", Mode: "black"},
			{StartTime: "07:00", EndTime: "22:00", Mode: "slideshow"},
			{StartTime: "22:00", EndTime: "24:00", Mode: "black"},
		},
		Weekend: []config.EventConfig{
			{StartTime: "00:00", EndTime: "08:00", Mode: "black"},
			{StartTime: "08:00", EndTime: "23:00", Mode: "slideshow"},
			{StartTime: "23:00", EndTime: "24:00", Mode: "black"},
		},
	}
}

// monday is a plain non-holiday Monday.
var monday = time.Date(2026, 3, 9, 0, 0, 0, 0, time.Local)

func mondayAt(hour, minute int) time.Time {
	return time.Date(monday.Year(), monday.Month(), monday.Day(), hour, minute, 0, 0, time.Local)
}

func TestModeFollowsEvents(t *testing.T) {
	e := New(weekdaySchedule())

	assert.Equal(t, ModeBlack, e.Mode(mondayAt(6, 59)))
	assert.Equal(t, ModeSlideshow, e.Mode(mondayAt(7, 0)))
	assert.Equal(t, ModeSlideshow, e.Mode(mondayAt(21, 59)))
	assert.Equal(t, ModeBlack, e.Mode(mondayAt(22, 0)))
}

func TestEndOfDayEventCoversLastInstant(t *testing.T) {
	e := New(weekdaySchedule())
	// "24:00" is the last instant of the day, so 23:59:59 is still
	// covered by the final event.
	almostMidnight := time.Date(monday.Year(), monday.Month(), monday.Day(), 23, 59, 59, 0, time.Local)
	assert.Equal(t, ModeBlack, e.Mode(almostMidnight))
}

func TestSchedulingDisabledAlwaysSlideshow(t *testing.T) {
	cfg := weekdaySchedule()
	cfg.Enabled = false
	e := New(cfg)
	assert.Equal(t, ModeSlideshow, e.Mode(mondayAt(3, 0)))

	_, ok := e.NextTransition(mondayAt(3, 0))
	assert.False(t, ok)
}

func TestMalformedScheduleYieldsBlack(t *testing.T) {
	cfg := config.ScheduleConfig{
		Enabled: true,
		Weekday: []config.EventConfig{
			// Gap from 00:00 to 09:00.
			{StartTime: "09:00", EndTime: "24:00", Mode: "slideshow"},
		},
	}
	e := New(cfg)
	assert.Equal(t, ModeBlack, e.Mode(mondayAt(3, 0)))
}

func TestWeekendUsesWeekendEvents(t *testing.T) {
	e := New(weekdaySchedule())
	saturday := mondayAt(7, 30).AddDate(0, 0, 5)
	// Weekend black runs until 08:00; a weekday would be in slideshow.
	assert.Equal(t, ModeBlack, e.Mode(saturday))
}

func TestHolidayUsesWeekendSchedule(t *testing.T) {
	cfg := weekdaySchedule()
	cfg.Holidays = config.HolidayConfig{
		UseWeekendSchedule: true,
		Countries:          []string{"US"},
	}
	e := New(cfg)

	// Thursday, January 1, 2026: New Year's Day in the US. At 07:30 a
	// normal weekday shows slideshow; the holiday follows the weekend
	// schedule, which is still black.
	newYears := time.Date(2026, 1, 1, 7, 30, 0, 0, time.Local)
	require.Equal(t, time.Thursday, newYears.Weekday())
	assert.Equal(t, ModeBlack, e.Mode(newYears))

	// Without holiday awareness the same moment is slideshow.
	plain := New(weekdaySchedule())
	assert.Equal(t, ModeSlideshow, plain.Mode(newYears))
}

func TestDateOverrideWinsOverDayType(t *testing.T) {
	cfg := weekdaySchedule()
	cfg.DateOverrides = map[string][]config.EventConfig{
		monday.Format("2006-01-02"): {
			{StartTime: "00:00", EndTime: "24:00", Mode: "clock"},
		},
	}
	e := New(cfg)
	assert.Equal(t, ModeClock, e.Mode(mondayAt(12, 0)))
}

func TestNextTransition(t *testing.T) {
	e := New(weekdaySchedule())

	tr, ok := e.NextTransition(mondayAt(6, 59))
	require.True(t, ok)
	assert.Equal(t, mondayAt(7, 0), tr.At)
	assert.Equal(t, "switch to slideshow", tr.Description)

	tr, ok = e.NextTransition(mondayAt(12, 0))
	require.True(t, ok)
	assert.Equal(t, mondayAt(22, 0), tr.At)
	assert.Equal(t, "switch to black", tr.Description)
}

func TestOverrideForcesMode(t *testing.T) {
	e := New(weekdaySchedule())
	now := mondayAt(12, 0)

	e.ForceBlack(now)
	assert.Equal(t, ModeBlack, e.Mode(now))
	assert.True(t, e.HasOverride(now))

	e.ClearOverride()
	assert.Equal(t, ModeSlideshow, e.Mode(now))
	assert.False(t, e.HasOverride(now))
}

func TestOverrideExpiresAtNextDifferentModeEvent(t *testing.T) {
	e := New(weekdaySchedule())
	now := mondayAt(10, 0)

	// Forcing black at 10:00: tonight's 22:00 event is also black, so the
	// search keeps going and lands on tomorrow's 07:00 slideshow.
	e.ForceBlack(now)
	_, expires, ok := e.OverrideInfo(now)
	require.True(t, ok)
	require.NotNil(t, expires)
	assert.Equal(t, mondayAt(7, 0).AddDate(0, 0, 1), *expires)

	// Just before expiry the override still holds.
	before := mondayAt(6, 59).AddDate(0, 0, 1)
	assert.Equal(t, ModeBlack, e.Mode(before))

	// After expiry the schedule resumes on its own.
	after := mondayAt(9, 59).AddDate(0, 0, 1)
	assert.Equal(t, ModeSlideshow, e.Mode(after))
	assert.False(t, e.HasOverride(after))
}

func TestOverrideLateNightExpiresNextMidnightEvent(t *testing.T) {
	e := New(weekdaySchedule())
	now := mondayAt(23, 50)

	// At 23:50 in the final black span, forcing slideshow: the next
	// differing event is 00:00 tomorrow, not 23:59 today.
	e.ForceSlideshow(now)
	_, expires, ok := e.OverrideInfo(now)
	require.True(t, ok)
	require.NotNil(t, expires)
	assert.Equal(t, mondayAt(0, 0).AddDate(0, 0, 1), *expires)
}

func TestOverrideExpiryTakesTransitionPrecedence(t *testing.T) {
	e := New(weekdaySchedule())
	now := mondayAt(10, 0)
	e.ForceBlack(now)

	tr, ok := e.NextTransition(now)
	require.True(t, ok)
	assert.Equal(t, mondayAt(7, 0).AddDate(0, 0, 1), tr.At)
	assert.Contains(t, tr.Description, "override expires")
}

func TestHomogeneousScheduleOverrideNeverExpires(t *testing.T) {
	cfg := config.ScheduleConfig{
		Enabled: true,
		Weekday: []config.EventConfig{{StartTime: "00:00", EndTime: "24:00", Mode: "slideshow"}},
		Weekend: []config.EventConfig{{StartTime: "00:00", EndTime: "24:00", Mode: "slideshow"}},
	}
	e := New(cfg)
	now := mondayAt(10, 0)

	e.ForceSlideshow(now)
	_, expires, ok := e.OverrideInfo(now)
	require.True(t, ok)
	assert.Nil(t, expires, "no differing event within 7 days means no expiry")

	_, ok = e.NextTransition(now)
	assert.False(t, ok)
}

func TestStatusReport(t *testing.T) {
	e := New(weekdaySchedule())
	now := mondayAt(12, 0)

	st := e.Status(now)
	assert.Equal(t, ModeSlideshow, st.Mode)
	assert.Equal(t, "scheduled", st.ModeReason)
	assert.False(t, st.HasOverride)
	assert.False(t, st.IsWeekend)
	require.NotNil(t, st.NextTransition)
	assert.Equal(t, mondayAt(22, 0), st.NextTransition.At)

	e.ForceClock(now)
	st = e.Status(now)
	assert.Equal(t, ModeClock, st.Mode)
	assert.Equal(t, "manual", st.ModeReason)
	assert.True(t, st.HasOverride)
}
