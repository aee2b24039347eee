// Package schedule decides what the frame shows at any moment: an
// event-based time-of-day state machine with weekend and holiday awareness
// and auto-expiring manual overrides.
package schedule

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lucvincent/photoloop/config"
	"github.com/lucvincent/photoloop/util/log"
)

// Mode is what the display should show.
type Mode string

const (
	ModeSlideshow Mode = "slideshow"
	ModeClock     Mode = "clock"
	ModeBlack     Mode = "black"
)

// event is a parsed schedule span, in minutes since midnight. End is
// exclusive; 1440 marks end of day.
type event struct {
	start int
	end   int
	mode  Mode
}

// override is a manual mode force. A nil expiry never expires.
type override struct {
	mode    Mode
	expires *time.Time
}

// Engine is the schedule state machine.
type Engine struct {
	mu       sync.Mutex
	cfg      config.ScheduleConfig
	override *override
	holidays *holidayChecker
}

// New creates an engine for the given schedule configuration.
func New(cfg config.ScheduleConfig) *Engine {
	return &Engine{
		cfg:      cfg,
		holidays: newHolidayChecker(cfg.Holidays.Countries),
	}
}

// SetConfig swaps the schedule after a config reload.
func (e *Engine) SetConfig(cfg config.ScheduleConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.holidays = newHolidayChecker(cfg.Holidays.Countries)
}

// parseMinutes parses "HH:MM"; "24:00" maps to 1440.
func parseMinutes(s string) int {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	hour, _ := strconv.Atoi(parts[0])
	minute := 0
	if len(parts) > 1 {
		minute, _ = strconv.Atoi(parts[1])
	}
	return hour*60 + minute
}

func parseEvents(evs []config.EventConfig) []event {
	out := make([]event, 0, len(evs))
	for _, ec := range evs {
		out = append(out, event{
			start: parseMinutes(ec.StartTime),
			end:   parseMinutes(ec.EndTime),
			mode:  Mode(ec.Mode),
		})
	}
	return out
}

// eventsFor selects the day's event list: an explicit per-date override
// wins, then the weekend list on Saturdays, Sundays and (when configured)
// holidays, then the weekday list.
func (e *Engine) eventsFor(day time.Time) []event {
	if evs, ok := e.cfg.DateOverrides[day.Format("2006-01-02")]; ok {
		return parseEvents(evs)
	}
	wd := day.Weekday()
	weekend := wd == time.Saturday || wd == time.Sunday
	if !weekend && e.cfg.Holidays.UseWeekendSchedule && e.holidays.isHoliday(day) {
		log.Debugf("Using weekend schedule for holiday %s", day.Format("2006-01-02"))
		weekend = true
	}
	if weekend {
		return parseEvents(e.cfg.Weekend)
	}
	return parseEvents(e.cfg.Weekday)
}

func minutesOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func at(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}

// currentEvent finds the event covering now, or ok=false for a malformed
// schedule with gaps.
func (e *Engine) currentEvent(now time.Time) (event, bool) {
	m := minutesOf(now)
	for _, ev := range e.eventsFor(now) {
		if ev.start <= m && m < ev.end {
			return ev, true
		}
	}
	return event{}, false
}

func (e *Engine) expireOverrideLocked(now time.Time) {
	if e.override != nil && e.override.expires != nil && !now.Before(*e.override.expires) {
		log.Printf("Override expired at %s, resuming schedule", e.override.expires.Format(time.RFC3339))
		e.override = nil
	}
}

// Mode returns the effective display mode at now.
func (e *Engine) Mode(now time.Time) Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modeLocked(now)
}

func (e *Engine) modeLocked(now time.Time) Mode {
	e.expireOverrideLocked(now)
	if e.override != nil {
		return e.override.mode
	}
	if !e.cfg.Enabled {
		return ModeSlideshow
	}
	if ev, ok := e.currentEvent(now); ok {
		return ev.mode
	}
	// Malformed schedule with no covering event.
	return ModeBlack
}

// nextDifferentModeStart finds the start of the next event, up to seven
// days out, whose mode differs from the given one. Seven days covers
// homogeneous weekday schedules that only change on the weekend.
func (e *Engine) nextDifferentModeStart(now time.Time, mode Mode) *time.Time {
	m := minutesOf(now)
	for _, ev := range e.eventsFor(now) {
		if ev.start > m && ev.mode != mode {
			t := at(now, ev.start)
			return &t
		}
	}
	for days := 1; days <= 7; days++ {
		day := now.AddDate(0, 0, days)
		for _, ev := range e.eventsFor(day) {
			if ev.mode != mode {
				t := at(day, ev.start)
				return &t
			}
		}
	}
	return nil
}

// force installs a manual override expiring at the next event start whose
// mode differs from the forced one.
func (e *Engine) force(mode Mode, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	expires := e.nextDifferentModeStart(now, mode)
	e.override = &override{mode: mode, expires: expires}
	if expires != nil {
		log.Printf("Schedule override: %s (expires at %s)", mode, expires.Format(time.RFC3339))
	} else {
		log.Printf("Schedule override: %s (no expiry)", mode)
	}
}

// ForceSlideshow forces slideshow mode until the schedule next changes.
func (e *Engine) ForceSlideshow(now time.Time) { e.force(ModeSlideshow, now) }

// ForceClock forces clock mode until the schedule next changes.
func (e *Engine) ForceClock(now time.Time) { e.force(ModeClock, now) }

// ForceBlack forces a black screen until the schedule next changes.
func (e *Engine) ForceBlack(now time.Time) { e.force(ModeBlack, now) }

// ClearOverride drops any manual override immediately.
func (e *Engine) ClearOverride() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.override = nil
	log.Print("Schedule override cleared, resuming normal schedule")
}

// HasOverride reports whether a manual override is active at now.
func (e *Engine) HasOverride(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireOverrideLocked(now)
	return e.override != nil
}

// OverrideInfo returns the active override's mode and expiry. A nil expiry
// means the override never expires on its own.
func (e *Engine) OverrideInfo(now time.Time) (Mode, *time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireOverrideLocked(now)
	if e.override == nil {
		return "", nil, false
	}
	return e.override.mode, e.override.expires, true
}

// Transition is an upcoming effective-mode change.
type Transition struct {
	At          time.Time `json:"at"`
	Description string    `json:"description"`
}

// NextTransition returns the next moment the effective mode changes: the
// override expiry when one is pending, otherwise the first upcoming event
// with a different mode within seven days. ok is false when scheduling is
// disabled or nothing changes within the window.
func (e *Engine) NextTransition(now time.Time) (Transition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cfg.Enabled {
		return Transition{}, false
	}
	e.expireOverrideLocked(now)

	if e.override != nil {
		if e.override.expires == nil {
			return Transition{}, false
		}
		return Transition{At: *e.override.expires, Description: "override expires (resume schedule)"}, true
	}

	current := e.modeLocked(now)
	if next := e.nextDifferentModeStart(now, current); next != nil {
		day := *next
		var mode Mode
		m := minutesOf(day)
		for _, ev := range e.eventsFor(day) {
			if ev.start == m {
				mode = ev.mode
				break
			}
		}
		return Transition{At: day, Description: "switch to " + string(mode)}, true
	}
	return Transition{}, false
}

// Status is the schedule report consumed by the control surface.
type Status struct {
	Enabled        bool                 `json:"enabled"`
	Mode           Mode                 `json:"mode"`
	ModeReason     string               `json:"mode_reason"`
	HasOverride    bool                 `json:"has_override"`
	OverrideMode   Mode                 `json:"override_mode,omitempty"`
	OverrideExpiry *time.Time           `json:"override_expires,omitempty"`
	IsWeekend      bool                 `json:"is_weekend"`
	IsHoliday      bool                 `json:"is_holiday"`
	Events         []config.EventConfig `json:"events"`
	NextTransition *Transition          `json:"next_transition,omitempty"`
	CurrentTime    time.Time            `json:"current_time"`
}

// Status builds the full schedule report at now.
func (e *Engine) Status(now time.Time) Status {
	mode := e.Mode(now)

	e.mu.Lock()
	st := Status{
		Enabled:     e.cfg.Enabled,
		Mode:        mode,
		CurrentTime: now,
	}
	switch {
	case e.override != nil:
		st.ModeReason = "manual"
		st.HasOverride = true
		st.OverrideMode = e.override.mode
		st.OverrideExpiry = e.override.expires
	case !e.cfg.Enabled:
		st.ModeReason = "disabled"
	default:
		st.ModeReason = "scheduled"
	}
	wd := now.Weekday()
	st.IsWeekend = wd == time.Saturday || wd == time.Sunday
	st.IsHoliday = e.holidays.isHoliday(now)

	if evs, ok := e.cfg.DateOverrides[now.Format("2006-01-02")]; ok {
		st.Events = evs
	} else if st.IsWeekend || (e.cfg.Holidays.UseWeekendSchedule && st.IsHoliday) {
		st.Events = e.cfg.Weekend
	} else {
		st.Events = e.cfg.Weekday
	}
	e.mu.Unlock()

	if tr, ok := e.NextTransition(now); ok {
		st.NextTransition = &tr
	}
	return st
}
