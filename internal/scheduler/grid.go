package scheduler

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinDaysPerWeek  = 5
	MaxDaysPerWeek  = 6
	MinPeriodsInDay = 4
	MaxPeriodsInDay = 8
)

// SlotKind classifies a grid position.
type SlotKind string

const (
	SlotTeaching   SlotKind = "TEACHING"
	SlotBreakfast  SlotKind = "BREAKFAST"
	SlotLunch      SlotKind = "LUNCH"
	SlotShortBreak SlotKind = "SHORT_BREAK"
)

// IsBreak reports whether the kind is one of the break kinds.
func (k SlotKind) IsBreak() bool {
	return k == SlotBreakfast || k == SlotLunch || k == SlotShortBreak
}

// PeriodName is the human readable label stored on break entries.
func (k SlotKind) PeriodName() string {
	switch k {
	case SlotBreakfast:
		return "Breakfast Break"
	case SlotLunch:
		return "Lunch Break"
	case SlotShortBreak:
		return "Short Break"
	}
	return ""
}

// Weekdays is the canonical ordering of school days.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// TimeSlot is a fixed wall-clock range within a day.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Key identifies the slot on a given day.
func (t TimeSlot) Key(day string) string {
	return fmt.Sprintf("%s-%s-%s", day, t.Start, t.End)
}

// Range renders the slot as "HH:MM-HH:MM".
func (t TimeSlot) Range() string {
	return t.Start + "-" + t.End
}

// CanonicalSlots are the eight fixed 45 minute periods of the school day.
var CanonicalSlots = []TimeSlot{
	{Start: "08:00", End: "08:45"},
	{Start: "08:45", End: "09:30"},
	{Start: "09:30", End: "10:15"},
	{Start: "10:15", End: "11:00"},
	{Start: "11:00", End: "11:45"},
	{Start: "11:45", End: "12:30"},
	{Start: "12:30", End: "13:15"},
	{Start: "13:15", End: "14:00"},
}

// GridConfig carries the break policy and grid dimensions.
type GridConfig struct {
	DaysPerWeek           int
	PeriodsPerDay         int
	BreakfastTime         string
	LunchTime             string
	ShortBreakAfterPeriod int
}

// GridSlot is one classified position of the weekly grid.
type GridSlot struct {
	Day   string
	Index int
	Slot  TimeSlot
	Kind  SlotKind
}

// Grid is the ordered days x slots layout for one generation run.
type Grid struct {
	Days  []string
	Slots []TimeSlot
	cells [][]GridSlot
}

// BuildGrid derives the weekly grid from configuration. Out of range
// dimensions are clamped to the supported bounds.
func BuildGrid(cfg GridConfig) *Grid {
	days := clamp(cfg.DaysPerWeek, MinDaysPerWeek, MaxDaysPerWeek)
	periods := clamp(cfg.PeriodsPerDay, MinPeriodsInDay, MaxPeriodsInDay)

	grid := &Grid{
		Days:  append([]string(nil), Weekdays[:days]...),
		Slots: append([]TimeSlot(nil), CanonicalSlots[:periods]...),
		cells: make([][]GridSlot, days),
	}
	breakfast := NormalizeClock(cfg.BreakfastTime)
	lunch := NormalizeClock(cfg.LunchTime)

	for d, day := range grid.Days {
		row := make([]GridSlot, periods)
		sinceBreak := 0
		for i, slot := range grid.Slots {
			kind := SlotTeaching
			switch {
			case breakfast != "" && slot.Start == breakfast:
				kind = SlotBreakfast
			case lunch != "" && slot.Start == lunch:
				kind = SlotLunch
			case cfg.ShortBreakAfterPeriod > 0 && sinceBreak == cfg.ShortBreakAfterPeriod:
				kind = SlotShortBreak
			}
			if kind.IsBreak() {
				sinceBreak = 0
			} else {
				sinceBreak++
			}
			row[i] = GridSlot{Day: day, Index: i, Slot: slot, Kind: kind}
		}
		grid.cells[d] = row
	}
	return grid
}

// Cells returns the classified slots in day-major order.
func (g *Grid) Cells() []GridSlot {
	out := make([]GridSlot, 0, len(g.Days)*len(g.Slots))
	for _, row := range g.cells {
		out = append(out, row...)
	}
	return out
}

// Size is the total number of grid positions.
func (g *Grid) Size() int {
	return len(g.Days) * len(g.Slots)
}

// TeachingSlots counts positions available for subjects.
func (g *Grid) TeachingSlots() int {
	count := 0
	for _, row := range g.cells {
		for _, cell := range row {
			if !cell.Kind.IsBreak() {
				count++
			}
		}
	}
	return count
}

// BreakSlots counts break positions.
func (g *Grid) BreakSlots() int {
	return g.Size() - g.TeachingSlots()
}

// NormalizeClock renders "8:00", "08:00" or "08:00:00" as "08:00". Values
// that do not parse are returned trimmed.
func NormalizeClock(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("15:04")
		}
	}
	return raw
}

// CanonicalDay maps any casing of a weekday name onto its canonical form.
func CanonicalDay(day string) string {
	idx := DayIndex(day)
	switch {
	case idx < 0:
		return strings.TrimSpace(day)
	case idx == len(Weekdays):
		return "Sunday"
	}
	return Weekdays[idx]
}

// DayIndex returns the canonical position of a weekday name, or -1.
func DayIndex(day string) int {
	for i, name := range Weekdays {
		if strings.EqualFold(name, strings.TrimSpace(day)) {
			return i
		}
	}
	if strings.EqualFold(strings.TrimSpace(day), "Sunday") {
		return len(Weekdays)
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
