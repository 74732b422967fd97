package scheduler

import (
	"sort"
	"strings"
)

// ComparisonRow puts the live and proposed occupant of one slot side by side.
type ComparisonRow struct {
	Day       string `json:"day"`
	TimeRange string `json:"timeRange"`
	Current   string `json:"current"`
	Proposed  string `json:"proposed"`
	Changed   bool   `json:"changed"`
}

// Comparison is the side by side view of a class timetable.
type Comparison struct {
	Rows      []ComparisonRow `json:"rows"`
	Changed   int             `json:"changed"`
	Unchanged int             `json:"unchanged"`
}

// Compare builds one row per (day, slot) of grid plus any occupied slot of
// either schedule that falls outside it. A nil grid yields occupied slots only.
func Compare(grid *Grid, current, proposed []Entry, lookups Lookups) Comparison {
	type cell struct {
		day, start, end   string
		current, proposed []string
	}
	cells := make(map[string]*cell)
	if grid != nil {
		for _, gc := range grid.Cells() {
			cells[gc.Slot.Key(gc.Day)] = &cell{day: gc.Day, start: gc.Slot.Start, end: gc.Slot.End}
		}
	}
	add := func(entry Entry, proposedSide bool) {
		day := CanonicalDay(entry.Day)
		start, end := NormalizeClock(entry.Start), NormalizeClock(entry.End)
		key := TimeSlot{Start: start, End: end}.Key(day)
		c := cells[key]
		if c == nil {
			c = &cell{day: day, start: start, end: end}
			cells[key] = c
		}
		label := EntryLabel(entry, lookups)
		if proposedSide {
			c.proposed = append(c.proposed, label)
		} else {
			c.current = append(c.current, label)
		}
	}
	for _, entry := range current {
		add(entry, false)
	}
	for _, entry := range proposed {
		add(entry, true)
	}

	ordered := make([]*cell, 0, len(cells))
	for _, c := range cells {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		di, dj := DayIndex(ordered[i].day), DayIndex(ordered[j].day)
		if di != dj {
			return di < dj
		}
		return ordered[i].start < ordered[j].start
	})

	out := Comparison{Rows: make([]ComparisonRow, 0, len(ordered))}
	for _, c := range ordered {
		row := ComparisonRow{
			Day:       c.day,
			TimeRange: c.start + "-" + c.end,
			Current:   joinLabels(c.current),
			Proposed:  joinLabels(c.proposed),
		}
		row.Changed = row.Current != row.Proposed
		if row.Changed {
			out.Changed++
		} else {
			out.Unchanged++
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// EntryLabel renders an entry for display: the break name, or the subject
// with its teacher.
func EntryLabel(entry Entry, lookups Lookups) string {
	if entry.IsBreak {
		if entry.PeriodName != "" {
			return entry.PeriodName
		}
		return "Break"
	}
	label := lookups.SubjectName(entry.SubjectID)
	if entry.TeacherID != "" {
		label += " (" + lookups.TeacherName(entry.TeacherID) + ")"
	}
	return label
}

func joinLabels(labels []string) string {
	sort.Strings(labels)
	return strings.Join(labels, " / ")
}
