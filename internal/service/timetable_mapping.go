package service

import (
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

func toSchedulerEntry(row models.TimetableEntry) scheduler.Entry {
	return scheduler.Entry{
		ClassID:    row.ClassID,
		SubjectID:  deref(row.SubjectID),
		TeacherID:  deref(row.TeacherID),
		Day:        scheduler.CanonicalDay(row.DayOfWeek),
		Start:      scheduler.NormalizeClock(row.StartTime),
		End:        scheduler.NormalizeClock(row.EndTime),
		IsBreak:    row.IsBreak,
		PeriodName: deref(row.PeriodName),
	}
}

func toSchedulerEntries(rows []models.TimetableEntry) []scheduler.Entry {
	entries := make([]scheduler.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toSchedulerEntry(row))
	}
	return entries
}

// toTimetableRows builds fresh rows for insertion. Break rows carry no subject or teacher.
func toTimetableRows(entries []scheduler.Entry) []models.TimetableEntry {
	rows := make([]models.TimetableEntry, 0, len(entries))
	for _, entry := range entries {
		row := models.TimetableEntry{
			ClassID:   entry.ClassID,
			DayOfWeek: entry.Day,
			StartTime: entry.Start,
			EndTime:   entry.End,
			IsBreak:   entry.IsBreak,
		}
		if entry.IsBreak {
			row.PeriodName = ref(entry.PeriodName)
		} else {
			row.SubjectID = ref(entry.SubjectID)
			row.TeacherID = ref(entry.TeacherID)
		}
		rows = append(rows, row)
	}
	return rows
}

func toEntryViews(entries []scheduler.Entry, lookups scheduler.Lookups) []dto.TimetableEntryView {
	views := make([]dto.TimetableEntryView, 0, len(entries))
	for _, entry := range entries {
		view := dto.TimetableEntryView{
			ClassID:    entry.ClassID,
			SubjectID:  entry.SubjectID,
			TeacherID:  entry.TeacherID,
			DayOfWeek:  entry.Day,
			StartTime:  entry.Start,
			EndTime:    entry.End,
			IsBreak:    entry.IsBreak,
			PeriodName: entry.PeriodName,
		}
		if entry.SubjectID != "" {
			view.SubjectName = lookups.SubjectName(entry.SubjectID)
		}
		if entry.TeacherID != "" {
			view.TeacherName = lookups.TeacherName(entry.TeacherID)
		}
		views = append(views, view)
	}
	return views
}

func sortEntries(entries []scheduler.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := scheduler.DayIndex(entries[i].Day), scheduler.DayIndex(entries[j].Day)
		if di != dj {
			return di < dj
		}
		return entries[i].Start < entries[j].Start
	})
}

func rosterSubjects(roster []models.ClassSubjectAssignment) []scheduler.Subject {
	subjects := make([]scheduler.Subject, 0, len(roster))
	for _, item := range roster {
		subjects = append(subjects, scheduler.Subject{
			ID:        item.SubjectID,
			Name:      item.SubjectName,
			TeacherID: deref(item.TeacherID),
		})
	}
	return subjects
}

func rosterTeacherIDs(roster []models.ClassSubjectAssignment) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, item := range roster {
		id := deref(item.TeacherID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func buildGrid(settings dto.TimetableSettings) *scheduler.Grid {
	return scheduler.BuildGrid(scheduler.GridConfig{
		DaysPerWeek:           settings.DaysPerWeek,
		PeriodsPerDay:         settings.PeriodsPerDay,
		BreakfastTime:         settings.BreakfastTime,
		LunchTime:             settings.LunchTime,
		ShortBreakAfterPeriod: settings.ShortBreakAfterPeriod,
	})
}

func newLookups() scheduler.Lookups {
	return scheduler.Lookups{
		Classes:  make(map[string]scheduler.ClassLabel),
		Subjects: make(map[string]string),
		Teachers: make(map[string]string),
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func ref(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
