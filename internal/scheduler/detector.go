package scheduler

import (
	"fmt"
	"sort"
	"strings"
)

// ConsecutiveLimit is the run length of back-to-back periods reported as a
// missing break.
const ConsecutiveLimit = 4

// UnknownLabel is shown when a lookup table has no entry for an id.
const UnknownLabel = "Unknown"

// ConflictType names a detected violation.
type ConflictType string

const (
	ConflictTeacher ConflictType = "teacher_conflict"
	ConflictNoBreak ConflictType = "no_break"
)

// Severity ranks conflicts for display.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Conflict is a derived audit finding. It is never stored.
type Conflict struct {
	Type            ConflictType `json:"type"`
	Severity        Severity     `json:"severity"`
	Day             string       `json:"day"`
	TimeRange       string       `json:"timeRange"`
	Details         string       `json:"details"`
	AffectedClasses []string     `json:"affectedClasses,omitempty"`
	TeacherID       string       `json:"teacherId,omitempty"`
	TeacherName     string       `json:"teacherName,omitempty"`
	ClassID         string       `json:"classId,omitempty"`
	ClassIDs        []string     `json:"classIds,omitempty"`
}

// Involves reports whether the conflict touches the class.
func (c Conflict) Involves(classID string) bool {
	if c.ClassID == classID {
		return true
	}
	for _, id := range c.ClassIDs {
		if id == classID {
			return true
		}
	}
	return false
}

// ClassLabel is the display record of a class.
type ClassLabel struct {
	Name    string
	Section string
}

// Lookups are id to display name tables built once per report.
type Lookups struct {
	Classes  map[string]ClassLabel
	Subjects map[string]string
	Teachers map[string]string
}

// Clone copies the tables so the result can be extended without touching l.
func (l Lookups) Clone() Lookups {
	out := Lookups{
		Classes:  make(map[string]ClassLabel, len(l.Classes)),
		Subjects: make(map[string]string, len(l.Subjects)),
		Teachers: make(map[string]string, len(l.Teachers)),
	}
	for k, v := range l.Classes {
		out.Classes[k] = v
	}
	for k, v := range l.Subjects {
		out.Subjects[k] = v
	}
	for k, v := range l.Teachers {
		out.Teachers[k] = v
	}
	return out
}

// ClassName renders "Name Section", or UnknownLabel.
func (l Lookups) ClassName(id string) string {
	label, ok := l.Classes[id]
	if !ok || label.Name == "" {
		return UnknownLabel
	}
	if label.Section == "" {
		return label.Name
	}
	return label.Name + " " + label.Section
}

// SubjectName returns the subject label or UnknownLabel.
func (l Lookups) SubjectName(id string) string {
	if name, ok := l.Subjects[id]; ok && name != "" {
		return name
	}
	return UnknownLabel
}

// TeacherName returns the teacher label or UnknownLabel.
func (l Lookups) TeacherName(id string) string {
	if name, ok := l.Teachers[id]; ok && name != "" {
		return name
	}
	return UnknownLabel
}

// Detect audits entries for teacher double-bookings and long unbroken runs.
// It does not modify entries and tolerates partial data.
func Detect(entries []Entry, lookups Lookups) []Conflict {
	conflicts := detectTeacherOverlaps(entries, lookups)
	return append(conflicts, detectMissingBreaks(entries, lookups)...)
}

type slotGroup struct {
	day   string
	start string
	end   string
	items []Entry
}

func detectTeacherOverlaps(entries []Entry, lookups Lookups) []Conflict {
	byTeacher := make(map[string]map[string]*slotGroup)
	for _, entry := range entries {
		if entry.IsBreak || entry.TeacherID == "" {
			continue
		}
		day := CanonicalDay(entry.Day)
		start, end := NormalizeClock(entry.Start), NormalizeClock(entry.End)
		key := TimeSlot{Start: start, End: end}.Key(day)
		if byTeacher[entry.TeacherID] == nil {
			byTeacher[entry.TeacherID] = make(map[string]*slotGroup)
		}
		group := byTeacher[entry.TeacherID][key]
		if group == nil {
			group = &slotGroup{day: day, start: start, end: end}
			byTeacher[entry.TeacherID][key] = group
		}
		group.items = append(group.items, entry)
	}

	teacherIDs := make([]string, 0, len(byTeacher))
	for id := range byTeacher {
		teacherIDs = append(teacherIDs, id)
	}
	sort.Strings(teacherIDs)

	var conflicts []Conflict
	for _, teacherID := range teacherIDs {
		groups := make([]*slotGroup, 0, len(byTeacher[teacherID]))
		for _, group := range byTeacher[teacherID] {
			if len(group.items) > 1 {
				groups = append(groups, group)
			}
		}
		sortGroups(groups)

		teacherName := lookups.TeacherName(teacherID)
		for _, group := range groups {
			classes := make([]string, 0, len(group.items))
			classIDs := make([]string, 0, len(group.items))
			for _, item := range group.items {
				classes = append(classes, lookups.ClassName(item.ClassID))
				classIDs = append(classIDs, item.ClassID)
			}
			conflicts = append(conflicts, Conflict{
				Type:            ConflictTeacher,
				Severity:        SeverityHigh,
				Day:             group.day,
				TimeRange:       group.start + "-" + group.end,
				Details:         fmt.Sprintf("%s is assigned to %d classes at the same time: %s", teacherName, len(group.items), strings.Join(classes, ", ")),
				AffectedClasses: classes,
				TeacherID:       teacherID,
				TeacherName:     teacherName,
				ClassIDs:        classIDs,
			})
		}
	}
	return conflicts
}

func sortGroups(groups []*slotGroup) {
	sort.Slice(groups, func(i, j int) bool {
		di, dj := DayIndex(groups[i].day), DayIndex(groups[j].day)
		if di != dj {
			return di < dj
		}
		if groups[i].start != groups[j].start {
			return groups[i].start < groups[j].start
		}
		return groups[i].end < groups[j].end
	})
}

type classDay struct {
	classID string
	day     string
}

func detectMissingBreaks(entries []Entry, lookups Lookups) []Conflict {
	grouped := make(map[classDay][]Entry)
	for _, entry := range entries {
		if entry.IsBreak {
			continue
		}
		normalized := entry
		normalized.Day = CanonicalDay(entry.Day)
		normalized.Start = NormalizeClock(entry.Start)
		normalized.End = NormalizeClock(entry.End)
		key := classDay{classID: entry.ClassID, day: normalized.Day}
		grouped[key] = append(grouped[key], normalized)
	}

	keys := make([]classDay, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].classID != keys[j].classID {
			return keys[i].classID < keys[j].classID
		}
		return DayIndex(keys[i].day) < DayIndex(keys[j].day)
	})

	var conflicts []Conflict
	for _, key := range keys {
		items := grouped[key]
		sort.SliceStable(items, func(i, j int) bool { return items[i].Start < items[j].Start })

		run, runStart := 1, 0
		for i := 1; i < len(items); i++ {
			if items[i-1].End == items[i].Start {
				run++
			} else {
				run, runStart = 1, i
				continue
			}
			if run < ConsecutiveLimit {
				continue
			}
			className := lookups.ClassName(key.classID)
			conflicts = append(conflicts, Conflict{
				Type:            ConflictNoBreak,
				Severity:        SeverityMedium,
				Day:             key.day,
				TimeRange:       items[runStart].Start + "-" + items[i].End,
				Details:         fmt.Sprintf("%s has %d consecutive periods without a break", className, run),
				AffectedClasses: []string{className},
				ClassID:         key.classID,
			})
			run, runStart = 0, i+1
		}
	}
	return conflicts
}
