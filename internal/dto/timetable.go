package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

// TimetableSettings is the generation configuration surface. Zero values are
// filled from the referenced template and then from service defaults.
type TimetableSettings struct {
	PeriodsPerDay         int    `json:"periodsPerDay" validate:"omitempty,min=4,max=8"`
	DaysPerWeek           int    `json:"daysPerWeek" validate:"omitempty,oneof=5 6"`
	MinPeriodsPerSubject  int    `json:"minPeriodsPerSubject" validate:"omitempty,min=1,max=10"`
	MaxPeriodsPerSubject  int    `json:"maxPeriodsPerSubject" validate:"omitempty,min=1,max=15"`
	BreakfastTime         string `json:"breakfastTime" validate:"omitempty,datetime=15:04"`
	LunchTime             string `json:"lunchTime" validate:"omitempty,datetime=15:04"`
	ShortBreakAfterPeriod int    `json:"shortBreakAfterPeriod" validate:"omitempty,min=2,max=5"`
}

// GenerateTimetableRequest starts a Configuring -> Proposed transition.
type GenerateTimetableRequest struct {
	ClassID    string            `json:"classId" validate:"required"`
	TemplateID string            `json:"templateId"`
	Settings   TimetableSettings `json:"settings"`
	Seed       *int64            `json:"seed,omitempty"`
}

// TimetableEntryView is an entry enriched with display names.
type TimetableEntryView struct {
	ClassID     string `json:"classId"`
	SubjectID   string `json:"subjectId,omitempty"`
	SubjectName string `json:"subjectName,omitempty"`
	TeacherID   string `json:"teacherId,omitempty"`
	TeacherName string `json:"teacherName,omitempty"`
	DayOfWeek   string `json:"dayOfWeek"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	IsBreak     bool   `json:"isBreak"`
	PeriodName  string `json:"periodName,omitempty"`
}

// TimetableProposalResponse describes a generated, not yet persisted schedule.
type TimetableProposalResponse struct {
	ProposalID        string                    `json:"proposalId"`
	ClassID           string                    `json:"classId"`
	State             string                    `json:"state"`
	Settings          TimetableSettings         `json:"settings"`
	PeriodsPerSubject int                       `json:"periodsPerSubject"`
	Demand            []scheduler.SubjectDemand `json:"demand"`
	Entries           []TimetableEntryView      `json:"entries"`
	Conflicts         []scheduler.Conflict      `json:"conflicts"`
	Stats             scheduler.AssignStats     `json:"stats"`
	GeneratedAt       time.Time                 `json:"generatedAt"`
	ExpiresAt         time.Time                 `json:"expiresAt"`
}

// TimetableComparisonResponse is the side by side view of live and proposed entries.
type TimetableComparisonResponse struct {
	ProposalID string               `json:"proposalId"`
	ClassID    string               `json:"classId"`
	Comparison scheduler.Comparison `json:"comparison"`
}

// ApplyTimetableResponse reports a committed proposal.
type ApplyTimetableResponse struct {
	ProposalID string `json:"proposalId"`
	ClassID    string `json:"classId"`
	State      string `json:"state"`
	Inserted   int    `json:"inserted"`
}

// ConflictReportResponse carries a live audit.
type ConflictReportResponse struct {
	ClassID     string               `json:"classId,omitempty"`
	Conflicts   []scheduler.Conflict `json:"conflicts"`
	Count       int                  `json:"count"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Cached      bool                 `json:"-"`
}

// CreateTimetableTemplateRequest stores a named settings preset.
type CreateTimetableTemplateRequest struct {
	Name     string            `json:"name" validate:"required,max=120"`
	Settings TimetableSettings `json:"settings"`
}

// TimetableTemplateResponse exposes a decoded template.
type TimetableTemplateResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Settings  TimetableSettings `json:"settings"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// ClassTimetableResponse is the live timetable of one class.
type ClassTimetableResponse struct {
	ClassID   string               `json:"classId"`
	ClassName string               `json:"className"`
	Entries   []TimetableEntryView `json:"entries"`
}
