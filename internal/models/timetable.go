package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableEntry is a persisted row of a class's weekly timetable. Break rows
// carry no subject or teacher reference.
type TimetableEntry struct {
	ID         string    `db:"id" json:"id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	SubjectID  *string   `db:"subject_id" json:"subject_id,omitempty"`
	TeacherID  *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	DayOfWeek  string    `db:"day_of_week" json:"day_of_week"`
	StartTime  string    `db:"start_time" json:"start_time"`
	EndTime    string    `db:"end_time" json:"end_time"`
	IsBreak    bool      `db:"is_break" json:"is_break"`
	PeriodName *string   `db:"period_name" json:"period_name,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TimetableTemplate stores a named preset of generation settings.
type TimetableTemplate struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Config    types.JSONText `db:"config" json:"config"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// TimetableAppliedEvent is published after a proposal replaces a class timetable.
type TimetableAppliedEvent struct {
	Type       string    `json:"type"`
	ClassID    string    `json:"class_id"`
	ProposalID string    `json:"proposal_id"`
	Inserted   int       `json:"inserted"`
	AppliedAt  time.Time `json:"applied_at"`
}
