package scheduler

import "errors"

// ErrNoSubjects is returned when a class has nothing to schedule.
var ErrNoSubjects = errors.New("class has no subjects to schedule")

// reservedBreaksPerDay is the number of slot equivalents per day held back
// for breaks when sizing demand, independent of actual break placement.
const reservedBreaksPerDay = 2

// Subject is a schedulable subject of the target class. TeacherID is empty
// when no teacher is assigned.
type Subject struct {
	ID        string
	Name      string
	TeacherID string
}

// Demand is one subject placement still needing a slot.
type Demand struct {
	SubjectID string
	TeacherID string
}

// SubjectDemand records the weekly period count planned for a subject.
type SubjectDemand struct {
	SubjectID       string `json:"subjectId"`
	TeacherID       string `json:"teacherId,omitempty"`
	RequiredPeriods int    `json:"requiredPeriods"`
}

// DemandBounds is the configured per-subject weekly range.
type DemandBounds struct {
	Min int
	Max int
}

// DemandPlan is the planner output for one run.
type DemandPlan struct {
	UsableSlots       int
	PeriodsPerSubject int
	Subjects          []SubjectDemand
	Pool              []Demand
}

// PlanDemand computes identical weekly demand for every subject and expands
// it into a flat pool.
func PlanDemand(subjects []Subject, grid *Grid, bounds DemandBounds) (*DemandPlan, error) {
	if len(subjects) == 0 {
		return nil, ErrNoSubjects
	}
	lo, hi := bounds.Min, bounds.Max
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}

	periods := len(grid.Slots) - reservedBreaksPerDay
	if periods < 0 {
		periods = 0
	}
	usable := len(grid.Days) * periods
	perSubject := clamp(usable/len(subjects), lo, hi)

	plan := &DemandPlan{
		UsableSlots:       usable,
		PeriodsPerSubject: perSubject,
		Subjects:          make([]SubjectDemand, 0, len(subjects)),
		Pool:              make([]Demand, 0, perSubject*len(subjects)),
	}
	for _, subject := range subjects {
		plan.Subjects = append(plan.Subjects, SubjectDemand{
			SubjectID:       subject.ID,
			TeacherID:       subject.TeacherID,
			RequiredPeriods: perSubject,
		})
		for i := 0; i < perSubject; i++ {
			plan.Pool = append(plan.Pool, Demand{SubjectID: subject.ID, TeacherID: subject.TeacherID})
		}
	}
	return plan, nil
}
